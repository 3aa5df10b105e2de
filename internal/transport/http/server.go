package http

import (
	"net/http"
	"strconv"

	"klasquiz-service/internal/app"
	"klasquiz-service/internal/auth"
	"klasquiz-service/internal/domain"
	"github.com/gorilla/websocket"
)

// Server bundles the HTTP handlers over the application services.
type Server struct {
	sessions *app.SessionService
	catalog  *app.CatalogService
	teachers app.TeacherStore
	tokens   *auth.Manager
	upgrader websocket.Upgrader
}

func NewServer(sessions *app.SessionService, catalog *app.CatalogService, teachers app.TeacherStore, tokens *auth.Manager) *Server {
	return &Server{
		sessions: sessions,
		catalog:  catalog,
		teachers: teachers,
		tokens:   tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Routes builds the full route table.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	// docent account
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /me", requireDocent(s.tokens, s.handleMe))

	// classes and students
	mux.HandleFunc("POST /create-klas", requireDocent(s.tokens, s.handleCreateClass))
	mux.HandleFunc("GET /klas/{id}", requireDocent(s.tokens, s.handleClassDetails))
	mux.HandleFunc("POST /delete-klas", requireDocent(s.tokens, s.handleDeleteClass))
	mux.HandleFunc("POST /delete-leerlingen", requireDocent(s.tokens, s.handleDeleteStudents))

	// question lists and questions
	mux.HandleFunc("POST /vragenlijst", requireDocent(s.tokens, s.handleCreateList))
	mux.HandleFunc("GET /vragenlijst/{id}", requireDocent(s.tokens, s.handleListDetails))
	mux.HandleFunc("PUT /vragenlijst/{id}", requireDocent(s.tokens, s.handleRenameList))
	mux.HandleFunc("DELETE /vragenlijst/{id}", requireDocent(s.tokens, s.handleDeleteList))
	mux.HandleFunc("POST /vragenlijst/{id}/vraag", requireDocent(s.tokens, s.handleAddQuestion))
	mux.HandleFunc("PUT /vragen/{id}", requireDocent(s.tokens, s.handleUpdateQuestion))
	mux.HandleFunc("DELETE /vragen/{id}", requireDocent(s.tokens, s.handleDeleteQuestion))

	// session lifecycle
	mux.HandleFunc("POST /sessies", requireDocent(s.tokens, s.handleStartSession))
	mux.HandleFunc("GET /sessies/{id}", requireDocent(s.tokens, s.handleSnapshot))
	mux.HandleFunc("POST /sessies/{id}/send_question", requireDocent(s.tokens, s.handleSendQuestion))
	mux.HandleFunc("POST /sessies/{id}/clear_question", requireDocent(s.tokens, s.handleClearQuestion))
	mux.HandleFunc("POST /sessies/{id}/stop", requireDocent(s.tokens, s.handleStopSession))
	mux.HandleFunc("POST /grade-answer", requireDocent(s.tokens, s.handleGradeAnswer))
	mux.HandleFunc("GET /sessies/{id}/scoreboard", requireDocent(s.tokens, s.handleScoreboard))
	mux.HandleFunc("GET /sessies/{id}/recent-answers", requireDocent(s.tokens, s.handleRecentAnswers))
	mux.HandleFunc("GET /sessies/{id}/answer_count", requireDocent(s.tokens, s.handleAnswerCount))
	mux.HandleFunc("GET /sessies/{id}/export", requireDocent(s.tokens, s.handleExport))
	mux.HandleFunc("DELETE /sessies/{id}/leerling/{lid}", requireDocent(s.tokens, s.handleRemoveStudent))

	// student-facing, no account required
	mux.HandleFunc("POST /leerling/join", s.handleJoinClass)
	mux.HandleFunc("GET /student/state", s.handleStudentState)
	mux.HandleFunc("POST /sessies/{id}/answer", s.handleSubmitAnswer)
	mux.HandleFunc("POST /status-update", s.handleStatusUpdate)
	mux.HandleFunc("GET /sessies/{id}/stream", s.handleStream)

	return logRequests(mux)
}

// pathID parses the named path segment as an id.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidInput
	}
	return id, nil
}
