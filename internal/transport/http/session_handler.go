package http

import (
	"encoding/csv"
	"net/http"
	"strconv"

	"klasquiz-service/internal/domain"
)

type startSessionRequest struct {
	KlasID        int64 `json:"klas_id"`
	VragenlijstID int64 `json:"vragenlijst_id"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id, err := s.sessions.StartSession(r.Context(), docentFrom(r.Context()).ID, req.KlasID, req.VragenlijstID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": id})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sessieID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := s.sessions.Snapshot(r.Context(), docentFrom(r.Context()).ID, sessieID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSendQuestion(w http.ResponseWriter, r *http.Request) {
	sessieID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	vraagID, noMore, err := s.sessions.SendNextQuestion(r.Context(), docentFrom(r.Context()).ID, sessieID)
	if err != nil {
		writeError(w, err)
		return
	}
	if noMore {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "no_more": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "vraag_id": vraagID})
}

func (s *Server) handleClearQuestion(w http.ResponseWriter, r *http.Request) {
	sessieID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.sessions.ClearCurrentQuestion(r.Context(), docentFrom(r.Context()).ID, sessieID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	sessieID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.sessions.StopSession(r.Context(), docentFrom(r.Context()).ID, sessieID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type gradeAnswerRequest struct {
	ResultaatID int64  `json:"resultaat_id"`
	Status      string `json:"status"`
}

func (s *Server) handleGradeAnswer(w http.ResponseWriter, r *http.Request) {
	var req gradeAnswerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.sessions.GradeAnswer(r.Context(), docentFrom(r.Context()).ID, req.ResultaatID, req.Status); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleScoreboard(w http.ResponseWriter, r *http.Request) {
	sessieID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := s.sessions.Scoreboard(r.Context(), docentFrom(r.Context()).ID, sessieID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scoreboard": rows})
}

func (s *Server) handleRecentAnswers(w http.ResponseWriter, r *http.Request) {
	sessieID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := s.sessions.RecentAnswers(r.Context(), docentFrom(r.Context()).ID, sessieID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"answers": rows})
}

func (s *Server) handleAnswerCount(w http.ResponseWriter, r *http.Request) {
	sessieID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	count, err := s.sessions.CurrentAnswerCount(r.Context(), docentFrom(r.Context()).ID, sessieID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sessieID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := s.sessions.ExportResults(r.Context(), docentFrom(r.Context()).ID, sessieID)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="resultaten-`+strconv.FormatInt(sessieID, 10)+`.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"leerling", "vraag", "antwoord", "status", "tijdstip"})
	for _, row := range rows {
		_ = cw.Write([]string{row.Leerling, row.Vraag, row.Antwoord, row.Status, row.CreatedAt})
	}
	cw.Flush()
}

func (s *Server) handleRemoveStudent(w http.ResponseWriter, r *http.Request) {
	sessieID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	leerlingID, err := pathID(r, "lid")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.sessions.RemoveStudentFromSession(r.Context(), docentFrom(r.Context()).ID, sessieID, leerlingID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type submitAnswerRequest struct {
	LeerlingID int64  `json:"leerling_id"`
	VraagID    int64  `json:"vraag_id"`
	Antwoord   string `json:"antwoord"`
}

func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	sessieID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req submitAnswerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.LeerlingID <= 0 || req.VraagID <= 0 {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	outcome, err := s.sessions.SubmitAnswer(r.Context(), sessieID, req.LeerlingID, req.VraagID, req.Antwoord)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type statusUpdateRequest struct {
	LeerlingID int64  `json:"leerling_id"`
	KlasID     int64  `json:"klas_id"`
	Status     string `json:"status"`
}

func (s *Server) handleStatusUpdate(w http.ResponseWriter, r *http.Request) {
	var req statusUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.LeerlingID <= 0 || req.KlasID <= 0 {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	s.sessions.UpdatePresence(r.Context(), req.LeerlingID, req.KlasID, req.Status)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleStudentState(w http.ResponseWriter, r *http.Request) {
	leerlingID, err := strconv.ParseInt(r.URL.Query().Get("leerling_id"), 10, 64)
	if err != nil || leerlingID <= 0 {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	klasID, err := strconv.ParseInt(r.URL.Query().Get("klas_id"), 10, 64)
	if err != nil || klasID <= 0 {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	state, err := s.sessions.StudentState(r.Context(), leerlingID, klasID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}
