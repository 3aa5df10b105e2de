package http

import (
	"net/http"
)

type createListRequest struct {
	KlasID int64  `json:"klas_id"`
	Naam   string `json:"naam"`
}

func (s *Server) handleCreateList(w http.ResponseWriter, r *http.Request) {
	var req createListRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id, err := s.catalog.CreateQuestionList(r.Context(), docentFrom(r.Context()).ID, req.KlasID, req.Naam)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": id})
}

func (s *Server) handleListDetails(w http.ResponseWriter, r *http.Request) {
	lijstID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	lijst, err := s.catalog.QuestionListWithQuestions(r.Context(), docentFrom(r.Context()).ID, lijstID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lijst)
}

type renameListRequest struct {
	Naam string `json:"naam"`
}

func (s *Server) handleRenameList(w http.ResponseWriter, r *http.Request) {
	lijstID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req renameListRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.catalog.RenameQuestionList(r.Context(), docentFrom(r.Context()).ID, lijstID, req.Naam); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleDeleteList(w http.ResponseWriter, r *http.Request) {
	lijstID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.catalog.DeleteQuestionList(r.Context(), docentFrom(r.Context()).ID, lijstID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type questionRequest struct {
	Vraag    string `json:"vraag"`
	Antwoord string `json:"antwoord"`
}

func (s *Server) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	lijstID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req questionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id, err := s.catalog.AddQuestion(r.Context(), docentFrom(r.Context()).ID, lijstID, req.Vraag, req.Antwoord)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": id})
}

func (s *Server) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	vraagID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req questionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.catalog.UpdateQuestion(r.Context(), docentFrom(r.Context()).ID, vraagID, req.Vraag, req.Antwoord); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	vraagID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.catalog.DeleteQuestion(r.Context(), docentFrom(r.Context()).ID, vraagID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
