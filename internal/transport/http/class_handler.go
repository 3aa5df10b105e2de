package http

import (
	"net/http"
)

type createClassRequest struct {
	Naam string `json:"naam"`
	Vak  string `json:"vak"`
}

func (s *Server) handleCreateClass(w http.ResponseWriter, r *http.Request) {
	var req createClassRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	klas, err := s.catalog.CreateClass(r.Context(), docentFrom(r.Context()).ID, req.Naam, req.Vak)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, klas)
}

func (s *Server) handleClassDetails(w http.ResponseWriter, r *http.Request) {
	klasID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	details, err := s.catalog.ClassDetails(r.Context(), docentFrom(r.Context()).ID, klasID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

type classIDRequest struct {
	KlasID int64 `json:"klas_id"`
}

func (s *Server) handleDeleteClass(w http.ResponseWriter, r *http.Request) {
	var req classIDRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.catalog.DeleteClass(r.Context(), docentFrom(r.Context()).ID, req.KlasID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleDeleteStudents(w http.ResponseWriter, r *http.Request) {
	var req classIDRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.catalog.DeleteStudents(r.Context(), docentFrom(r.Context()).ID, req.KlasID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type joinRequest struct {
	Klascode string `json:"klascode"`
	Naam     string `json:"naam"`
}

func (s *Server) handleJoinClass(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	leerling, err := s.catalog.JoinClass(r.Context(), req.Klascode, req.Naam)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"leerling_id": leerling.ID,
		"klas_id":     leerling.KlasID,
	})
}
