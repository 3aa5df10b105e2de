package http

import (
	"errors"
	"net/http"
	"strings"

	"klasquiz-service/internal/auth"
	"klasquiz-service/internal/domain"
)

type registerRequest struct {
	Naam     string `json:"naam"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	req.Naam = strings.TrimSpace(req.Naam)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Naam == "" || req.Email == "" || len(req.Password) < 8 {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := s.teachers.CreateTeacher(r.Context(), req.Naam, req.Email, hash)
	if err != nil {
		writeError(w, err)
		return
	}
	token, err := s.tokens.Token(id, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	docent, err := s.teachers.TeacherByEmail(r.Context(), req.Email)
	if err != nil {
		// the same rejection for unknown email and wrong password
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "ongeldige inloggegevens"})
			return
		}
		writeError(w, err)
		return
	}
	if !auth.CheckPassword(docent.PasswordHash, req.Password) {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "ongeldige inloggegevens"})
		return
	}
	token, err := s.tokens.Token(docent.ID, docent.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := docentFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"id": claims.ID, "email": claims.Email})
}
