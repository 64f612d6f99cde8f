package server

import (
	"encoding/json"
	"net/http"

	"classboard/internal/app"
	"classboard/internal/usertoken"
)

const maxJSONBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.registerLimiter, "too many registration attempts, try again later") {
		return
	}
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.app.Register(r.Context(), app.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		s.audit(r, "user.register", "fail", "email", req.Email)
		writeAppError(w, r, err)
		return
	}
	token, err := s.tokens.Issue(user)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "user.register", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, tokenResponse{
		Token:   token,
		User:    user,
		Message: s.app.RegisterMessage(),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts, try again later") {
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.app.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.audit(r, "user.login", "fail", "email", req.Email)
		writeAppError(w, r, err)
		return
	}
	token, err := s.tokens.Issue(user)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "user.login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, User: user})
}

func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts, try again later") {
		return
	}
	var req struct {
		IDToken string `json:"idToken"`
		Role    string `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.app.GoogleLogin(r.Context(), req.IDToken, req.Role)
	if err != nil {
		s.audit(r, "user.google_login", "fail")
		writeAppError(w, r, err)
		return
	}
	token, err := s.tokens.Issue(user)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "user.google_login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, User: user})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, claims usertoken.Claims) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, err := s.app.Profile(r.Context(), claims.UserID())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
