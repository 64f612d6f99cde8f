package server

import (
	"net/http"
	"strings"

	"classboard/internal/app"
	"classboard/internal/usertoken"
)

func (s *Server) handleCreateClassroom(w http.ResponseWriter, r *http.Request, claims usertoken.Claims) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Name    string `json:"name"`
		Subject string `json:"subject"`
		Section string `json:"section"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	classroom, err := s.app.CreateClassroom(r.Context(), claims.UserID(), app.CreateClassroomInput{
		Name:    req.Name,
		Subject: req.Subject,
		Section: req.Section,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, classroom)
}

func (s *Server) handleAllClassrooms(w http.ResponseWriter, r *http.Request, _ usertoken.Claims) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	classrooms, err := s.app.ListClassrooms(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, classrooms)
}

func (s *Server) handleMyClassrooms(w http.ResponseWriter, r *http.Request, claims usertoken.Claims) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	classrooms, err := s.app.MyClassrooms(r.Context(), claims.UserID(), claims.Role)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, classrooms)
}

// handleJoinClassroom serves both /classroom/join and /classroom/join-link;
// the resolver accepts bare codes and full join links alike.
func (s *Server) handleJoinClassroom(w http.ResponseWriter, r *http.Request, claims usertoken.Claims) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Code string `json:"code"`
		Link string `json:"link"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	code := req.Code
	if code == "" {
		code = req.Link
	}
	classroom, err := s.app.JoinClassroom(r.Context(), claims.UserID(), code)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "classroom.join", "success", "user_id", claims.UserID(), "classroom_id", classroom.ID)
	writeJSON(w, http.StatusOK, classroom)
}

func (s *Server) handleClassroomByCode(w http.ResponseWriter, r *http.Request, _ usertoken.Claims) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	code := strings.TrimPrefix(r.URL.Path, "/classroom/")
	if code == "" || strings.Contains(code, "/") {
		writeError(w, http.StatusNotFound, "classroom not found")
		return
	}
	classroom, err := s.app.GetClassroomByCode(r.Context(), code)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, classroom)
}
