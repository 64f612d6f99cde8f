package server

import (
	"io"
	"net/http"

	"classboard/internal/usertoken"
)

func (s *Server) handleStartMeet(w http.ResponseWriter, r *http.Request, claims usertoken.Claims) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		ClassroomID string `json:"classroomId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	status, err := s.app.StartMeet(r.Context(), claims.UserID(), req.ClassroomID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "meet.start", "success", "user_id", claims.UserID(), "classroom_id", req.ClassroomID)
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleEndMeet(w http.ResponseWriter, r *http.Request, claims usertoken.Claims) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		ClassroomID string `json:"classroomId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	status, err := s.app.EndMeet(r.Context(), claims.UserID(), req.ClassroomID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSummarizeCaptions(w http.ResponseWriter, r *http.Request, claims usertoken.Claims) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		ClassroomID string `json:"classroomId"`
		ClearAfter  bool   `json:"clearAfter"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	summary, err := s.app.SummarizeCaptions(r.Context(), claims.UserID(), req.ClassroomID, req.ClearAfter)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (s *Server) handleSummarizeText(w http.ResponseWriter, r *http.Request, _ usertoken.Claims) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	summary, err := s.app.SummarizeText(r.Context(), req.Text)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (s *Server) handleLiveSummary(w http.ResponseWriter, r *http.Request, _ usertoken.Claims) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "upload too large or malformed")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "an audio file is required")
		return
	}
	defer file.Close()
	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read audio file")
		return
	}
	summary, err := s.app.LiveSummary(r.Context(), audio, header.Header.Get("Content-Type"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}
