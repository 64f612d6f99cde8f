package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"classboard/internal/app"
	"classboard/internal/usertoken"
)

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, claims usertoken.Claims) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.parseMultipart(w, r) {
		return
	}
	upload, file, err := s.parseUpload(r, "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if upload == nil {
		writeError(w, http.StatusBadRequest, "a submission file is required")
		return
	}
	defer file.Close()

	submission, err := s.app.Submit(r.Context(), claims.UserID(), r.FormValue("assignmentId"), *upload)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubmissionDTO(submission))
}

func (s *Server) handleMySubmission(w http.ResponseWriter, r *http.Request, claims usertoken.Claims) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	assignmentID := r.URL.Query().Get("assignmentId")
	if assignmentID == "" {
		writeError(w, http.StatusBadRequest, "assignmentId is required")
		return
	}
	submission, err := s.app.MySubmission(r.Context(), claims.UserID(), assignmentID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubmissionDTO(submission))
}

func (s *Server) handleSubmissionsByAssignment(w http.ResponseWriter, r *http.Request, claims usertoken.Claims) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	assignmentID := strings.TrimPrefix(r.URL.Path, "/submission/assignment/")
	if assignmentID == "" || strings.Contains(assignmentID, "/") {
		writeError(w, http.StatusNotFound, "assignment not found")
		return
	}
	submissions, err := s.app.AssignmentSubmissions(r.Context(), claims.UserID(), assignmentID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubmissionDTOs(submissions))
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request, claims usertoken.Claims) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	classroomID := q.Get("classroomId")
	if classroomID == "" {
		writeError(w, http.StatusBadRequest, "classroomId is required")
		return
	}
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	pageOut, err := s.app.ClassroomQueue(r.Context(), claims.UserID(), classroomID, page, limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": toSubmissionDTOs(pageOut.Items),
		"total": pageOut.Total,
		"page":  pageOut.Page,
		"limit": pageOut.Limit,
	})
}

func (s *Server) handleManualEvaluate(w http.ResponseWriter, r *http.Request, claims usertoken.Claims) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	submissionID := strings.TrimPrefix(r.URL.Path, "/submission/evaluate/")
	if submissionID == "" || strings.Contains(submissionID, "/") {
		writeError(w, http.StatusNotFound, "submission not found")
		return
	}
	var req struct {
		Score    float64 `json:"score"`
		Feedback string  `json:"feedback"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	submission, err := s.app.ManualEvaluate(r.Context(), claims.UserID(), submissionID, req.Score, req.Feedback)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubmissionDTO(submission))
}

func (s *Server) handleEvaluateAI(w http.ResponseWriter, r *http.Request, claims usertoken.Claims) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	submissionID := strings.TrimPrefix(r.URL.Path, "/submission/evaluate-ai/")
	if submissionID == "" || strings.Contains(submissionID, "/") {
		writeError(w, http.StatusNotFound, "submission not found")
		return
	}
	submission, err := s.app.EvaluateAI(r.Context(), claims.UserID(), submissionID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubmissionDTO(submission))
}

func (s *Server) handleEvaluateNext(w http.ResponseWriter, r *http.Request, claims usertoken.Claims) {
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
	submission, err := s.app.EvaluateNext(r.Context(), claims.UserID(), req.ClassroomID)
	if errors.Is(err, app.ErrNothingToEvaluate) {
		// An empty queue is a normal outcome, not a failure.
		writeJSON(w, http.StatusOK, map[string]any{
			"message":    "No pending submissions to evaluate",
			"submission": nil,
		})
		return
	}
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubmissionDTO(submission))
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request, claims usertoken.Claims) {
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
	published, err := s.app.Publish(r.Context(), claims.UserID(), req.ClassroomID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "submission.publish", "success", "user_id", claims.UserID(), "classroom_id", req.ClassroomID, "published", published)
	writeJSON(w, http.StatusOK, map[string]any{"published": published})
}
