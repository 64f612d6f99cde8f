package server

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"classboard/internal/app"
	"classboard/internal/usertoken"
)

// parseUpload pulls one file field out of an already-parsed multipart form.
// A missing field returns (nil, nil, nil) so callers can treat it as optional.
func (s *Server) parseUpload(r *http.Request, field string) (*app.Upload, multipart.File, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil, nil
		}
		return nil, nil, errors.New("invalid file upload")
	}
	if !s.isExtensionAllowed(header.Filename) {
		file.Close()
		return nil, nil, errors.New("file type is not allowed")
	}
	return &app.Upload{
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Reader:      file,
	}, file, nil
}

func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "upload too large or malformed")
		return false
	}
	return true
}

func parseDueDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, errors.New("dueDate must be RFC3339 or YYYY-MM-DD")
}

func (s *Server) handleCreateAssignment(w http.ResponseWriter, r *http.Request, claims usertoken.Claims) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.parseMultipart(w, r) {
		return
	}
	dueDate, err := parseDueDate(r.FormValue("dueDate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	upload, file, err := s.parseUpload(r, "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if file != nil {
		defer file.Close()
	}

	assignment, err := s.app.CreateAssignment(r.Context(), claims.UserID(), app.CreateAssignmentInput{
		ClassroomID: r.FormValue("classroomId"),
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		DueDate:     dueDate,
		File:        upload,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, assignment)
}

func (s *Server) handleAssignmentsByClassroom(w http.ResponseWriter, r *http.Request, claims usertoken.Claims) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	classroomID := strings.TrimPrefix(r.URL.Path, "/assignment/classroom/")
	if classroomID == "" || strings.Contains(classroomID, "/") {
		writeError(w, http.StatusNotFound, "classroom not found")
		return
	}
	assignments, err := s.app.ListAssignments(r.Context(), claims.UserID(), classroomID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assignments)
}

func (s *Server) handleAssignmentByID(w http.ResponseWriter, r *http.Request, claims usertoken.Claims) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	assignmentID := strings.TrimPrefix(r.URL.Path, "/assignment/item/")
	if assignmentID == "" || strings.Contains(assignmentID, "/") {
		writeError(w, http.StatusNotFound, "assignment not found")
		return
	}
	assignment, err := s.app.GetAssignment(r.Context(), claims.UserID(), assignmentID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assignment)
}
