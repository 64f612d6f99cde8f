package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"classboard/internal/app"
	"classboard/internal/evaluator"
	"classboard/internal/meet"
	"classboard/internal/usertoken"
	"classboard/pkg/domain"
	"classboard/pkg/storage"
	"classboard/pkg/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	blobs, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	application := app.New(app.Options{
		Store:           store.NewMemoryStore(),
		Blobs:           blobs,
		Evaluator:       evaluator.New(nil),
		Captions:        meet.NewCaptionStore(),
		FrontendBaseURL: "http://localhost:5173",
		ContactEmail:    "admin@classboard.test",
	})
	tokens, err := usertoken.NewManager(usertoken.Config{Secret: "test-secret", TTL: time.Hour})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	srv, err := New(Config{
		App:    application,
		Tokens: tokens,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func doMultipart(t *testing.T, srv *Server, path, token string, fields map[string]string, fileField, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if fileField != "" {
		part, err := mw.CreateFormFile(fileField, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := io.WriteString(part, content); err != nil {
			t.Fatalf("write file content: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func registerUser(t *testing.T, srv *Server, name, email, role string) (string, domain.User) {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/user/register", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": "sup3rsecret",
		"role":     role,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d, body %s", email, rec.Code, rec.Body.String())
	}
	var resp tokenResponse
	decodeBody(t, rec, &resp)
	if resp.Token == "" {
		t.Fatalf("register %s: empty token", email)
	}
	return resp.Token, resp.User
}

func createClassroom(t *testing.T, srv *Server, token, name string) domain.Classroom {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/classroom/create", token, map[string]string{
		"name":    name,
		"subject": "Physics",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create classroom: status %d, body %s", rec.Code, rec.Body.String())
	}
	var classroom domain.Classroom
	decodeBody(t, rec, &classroom)
	return classroom
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Status       string `json:"status"`
		AIConfigured bool   `json:"aiConfigured"`
	}
	decodeBody(t, rec, &resp)
	if resp.Status != "ok" || resp.AIConfigured {
		t.Fatalf("unexpected health response: %+v", resp)
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/user/profile", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodGet, "/user/profile", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status = %d, want 401", rec.Code)
	}
	var errBody struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	decodeBody(t, rec, &errBody)
	if errBody.Code != "unauthorized" || errBody.Message == "" {
		t.Fatalf("unexpected error envelope: %+v", errBody)
	}
}

func TestRegisterLoginProfile(t *testing.T) {
	srv := newTestServer(t)
	token, user := registerUser(t, srv, "Ada", "ada@example.com", "teacher")
	if user.Role != domain.RoleTeacher {
		t.Fatalf("role = %q", user.Role)
	}

	rec := doJSON(t, srv, http.MethodGet, "/user/profile", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile: status %d", rec.Code)
	}
	var profile domain.User
	decodeBody(t, rec, &profile)
	if profile.ID != user.ID || profile.Email != "ada@example.com" {
		t.Fatalf("profile mismatch: %+v", profile)
	}

	// duplicate email
	rec = doJSON(t, srv, http.MethodPost, "/user/register", "", map[string]string{
		"name": "Ada Again", "email": "ada@example.com", "password": "sup3rsecret", "role": "teacher",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register: status %d", rec.Code)
	}

	// wrong password
	rec = doJSON(t, srv, http.MethodPost, "/user/login", "", map[string]string{
		"email": "ada@example.com", "password": "wrong-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: status %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/user/login", "", map[string]string{
		"email": "ADA@example.com", "password": "sup3rsecret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/user/register", "", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestTeacherOnlyRoutes(t *testing.T) {
	srv := newTestServer(t)
	studentToken, _ := registerUser(t, srv, "Sam", "sam@example.com", "student")

	rec := doJSON(t, srv, http.MethodPost, "/classroom/create", studentToken, map[string]string{"name": "Nope"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("student create classroom: status %d, want 403", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodPost, "/submission/evaluate-next", studentToken, map[string]string{"classroomId": "x"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("student evaluate-next: status %d, want 403", rec.Code)
	}
}

func TestClassroomJoinFlow(t *testing.T) {
	srv := newTestServer(t)
	teacherToken, _ := registerUser(t, srv, "Ada", "ada@example.com", "teacher")
	studentToken, student := registerUser(t, srv, "Sam", "sam@example.com", "student")

	classroom := createClassroom(t, srv, teacherToken, "Mechanics")
	if len(classroom.Code) != 6 {
		t.Fatalf("code = %q, want 6 characters", classroom.Code)
	}
	if !strings.Contains(classroom.JoinLink, classroom.Code) {
		t.Fatalf("join link %q does not carry code %q", classroom.JoinLink, classroom.Code)
	}

	rec := doJSON(t, srv, http.MethodGet, "/classroom/"+classroom.Code, studentToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup by code: status %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/classroom/join", studentToken, map[string]string{"code": classroom.Code})
	if rec.Code != http.StatusOK {
		t.Fatalf("join: status %d, body %s", rec.Code, rec.Body.String())
	}
	var joined domain.Classroom
	decodeBody(t, rec, &joined)
	if len(joined.StudentIDs) != 1 || joined.StudentIDs[0] != student.ID {
		t.Fatalf("roster after join: %v", joined.StudentIDs)
	}

	rec = doJSON(t, srv, http.MethodPost, "/classroom/join", studentToken, map[string]string{"code": classroom.Code})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("second join: status %d, want 400", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/classroom/join-link", studentToken, map[string]string{"link": "http://localhost:5173/classroom/ZZZZ99"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown code: status %d, want 404", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/classroom/my-classrooms", studentToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("my-classrooms: status %d", rec.Code)
	}
	var mine []domain.Classroom
	decodeBody(t, rec, &mine)
	if len(mine) != 1 || mine[0].ID != classroom.ID {
		t.Fatalf("my-classrooms = %+v", mine)
	}
}

func TestSubmissionLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	teacherToken, _ := registerUser(t, srv, "Ada", "ada@example.com", "teacher")
	studentToken, _ := registerUser(t, srv, "Sam", "sam@example.com", "student")

	classroom := createClassroom(t, srv, teacherToken, "Mechanics")
	rec := doJSON(t, srv, http.MethodPost, "/classroom/join", studentToken, map[string]string{"code": classroom.Code})
	if rec.Code != http.StatusOK {
		t.Fatalf("join: status %d", rec.Code)
	}

	rec = doMultipart(t, srv, "/assignment/create", teacherToken, map[string]string{
		"classroomId": classroom.ID,
		"title":       "Newton's Laws",
		"description": "Explain all three laws with examples.",
		"dueDate":     "2026-09-15",
	}, "", "", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create assignment: status %d, body %s", rec.Code, rec.Body.String())
	}
	var assignment domain.Assignment
	decodeBody(t, rec, &assignment)
	if assignment.DueDate == nil {
		t.Fatal("dueDate not parsed")
	}

	answer := strings.Repeat("Newton's laws describe motion. ", 30)
	rec = doMultipart(t, srv, "/submission/submit", studentToken, map[string]string{
		"assignmentId": assignment.ID,
	}, "file", "answer.txt", answer)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: status %d, body %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, alias := range []string{"solutionFileURL", "isEvaluated", "isPublished", "marks", "aiScore"} {
		if !strings.Contains(body, alias) {
			t.Fatalf("submission response missing legacy field %q: %s", alias, body)
		}
	}

	// pre-publish the student sees no score
	rec = doJSON(t, srv, http.MethodGet, "/submission/my?assignmentId="+assignment.ID, studentToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("my submission: status %d", rec.Code)
	}
	var mine submissionDTO
	decodeBody(t, rec, &mine)
	if mine.Score != nil || mine.Feedback != "" {
		t.Fatalf("unpublished grade leaked: %+v", mine)
	}

	rec = doJSON(t, srv, http.MethodPost, "/submission/evaluate-next", teacherToken, map[string]string{"classroomId": classroom.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("evaluate-next: status %d, body %s", rec.Code, rec.Body.String())
	}
	var evaluated submissionDTO
	decodeBody(t, rec, &evaluated)
	if !evaluated.Evaluated || evaluated.Score == nil {
		t.Fatalf("evaluate-next result: %+v", evaluated)
	}

	// Draining the queue is a normal outcome, not an error.
	rec = doJSON(t, srv, http.MethodPost, "/submission/evaluate-next", teacherToken, map[string]string{"classroomId": classroom.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("empty queue: status %d, want 200", rec.Code)
	}
	var drained struct {
		Message    string          `json:"message"`
		Submission json.RawMessage `json:"submission"`
	}
	decodeBody(t, rec, &drained)
	if drained.Message == "" || string(drained.Submission) != "null" {
		t.Fatalf("empty queue body = %s", rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodPost, "/submission/publish", teacherToken, map[string]string{"classroomId": classroom.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("publish: status %d", rec.Code)
	}
	var published struct {
		Published int64 `json:"published"`
	}
	decodeBody(t, rec, &published)
	if published.Published != 1 {
		t.Fatalf("published = %d, want 1", published.Published)
	}

	rec = doJSON(t, srv, http.MethodGet, "/submission/my?assignmentId="+assignment.ID, studentToken, nil)
	decodeBody(t, rec, &mine)
	if mine.Score == nil || !mine.Published {
		t.Fatalf("published grade not visible: %+v", mine)
	}
}

func TestEvaluateNextOnFreshClassroom(t *testing.T) {
	srv := newTestServer(t)
	teacherToken, _ := registerUser(t, srv, "Ada", "ada@example.com", "teacher")
	classroom := createClassroom(t, srv, teacherToken, "Mechanics")

	rec := doJSON(t, srv, http.MethodPost, "/submission/evaluate-next", teacherToken, map[string]string{"classroomId": classroom.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("fresh classroom: status %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Message    string          `json:"message"`
		Submission json.RawMessage `json:"submission"`
	}
	decodeBody(t, rec, &resp)
	if resp.Message != "No pending submissions to evaluate" || string(resp.Submission) != "null" {
		t.Fatalf("fresh classroom body = %s", rec.Body.String())
	}
}

func TestUploadExtensionRejected(t *testing.T) {
	srv := newTestServer(t)
	teacherToken, _ := registerUser(t, srv, "Ada", "ada@example.com", "teacher")
	classroom := createClassroom(t, srv, teacherToken, "Mechanics")

	rec := doMultipart(t, srv, "/assignment/create", teacherToken, map[string]string{
		"classroomId": classroom.ID,
		"title":       "Lab",
	}, "file", "payload.exe", "MZ")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("exe upload: status %d, want 400", rec.Code)
	}
}

func TestQueuePagingOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	teacherToken, _ := registerUser(t, srv, "Ada", "ada@example.com", "teacher")
	classroom := createClassroom(t, srv, teacherToken, "Mechanics")

	rec := doMultipart(t, srv, "/assignment/create", teacherToken, map[string]string{
		"classroomId": classroom.ID,
		"title":       "Essay",
	}, "", "", "")
	var assignment domain.Assignment
	decodeBody(t, rec, &assignment)

	for i := 0; i < 3; i++ {
		email := fmt.Sprintf("s%d@example.com", i)
		studentToken, _ := registerUser(t, srv, "Student", email, "student")
		if rec := doJSON(t, srv, http.MethodPost, "/classroom/join", studentToken, map[string]string{"code": classroom.Code}); rec.Code != http.StatusOK {
			t.Fatalf("join %s: status %d", email, rec.Code)
		}
		if rec := doMultipart(t, srv, "/submission/submit", studentToken, map[string]string{
			"assignmentId": assignment.ID,
		}, "file", "a.txt", "short answer"); rec.Code != http.StatusCreated {
			t.Fatalf("submit %s: status %d", email, rec.Code)
		}
	}

	rec = doJSON(t, srv, http.MethodGet, "/submission/queue?classroomId="+classroom.ID+"&page=2&limit=2", teacherToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("queue: status %d, body %s", rec.Code, rec.Body.String())
	}
	var page struct {
		Items []submissionDTO `json:"items"`
		Total int64           `json:"total"`
		Page  int             `json:"page"`
	}
	decodeBody(t, rec, &page)
	if page.Total != 3 || page.Page != 2 || len(page.Items) != 1 {
		t.Fatalf("page = %+v", page)
	}
}

func TestRegisterRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	blobs, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	application := app.New(app.Options{
		Store:           store.NewMemoryStore(),
		Blobs:           blobs,
		Evaluator:       evaluator.New(nil),
		Captions:        meet.NewCaptionStore(),
		FrontendBaseURL: "http://localhost:5173",
	})
	tokens, err := usertoken.NewManager(usertoken.Config{Secret: "test-secret"})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	srv, err := New(Config{
		App:                        application,
		Tokens:                     tokens,
		RedisAddr:                  mr.Addr(),
		RegisterRateLimitPerMinute: 2,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 2; i++ {
		rec := doJSON(t, srv, http.MethodPost, "/user/register", "", map[string]string{
			"name": "U", "email": fmt.Sprintf("u%d@example.com", i), "password": "sup3rsecret", "role": "student",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("register %d: status %d", i, rec.Code)
		}
	}
	rec := doJSON(t, srv, http.MethodPost, "/user/register", "", map[string]string{
		"name": "U", "email": "u3@example.com", "password": "sup3rsecret", "role": "student",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third register: status %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
}

func TestMeetRoutes(t *testing.T) {
	srv := newTestServer(t)
	teacherToken, _ := registerUser(t, srv, "Ada", "ada@example.com", "teacher")
	classroom := createClassroom(t, srv, teacherToken, "Mechanics")

	rec := doJSON(t, srv, http.MethodPost, "/meet/start-classroom-meet", teacherToken, map[string]string{"classroomId": classroom.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("start meet: status %d, body %s", rec.Code, rec.Body.String())
	}
	var status domain.MeetStatus
	decodeBody(t, rec, &status)
	if !status.Active || status.RoomID == "" || !strings.Contains(status.MeetLink, status.RoomID) {
		t.Fatalf("meet status = %+v", status)
	}

	rec = doJSON(t, srv, http.MethodPost, "/meet/end-meet", teacherToken, map[string]string{"classroomId": classroom.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("end meet: status %d", rec.Code)
	}

	// no AI generator configured
	rec = doJSON(t, srv, http.MethodPost, "/meet/summarize-text", teacherToken, map[string]string{"text": "a perfectly long enough text"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("summarize-text without AI: status %d, want 400", rec.Code)
	}
}

func TestAnalyticsRoutes(t *testing.T) {
	srv := newTestServer(t)
	teacherToken, _ := registerUser(t, srv, "Ada", "ada@example.com", "teacher")
	createClassroom(t, srv, teacherToken, "Mechanics")

	rec := doJSON(t, srv, http.MethodGet, "/admin/analytics", teacherToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("analytics: status %d", rec.Code)
	}
	var analytics domain.Analytics
	decodeBody(t, rec, &analytics)
	if analytics.TotalUsers != 1 || analytics.TotalClassrooms != 1 {
		t.Fatalf("analytics = %+v", analytics)
	}

	rec = doJSON(t, srv, http.MethodGet, "/admin/report-csv", teacherToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("report-csv: status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "totalClassrooms,1") {
		t.Fatalf("csv missing counters: %s", rec.Body.String())
	}
}
