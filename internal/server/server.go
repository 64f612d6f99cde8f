// Package server exposes the HTTP surface: routing, authentication
// middleware, DTO mapping, and the error contract.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"classboard/internal/app"
	"classboard/internal/meet"
	"classboard/internal/ratelimit"
	"classboard/internal/usertoken"
	"classboard/internal/util"
	"classboard/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App    *app.App
	Tokens *usertoken.Manager
	Hub    *meet.Hub

	// UploadsDir enables /uploads/ static serving when non-empty.
	UploadsDir string

	MaxUploadBytes    int64
	AllowedExtensions []string
	AIConfigured      bool
	AllowedOrigin     string

	RedisAddr                  string
	RedisPassword              string
	RegisterRateLimitPerMinute int
	LoginRateLimitPerMinute    int
	TrustedProxyCIDRs          []string
}

// Server exposes HTTP endpoints for the classroom backend.
type Server struct {
	app               *app.App
	tokens            *usertoken.Manager
	hub               *meet.Hub
	mux               *http.ServeMux
	uploadsDir        string
	maxUploadBytes    int64
	allowedExtensions map[string]struct{}
	aiConfigured      bool
	allowedOrigin     string
	trustedProxies    *util.TrustedProxies
	registerLimiter   *ratelimit.FixedWindowLimiter
	loginLimiter      *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured. Rate limiting is enabled
// only when a per-minute limit is set.
func New(cfg Config) (*Server, error) {
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		if limit <= 0 {
			return nil, nil
		}
		prefix := "classboard:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	registerLimiter, err := newLimiter("register", cfg.RegisterRateLimitPerMinute)
	if err != nil {
		return nil, err
	}
	loginLimiter, err := newLimiter("login", cfg.LoginRateLimitPerMinute)
	if err != nil {
		return nil, err
	}

	s := &Server{
		app:               cfg.App,
		tokens:            cfg.Tokens,
		hub:               cfg.Hub,
		mux:               http.NewServeMux(),
		uploadsDir:        cfg.UploadsDir,
		maxUploadBytes:    normalizeMaxBytes(cfg.MaxUploadBytes),
		allowedExtensions: normalizeExtensions(cfg.AllowedExtensions),
		aiConfigured:      cfg.AIConfigured,
		allowedOrigin:     cfg.AllowedOrigin,
		trustedProxies:    trusted,
		registerLimiter:   registerLimiter,
		loginLimiter:      loginLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = util.WithCORS(s.allowedOrigin, h)
	h = util.WithRequestLog("classboard", h)
	h = util.WithRequestID(h)
	return util.WithSecurityHeaders(h)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)

	// identity
	s.mux.HandleFunc("/user/register", s.handleRegister)
	s.mux.HandleFunc("/user/login", s.handleLogin)
	s.mux.HandleFunc("/user/google-login", s.handleGoogleLogin)
	s.mux.Handle("/user/profile", s.authenticated(s.handleProfile))

	// classrooms
	s.mux.Handle("/classroom/create", s.teacherOnly(s.handleCreateClassroom))
	s.mux.Handle("/classroom/all", s.authenticated(s.handleAllClassrooms))
	s.mux.Handle("/classroom/my-classrooms", s.authenticated(s.handleMyClassrooms))
	s.mux.Handle("/classroom/join", s.authenticated(s.handleJoinClassroom))
	s.mux.Handle("/classroom/join-link", s.authenticated(s.handleJoinClassroom))
	s.mux.Handle("/classroom/", s.authenticated(s.handleClassroomByCode))

	// assignments
	s.mux.Handle("/assignment/create", s.teacherOnly(s.handleCreateAssignment))
	s.mux.Handle("/assignment/classroom/", s.authenticated(s.handleAssignmentsByClassroom))
	s.mux.Handle("/assignment/item/", s.authenticated(s.handleAssignmentByID))

	// submissions
	s.mux.Handle("/submission/submit", s.authenticated(s.handleSubmit))
	s.mux.Handle("/submission/my", s.authenticated(s.handleMySubmission))
	s.mux.Handle("/submission/assignment/", s.teacherOnly(s.handleSubmissionsByAssignment))
	s.mux.Handle("/submission/queue", s.teacherOnly(s.handleQueue))
	s.mux.Handle("/submission/evaluate/", s.teacherOnly(s.handleManualEvaluate))
	s.mux.Handle("/submission/evaluate-ai/", s.teacherOnly(s.handleEvaluateAI))
	s.mux.Handle("/submission/evaluate-next", s.teacherOnly(s.handleEvaluateNext))
	s.mux.Handle("/submission/publish", s.teacherOnly(s.handlePublish))

	// live sessions
	s.mux.Handle("/meet/start-classroom-meet", s.teacherOnly(s.handleStartMeet))
	s.mux.Handle("/meet/end-meet", s.teacherOnly(s.handleEndMeet))
	s.mux.Handle("/meet/summarize-captions", s.authenticated(s.handleSummarizeCaptions))
	s.mux.Handle("/meet/summarize-text", s.authenticated(s.handleSummarizeText))
	s.mux.Handle("/meet/live-summary", s.authenticated(s.handleLiveSummary))

	// admin
	s.mux.Handle("/admin/analytics", s.authenticated(s.handleAnalytics))
	s.mux.Handle("/admin/report-csv", s.authenticated(s.handleReportCSV))

	if s.hub != nil {
		s.mux.Handle("/ws", s.hub)
	}
	if s.uploadsDir != "" {
		s.mux.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.uploadsDir))))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"aiConfigured": s.aiConfigured,
	})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, usertoken.Claims)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r, claims)
	})
}

func (s *Server) teacherOnly(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if claims.Role != domain.RoleTeacher {
			s.audit(r, "authorize.teacher", "fail", "user_id", claims.UserID())
			writeError(w, http.StatusForbidden, "teacher access required")
			return
		}
		next(w, r, claims)
	})
}

func (s *Server) authorize(r *http.Request) (usertoken.Claims, bool) {
	token, ok := bearerToken(r)
	if !ok {
		s.audit(r, "token.verify", "fail", "reason", "missing_token")
		return usertoken.Claims{}, false
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		s.audit(r, "token.verify", "fail", "reason", "invalid_signature_or_claims")
		return usertoken.Claims{}, false
	}
	return claims, true
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trustedProxies),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func (s *Server) isExtensionAllowed(filename string) bool {
	if len(s.allowedExtensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(filename))
	_, ok := s.allowedExtensions[ext]
	return ok
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError emits the {"message", "code"} error envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"message": msg,
		"code":    errorCode(status),
	})
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		return "internal_error"
	}
}

// writeAppError maps application errors onto the HTTP error contract.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case app.IsInvalid(err),
		errors.Is(err, app.ErrEmailTaken),
		errors.Is(err, app.ErrAlreadyMember):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrNotMember), errors.Is(err, app.ErrNotOwner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrUserNotFound),
		errors.Is(err, app.ErrClassroomNotFound),
		errors.Is(err, app.ErrAssignmentNotFound),
		errors.Is(err, app.ErrSubmissionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case isQuotaError(err):
		writeError(w, http.StatusTooManyRequests, "AI quota exceeded, try again later")
	default:
		slog.Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "something went wrong")
	}
}

// isQuotaError spots upstream AI quota/rate exhaustion in wrapped errors.
func isQuotaError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"quota", "rate limit", "429", "exhausted"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return 10 * 1024 * 1024
	}
	return value
}

func normalizeExtensions(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		exts = []string{".pdf", ".docx", ".txt", ".html", ".md"}
	}
	out := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out[ext] = struct{}{}
	}
	return out
}
