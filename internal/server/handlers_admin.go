package server

import (
	"net/http"

	"classboard/internal/usertoken"
)

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request, _ usertoken.Claims) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	analytics, err := s.app.Analytics(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

func (s *Server) handleReportCSV(w http.ResponseWriter, r *http.Request, _ usertoken.Claims) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	report, err := s.app.ReportCSV(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="classboard-report.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(report)
}
