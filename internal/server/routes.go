package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	apperrors "github.com/zsiec/framecheck/internal/errors"
	"github.com/zsiec/framecheck/internal/health"
	"github.com/zsiec/framecheck/internal/report"
	"github.com/zsiec/framecheck/pkg/version"
)

type healthResponse struct {
	Status health.Status   `json:"status"`
	Checks []*health.Check `json:"checks"`
}

// handleHealth runs the registered checks. Only a failing required check
// makes the endpoint unhealthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	results := s.healthMgr.RunChecks(r.Context())
	resp := healthResponse{Status: health.OverallStatus(results), Checks: results}

	status := http.StatusOK
	if resp.Status == health.StatusDown {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	s.writeJSON(w, http.StatusOK, version.GetInfo())
}

type reportList struct {
	RunIDs []string `json:"run_ids"`
}

// handleListReports lists recent run ids, newest first. ?limit=N caps the list.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	var limit int64 = 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			s.writeError(w, r, apperrors.NewInvalidArgumentError("limit must be a positive integer, got %q", v))
			return
		}
		limit = n
	}

	ids, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, apperrors.WrapIOError(err, "failed to read report store"))
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, reportList{RunIDs: ids})
}

func (s *Server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	sum, err := s.store.Latest(r.Context())
	s.writeReport(w, r, sum, err, "report")
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["run_id"]
	sum, err := s.store.Get(r.Context(), runID)
	s.writeReport(w, r, sum, err, "report "+runID)
}

// writeReport renders a summary in the format named by ?format= (json by default).
func (s *Server) writeReport(w http.ResponseWriter, r *http.Request, sum *report.Summary, err error, what string) {
	if errors.Is(err, report.ErrNotFound) {
		s.writeError(w, r, apperrors.NewNotFoundError(what))
		return
	}
	if err != nil {
		s.writeError(w, r, apperrors.WrapIOError(err, "failed to read report store"))
		return
	}

	formatName := r.URL.Query().Get("format")
	if formatName == "" {
		formatName = string(report.FormatJSON)
	}
	format, err := report.ParseFormat(formatName)
	if err != nil {
		s.writeError(w, r, apperrors.NewInvalidArgumentError("%v", err))
		return
	}

	switch format {
	case report.FormatJSON:
		w.Header().Set("Content-Type", "application/json")
	case report.FormatYAML:
		w.Header().Set("Content-Type", "application/yaml")
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	if err := report.Write(w, sum, format); err != nil {
		s.logger.WithError(err).Error("Failed to write report response")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.WriteHTTPError(s.logger, w, r, err)
}
