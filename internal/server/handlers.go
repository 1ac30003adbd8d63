package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"market-intel/internal/analysis"
	"market-intel/internal/api"
	"market-intel/internal/engine"
	"market-intel/internal/store"
)

const (
	defaultSnapshotLimit = 100
	maxSnapshotLimit     = 500
	maxBodyBytes         = 1 << 20
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(); err != nil {
			respondError(w, http.StatusServiceUnavailable, "database unhealthy", err)
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "market-intel",
	})
}

// handleAnalyze runs the synchronous analysis for one match.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analysis.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Sport) == "" {
		respondError(w, http.StatusBadRequest, "sport is required", nil)
		return
	}

	respondJSON(w, http.StatusOK, s.analyzer.Analyze(req))
}

// handleSnapshots lists stored snapshots.
// Query params: sport, alert_level, steam, limit
func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := parseIntParam(r, "limit", defaultSnapshotLimit)
	if limit <= 0 || limit > maxSnapshotLimit {
		limit = maxSnapshotLimit
	}
	steam, _ := strconv.ParseBool(q.Get("steam"))

	level := strings.ToUpper(q.Get("alert_level"))
	switch level {
	case store.AlertNone, store.AlertLow, store.AlertMedium, store.AlertHigh:
	default:
		respondError(w, http.StatusBadRequest, "alert_level must be LOW, MEDIUM or HIGH", nil)
		return
	}

	snaps, err := s.snapshots.ListSnapshots(r.Context(), store.SnapshotFilter{
		Sport:      q.Get("sport"),
		AlertLevel: level,
		SteamOnly:  steam,
		Limit:      limit,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list snapshots", err)
		return
	}
	if snaps == nil {
		snaps = []store.Snapshot{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"snapshots": snaps,
		"count":     len(snaps),
		"limit":     limit,
	})
}

// handleRunJob runs a batch job synchronously and returns its summary.
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "job")

	res, err := s.jobs.RunOnce(r.Context(), name)
	switch {
	case errors.Is(err, engine.ErrUnknownJob):
		respondError(w, http.StatusNotFound, "unknown job", nil)
		return
	case errors.Is(err, engine.ErrJobRunning):
		respondError(w, http.StatusConflict, "job already running", nil)
		return
	case errors.Is(err, api.ErrMissingAPIKey):
		respondError(w, http.StatusServiceUnavailable, "odds provider is not configured", err)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "job failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"job":    name,
		"result": res,
	})
}

func parseIntParam(r *http.Request, param string, defaultValue int) int {
	valueStr := r.URL.Query().Get(param)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		slog.Warn("Request failed", "status", status, "message", message, "error", err)
	}
	respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}
