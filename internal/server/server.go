package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"market-intel/internal/analysis"
	"market-intel/internal/store"
)

// SnapshotLister reads stored snapshots.
type SnapshotLister interface {
	ListSnapshots(ctx context.Context, f store.SnapshotFilter) ([]store.Snapshot, error)
}

// JobRunner runs a named batch job to completion.
type JobRunner interface {
	RunOnce(ctx context.Context, name string) (any, error)
}

// Pinger reports storage health.
type Pinger interface {
	Ping() error
}

// Options configures the HTTP surface.
type Options struct {
	CORSOrigins    []string
	CronSecret     string // bearer token for job triggers; empty disables the check
	RequestTimeout time.Duration
}

// Server is the HTTP surface: match analysis, snapshot listing and job triggers.
type Server struct {
	analyzer   *analysis.Analyzer
	snapshots  SnapshotLister
	jobs       JobRunner
	health     Pinger
	cronSecret string
	router     chi.Router
}

// New builds the router. health may be nil.
func New(analyzer *analysis.Analyzer, snapshots SnapshotLister, jobs JobRunner, health Pinger, opts Options) *Server {
	s := &Server{
		analyzer:   analyzer,
		snapshots:  snapshots,
		jobs:       jobs,
		health:     health,
		cronSecret: opts.CronSecret,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if opts.RequestTimeout > 0 {
				r.Use(chimiddleware.Timeout(opts.RequestTimeout))
			}
			r.Post("/analyze", s.handleAnalyze)
			r.Get("/snapshots", s.handleSnapshots)
		})

		// Jobs may outlive the request timeout; they carry their own.
		r.Group(func(r chi.Router) {
			r.Use(s.requireCronSecret)
			r.Post("/jobs/{job}", s.handleRunJob)
		})
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requireCronSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cronSecret != "" {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.cronSecret)) != 1 {
				respondError(w, http.StatusUnauthorized, "invalid or missing bearer token", nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}
