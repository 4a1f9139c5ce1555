// Package http exposes the upload and query endpoints plus health, readiness
// and metrics routes.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/closure-relay-service/internal/adapter/descartes"
	"github.com/couchcryptid/closure-relay-service/internal/config"
	"github.com/couchcryptid/closure-relay-service/internal/domain"
	"github.com/couchcryptid/closure-relay-service/internal/pipeline"
	"github.com/couchcryptid/closure-relay-service/internal/store"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// BatchProcessor runs one uploaded closure batch through the relay flow.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, upload domain.Upload) (pipeline.BatchResult, error)
}

// Server exposes the closure upload API.
type Server struct {
	httpServer *http.Server

	provider  *config.Provider
	allowlist *store.Allowlist
	tracking  *store.Tracking
	processor BatchProcessor
	logger    *slog.Logger

	// onFatal is invoked when a batch fails with an unrecoverable upstream
	// error, so the process can shut down instead of limping.
	onFatal func(error)
}

// NewServer creates an HTTP server with the upload, query, health, readiness
// and metrics routes. onFatal may be nil.
func NewServer(addr string, provider *config.Provider, allowlist *store.Allowlist, tracking *store.Tracking, processor BatchProcessor, ready ReadinessChecker, logger *slog.Logger, onFatal func(error)) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		provider:  provider,
		allowlist: allowlist,
		tracking:  tracking,
		processor: processor,
		logger:    logger,
		onFatal:   onFatal,
	}

	mux.HandleFunc("POST /uploadClosures", s.handleUpload)
	mux.HandleFunc("POST /trackedClosures", s.handleTracked)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// handleUpload accepts a closure batch from a scan or editor agent.
//
// Senders not yet on the allow list are provisioned as pending and turned
// away with 404, indistinguishable from an unknown route. Approval is a
// manual edit to the allow-list file.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var upload domain.Upload
	if err := json.NewDecoder(r.Body).Decode(&upload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	if upload.UserName == "" || len(upload.Closures) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "userName and closures are required"})
		return
	}

	if !s.gate(w, r, upload.UserName) {
		return
	}

	res, err := s.processor.ProcessBatch(r.Context(), upload)
	if err != nil {
		s.logger.Error("batch processing failed", "user", upload.UserName, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "batch processing failed"})
		if errors.Is(err, descartes.ErrUnauthorized) && s.onFatal != nil {
			s.onFatal(err)
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// gate applies the allow-list to a sender. First-seen names are provisioned
// as pending; anything not yet approved gets a 404 indistinguishable from an
// unknown route. Returns true only when the request may proceed.
func (s *Server) gate(w http.ResponseWriter, r *http.Request, name string) bool {
	switch s.allowlist.Status(name) {
	case store.AllowApproved:
		return true
	case store.AllowPending:
	default:
		if err := s.allowlist.Provision(name); err != nil {
			s.logger.Error("allow list write failed", "user", name, "error", err)
		} else {
			s.logger.Info("unknown sender provisioned as pending", "user", name)
		}
	}
	http.NotFound(w, r)
	return false
}

// handleTracked returns the ids of tracked closures as a JSON array, so scan
// agents can skip them client-side. An env in the request restricts the list
// to regions with that env tag; without one every tracked id is returned.
func (s *Server) handleTracked(w http.ResponseWriter, r *http.Request) {
	var q domain.TrackedQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	if q.UserName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "userName is required"})
		return
	}
	if !s.gate(w, r, q.UserName) {
		return
	}

	var filter func(store.TrackedEntry) bool
	if q.Env != "" {
		regionEnvs := make(map[string]string)
		for _, region := range s.provider.Snapshot().Regions {
			regionEnvs[region.Name] = normalizeEnv(region.Env)
		}
		filter = func(e store.TrackedEntry) bool {
			re, ok := regionEnvs[e.Region]
			return ok && re == q.Env
		}
	}

	writeJSON(w, http.StatusOK, s.tracking.IDs(filter))
}

// normalizeEnv collapses the env namespaces to the three the upstream knows.
func normalizeEnv(env string) string {
	switch env {
	case "row", "il":
		return env
	default:
		return "na"
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
