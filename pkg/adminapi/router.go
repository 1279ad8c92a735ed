// Package adminapi is the demo node's plaintext HTTP admin surface
// (SPEC_FULL.md §3.4): health checks, Prometheus scraping, and a JSON
// mirror of the STATS wire command. It is not part of the wire protocol
// core and carries none of its framing guarantees or TLS non-goals.
package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shardcache-go/shc/internal/logger"
	"github.com/shardcache-go/shc/internal/store"
)

// Config controls optional bearer-token auth, adapted from the teacher's
// JWTAuth middleware idiom.
type Config struct {
	RequireAuth bool
	JWTSecret   string
}

// NewRouter builds the admin HTTP router. metricsHandler is typically
// promhttp.HandlerFor(reg, promhttp.HandlerOpts{}) for the registry
// metrics.New registered collectors against; backend answers /v1/stats.
func NewRouter(cfg Config, metricsHandler http.Handler, backend store.Store) (http.Handler, error) {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", healthz)

	metricsRoute := func(w http.ResponseWriter, r *http.Request) { metricsHandler.ServeHTTP(w, r) }

	statsHandler := newStatsHandler(backend)

	if cfg.RequireAuth {
		auth, err := newJWTAuthenticator(cfg.JWTSecret)
		if err != nil {
			return nil, err
		}
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)
			r.Get("/metrics", metricsRoute)
			r.Get("/v1/stats", statsHandler)
		})
	} else {
		r.Get("/metrics", metricsRoute)
		r.Get("/v1/stats", statsHandler)
	}

	return r, nil
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func newStatsHandler(backend store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		entries, err := backend.Index(ctx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var totalBytes uint64
		for _, e := range entries {
			totalBytes += uint64(e.VLen)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": len(entries),
			"bytes": totalBytes,
		})
	}
}

// requestLogger mirrors the teacher's custom chi request-logging
// middleware: DEBUG on start, INFO with status/duration on completion.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("admin API request started",
			"request_id", requestID, "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("admin API request completed",
			"request_id", requestID, "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "bytes", ww.BytesWritten(), "duration", time.Since(start).String())
	})
}
