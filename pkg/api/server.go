// Package api exposes a storage instance over HTTP: sample writes, range
// queries, stats, health, and Prometheus metrics.
package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ringdb/ringdb/pkg/storage"
)

// NewRouter assembles the full route tree for a storage instance.
func NewRouter(store *storage.Storage, metrics *Metrics, logger *slog.Logger) http.Handler {
	server := NewServer(store, metrics, logger)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", metrics.InstrumentHandler("GET", "/api/v1/health", server.handleHealth))
		r.Post("/write", metrics.InstrumentHandler("POST", "/api/v1/write", server.handleWrite))
		r.Get("/query", metrics.InstrumentHandler("GET", "/api/v1/query", server.handleQuery))
		r.Post("/sync", metrics.InstrumentHandler("POST", "/api/v1/sync", server.handleSync))
		r.Get("/stats", metrics.InstrumentHandler("GET", "/api/v1/stats", server.handleStats))
	})

	return r
}

// StartServer starts the HTTP server with all routes configured. Blocks
// until the listener fails.
func StartServer(store *storage.Storage, cfg ServerConfig, logger *slog.Logger) error {
	metrics := NewMetrics()
	router := NewRouter(store, metrics, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port)
	logger.Info("starting HTTP server", "addr", addr)
	return http.ListenAndServe(addr, router)
}
