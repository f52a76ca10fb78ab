package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bling-mirror/internal/handler"
	"bling-mirror/internal/middleware"
	"bling-mirror/pkg/apierror"
	"bling-mirror/pkg/response"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler            *handler.Handler
	SyncHandler        *handler.SyncHandler
	ReceivablesHandler *handler.ReceivablesHandler
	AdminAPIKey        string
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, apierror.NotFound(""))
	})

	// PUBLIC routes
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		if cfg.ReceivablesHandler != nil {
			r.Route("/receivables", func(r chi.Router) {
				r.Get("/", cfg.ReceivablesHandler.List)
				r.Get("/export.csv", cfg.ReceivablesHandler.ExportCSV)
			})
		}

		// Admin endpoints
		if cfg.SyncHandler != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.AdminKey(cfg.AdminAPIKey))
				r.Post("/sync", cfg.SyncHandler.TriggerSync)
				r.Get("/sync/runs", cfg.SyncHandler.ListRuns)
				r.Delete("/token/{tenant}", cfg.SyncHandler.InvalidateToken)
			})
		}
	})

	return r
}
