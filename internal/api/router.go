package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/asr-api/backend/internal/api/handlers"
	"github.com/asr-api/backend/internal/api/middleware"
	"github.com/asr-api/backend/internal/auth"
	"github.com/asr-api/backend/internal/config"
	"github.com/asr-api/backend/internal/db"
	"github.com/asr-api/backend/internal/job"
)

// Deps are the long-lived services the routes are built on
type Deps struct {
	Config      *config.Config
	Database    *db.Database
	JWT         *auth.JWTService
	Transcriber handlers.Transcriber
	Tracker     *job.Tracker
	Limiter     *middleware.RateLimiter
	// Broker is the event connection shown on the admin dashboard; may be nil
	Broker handlers.BrokerStatus
	// Metrics serves the Prometheus exposition; nil leaves /metrics unrouted
	Metrics http.Handler
}

func NewRouter(d Deps) *chi.Mux {
	cfg := d.Config
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(middleware.CORSHandler(cfg.Server.CORSOrigins)))

	// Handlers
	defaults := handlers.Defaults{
		Language:       cfg.Transcription.DefaultLanguage,
		Languages:      cfg.Transcription.Languages,
		MergeThreshold: cfg.Transcription.MergeThreshold,
	}
	systemHandler := handlers.NewSystemHandler(d.Transcriber, d.Tracker, cfg.Transcription.Languages)
	transcribeHandler := handlers.NewTranscribeHandler(d.Transcriber, d.Tracker, defaults, cfg.Media.MaxUploadBytes)
	authHandler := handlers.NewAuthHandler(d.Database, d.JWT)
	jobHandler := handlers.NewJobHandler(d.Tracker)
	historyHandler := handlers.NewHistoryHandler(d.Database)
	adminHandler := handlers.NewAdminHandler(d.Database, d.Limiter, d.Tracker, d.Broker, cfg.Storage.ScratchPath)

	// Public routes
	r.Get("/health", systemHandler.Health)
	r.Get("/models", systemHandler.Models)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	// Transcription
	r.Group(func(r chi.Router) {
		if d.Limiter != nil {
			r.Use(d.Limiter.Handler)
		}
		if cfg.Auth.Required {
			r.Use(middleware.AuthMiddleware(d.JWT))
		}
		r.Post("/transcribe", transcribeHandler.Transcribe)
		r.With(middleware.MaxBodySize(cfg.Server.MaxJSONBytes)).Post("/transcribe_url", transcribeHandler.TranscribeURL)
	})

	r.Route("/api", func(r chi.Router) {
		// Auth (public)
		r.With(middleware.MaxBodySize(cfg.Server.MaxJSONBytes)).Post("/auth/login", authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(d.JWT))

			r.Get("/auth/me", authHandler.Me)

			// Jobs
			r.Get("/jobs", jobHandler.ListJobs)
			r.Get("/jobs/{id}", jobHandler.GetJob)
			r.Delete("/jobs/{id}", jobHandler.CancelJob)

			// History
			r.Get("/history", historyHandler.List)

			// Admin
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole("admin"))
				r.Get("/admin/stats", adminHandler.DashboardStats)
				r.Get("/admin/ratelimit", adminHandler.RateLimitStatus)
				r.Delete("/admin/ratelimit", adminHandler.ClearRateLimits)
				r.Post("/admin/history/prune", adminHandler.PruneHistory)
			})
		})
	})

	return r
}
