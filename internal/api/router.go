package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/grabvid/grabvid/internal/api/handler"
	mw "github.com/grabvid/grabvid/internal/api/middleware"
	"github.com/grabvid/grabvid/internal/auth"
	"github.com/grabvid/grabvid/internal/metrics"
)

// RouterDeps carries everything the router needs to wire routes.
type RouterDeps struct {
	Twitter  *handler.PlatformHandler
	Kuaishou *handler.PlatformHandler
	Credits  *handler.CreditsHandler
	Admin    *handler.AdminHandler
	V1       *handler.V1Handler
	Health   *handler.HealthHandler

	Sessions *auth.SessionVerifier
	APIKeys  *auth.APIKeyService
	Metrics  *metrics.Metrics
	AdminKey string
}

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(mw.CORS)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	// Health endpoints (no auth)
	r.Get("/health", deps.Health.Live)
	r.Get("/ready", deps.Health.Ready)
	r.Handle("/metrics", metrics.Handler())

	// Twitter flow: resolve is open, fulfillment requires a logged-in
	// session and debits credits.
	r.Route("/api/twitter", func(r chi.Router) {
		r.Use(mw.SessionAuth(deps.Sessions))

		r.Post("/", deps.Twitter.Resolve)
		r.Post("/batch", deps.Twitter.Batch)
		r.Post("/results", deps.Twitter.Results)
		r.Post("/batch/results", deps.Twitter.Results)
		r.Post("/get-download-details", deps.Twitter.DownloadDetails)
		r.Get("/download", deps.Twitter.Download)
	})

	// Kuaishou flow: anonymous, no billing.
	r.Route("/api/kuaishou", func(r chi.Router) {
		r.Use(mw.SessionAuth(deps.Sessions))

		r.Post("/", deps.Kuaishou.Resolve)
		r.Post("/batch", deps.Kuaishou.Batch)
		r.Post("/results", deps.Kuaishou.Results)
		r.Post("/batch/results", deps.Kuaishou.Results)
		r.Post("/get-download-details", deps.Kuaishou.DownloadDetails)
		r.Get("/download", deps.Kuaishou.Download)
	})

	// Account endpoints require a valid session.
	r.Route("/api/credits", func(r chi.Router) {
		r.Use(mw.SessionAuth(deps.Sessions))
		r.Use(mw.RequireUser)

		r.Get("/balance", deps.Credits.Balance)
		r.Get("/history", deps.Credits.History)
	})

	r.Route("/api/downloads", func(r chi.Router) {
		r.Use(mw.SessionAuth(deps.Sessions))
		r.Use(mw.RequireUser)

		r.Get("/history", deps.Credits.Downloads)
		r.Get("/stats", deps.Credits.Stats)
	})

	// Programmatic API for premium key holders.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(deps.APIKeys))

		r.Post("/twitter", deps.V1.Resolve)
		r.Get("/twitter", deps.V1.Docs)
	})

	// Admin endpoints behind the static admin key.
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(mw.AdminKeyAuth(deps.AdminKey))

		r.Post("/credits/grant", deps.Admin.Grant)
		r.Post("/credits/charge", deps.Admin.Charge)
		r.Post("/apikeys", deps.Admin.ProvisionKey)
		r.Delete("/apikeys", deps.Admin.RevokeKey)
	})

	return r
}
