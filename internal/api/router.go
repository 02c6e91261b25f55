// Package api wires the HTTP router for the HashScope server.
package api

import (
	"net/http"

	mw "hashscope/internal/api/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth           *mw.Auth
	RateLimit      *mw.RateLimit
	AllowedOrigins []string

	HealthHandler http.HandlerFunc

	ScrapeHandler            http.HandlerFunc
	InteractiveScrapeHandler http.HandlerFunc
	ScrapeStatusHandler      http.HandlerFunc

	CreateCampaignHandler    http.HandlerFunc
	ListCampaignsHandler     http.HandlerFunc
	DeleteCampaignHandler    http.HandlerFunc
	ListCampaignPostsHandler http.HandlerFunc

	GetSettingsHandler  http.HandlerFunc
	SaveSettingsHandler http.HandlerFunc

	BootstrapHandler http.HandlerFunc
}

// NewRouter builds the Chi router with the middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Public health check
	r.Get("/api/health", deps.HealthHandler)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/scrape", deps.ScrapeHandler)
		r.Get("/api/scrape/{hashtag}", deps.InteractiveScrapeHandler)
		r.Get("/api/scrape-status/{campaignID}", deps.ScrapeStatusHandler)

		r.Post("/api/campaigns", deps.CreateCampaignHandler)
		r.Get("/api/campaigns", deps.ListCampaignsHandler)
		r.Delete("/api/campaigns/{campaignID}", deps.DeleteCampaignHandler)
		r.Get("/api/campaigns/{campaignID}/posts", deps.ListCampaignPostsHandler)

		r.Get("/api/settings", deps.GetSettingsHandler)
		r.Post("/api/settings", deps.SaveSettingsHandler)

		r.Get("/api/bootstrap", deps.BootstrapHandler)
	})

	return r
}
