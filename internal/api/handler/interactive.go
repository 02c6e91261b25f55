package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	mw "hashscope/internal/api/middleware"
	"hashscope/internal/api/response"
	"hashscope/internal/scrape"
	"hashscope/internal/store"
	"hashscope/pkg/models"

	"github.com/go-chi/chi/v5"
)

// HashtagScraper runs a synchronous scrape and returns the normalized posts.
type HashtagScraper interface {
	Scrape(ctx context.Context, hashtag string, creds models.CredentialSnapshot) ([]*models.Post, error)
}

// NewInteractiveScrapeHandler returns the handler for GET /api/scrape/{hashtag}.
// It runs the actor inline and returns the posts in the response without
// touching any campaign; the caller decides what to do with the results.
func NewInteractiveScrapeHandler(st store.Store, scraper HashtagScraper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Missing user identity")
			return
		}

		hashtag := scrape.NormalizeHashtag(chi.URLParam(r, "hashtag"))
		if hashtag == "" {
			response.Error(w, http.StatusBadRequest, "hashtag is required")
			return
		}

		settings, err := st.GetIntegrationSettings(r.Context(), userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusBadRequest, "Integration settings not found. "+checkSettingsHint)
				return
			}
			slog.Error("fetching integration settings", "user_id", userID, "error", err)
			response.Error(w, http.StatusInternalServerError, "Failed to load integration settings")
			return
		}
		if !settings.Complete() {
			response.Error(w, http.StatusBadRequest, "Missing LinkedIn cookies or Apify token. "+checkSettingsHint)
			return
		}

		posts, err := scraper.Scrape(r.Context(), hashtag, models.CredentialSnapshot{
			LiAt:          settings.LiAt,
			JSessionID:    settings.JSessionID,
			ApifyAPIToken: settings.ApifyAPIToken,
		})
		if err != nil {
			slog.Error("interactive scrape failed", "user_id", userID, "hashtag", hashtag, "error", err)
			response.Error(w, http.StatusInternalServerError, err.Error())
			return
		}

		slog.Info("interactive scrape finished", "user_id", userID, "hashtag", hashtag, "posts", len(posts))
		response.OK(w, map[string]any{
			"hashtag": hashtag,
			"count":   len(posts),
			"posts":   posts,
		})
	}
}
