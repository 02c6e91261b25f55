package handler

import (
	"errors"
	"log/slog"
	"net/http"

	mw "hashscope/internal/api/middleware"
	"hashscope/internal/api/response"
	"hashscope/internal/store"
	"hashscope/pkg/models"

	"github.com/google/uuid"
)

type bootstrapUser struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email,omitempty"`
}

type bootstrapPayload struct {
	User      bootstrapUser               `json:"user"`
	Settings  *models.IntegrationSettings `json:"settings"`
	Campaigns []*models.Campaign          `json:"campaigns"`
	Posts     []*models.Post              `json:"posts"`
	Errors    []string                    `json:"errors"`
}

// NewBootstrapHandler returns the handler for GET /api/bootstrap, which loads
// everything the dashboard needs in one round trip. Partial failures are
// reported in the errors field instead of failing the whole request.
func NewBootstrapHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Missing user identity")
			return
		}

		payload := bootstrapPayload{
			User: bootstrapUser{
				ID:    userID,
				Email: mw.GetUserEmail(r),
			},
			Campaigns: []*models.Campaign{},
			Posts:     []*models.Post{},
		}

		settings, err := st.GetIntegrationSettings(r.Context(), userID)
		switch {
		case err == nil:
			payload.Settings = settings
		case errors.Is(err, store.ErrNotFound):
			// No settings yet; the dashboard shows the setup prompt.
		default:
			slog.Error("bootstrap: fetching settings", "user_id", userID, "error", err)
			payload.Errors = append(payload.Errors, "Failed to load integration settings")
		}

		campaigns, err := st.ListCampaigns(r.Context(), userID)
		if err != nil {
			slog.Error("bootstrap: listing campaigns", "user_id", userID, "error", err)
			payload.Errors = append(payload.Errors, "Failed to load campaigns")
		} else {
			payload.Campaigns = campaigns
		}

		posts, err := st.ListPostsByUser(r.Context(), userID)
		if err != nil {
			slog.Error("bootstrap: listing posts", "user_id", userID, "error", err)
			payload.Errors = append(payload.Errors, "Failed to load posts")
		} else {
			payload.Posts = posts
		}

		response.OK(w, payload)
	}
}
