package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	mw "hashscope/internal/api/middleware"
	"hashscope/internal/api/response"
	"hashscope/internal/store"
	"hashscope/pkg/models"
)

// NewGetSettingsHandler returns the handler for GET /api/settings.
func NewGetSettingsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Missing user identity")
			return
		}

		settings, err := st.GetIntegrationSettings(r.Context(), userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "Integration settings not found")
				return
			}
			slog.Error("fetching integration settings", "user_id", userID, "error", err)
			response.Error(w, http.StatusInternalServerError, "Failed to load integration settings")
			return
		}
		response.OK(w, settings)
	}
}

// NewSaveSettingsHandler returns the handler for POST /api/settings. All three
// credential fields must be present; partial updates are not supported so a
// stale token can never linger next to fresh cookies.
func NewSaveSettingsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Missing user identity")
			return
		}

		var req struct {
			LiAt          string `json:"li_at"`
			JSessionID    string `json:"jsessionid"`
			ApifyAPIToken string `json:"apify_api_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		var missing []string
		if req.LiAt == "" {
			missing = append(missing, "li_at")
		}
		if req.JSessionID == "" {
			missing = append(missing, "jsessionid")
		}
		if req.ApifyAPIToken == "" {
			missing = append(missing, "apify_api_token")
		}
		if len(missing) > 0 {
			response.Error(w, http.StatusBadRequest, "Missing required fields: "+strings.Join(missing, ", "))
			return
		}

		saved, err := st.UpsertIntegrationSettings(r.Context(), &models.IntegrationSettings{
			UserID:        userID,
			LiAt:          req.LiAt,
			JSessionID:    req.JSessionID,
			ApifyAPIToken: req.ApifyAPIToken,
		})
		if err != nil {
			slog.Error("saving integration settings", "user_id", userID, "error", err)
			response.Error(w, http.StatusInternalServerError, "Failed to save integration settings")
			return
		}
		response.OK(w, saved)
	}
}
