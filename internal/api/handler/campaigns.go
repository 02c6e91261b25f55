package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	mw "hashscope/internal/api/middleware"
	"hashscope/internal/api/response"
	"hashscope/internal/scrape"
	"hashscope/internal/store"
	"hashscope/pkg/models"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// NewCreateCampaignHandler returns the handler for POST /api/campaigns.
func NewCreateCampaignHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Missing user identity")
			return
		}

		var req struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Hashtag     string `json:"hashtag"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if req.Title == "" {
			response.Error(w, http.StatusBadRequest, "title is required")
			return
		}
		hashtag := scrape.NormalizeHashtag(req.Hashtag)
		if hashtag == "" {
			response.Error(w, http.StatusBadRequest, "hashtag is required")
			return
		}

		campaign := &models.Campaign{
			ID:          uuid.New(),
			UserID:      userID,
			Title:       req.Title,
			Description: req.Description,
			Hashtag:     hashtag,
			Status:      models.CampaignStatusIdle,
		}
		if err := st.CreateCampaign(r.Context(), campaign); err != nil {
			slog.Error("creating campaign", "user_id", userID, "error", err)
			response.Error(w, http.StatusInternalServerError, "Failed to create campaign")
			return
		}

		response.Created(w, campaign)
	}
}

// NewListCampaignsHandler returns the handler for GET /api/campaigns.
func NewListCampaignsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Missing user identity")
			return
		}

		campaigns, err := st.ListCampaigns(r.Context(), userID)
		if err != nil {
			slog.Error("listing campaigns", "user_id", userID, "error", err)
			response.Error(w, http.StatusInternalServerError, "Failed to list campaigns")
			return
		}
		response.OK(w, campaigns)
	}
}

// NewDeleteCampaignHandler returns the handler for DELETE /api/campaigns/{campaignID}.
// Deletion is unconditional: posts cascade, and any in-flight job for the
// campaign simply fails its final status update.
func NewDeleteCampaignHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Missing user identity")
			return
		}

		campaignID, err := uuid.Parse(chi.URLParam(r, "campaignID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "campaignID must be a valid id")
			return
		}

		if err := st.DeleteCampaign(r.Context(), campaignID, userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "Campaign not found")
				return
			}
			slog.Error("deleting campaign", "campaign_id", campaignID, "error", err)
			response.Error(w, http.StatusInternalServerError, "Failed to delete campaign")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// NewListCampaignPostsHandler returns the handler for GET /api/campaigns/{campaignID}/posts.
func NewListCampaignPostsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Missing user identity")
			return
		}

		campaignID, err := uuid.Parse(chi.URLParam(r, "campaignID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "campaignID must be a valid id")
			return
		}

		// Ownership check before exposing posts.
		if _, err := st.GetCampaign(r.Context(), campaignID, userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "Campaign not found")
				return
			}
			slog.Error("fetching campaign", "campaign_id", campaignID, "error", err)
			response.Error(w, http.StatusInternalServerError, "Failed to load campaign")
			return
		}

		posts, err := st.ListPostsByCampaign(r.Context(), campaignID)
		if err != nil {
			slog.Error("listing posts", "campaign_id", campaignID, "error", err)
			response.Error(w, http.StatusInternalServerError, "Failed to list posts")
			return
		}
		response.OK(w, posts)
	}
}
