// Package handler contains the HTTP handlers for the HashScope API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	mw "hashscope/internal/api/middleware"
	"hashscope/internal/api/response"
	"hashscope/internal/queue"
	"hashscope/internal/scrape"
	"hashscope/internal/store"
	"hashscope/pkg/models"

	"github.com/google/uuid"
)

const checkSettingsHint = "Check your integration settings."

// NewScrapeHandler returns the handler for POST /api/scrape. It validates the
// campaign and credentials, snapshots the user's settings into the job
// payload, enqueues the job, and marks the campaign running before replying.
func NewScrapeHandler(st store.Store, q queue.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Missing user identity")
			return
		}

		var req struct {
			CampaignID string `json:"campaign_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if req.CampaignID == "" {
			response.Error(w, http.StatusBadRequest, "campaign_id is required")
			return
		}
		campaignID, err := uuid.Parse(req.CampaignID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "campaign_id must be a valid id")
			return
		}

		campaign, err := st.GetCampaign(r.Context(), campaignID, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusBadRequest, "Campaign not found")
				return
			}
			slog.Error("fetching campaign", "campaign_id", campaignID, "error", err)
			response.Error(w, http.StatusInternalServerError, "Failed to load campaign")
			return
		}
		if campaign.Hashtag == "" {
			response.Error(w, http.StatusBadRequest, "Campaign has no hashtag configured")
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

		// One scrape at a time per campaign: reject while the tracked job is
		// still in flight.
		if campaign.JobID != nil {
			job, err := q.GetJob(r.Context(), *campaign.JobID)
			if err != nil && !errors.Is(err, queue.ErrJobNotFound) {
				slog.Error("checking tracked job", "job_id", *campaign.JobID, "error", err)
				response.Error(w, http.StatusInternalServerError, "Failed to check job status")
				return
			}
			if job != nil && (job.State == queue.StateWaiting || job.State == queue.StateActive) {
				response.Error(w, http.StatusConflict, "A scrape is already running for this campaign")
				return
			}
		}

		payload := models.ScrapeJobPayload{
			Hashtag:    campaign.Hashtag,
			CampaignID: campaign.ID.String(),
			Settings: models.CredentialSnapshot{
				LiAt:          settings.LiAt,
				JSessionID:    settings.JSessionID,
				ApifyAPIToken: settings.ApifyAPIToken,
			},
		}
		jobID, err := q.Enqueue(r.Context(), scrape.JobTypeScrape, payload)
		if err != nil {
			slog.Error("enqueueing scrape job", "campaign_id", campaignID, "error", err)
			response.Error(w, http.StatusInternalServerError, "Failed to queue scrape job")
			return
		}

		// The campaign must track the new job before the caller can poll.
		if err := st.UpdateCampaignStatus(r.Context(), campaign.ID, models.CampaignStatusRunning,
			store.WithJobID(jobID), store.ClearLastError()); err != nil {
			slog.Error("marking campaign running", "campaign_id", campaignID, "job_id", jobID, "error", err)
			response.Error(w, http.StatusInternalServerError, "Failed to update campaign")
			return
		}

		slog.Info("scrape job queued", "job_id", jobID, "campaign_id", campaignID, "hashtag", campaign.Hashtag)
		response.Accepted(w, map[string]string{
			"jobId":  jobID.String(),
			"status": models.CampaignStatusRunning,
		})
	}
}
