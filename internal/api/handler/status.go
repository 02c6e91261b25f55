package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	mw "hashscope/internal/api/middleware"
	"hashscope/internal/api/response"
	"hashscope/internal/queue"
	"hashscope/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Job status values synthesized by the endpoint itself, next to the queue's
// own waiting/active/completed/failed.
const (
	StatusNotFound = "not_found"
	StatusError    = "error"
)

type scrapeStatus struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	JobID  string          `json:"job_id,omitempty"`
	Error  *string         `json:"error"`
}

// NewScrapeStatusHandler returns the handler for GET /api/scrape-status/{campaignID}.
// The reply is a pure projection of the campaign's tracked job. Every reply,
// error replies included, carries a status field so pollers never have to
// branch on the shape of the body.
func NewScrapeStatusHandler(st store.Store, q queue.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			writeStatus(w, http.StatusUnauthorized, StatusError, "Missing user identity")
			return
		}

		campaignID, err := uuid.Parse(chi.URLParam(r, "campaignID"))
		if err != nil {
			writeStatus(w, http.StatusBadRequest, StatusError, "campaignID must be a valid id")
			return
		}

		campaign, err := st.GetCampaign(r.Context(), campaignID, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeStatus(w, http.StatusNotFound, StatusNotFound, "Campaign not found")
				return
			}
			slog.Error("fetching campaign", "campaign_id", campaignID, "error", err)
			writeStatus(w, http.StatusInternalServerError, StatusError, "Failed to load campaign")
			return
		}

		if campaign.JobID == nil {
			writeStatus(w, http.StatusNotFound, StatusNotFound, "No scrape job has been started for this campaign")
			return
		}

		job, err := q.GetJob(r.Context(), *campaign.JobID)
		if err != nil {
			if errors.Is(err, queue.ErrJobNotFound) {
				writeStatus(w, http.StatusNotFound, StatusNotFound, "Scrape job no longer exists")
				return
			}
			slog.Error("fetching job", "job_id", *campaign.JobID, "error", err)
			writeStatus(w, http.StatusInternalServerError, StatusError, "Failed to load job status")
			return
		}

		status := scrapeStatus{
			Status: job.State,
			Result: job.ReturnValue,
			JobID:  job.ID.String(),
		}
		if msg := firstNonEmpty(job.FailedReason, job.ResultError()); msg != "" {
			status.Error = &msg
		}
		response.OK(w, status)
	}
}

func writeStatus(w http.ResponseWriter, code int, status, msg string) {
	response.JSON(w, code, scrapeStatus{
		Status: status,
		Error:  &msg,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
