package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mw "hashscope/internal/api/middleware"
	"hashscope/internal/queue"
	"hashscope/internal/store"
	"hashscope/pkg/models"

	"github.com/google/uuid"
)

func authedRequest(method, target string, body []byte, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	return req.WithContext(mw.SetUserID(req.Context(), userID))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

func readyCampaign(userID uuid.UUID) *models.Campaign {
	return &models.Campaign{
		ID:      uuid.New(),
		UserID:  userID,
		Title:   "Launch",
		Hashtag: "golang",
		Status:  models.CampaignStatusIdle,
	}
}

func completeSettings(userID uuid.UUID) *models.IntegrationSettings {
	return &models.IntegrationSettings{
		UserID:        userID,
		LiAt:          "li-token",
		JSessionID:    `"ajax:1"`,
		ApifyAPIToken: "apify-token",
	}
}

func TestScrapeHandler_Success(t *testing.T) {
	userID := uuid.New()
	campaign := readyCampaign(userID)
	jobID := uuid.New()

	st := &mockStore{campaign: campaign, settings: completeSettings(userID)}
	q := &mockQueue{enqueueID: jobID}

	body, _ := json.Marshal(map[string]string{"campaign_id": campaign.ID.String()})
	rec := httptest.NewRecorder()
	NewScrapeHandler(st, q).ServeHTTP(rec, authedRequest(http.MethodPost, "/api/scrape", body, userID))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["jobId"] != jobID.String() {
		t.Errorf("unexpected jobId: %q", resp["jobId"])
	}
	if resp["status"] != models.CampaignStatusRunning {
		t.Errorf("unexpected status: %q", resp["status"])
	}

	// The job payload snapshots the credentials at submission time.
	payload, ok := q.enqueuedPayload.(models.ScrapeJobPayload)
	if !ok {
		t.Fatalf("unexpected payload type: %T", q.enqueuedPayload)
	}
	if payload.Hashtag != "golang" {
		t.Errorf("unexpected hashtag: %q", payload.Hashtag)
	}
	if payload.Settings.LiAt != "li-token" || payload.Settings.ApifyAPIToken != "apify-token" {
		t.Errorf("credentials not snapshotted: %+v", payload.Settings)
	}

	// The campaign tracks the job before the response is sent.
	if len(st.statusUpdates) != 1 || st.statusUpdates[0] != models.CampaignStatusRunning {
		t.Errorf("unexpected status updates: %v", st.statusUpdates)
	}
}

func TestScrapeHandler_Validation(t *testing.T) {
	userID := uuid.New()

	noHashtag := readyCampaign(userID)
	noHashtag.Hashtag = ""

	incomplete := completeSettings(userID)
	incomplete.ApifyAPIToken = ""

	tests := []struct {
		name        string
		body        string
		store       *mockStore
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "missing campaign_id",
			body:        `{}`,
			store:       &mockStore{},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "campaign_id is required",
		},
		{
			name:        "malformed campaign_id",
			body:        `{"campaign_id":"not-a-uuid"}`,
			store:       &mockStore{},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "valid id",
		},
		{
			name:        "campaign not found",
			body:        `{"campaign_id":"` + uuid.NewString() + `"}`,
			store:       &mockStore{campaignErr: store.ErrNotFound},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Campaign not found",
		},
		{
			name:        "campaign has no hashtag",
			body:        `{"campaign_id":"` + noHashtag.ID.String() + `"}`,
			store:       &mockStore{campaign: noHashtag},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "no hashtag",
		},
		{
			name:        "settings missing",
			body:        `{"campaign_id":"` + uuid.NewString() + `"}`,
			store:       &mockStore{campaign: readyCampaign(userID), settingsErr: store.ErrNotFound},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Integration settings not found",
		},
		{
			name:        "settings incomplete",
			body:        `{"campaign_id":"` + uuid.NewString() + `"}`,
			store:       &mockStore{campaign: readyCampaign(userID), settings: incomplete},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Missing LinkedIn cookies or Apify token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewScrapeHandler(tt.store, &mockQueue{}).ServeHTTP(rec,
				authedRequest(http.MethodPost, "/api/scrape", []byte(tt.body), userID))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if msg := decodeError(t, rec); !strings.Contains(msg, tt.wantMessage) {
				t.Errorf("expected message containing %q, got %q", tt.wantMessage, msg)
			}
		})
	}
}

func TestScrapeHandler_ConflictWhileJobInFlight(t *testing.T) {
	userID := uuid.New()
	jobID := uuid.New()
	campaign := readyCampaign(userID)
	campaign.JobID = &jobID

	for _, state := range []string{queue.StateWaiting, queue.StateActive} {
		t.Run(state, func(t *testing.T) {
			st := &mockStore{campaign: campaign, settings: completeSettings(userID)}
			q := &mockQueue{job: &queue.JobHandle{ID: jobID, State: state}}

			body, _ := json.Marshal(map[string]string{"campaign_id": campaign.ID.String()})
			rec := httptest.NewRecorder()
			NewScrapeHandler(st, q).ServeHTTP(rec, authedRequest(http.MethodPost, "/api/scrape", body, userID))

			if rec.Code != http.StatusConflict {
				t.Fatalf("expected 409, got %d", rec.Code)
			}
			if len(st.statusUpdates) != 0 {
				t.Errorf("campaign must not be touched on conflict")
			}
		})
	}
}

func TestScrapeHandler_ResubmitAfterFinishedJob(t *testing.T) {
	userID := uuid.New()
	oldJobID := uuid.New()
	campaign := readyCampaign(userID)
	campaign.JobID = &oldJobID
	campaign.Status = models.CampaignStatusCompleted

	st := &mockStore{campaign: campaign, settings: completeSettings(userID)}
	q := &mockQueue{
		job:       &queue.JobHandle{ID: oldJobID, State: queue.StateCompleted},
		enqueueID: uuid.New(),
	}

	body, _ := json.Marshal(map[string]string{"campaign_id": campaign.ID.String()})
	rec := httptest.NewRecorder()
	NewScrapeHandler(st, q).ServeHTTP(rec, authedRequest(http.MethodPost, "/api/scrape", body, userID))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestScrapeHandler_VanishedTrackedJobAllowsResubmit(t *testing.T) {
	userID := uuid.New()
	oldJobID := uuid.New()
	campaign := readyCampaign(userID)
	campaign.JobID = &oldJobID

	st := &mockStore{campaign: campaign, settings: completeSettings(userID)}
	q := &mockQueue{jobErr: queue.ErrJobNotFound, enqueueID: uuid.New()}

	body, _ := json.Marshal(map[string]string{"campaign_id": campaign.ID.String()})
	rec := httptest.NewRecorder()
	NewScrapeHandler(st, q).ServeHTTP(rec, authedRequest(http.MethodPost, "/api/scrape", body, userID))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestScrapeHandler_QueueUnavailable(t *testing.T) {
	userID := uuid.New()
	st := &mockStore{campaign: readyCampaign(userID), settings: completeSettings(userID)}
	q := &mockQueue{enqueueErr: queue.ErrQueueUnavailable}

	body, _ := json.Marshal(map[string]string{"campaign_id": uuid.NewString()})
	rec := httptest.NewRecorder()
	NewScrapeHandler(st, q).ServeHTTP(rec, authedRequest(http.MethodPost, "/api/scrape", body, userID))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if len(st.statusUpdates) != 0 {
		t.Errorf("campaign must not be marked running when enqueue fails")
	}
}

func TestScrapeHandler_Unauthenticated(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/scrape", strings.NewReader(`{}`))
	NewScrapeHandler(&mockStore{}, &mockQueue{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
