package handler

import (
	"context"
	"time"

	"hashscope/internal/queue"
	"hashscope/internal/store"
	"hashscope/pkg/models"

	"github.com/google/uuid"
)

// mockStore implements store.Store with scripted responses. Unused methods
// fall through to the embedded nil interface and panic if reached.
type mockStore struct {
	store.Store

	campaign    *models.Campaign
	campaignErr error

	settings    *models.IntegrationSettings
	settingsErr error

	campaigns    []*models.Campaign
	campaignsErr error

	posts    []*models.Post
	postsErr error

	created   []*models.Campaign
	createErr error

	deleted   []uuid.UUID
	deleteErr error

	statusUpdates []string
	statusErr     error

	savedSettings *models.IntegrationSettings
	saveErr       error
}

func (m *mockStore) GetCampaign(ctx context.Context, id, userID uuid.UUID) (*models.Campaign, error) {
	if m.campaignErr != nil {
		return nil, m.campaignErr
	}
	return m.campaign, nil
}

func (m *mockStore) GetIntegrationSettings(ctx context.Context, userID uuid.UUID) (*models.IntegrationSettings, error) {
	if m.settingsErr != nil {
		return nil, m.settingsErr
	}
	return m.settings, nil
}

func (m *mockStore) ListCampaigns(ctx context.Context, userID uuid.UUID) ([]*models.Campaign, error) {
	if m.campaignsErr != nil {
		return nil, m.campaignsErr
	}
	return m.campaigns, nil
}

func (m *mockStore) ListPostsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*models.Post, error) {
	if m.postsErr != nil {
		return nil, m.postsErr
	}
	return m.posts, nil
}

func (m *mockStore) ListPostsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Post, error) {
	if m.postsErr != nil {
		return nil, m.postsErr
	}
	return m.posts, nil
}

func (m *mockStore) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, c)
	return nil
}

func (m *mockStore) DeleteCampaign(ctx context.Context, id, userID uuid.UUID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockStore) UpdateCampaignStatus(ctx context.Context, id uuid.UUID, status string, opts ...store.CampaignUpdateOption) error {
	if m.statusErr != nil {
		return m.statusErr
	}
	m.statusUpdates = append(m.statusUpdates, status)
	return nil
}

func (m *mockStore) UpsertIntegrationSettings(ctx context.Context, s *models.IntegrationSettings) (*models.IntegrationSettings, error) {
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	m.savedSettings = s
	return s, nil
}

// mockQueue implements queue.Queue with scripted responses.
type mockQueue struct {
	queue.Queue

	enqueuedType    string
	enqueuedPayload any
	enqueueID       uuid.UUID
	enqueueErr      error

	job    *queue.JobHandle
	jobErr error
}

func (m *mockQueue) Enqueue(ctx context.Context, jobType string, payload any) (uuid.UUID, error) {
	if m.enqueueErr != nil {
		return uuid.Nil, m.enqueueErr
	}
	m.enqueuedType = jobType
	m.enqueuedPayload = payload
	return m.enqueueID, nil
}

func (m *mockQueue) GetJob(ctx context.Context, jobID uuid.UUID) (*queue.JobHandle, error) {
	if m.jobErr != nil {
		return nil, m.jobErr
	}
	return m.job, nil
}

func (m *mockQueue) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	return 1, nil
}
