package store

import (
	"context"
	"errors"
	"time"

	"hashscope/pkg/models"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateCampaign(ctx context.Context, c *models.Campaign) error
	GetCampaign(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Campaign, error)
	ListCampaigns(ctx context.Context, userID uuid.UUID) ([]*models.Campaign, error)
	DeleteCampaign(ctx context.Context, id uuid.UUID, userID uuid.UUID) error
	UpdateCampaignStatus(ctx context.Context, id uuid.UUID, status string, opts ...CampaignUpdateOption) error

	UpsertPosts(ctx context.Context, posts []*models.Post) error
	ListPostsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*models.Post, error)
	ListPostsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Post, error)

	GetIntegrationSettings(ctx context.Context, userID uuid.UUID) (*models.IntegrationSettings, error)
	UpsertIntegrationSettings(ctx context.Context, s *models.IntegrationSettings) (*models.IntegrationSettings, error)
}

type campaignUpdateParams struct {
	JobID          *uuid.UUID
	LastRun        *time.Time
	LastError      *string
	ClearLastError bool
}

type CampaignUpdateOption func(*campaignUpdateParams)

// WithJobID stores the queue job id tracked by the campaign, overwriting any
// previous one.
func WithJobID(id uuid.UUID) CampaignUpdateOption {
	return func(p *campaignUpdateParams) {
		p.JobID = &id
	}
}

func WithLastRun(t time.Time) CampaignUpdateOption {
	return func(p *campaignUpdateParams) {
		p.LastRun = &t
	}
}

func WithLastError(msg string) CampaignUpdateOption {
	return func(p *campaignUpdateParams) {
		p.LastError = &msg
	}
}

func ClearLastError() CampaignUpdateOption {
	return func(p *campaignUpdateParams) {
		p.ClearLastError = true
	}
}
