package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	CampaignStatusIdle         = "idle"
	CampaignStatusRunning      = "running"
	CampaignStatusCompleted    = "completed"
	CampaignStatusFailed       = "failed"
	CampaignStatusNoPostsFound = "no_posts_found"
)

// Campaign is a hashtag watch owned by a single user. Status moves idle ->
// running on submission and to a terminal state when the scrape job finishes;
// JobID tracks at most one job at a time.
type Campaign struct {
	ID          uuid.UUID  `db:"id"          json:"id"`
	UserID      uuid.UUID  `db:"user_id"     json:"user_id"`
	Title       string     `db:"title"       json:"title"`
	Description string     `db:"description" json:"description"`
	Hashtag     string     `db:"hashtag"     json:"hashtag"`
	Status      string     `db:"status"      json:"status"`
	LastRun     *time.Time `db:"last_run"    json:"last_run,omitempty"`
	JobID       *uuid.UUID `db:"job_id"      json:"job_id,omitempty"`
	LastError   *string    `db:"last_error"  json:"last_error,omitempty"`
	CreatedAt   time.Time  `db:"created_at"  json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"  json:"updated_at"`
}
