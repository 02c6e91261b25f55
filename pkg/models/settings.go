package models

import (
	"time"

	"github.com/google/uuid"
)

// IntegrationSettings holds a user's third-party scrape credentials: the two
// LinkedIn session cookies and the Apify API token. One row per user.
type IntegrationSettings struct {
	UserID        uuid.UUID `db:"user_id"         json:"user_id"`
	LiAt          string    `db:"li_at"           json:"li_at"`
	JSessionID    string    `db:"jsessionid"      json:"jsessionid"`
	ApifyAPIToken string    `db:"apify_api_token" json:"apify_api_token"`
	CreatedAt     time.Time `db:"created_at"      json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"      json:"updated_at"`
}

// Complete reports whether all three credential fields are present.
func (s *IntegrationSettings) Complete() bool {
	return s.LiAt != "" && s.JSessionID != "" && s.ApifyAPIToken != ""
}
