package models

import (
	"time"

	"github.com/google/uuid"
)

// Post is one scraped LinkedIn post, normalized by the worker. Posts are
// written once per run; repeated runs upsert by (campaign_id, post_link).
type Post struct {
	ID         uuid.UUID `db:"id"          json:"id"`
	CampaignID uuid.UUID `db:"campaign_id" json:"campaign_id"`
	PostDate   time.Time `db:"post_date"   json:"post_date"`
	AuthorName string    `db:"author_name" json:"author_name"`
	PostLink   string    `db:"post_link"   json:"post_link"`
	Likes      int       `db:"likes"       json:"likes"`
	Comments   int       `db:"comments"    json:"comments"`
	Shares     int       `db:"shares"      json:"shares"`
	Hashtags   []string  `db:"hashtags"    json:"hashtags"`
	Content    string    `db:"content"     json:"content"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
}
