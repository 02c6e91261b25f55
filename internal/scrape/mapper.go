// Package scrape contains the job worker: it consumes queued scrape jobs,
// drives the actor run to completion, and reconciles campaign state with the
// outcome.
package scrape

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"hashscope/internal/apify"
	"hashscope/pkg/models"

	"github.com/google/uuid"
)

const unknownAuthor = "Unknown Author"

// BuildCookies converts a credential snapshot into the actor's crawl cookies.
// The JSESSIONID cookie is stored by browsers wrapped in double quotes and
// must be unwrapped before the actor can use it.
func BuildCookies(s models.CredentialSnapshot) []apify.Cookie {
	return []apify.Cookie{
		{Name: "li_at", Value: s.LiAt},
		{Name: "JSESSIONID", Value: unwrapQuoted(s.JSessionID)},
	}
}

func unwrapQuoted(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}

// MapPosts normalizes raw dataset items into Post records for one campaign.
func MapPosts(items []models.RawPost, campaignID uuid.UUID, hashtag string, now time.Time) []*models.Post {
	posts := make([]*models.Post, 0, len(items))
	for _, item := range items {
		posts = append(posts, mapPost(item, campaignID, hashtag, now))
	}
	return posts
}

func mapPost(item models.RawPost, campaignID uuid.UUID, hashtag string, now time.Time) *models.Post {
	hashtags := item.Hashtags
	if len(hashtags) == 0 {
		hashtags = []string{hashtag}
	}

	return &models.Post{
		ID:         uuid.New(),
		CampaignID: campaignID,
		PostDate:   parseTimestamp(item.Timestamp, now),
		AuthorName: resolveAuthor(item),
		PostLink:   item.PostURL,
		Likes:      parseCount(item.NumLikes),
		Comments:   parseCount(item.NumComments),
		Shares:     parseCount(item.NumShares),
		Hashtags:   hashtags,
		Content:    item.Text,
		CreatedAt:  now,
	}
}

type authorObject struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// resolveAuthor picks the author display name from the scraper's inconsistent
// shapes, in order: author object, author string, authorInfo object, fallback.
func resolveAuthor(item models.RawPost) string {
	if name := authorFromObject(item.Author); name != "" {
		return name
	}
	if name := authorFromString(item.Author); name != "" {
		return name
	}
	if name := authorFromObject(item.AuthorInfo); name != "" {
		return name
	}
	return unknownAuthor
}

func authorFromObject(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj authorObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	return strings.TrimSpace(obj.FirstName + " " + obj.LastName)
}

func authorFromString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// parseCount reads an engagement counter that may arrive as a number or a
// numeric string. Absent or unparseable values default to 0; counts are never
// negative.
func parseCount(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}

	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		if n < 0 {
			return 0
		}
		return n
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// parseTimestamp reads the post timestamp, which may arrive as epoch
// milliseconds or an RFC3339 string. Absent or unparseable values default to
// the mapping time.
func parseTimestamp(raw json.RawMessage, now time.Time) time.Time {
	if len(raw) == 0 {
		return now
	}

	var millis int64
	if err := json.Unmarshal(raw, &millis); err == nil && millis > 0 {
		return time.UnixMilli(millis).UTC()
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts.UTC()
		}
	}
	return now
}

// NormalizeHashtag strips a leading '#' and surrounding whitespace so
// campaigns always store the bare tag.
func NormalizeHashtag(hashtag string) string {
	return strings.TrimPrefix(strings.TrimSpace(hashtag), "#")
}
