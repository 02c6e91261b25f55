// Package models contains shared data models used across the HashScope codebase.
package models

import "encoding/json"

// CredentialSnapshot is the immutable copy of a user's integration settings
// taken at submission time. Later settings changes never affect an in-flight job.
type CredentialSnapshot struct {
	LiAt          string `json:"li_at"`
	JSessionID    string `json:"jsessionid"`
	ApifyAPIToken string `json:"apify_api_token"`
}

// ScrapeJobPayload is the queue-transported input of one scrape job.
type ScrapeJobPayload struct {
	Hashtag    string             `json:"hashtag"`
	CampaignID string             `json:"campaign_id"`
	Settings   CredentialSnapshot `json:"settings"`
}

// ScrapeJobResult is the job return value. On success ItemsSaved and Data are
// set; on failure only Error carries the human-readable message, mirroring the
// job's failed reason.
type ScrapeJobResult struct {
	ItemsSaved int       `json:"itemsSaved,omitempty"`
	Data       []RawPost `json:"data,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// RawPost is one item from the actor run's output dataset. The scraper is not
// consistent about field shapes: author may be an object or a plain string,
// engagement counters may be numbers or numeric strings, timestamp may be an
// epoch or an ISO string. Loose fields are kept as raw JSON and normalized by
// the worker's mapper.
type RawPost struct {
	Timestamp   json.RawMessage `json:"timestamp,omitempty"`
	Author      json.RawMessage `json:"author,omitempty"`
	AuthorInfo  json.RawMessage `json:"authorInfo,omitempty"`
	PostURL     string          `json:"postUrl,omitempty"`
	Text        string          `json:"text,omitempty"`
	NumLikes    json.RawMessage `json:"numLikes,omitempty"`
	NumComments json.RawMessage `json:"numComments,omitempty"`
	NumShares   json.RawMessage `json:"numShares,omitempty"`
	Hashtags    []string        `json:"hashtags,omitempty"`
}
