package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hashscope/internal/apify"
	"hashscope/internal/config"
	"hashscope/pkg/models"

	"github.com/google/uuid"
)

// Runner performs synchronous, one-off hashtag scrapes. Unlike the queue
// worker it holds an HTTP response open for the duration of the run, so its
// run timeout is shorter and nothing is persisted: the caller gets the mapped
// posts directly.
type Runner struct {
	newClient ClientFactory
	cfg       config.ApifyConfig
}

// NewRunner creates a Runner. The default client factory constructs an Apify
// HTTP client per call with the caller's token.
func NewRunner(cfg config.ApifyConfig) *Runner {
	return &Runner{
		newClient: func(token string) apify.Client {
			return apify.NewHTTPClient(cfg.BaseURL, cfg.ActorID, token, cfg.HTTPTimeout)
		},
		cfg: cfg,
	}
}

// Scrape runs the actor for one hashtag and returns the normalized posts.
// The posts carry no campaign id since the result is not persisted.
func (r *Runner) Scrape(ctx context.Context, hashtag string, creds models.CredentialSnapshot) ([]*models.Post, error) {
	client := r.newClient(creds.ApifyAPIToken)
	input := apify.HashtagRunInput(
		hashtag,
		BuildCookies(creds),
		r.cfg.MaxPostCount,
		r.cfg.MaxConcurrency,
		r.cfg.MaxRequestRetries,
		int(r.cfg.InteractiveRunTimeout.Seconds()),
	)

	run, err := client.StartRun(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("starting actor run: %w", err)
	}
	if run.Status == apify.RunStatusFailed {
		return nil, errors.New(credentialFailureMsg)
	}

	// The poll budget is capped so a synchronous caller never waits longer
	// than the run timeout itself.
	maxPolls := r.cfg.MaxPolls
	if budget := int(r.cfg.InteractiveRunTimeout / r.cfg.PollInterval); budget > 0 && budget < maxPolls {
		maxPolls = budget
	}
	run, err = awaitRun(ctx, client, run, r.cfg.PollInterval, maxPolls)
	if err != nil {
		return nil, err
	}

	items, err := client.ListDatasetItems(ctx, run.DefaultDatasetID)
	if err != nil {
		return nil, fmt.Errorf("fetching dataset items: %w", err)
	}

	return MapPosts(items, uuid.Nil, hashtag, time.Now().UTC()), nil
}
