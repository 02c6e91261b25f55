package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hashscope/internal/apify"
	"hashscope/internal/config"
	"hashscope/internal/queue"
	"hashscope/internal/store"
	"hashscope/pkg/models"

	"github.com/google/uuid"
)

// JobTypeScrape is the queue job type handled by this worker.
const JobTypeScrape = "scrape"

// credentialFailureMsg is surfaced to the dashboard when the actor rejects the
// crawl credentials outright.
const credentialFailureMsg = "Failed to authorize with LinkedIn. Please retry with new cookies. Check your integration settings."

// ErrRunTimedOut is returned when an actor run does not reach a terminal
// status within the polling budget. The job is failed rather than left
// dangling so the campaign never sticks in "running".
var ErrRunTimedOut = errors.New("scrape run timed out")

const defaultDequeueWait = 5 * time.Second

// ClientFactory builds an actor client for one job's credential token.
type ClientFactory func(token string) apify.Client

// Worker consumes scrape jobs from the queue, drives the actor run, persists
// the scraped posts, and reconciles campaign state with the job outcome.
type Worker struct {
	queue       queue.Queue
	store       store.Store
	newClient   ClientFactory
	cfg         config.ApifyConfig
	dequeueWait time.Duration
}

// NewWorker creates a Worker. The default client factory constructs an Apify
// HTTP client per job with the job's snapshot token.
func NewWorker(q queue.Queue, st store.Store, cfg config.ApifyConfig) *Worker {
	return &Worker{
		queue: q,
		store: st,
		newClient: func(token string) apify.Client {
			return apify.NewHTTPClient(cfg.BaseURL, cfg.ActorID, token, cfg.HTTPTimeout)
		},
		cfg:         cfg,
		dequeueWait: defaultDequeueWait,
	}
}

// Run consumes jobs until the context is cancelled. A job already claimed
// when cancellation arrives is finished before Run returns.
func (w *Worker) Run(ctx context.Context) {
	slog.Info("scrape worker started", "actor_id", w.cfg.ActorID)
	for {
		select {
		case <-ctx.Done():
			slog.Info("scrape worker stopping")
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx, w.dequeueWait)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("scrape worker stopping")
				return
			}
			slog.Error("dequeue failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(w.dequeueWait):
			}
			continue
		}
		if job == nil {
			continue
		}

		w.handle(context.WithoutCancel(ctx), job)
	}
}

func (w *Worker) handle(ctx context.Context, job *queue.JobHandle) {
	if job.Type != JobTypeScrape {
		slog.Error("unknown job type", "job_id", job.ID, "type", job.Type)
		msg := fmt.Sprintf("unknown job type %q", job.Type)
		if err := w.queue.Fail(ctx, job.ID, msg, models.ScrapeJobResult{Error: msg}); err != nil {
			slog.Error("failed to fail job", "job_id", job.ID, "error", err)
		}
		return
	}
	w.processScrape(ctx, job)
}

// processScrape runs the scrape pipeline for one job and records its outcome
// on both the queue and the campaign. The failure message is mirrored into
// the job's return value so status readers see it regardless of which side
// they inspect.
func (w *Worker) processScrape(ctx context.Context, job *queue.JobHandle) {
	var payload models.ScrapeJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		msg := fmt.Sprintf("malformed job payload: %v", err)
		slog.Error("scrape job failed", "job_id", job.ID, "error", msg)
		if err := w.queue.Fail(ctx, job.ID, msg, models.ScrapeJobResult{Error: msg}); err != nil {
			slog.Error("failed to fail job", "job_id", job.ID, "error", err)
		}
		return
	}

	slog.Info("scrape job started", "job_id", job.ID, "campaign_id", payload.CampaignID, "hashtag", payload.Hashtag)

	result, err := w.runPipeline(ctx, payload)
	if err != nil {
		msg := err.Error()
		slog.Error("scrape job failed", "job_id", job.ID, "campaign_id", payload.CampaignID, "error", msg)

		if campaignID, perr := uuid.Parse(payload.CampaignID); perr == nil {
			if serr := w.store.UpdateCampaignStatus(ctx, campaignID, models.CampaignStatusFailed, store.WithLastError(msg)); serr != nil {
				slog.Error("failed to mark campaign failed", "campaign_id", payload.CampaignID, "error", serr)
			}
		}
		if ferr := w.queue.Fail(ctx, job.ID, msg, models.ScrapeJobResult{Error: msg}); ferr != nil {
			slog.Error("failed to fail job", "job_id", job.ID, "error", ferr)
		}
		return
	}

	if err := w.queue.Complete(ctx, job.ID, result); err != nil {
		slog.Error("failed to complete job", "job_id", job.ID, "error", err)
		return
	}
	slog.Info("scrape job completed", "job_id", job.ID, "campaign_id", payload.CampaignID, "items_saved", result.ItemsSaved)
}

func (w *Worker) runPipeline(ctx context.Context, payload models.ScrapeJobPayload) (*models.ScrapeJobResult, error) {
	campaignID, err := uuid.Parse(payload.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("invalid campaign id %q: %w", payload.CampaignID, err)
	}

	client := w.newClient(payload.Settings.ApifyAPIToken)
	input := apify.HashtagRunInput(
		payload.Hashtag,
		BuildCookies(payload.Settings),
		w.cfg.MaxPostCount,
		w.cfg.MaxConcurrency,
		w.cfg.MaxRequestRetries,
		int(w.cfg.RunTimeout.Seconds()),
	)

	run, err := client.StartRun(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("starting actor run: %w", err)
	}
	// A run that fails at creation means the credentials were rejected before
	// the crawl even started.
	if run.Status == apify.RunStatusFailed {
		return nil, errors.New(credentialFailureMsg)
	}

	run, err = awaitRun(ctx, client, run, w.cfg.PollInterval, w.cfg.MaxPolls)
	if err != nil {
		return nil, err
	}

	items, err := client.ListDatasetItems(ctx, run.DefaultDatasetID)
	if err != nil {
		return nil, fmt.Errorf("fetching dataset items: %w", err)
	}

	now := time.Now().UTC()
	if len(items) == 0 {
		if err := w.store.UpdateCampaignStatus(ctx, campaignID, models.CampaignStatusNoPostsFound,
			store.WithLastRun(now), store.ClearLastError()); err != nil {
			return nil, fmt.Errorf("updating campaign status: %w", err)
		}
		return &models.ScrapeJobResult{ItemsSaved: 0, Data: []models.RawPost{}}, nil
	}

	posts := MapPosts(items, campaignID, payload.Hashtag, now)
	if err := w.store.UpsertPosts(ctx, posts); err != nil {
		return nil, fmt.Errorf("saving posts: %w", err)
	}

	if err := w.store.UpdateCampaignStatus(ctx, campaignID, models.CampaignStatusCompleted,
		store.WithLastRun(now), store.ClearLastError()); err != nil {
		return nil, fmt.Errorf("updating campaign status: %w", err)
	}

	return &models.ScrapeJobResult{ItemsSaved: len(posts), Data: items}, nil
}

// awaitRun polls the run status until it succeeds, fails, or the polling
// budget runs out. Shared between the queue worker and the interactive
// runner, which differ only in their budgets.
func awaitRun(ctx context.Context, client apify.Client, run *apify.Run, interval time.Duration, maxPolls int) (*apify.Run, error) {
	for poll := 0; poll < maxPolls; poll++ {
		switch run.Status {
		case apify.RunStatusSucceeded:
			return run, nil
		case apify.RunStatusFailed, apify.RunStatusAborted, apify.RunStatusTimedOut:
			return nil, fmt.Errorf("actor run %s ended with status %s", run.ID, run.Status)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}

		var err error
		run, err = client.GetRun(ctx, run.ID)
		if err != nil {
			return nil, fmt.Errorf("polling actor run: %w", err)
		}
	}

	if run.Status == apify.RunStatusSucceeded {
		return run, nil
	}
	return nil, fmt.Errorf("%w after %d status polls", ErrRunTimedOut, maxPolls)
}
