// Package poller implements a client-side watcher for scrape job status. It
// periodically reads the scrape-status endpoint for a campaign and invokes
// callbacks when the job settles.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const defaultInterval = 4 * time.Second

// Status is the decoded scrape-status response.
type Status struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	JobID  string          `json:"job_id"`
	Error  *string         `json:"error"`
}

// ErrorMessage returns the error field, or "" when absent.
func (s *Status) ErrorMessage() string {
	if s.Error == nil {
		return ""
	}
	return *s.Error
}

// Callbacks are invoked from the watch goroutine. At most one of OnCompleted,
// OnFailed, or OnPollError fires per task, after which the task is done.
type Callbacks struct {
	OnCompleted func(Status)
	OnFailed    func(Status)
	OnPollError func(error)
}

// Poller watches scrape jobs through the HTTP API.
type Poller struct {
	baseURL  string
	token    string
	client   *http.Client
	interval time.Duration
}

// Option configures a Poller.
type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) { p.interval = d }
}

func WithHTTPClient(c *http.Client) Option {
	return func(p *Poller) { p.client = c }
}

// New creates a Poller for the API at baseURL, authenticating with the given
// bearer token.
func New(baseURL, token string, opts ...Option) *Poller {
	p := &Poller{
		baseURL:  baseURL,
		token:    token,
		client:   &http.Client{Timeout: 10 * time.Second},
		interval: defaultInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Task is one in-flight watch. Cancel stops polling without waiting; Done is
// closed once the task has settled or been cancelled.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (t *Task) Cancel() {
	t.cancel()
}

func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Watch starts polling the campaign's scrape status until the job completes,
// fails, or polling errors out. Polling also stops when ctx is cancelled, in
// which case no callback fires.
func (p *Poller) Watch(ctx context.Context, campaignID uuid.UUID, cb Callbacks) *Task {
	ctx, cancel := context.WithCancel(ctx)
	task := &Task{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(task.done)
		defer cancel()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			status, err := p.fetch(ctx, campaignID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if cb.OnPollError != nil {
					cb.OnPollError(err)
				}
				return
			}

			switch status.Status {
			case "completed":
				if cb.OnCompleted != nil {
					cb.OnCompleted(*status)
				}
				return
			case "failed":
				if cb.OnFailed != nil {
					cb.OnFailed(*status)
				}
				return
			}
			// waiting/active: keep polling.
		}
	}()

	return task
}

func (p *Poller) fetch(ctx context.Context, campaignID uuid.UUID) (*Status, error) {
	u := fmt.Sprintf("%s/api/scrape-status/%s", p.baseURL, campaignID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching status: %w", err)
	}
	defer resp.Body.Close()

	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decoding status: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %d: %s", resp.StatusCode, status.ErrorMessage())
	}
	return &status, nil
}
