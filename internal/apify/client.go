package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"hashscope/pkg/models"
)

// Sentinel errors for actor API failures.
var (
	ErrActorUnreachable = errors.New("apify unreachable")
	ErrActorAPIError    = errors.New("apify api error")
	ErrActorTimeout     = errors.New("apify request timeout")
)

// Actor run statuses as reported by the Apify API.
const (
	RunStatusReady     = "READY"
	RunStatusRunning   = "RUNNING"
	RunStatusSucceeded = "SUCCEEDED"
	RunStatusFailed    = "FAILED"
	RunStatusAborted   = "ABORTED"
	RunStatusTimedOut  = "TIMED-OUT"
)

// Client is the interface for driving LinkedIn scrape runs on Apify.
type Client interface {
	StartRun(ctx context.Context, input RunInput) (*Run, error)
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListDatasetItems(ctx context.Context, datasetID string) ([]models.RawPost, error)
}

// Run is the subset of an actor run record the worker cares about.
type Run struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

// Terminal reports whether the run has reached a final status.
func (r *Run) Terminal() bool {
	switch r.Status {
	case RunStatusSucceeded, RunStatusFailed, RunStatusAborted, RunStatusTimedOut:
		return true
	}
	return false
}

// Cookie is one crawl cookie passed to the actor.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ProxySettings configures the actor's proxy usage.
type ProxySettings struct {
	UseApifyProxy bool `json:"useApifyProxy"`
}

// RunInput is the actor input for one hashtag search run.
type RunInput struct {
	URLs              []string      `json:"urls"`
	SearchTerms       []string      `json:"searchTerms"`
	MaxPostCount      int           `json:"maxPostCount"`
	MaxConcurrency    int           `json:"maxConcurrency"`
	MaxRequestRetries int           `json:"maxRequestRetries"`
	TimeoutSecs       int           `json:"timeoutSecs"`
	Cookie            []Cookie      `json:"cookie"`
	UseApifyProxy     bool          `json:"useApifyProxy"`
	Proxy             ProxySettings `json:"proxy"`
}

// HashtagRunInput builds the actor input for a hashtag search. The hashtag is
// expected without its leading '#'.
func HashtagRunInput(hashtag string, cookies []Cookie, maxPosts, maxConcurrency, maxRetries, timeoutSecs int) RunInput {
	return RunInput{
		URLs:              []string{"https://www.linkedin.com/search/results/content/?keywords=%23" + url.QueryEscape(hashtag)},
		SearchTerms:       []string{"#" + hashtag},
		MaxPostCount:      maxPosts,
		MaxConcurrency:    maxConcurrency,
		MaxRequestRetries: maxRetries,
		TimeoutSecs:       timeoutSecs,
		Cookie:            cookies,
		UseApifyProxy:     true,
		Proxy:             ProxySettings{UseApifyProxy: true},
	}
}

// HTTPClient implements Client using Apify's REST API. Each job constructs
// its own HTTPClient with the credential snapshot's token.
type HTTPClient struct {
	baseURL string
	actorID string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a new Apify HTTP client.
func NewHTTPClient(baseURL, actorID, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		actorID: actorID,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// StartRun starts an actor run and returns its initial record. The API
// reports a FAILED status at creation time when the crawl credentials are
// rejected outright.
func (c *HTTPClient) StartRun(ctx context.Context, input RunInput) (*Run, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal run input: %w", err)
	}

	u := fmt.Sprintf("%s/acts/%s/runs?token=%s", c.baseURL, url.PathEscape(c.actorID), url.QueryEscape(c.token))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: start run status %d: %s", ErrActorAPIError, resp.StatusCode, respBody)
	}

	var runResp runEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&runResp); err != nil {
		return nil, fmt.Errorf("decoding run response: %w", err)
	}
	return &runResp.Data, nil
}

// GetRun fetches the current state of an actor run.
func (c *HTTPClient) GetRun(ctx context.Context, runID string) (*Run, error) {
	u := fmt.Sprintf("%s/actor-runs/%s?token=%s", c.baseURL, url.PathEscape(runID), url.QueryEscape(c.token))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: get run status %d", ErrActorAPIError, resp.StatusCode)
	}

	var runResp runEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&runResp); err != nil {
		return nil, fmt.Errorf("decoding run response: %w", err)
	}
	return &runResp.Data, nil
}

// ListDatasetItems fetches all items from the run's output dataset.
func (c *HTTPClient) ListDatasetItems(ctx context.Context, datasetID string) ([]models.RawPost, error) {
	u := fmt.Sprintf("%s/datasets/%s/items?token=%s", c.baseURL, url.PathEscape(datasetID), url.QueryEscape(c.token))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: list dataset items status %d", ErrActorAPIError, resp.StatusCode)
	}

	var items []models.RawPost
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decoding dataset items: %w", err)
	}
	if items == nil {
		items = []models.RawPost{}
	}
	return items, nil
}

type runEnvelope struct {
	Data Run `json:"data"`
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrActorTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrActorTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrActorUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrActorUnreachable, err)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
