// Package queue implements the durable scrape-job queue on Redis. Jobs
// survive worker restarts; completed and failed jobs are retained for status
// queries.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Job states. A job moves waiting -> active when a worker claims it, then to
// completed or failed exactly once.
const (
	StateWaiting   = "waiting"
	StateActive    = "active"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

var (
	ErrQueueUnavailable = errors.New("queue broker unavailable")
	ErrJobNotFound      = errors.New("job not found")
)

// JobHandle is a snapshot of one job's queue record.
type JobHandle struct {
	ID           uuid.UUID
	Type         string
	State        string
	Payload      json.RawMessage
	ReturnValue  json.RawMessage
	FailedReason string
}

// ResultError extracts the error message attached to the return value, if
// any. The worker mirrors its failure message there so status readers have a
// single place to look regardless of failure origin.
func (j *JobHandle) ResultError() string {
	if len(j.ReturnValue) == 0 {
		return ""
	}
	var rv struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(j.ReturnValue, &rv); err != nil {
		return ""
	}
	return rv.Error
}

// Queue is the job queue interface. Implementations must be safe for
// concurrent use.
type Queue interface {
	Enqueue(ctx context.Context, jobType string, payload any) (uuid.UUID, error)
	GetJob(ctx context.Context, jobID uuid.UUID) (*JobHandle, error)
	Dequeue(ctx context.Context, wait time.Duration) (*JobHandle, error)
	Complete(ctx context.Context, jobID uuid.UUID, returnValue any) error
	Fail(ctx context.Context, jobID uuid.UUID, reason string, returnValue any) error
	Ping(ctx context.Context) error
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// RedisQueue implements the Queue interface using go-redis/v9.
type RedisQueue struct {
	client       *redis.Client
	name         string
	lockDuration time.Duration
	workerID     string
}

// NewRedisQueue creates a new RedisQueue from a Redis URL. lockDuration is
// the per-job lease; it must exceed the worst-case job runtime so a live
// worker never loses its claim.
func NewRedisQueue(redisURL, name string, lockDuration time.Duration) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisQueue{
		client:       redis.NewClient(opts),
		name:         name,
		lockDuration: lockDuration,
		workerID:     uuid.NewString(),
	}, nil
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Enqueue records the job hash and pushes its id onto the pending list.
func (q *RedisQueue) Enqueue(ctx context.Context, jobType string, payload any) (uuid.UUID, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal job payload: %w", err)
	}

	jobID := uuid.New()
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, JobKey(jobID), map[string]any{
		"type":       jobType,
		"state":      StateWaiting,
		"payload":    string(body),
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})
	pipe.LPush(ctx, PendingKey(q.name), jobID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return jobID, nil
}

// GetJob returns the current snapshot of a job, or ErrJobNotFound if the
// queue has no record of it.
func (q *RedisQueue) GetJob(ctx context.Context, jobID uuid.UUID) (*JobHandle, error) {
	fields, err := q.client.HGetAll(ctx, JobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}
	return handleFromFields(jobID, fields), nil
}

// Dequeue blocks up to wait for a pending job, claims it with a NX lock, and
// marks it active. Returns (nil, nil) when no job became available or the
// claimed job was already locked by another worker.
func (q *RedisQueue) Dequeue(ctx context.Context, wait time.Duration) (*JobHandle, error) {
	raw, err := q.client.BLMove(ctx, PendingKey(q.name), ActiveKey(q.name), "RIGHT", "LEFT", wait).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	jobID, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("malformed job id on queue: %q", raw)
	}

	locked, err := q.client.SetNX(ctx, LockKey(jobID), q.workerID, q.lockDuration).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	if !locked {
		// Another worker holds the lease; leave the job to it.
		q.client.LRem(ctx, ActiveKey(q.name), 1, raw)
		return nil, nil
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, JobKey(jobID), map[string]any{
		"state":      StateActive,
		"started_at": time.Now().UTC().Format(time.RFC3339),
	})
	fieldsCmd := pipe.HGetAll(ctx, JobKey(jobID))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	return handleFromFields(jobID, fieldsCmd.Val()), nil
}

// Complete marks the job completed with its return value and releases the lease.
func (q *RedisQueue) Complete(ctx context.Context, jobID uuid.UUID, returnValue any) error {
	return q.finish(ctx, jobID, StateCompleted, "", returnValue)
}

// Fail marks the job failed with a reason and an optional return value
// carrying the same message, then releases the lease.
func (q *RedisQueue) Fail(ctx context.Context, jobID uuid.UUID, reason string, returnValue any) error {
	return q.finish(ctx, jobID, StateFailed, reason, returnValue)
}

func (q *RedisQueue) finish(ctx context.Context, jobID uuid.UUID, state, reason string, returnValue any) error {
	fields := map[string]any{
		"state":       state,
		"finished_at": time.Now().UTC().Format(time.RFC3339),
	}
	if returnValue != nil {
		body, err := json.Marshal(returnValue)
		if err != nil {
			return fmt.Errorf("marshal return value: %w", err)
		}
		fields["return_value"] = string(body)
	}
	if reason != "" {
		fields["failed_reason"] = reason
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, JobKey(jobID), fields)
	pipe.LRem(ctx, ActiveKey(q.name), 1, jobID.String())
	pipe.Del(ctx, LockKey(jobID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return nil
}

// IncrWithExpiry increments a counter key and refreshes its expiry, used by
// the API rate limiter.
func (q *RedisQueue) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := q.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func handleFromFields(jobID uuid.UUID, fields map[string]string) *JobHandle {
	h := &JobHandle{
		ID:           jobID,
		Type:         fields["type"],
		State:        fields["state"],
		FailedReason: fields["failed_reason"],
	}
	if v := fields["payload"]; v != "" {
		h.Payload = json.RawMessage(v)
	}
	if v := fields["return_value"]; v != "" {
		h.ReturnValue = json.RawMessage(v)
	}
	return h
}

// Compile-time check that RedisQueue implements Queue.
var _ Queue = (*RedisQueue)(nil)
