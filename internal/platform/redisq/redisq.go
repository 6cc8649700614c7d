// Package redisq provides the Redis wake-up queue that lets idle dispatch
// workers block until new batch work appears instead of polling the database.
package redisq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/jobtrail-api/internal/events"
	r "github.com/redis/go-redis/v9"
)

// DefaultKey is the list used when no key is configured.
const DefaultKey = "jobtrail:batch:wake"

// maxPending bounds the wake list. A signal only means "look for work", so
// older signals past this length carry no extra information.
const maxPending = 64

// WakeQueue pushes and pops wake-up signals on a Redis list.
type WakeQueue struct {
	rdb    *r.Client
	key    string
	logger *slog.Logger
}

// New wraps an existing client. An empty key selects DefaultKey.
func New(rdb *r.Client, key string, logger *slog.Logger) *WakeQueue {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WakeQueue{
		rdb:    rdb,
		key:    key,
		logger: logger.With("component", "wake_queue"),
	}
}

// NewFromURL parses a redis:// URL and connects lazily.
func NewFromURL(url, key string, logger *slog.Logger) (*WakeQueue, error) {
	opts, err := r.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return New(r.NewClient(opts), key, logger), nil
}

// Key returns the list the queue operates on.
func (q *WakeQueue) Key() string {
	return q.key
}

// Ping checks connectivity.
func (q *WakeQueue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}

// Close releases the underlying client.
func (q *WakeQueue) Close() error {
	return q.rdb.Close()
}

// Notify pushes one wake-up signal carrying the reason, usually a batch id.
func (q *WakeQueue) Notify(ctx context.Context, reason string) error {
	pipe := q.rdb.TxPipeline()
	pipe.LPush(ctx, q.key, reason)
	pipe.LTrim(ctx, q.key, 0, maxPending-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push wake signal: %w", err)
	}
	return nil
}

// Wait blocks until a signal arrives or timeout elapses. It reports whether a
// signal was consumed.
func (q *WakeQueue) Wait(ctx context.Context, timeout time.Duration) (bool, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, r.Nil) {
		return false, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, fmt.Errorf("wait for wake signal: %w", err)
	}
	// res is [key, value]
	q.logger.Debug("wake signal received", "reason", res[1])
	return true, nil
}

// HandleEvent notifies waiting workers when a batch is created. Other events
// are ignored. Redis failures are logged and swallowed: workers still fall
// back to their poll interval.
func (q *WakeQueue) HandleEvent(ctx context.Context, event *events.Event) error {
	if event == nil || event.Type != events.BatchCreated {
		return nil
	}
	payload, err := event.BatchPayload()
	if err != nil {
		return err
	}
	if err := q.Notify(ctx, payload.BatchID.String()); err != nil {
		q.logger.Warn("failed to notify workers", "batch_id", payload.BatchID, "error", err)
	}
	return nil
}
