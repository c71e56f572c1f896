// Package store keeps per-queue counters in a Redis hash.
package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"redis-job-worker/internal/job"
)

const (
	FieldProcessed = "processed"
	FieldSucceeded = "succeeded"
	FieldFailed    = "failed"
	FieldRetried   = "retried"
	FieldDead      = "dead"
	FieldUpdatedAt = "updated_at"
)

// Stats is the decoded content of a queue's stats hash.
type Stats struct {
	Processed int64 `json:"processed"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Retried   int64 `json:"retried"`
	Dead      int64 `json:"dead"`
	// UpdatedAt is a unix timestamp, zero when nothing was recorded yet.
	UpdatedAt int64 `json:"updated_at"`
}

type Store struct {
	rdb redis.Cmdable
	log *zap.Logger
}

func New(rdb redis.Cmdable, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{rdb: rdb, log: log.Named("store")}
}

func Key(queue string) string { return "stats:" + queue }

// Incr bumps each of fields by one and refreshes updated_at.
func (s *Store) Incr(ctx context.Context, queue string, fields ...string) error {
	key := Key(queue)
	pipe := s.rdb.TxPipeline()
	for _, f := range fields {
		pipe.HIncrBy(ctx, key, f, 1)
	}
	pipe.HSet(ctx, key, FieldUpdatedAt, time.Now().Unix())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: incr %s: %w", key, err)
	}
	return nil
}

func (s *Store) Stats(ctx context.Context, queue string) (Stats, error) {
	key := Key(queue)
	raw, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("store: read %s: %w", key, err)
	}

	var st Stats
	for field, dst := range map[string]*int64{
		FieldProcessed: &st.Processed,
		FieldSucceeded: &st.Succeeded,
		FieldFailed:    &st.Failed,
		FieldRetried:   &st.Retried,
		FieldDead:      &st.Dead,
		FieldUpdatedAt: &st.UpdatedAt,
	} {
		v, ok := raw[field]
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Stats{}, fmt.Errorf("store: field %s of %s: %w", field, key, err)
		}
		*dst = n
	}
	return st, nil
}

// The methods below make Store a job.Observer. Write failures are only
// logged.

func (s *Store) JobHandled(ctx context.Context, queue, _ string, outcome job.State, _ time.Duration) {
	field := FieldSucceeded
	if outcome == job.StateFailed {
		field = FieldFailed
	}
	s.incr(ctx, queue, FieldProcessed, field)
}

func (s *Store) JobRetried(ctx context.Context, queue, _ string, _ int) {
	s.incr(ctx, queue, FieldRetried)
}

func (s *Store) JobDead(ctx context.Context, queue, _ string) {
	s.incr(ctx, queue, FieldDead)
}

func (s *Store) JobPushed(context.Context, string, job.Mode, error) {}

func (s *Store) incr(ctx context.Context, queue string, fields ...string) {
	if err := s.Incr(context.WithoutCancel(ctx), queue, fields...); err != nil {
		s.log.Warn("stats update failed", zap.String("queue", queue), zap.Error(err))
	}
}
