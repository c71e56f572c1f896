package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"redis-job-worker/internal/config"

	"github.com/redis/go-redis/v9"
)

// Transport is what the job lifecycle and the worker loop need from the
// list store. Every call is atomic on its own.
type Transport interface {
	PushTail(ctx context.Context, queue string, envelope []byte) error
	PushHead(ctx context.Context, queue string, envelope []byte) error
	// BlockingPop waits up to timeout for an envelope at the head of queue.
	// ok is false when the wait timed out.
	BlockingPop(ctx context.Context, queue string, timeout time.Duration) (envelope []byte, ok bool, err error)
	Len(ctx context.Context, queue string) (int64, error)
}

var _ Transport = (*RedisQueue)(nil)

type RedisQueue struct {
	client redis.UniversalClient
}

func (q *RedisQueue) Client() redis.UniversalClient {
	return q.client
}

// NewRedisClient connects to the Redis named by cfg and verifies the
// connection. The caller closes it.
func NewRedisClient(ctx context.Context, cfg config.Config) (*RedisQueue, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		DB:       cfg.RedisDB,
		Password: cfg.RedisPassword,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("queue: redis connect %s: %w", cfg.RedisAddr(), err)
	}

	return New(rdb), nil
}

// New wraps an existing client. The caller owns its lifecycle.
func New(client redis.UniversalClient) *RedisQueue {
	return &RedisQueue{client: client}
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func (q *RedisQueue) PushTail(ctx context.Context, queue string, envelope []byte) error {
	if err := q.client.RPush(ctx, queue, envelope).Err(); err != nil {
		return fmt.Errorf("queue: rpush %s: %w", queue, err)
	}
	return nil
}

func (q *RedisQueue) PushHead(ctx context.Context, queue string, envelope []byte) error {
	if err := q.client.LPush(ctx, queue, envelope).Err(); err != nil {
		return fmt.Errorf("queue: lpush %s: %w", queue, err)
	}
	return nil
}

func (q *RedisQueue) BlockingPop(ctx context.Context, queue string, timeout time.Duration) ([]byte, bool, error) {
	res, err := q.client.BLPop(ctx, timeout, queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("queue: blpop %s: %w", queue, err)
	}
	// BLPOP replies with [key, value]
	if len(res) != 2 {
		return nil, false, fmt.Errorf("queue: blpop %s: unexpected reply of %d elements", queue, len(res))
	}
	return []byte(res[1]), true, nil
}

func (q *RedisQueue) Len(ctx context.Context, queue string) (int64, error) {
	n, err := q.client.LLen(ctx, queue).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: llen %s: %w", queue, err)
	}
	return n, nil
}
