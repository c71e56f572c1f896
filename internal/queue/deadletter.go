package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrDeadEntryNotFound = errors.New("dead-letter entry not found")

// replayScript moves one dead entry back to its queue only if it is still
// in the dead-letter list.
var replayScript = redis.NewScript(`
if redis.call("LREM", KEYS[1], 1, ARGV[1]) == 1 then
	redis.call("RPUSH", KEYS[2], ARGV[2])
	return 1
end
return 0
`)

// DeadEntry is a job whose retries ran out, kept for inspection or replay.
type DeadEntry struct {
	ID       string          `json:"id"`
	Queue    string          `json:"queue"`
	Envelope json.RawMessage `json:"envelope"`
	Error    string          `json:"error,omitempty"`
	FailedAt time.Time       `json:"failedAt"`
}

// DeadKey is the list holding the dead letters of queue.
func DeadKey(queue string) string { return queue + ":dead" }

// DeadLetters stores exhausted jobs in a list next to their queue.
type DeadLetters struct {
	client redis.Cmdable
}

func NewDeadLetters(client redis.Cmdable) *DeadLetters {
	return &DeadLetters{client: client}
}

// Push appends envelope to the dead-letter list of queue. cause may be nil.
func (d *DeadLetters) Push(ctx context.Context, queue string, envelope []byte, cause error) (DeadEntry, error) {
	entry := DeadEntry{
		ID:       uuid.NewString(),
		Queue:    queue,
		Envelope: json.RawMessage(envelope),
		FailedAt: time.Now().UTC(),
	}
	if cause != nil {
		entry.Error = cause.Error()
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return DeadEntry{}, fmt.Errorf("queue: encode dead entry: %w", err)
	}
	if err := d.client.RPush(ctx, DeadKey(queue), raw).Err(); err != nil {
		return DeadEntry{}, fmt.Errorf("queue: dead-letter %s: %w", queue, err)
	}
	return entry, nil
}

// List returns up to limit entries starting at offset, oldest first.
// A limit <= 0 returns everything from offset.
func (d *DeadLetters) List(ctx context.Context, queue string, offset, limit int64) ([]DeadEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = offset + limit - 1
	}
	raws, err := d.client.LRange(ctx, DeadKey(queue), offset, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: list dead %s: %w", queue, err)
	}

	entries := make([]DeadEntry, 0, len(raws))
	for _, raw := range raws {
		var e DeadEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("queue: decode dead entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (d *DeadLetters) Len(ctx context.Context, queue string) (int64, error) {
	n, err := d.client.LLen(ctx, DeadKey(queue)).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: llen dead %s: %w", queue, err)
	}
	return n, nil
}

// Replay removes the entry with the given id and pushes its envelope to the
// tail of the live queue. The envelope is unchanged, so its retry count
// carries over.
func (d *DeadLetters) Replay(ctx context.Context, queue, id string) (DeadEntry, error) {
	raws, err := d.client.LRange(ctx, DeadKey(queue), 0, -1).Result()
	if err != nil {
		return DeadEntry{}, fmt.Errorf("queue: replay %s: %w", queue, err)
	}

	for _, raw := range raws {
		var e DeadEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil || e.ID != id {
			continue
		}

		moved, err := replayScript.Run(ctx, d.client, []string{DeadKey(queue), queue}, raw, []byte(e.Envelope)).Int()
		if err != nil {
			return DeadEntry{}, fmt.Errorf("queue: replay %s: %w", queue, err)
		}
		if moved == 0 {
			// replayed concurrently
			return DeadEntry{}, ErrDeadEntryNotFound
		}
		return e, nil
	}

	return DeadEntry{}, ErrDeadEntryNotFound
}

// Purge drops every dead letter of queue and reports how many there were.
func (d *DeadLetters) Purge(ctx context.Context, queue string) (int64, error) {
	pipe := d.client.TxPipeline()
	n := pipe.LLen(ctx, DeadKey(queue))
	pipe.Del(ctx, DeadKey(queue))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("queue: purge dead %s: %w", queue, err)
	}
	return n.Val(), nil
}
