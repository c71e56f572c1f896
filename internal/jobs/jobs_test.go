package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redis-job-worker/internal/backoff"
	"redis-job-worker/internal/job"
	"redis-job-worker/internal/queue"
)

func newRuntime(t *testing.T) (*job.Registry, *job.Runtime) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	reg := job.NewRegistry()
	Register(reg)
	return reg, &job.Runtime{Transport: queue.New(rdb)}
}

func TestRegister(t *testing.T) {
	reg := job.NewRegistry()
	Register(reg)
	assert.Equal(t, []string{EchoClass, FlakyClass}, reg.Classes())
}

func TestEcho(t *testing.T) {
	reg, rt := newRuntime(t)

	j, err := reg.New(rt, EchoClass)
	require.NoError(t, err)
	j.Data().Set("message", "hello")
	require.NoError(t, j.Handle(context.Background()))
	ok, _ := j.Succeeded()
	assert.True(t, ok)

	missing, err := reg.New(rt, EchoClass)
	require.NoError(t, err)
	missing.SetRetries(missing.MaxRetries())
	require.NoError(t, missing.Handle(context.Background()))
	assert.ErrorIs(t, missing.Err(), errMissingMessage)
}

func TestFlakySucceedsOnRetry(t *testing.T) {
	reg, rt := newRuntime(t)

	j, err := reg.FromEnvelope(rt, queue.Envelope{
		JobClass: FlakyClass,
		Payload:  queue.NewData().Set("succeed_after", 2),
		Retries:  2,
	})
	require.NoError(t, err)
	require.NoError(t, j.Handle(context.Background()))

	ok, _ := j.Succeeded()
	assert.True(t, ok)
	n, _ := j.Data().Int("succeeded_on_retry")
	assert.Equal(t, 2, n)
}

func TestFlakyBacksOffExponentially(t *testing.T) {
	reg, rt := newRuntime(t)

	j, err := reg.New(rt, FlakyClass)
	require.NoError(t, err)
	exp, ok := j.Backoff().(*backoff.Exponential)
	require.True(t, ok, "flaky uses exponential backoff")

	for attempt, base := range map[int]time.Duration{1: time.Second, 2: 2 * time.Second, 3: 4 * time.Second} {
		d := exp.Delay(attempt)
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+250*time.Millisecond)
	}
	assert.Equal(t, 30*time.Second, exp.Delay(10))

	echo, err := reg.New(rt, EchoClass)
	require.NoError(t, err)
	assert.Equal(t, backoff.DefaultDelay, echo.Backoff().Delay(1))
}
