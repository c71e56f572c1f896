// Package jobs holds the job types this worker binary knows how to run.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"redis-job-worker/internal/backoff"
	"redis-job-worker/internal/job"
)

const (
	EchoClass  = "echo"
	FlakyClass = "flaky"
)

// Register adds every job type of this package to reg.
func Register(reg *job.Registry) {
	reg.Register(EchoClass, func() job.Handler { return &Echo{} })
	reg.Register(FlakyClass, func() job.Handler { return &Flaky{} }, job.WithBackoff(flakyBackoff()))
}

// flakyBackoff doubles from one second up to 30s, with jitter so a batch of
// flaky jobs does not come back all at once.
func flakyBackoff() backoff.Strategy {
	b := backoff.NewExponential(time.Second, 30*time.Second)
	b.Jitter = 250 * time.Millisecond
	return b
}

var errMissingMessage = errors.New("echo: payload has no message")

// Echo logs the "message" field of its payload.
type Echo struct{}

func (Echo) Process(_ context.Context, j *job.Job) error {
	msg, ok := j.Data().String("message")
	if !ok {
		return errMissingMessage
	}
	j.Logger().Info("echo", zap.String("message", msg))
	return nil
}

func (Echo) OnSuccess(context.Context, *job.Job) {}

func (Echo) OnFail(_ context.Context, j *job.Job, err error) {
	j.Logger().Warn("echo failed", zap.Error(err))
}

func (Echo) Dead(_ context.Context, j *job.Job) {
	j.Logger().Error("echo gave up", zap.Any("payload", j.Data().Map()))
}

// Flaky fails until it has been retried "succeed_after" times. It exists to
// exercise the retry path end to end.
type Flaky struct{}

func (Flaky) Process(_ context.Context, j *job.Job) error {
	after, _ := j.Data().Int("succeed_after")
	if j.Retries() < after {
		return fmt.Errorf("flaky: attempt %d of %d", j.Retries()+1, after+1)
	}
	j.Data().Set("succeeded_on_retry", j.Retries())
	return nil
}

func (Flaky) OnSuccess(_ context.Context, j *job.Job) {
	j.Logger().Info("flaky job recovered", zap.Int("retries", j.Retries()))
}

func (Flaky) OnFail(context.Context, *job.Job, error) {}

func (Flaky) Dead(context.Context, *job.Job) {}
