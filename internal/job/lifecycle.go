package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	ErrAlreadyHandled = errors.New("job already handled")
	ErrRequeue        = errors.New("requeue failed")
	ErrDeadLetter     = errors.New("dead-letter record failed")
)

// Handle runs the job once: Process, then OnSuccess, or the retry decision
// followed by OnFail. Errors from Process never escape; they are kept in Err
// and passed to OnFail. Handle returns an error only for a second call or
// when the requeue or dead-letter write after a failure did not go through.
func (j *Job) Handle(ctx context.Context) error {
	if j.state != StatePending {
		return ErrAlreadyHandled
	}
	j.state = StateProcessing

	start := time.Now()
	defer func() {
		j.processed = true
		j.rt.observer().JobHandled(ctx, j.queue, j.class, j.state, time.Since(start))
	}()

	if err := j.process(ctx); err != nil {
		j.state = StateFailed
		j.lastErr = err
		j.log.Warn("job failed", zap.Error(err), zap.Int("retries", j.retries), zap.Int("max_retries", j.maxRetries))

		_, retryErr := j.Retry(ctx)
		j.handler.OnFail(ctx, j, err)
		return retryErr
	}

	j.state = StateSucceeded
	j.handler.OnSuccess(ctx, j)
	j.log.Debug("job succeeded", zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (j *Job) process(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job: %s panicked: %v", j.class, r)
		}
	}()
	return j.handler.Process(ctx, j)
}

// Retry puts the job back at the head of its queue with one more retry
// counted, after the backoff pause. With no retries left it calls Dead
// instead and reports false.
func (j *Job) Retry(ctx context.Context) (bool, error) {
	if !j.IsRetriable() {
		j.handler.Dead(ctx, j)
		j.rt.observer().JobDead(ctx, j.queue, j.class)
		j.log.Error("job is dead, retries exhausted", zap.Int("retries", j.retries))
		return false, j.recordDead(ctx)
	}

	j.retries++
	delay := j.backoff.Delay(j.retries)
	sleep(ctx, delay)

	// the job must not be lost when the pause was cut short by shutdown
	if err := j.Dispatch(context.WithoutCancel(ctx), Prepend); err != nil {
		j.log.Error("requeue failed", zap.Error(err), zap.Int("retries", j.retries))
		return true, fmt.Errorf("%w: %w", ErrRequeue, err)
	}

	j.rt.observer().JobRetried(ctx, j.queue, j.class, j.retries)
	j.log.Info("job requeued", zap.Int("retries", j.retries), zap.Duration("delay", delay))
	return true, nil
}

func (j *Job) recordDead(ctx context.Context) error {
	if j.rt.DeadLetters == nil {
		return nil
	}
	raw, err := j.Envelope().Encode()
	if err == nil {
		_, err = j.rt.DeadLetters.Push(context.WithoutCancel(ctx), j.queue, raw, j.lastErr)
	}
	if err != nil {
		j.log.Error("dead-letter record failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrDeadLetter, err)
	}
	return nil
}

// Dispatch encodes the job and pushes it to the tail (Append) or head
// (Prepend) of its queue. Encoding and transport errors are returned.
func (j *Job) Dispatch(ctx context.Context, mode Mode) (err error) {
	defer func() {
		j.rt.observer().JobPushed(ctx, j.queue, mode, err)
	}()

	if j.rt.Transport == nil {
		return fmt.Errorf("job: dispatch %s: no transport", j.class)
	}

	raw, err := j.Envelope().Encode()
	if err != nil {
		return fmt.Errorf("job: encode %s: %w", j.class, err)
	}

	switch mode {
	case Append:
		return j.rt.Transport.PushTail(ctx, j.queue, raw)
	case Prepend:
		return j.rt.Transport.PushHead(ctx, j.queue, raw)
	}
	return fmt.Errorf("job: dispatch %s: unknown mode %d", j.class, mode)
}

// TryDispatch is Dispatch for callers that only want to know whether the
// push happened. The error is logged.
func (j *Job) TryDispatch(ctx context.Context, mode Mode) bool {
	if err := j.Dispatch(ctx, mode); err != nil {
		j.log.Error("dispatch failed", zap.Error(err), zap.String("queue", j.queue))
		return false
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
