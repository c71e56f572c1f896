// Package worker pops envelopes off a queue and executes them, either in a
// child process per job or inside the worker's own process.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"redis-job-worker/internal/queue"
)

// DefaultPopTimeout bounds each blocking pop so the loop wakes up regularly.
const DefaultPopTimeout = 5 * time.Second

// DefaultSleep is the pause between two loop iterations.
const DefaultSleep = 5 * time.Second

// Executor runs one raw envelope to completion.
type Executor interface {
	Run(ctx context.Context, envelope []byte) error
}

type Options struct {
	Queue string
	// Sleep is applied after every iteration, whether or not a job was
	// popped. Zero disables it.
	Sleep time.Duration
	// Subprocess reports whether the executor isolates jobs. It is only
	// used for logging.
	Subprocess bool
	PopTimeout time.Duration
}

type Worker struct {
	transport queue.Transport
	exec      Executor
	opts      Options
	log       *zap.Logger
}

func New(transport queue.Transport, exec Executor, opts Options, log *zap.Logger) *Worker {
	if opts.Queue == "" {
		opts.Queue = "default"
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = DefaultPopTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		transport: transport,
		exec:      exec,
		opts:      opts,
		log:       log.Named("worker").With(zap.String("queue", opts.Queue)),
	}
}

// Run loops until ctx is cancelled. A job already popped is executed on a
// context that ignores the cancellation, so shutdown never cuts one short.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("worker started",
		zap.Bool("subprocess", w.opts.Subprocess),
		zap.Duration("sleep", w.opts.Sleep),
	)
	for {
		if ctx.Err() != nil {
			break
		}
		w.runOnce(ctx)
		if !pause(ctx, w.opts.Sleep) {
			break
		}
	}
	w.log.Info("worker stopped")
	return nil
}

// runOnce pops at most one envelope and executes it. It reports whether an
// envelope was popped.
func (w *Worker) runOnce(ctx context.Context) bool {
	raw, ok, err := w.transport.BlockingPop(ctx, w.opts.Queue, w.opts.PopTimeout)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error("pop failed", zap.Error(err))
		}
		return false
	}
	if !ok {
		return false
	}

	start := time.Now()
	if err := w.exec.Run(context.WithoutCancel(ctx), raw); err != nil {
		w.log.Error("job execution failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return true
	}
	w.log.Debug("job executed", zap.Duration("elapsed", time.Since(start)))
	return true
}

func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
