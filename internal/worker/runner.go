package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"redis-job-worker/internal/job"
	"redis-job-worker/internal/queue"
)

var ErrJobFailed = errors.New("job failed")

// Runner executes envelopes in the current process. It backs both inline
// mode and the child side of subprocess mode.
type Runner struct {
	registry *job.Registry
	rt       *job.Runtime
	log      *zap.Logger
}

func NewRunner(registry *job.Registry, rt *job.Runtime, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{registry: registry, rt: rt, log: log.Named("runner")}
}

// Run decodes envelope, builds the job and handles it. It returns an error
// wrapping ErrJobFailed when Process failed or the job panicked outside
// Process, and the decode, registry or lifecycle error otherwise.
func (r *Runner) Run(ctx context.Context, envelope []byte) (err error) {
	env, err := queue.DecodeEnvelope(envelope)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			r.log.Error("job panicked",
				zap.String("class", env.JobClass),
				zap.Any("panic", p),
				zap.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("%w: %s panicked: %v", ErrJobFailed, env.JobClass, p)
		}
	}()

	j, err := r.registry.FromEnvelope(r.rt, env)
	if err != nil {
		return fmt.Errorf("worker: build job: %w", err)
	}

	r.log.Info("processing job",
		zap.String("class", j.Class()),
		zap.String("queue", j.Queue()),
		zap.Int("retries", j.Retries()),
	)

	if err := j.Handle(ctx); err != nil {
		return fmt.Errorf("worker: handle %s: %w", j.Class(), err)
	}
	if failed, _ := j.Failed(); failed {
		return fmt.Errorf("%w: %s: %w", ErrJobFailed, j.Class(), j.Err())
	}
	return nil
}

// RunChild handles the single envelope passed on the command line and
// returns the process exit code: 0 when the job succeeded, 1 otherwise.
func RunChild(ctx context.Context, r *Runner, payload string) int {
	if err := r.Run(ctx, []byte(payload)); err != nil {
		r.log.Error("child run failed", zap.Error(err))
		return 1
	}
	return 0
}
