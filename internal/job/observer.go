package job

import (
	"context"
	"time"
)

// Observer is told about lifecycle events. Implementations must not block
// for long; they run on the worker's only goroutine.
type Observer interface {
	JobHandled(ctx context.Context, queue, class string, outcome State, elapsed time.Duration)
	JobRetried(ctx context.Context, queue, class string, retries int)
	JobDead(ctx context.Context, queue, class string)
	JobPushed(ctx context.Context, queue string, mode Mode, err error)
}

// Observers fans events out to each of its members in order.
type Observers []Observer

func (o Observers) JobHandled(ctx context.Context, queue, class string, outcome State, elapsed time.Duration) {
	for _, ob := range o {
		ob.JobHandled(ctx, queue, class, outcome, elapsed)
	}
}

func (o Observers) JobRetried(ctx context.Context, queue, class string, retries int) {
	for _, ob := range o {
		ob.JobRetried(ctx, queue, class, retries)
	}
}

func (o Observers) JobDead(ctx context.Context, queue, class string) {
	for _, ob := range o {
		ob.JobDead(ctx, queue, class)
	}
}

func (o Observers) JobPushed(ctx context.Context, queue string, mode Mode, err error) {
	for _, ob := range o {
		ob.JobPushed(ctx, queue, mode, err)
	}
}

type nopObserver struct{}

func (nopObserver) JobHandled(context.Context, string, string, State, time.Duration) {}
func (nopObserver) JobRetried(context.Context, string, string, int)                  {}
func (nopObserver) JobDead(context.Context, string, string)                          {}
func (nopObserver) JobPushed(context.Context, string, Mode, error)                   {}
