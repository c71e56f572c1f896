// Package backoff holds the delay strategies applied before a failed job is
// put back on its queue.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// DefaultDelay is the pause before every requeue unless a job type says
// otherwise.
const DefaultDelay = 5 * time.Second

// Strategy computes the delay before retry attempt n (1-indexed).
type Strategy interface {
	Delay(attempt int) time.Duration
}

// Constant always waits the same interval.
type Constant struct {
	Interval time.Duration
}

func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// Exponential doubles the delay each attempt, capped at Max when Max > 0.
// Delay = Initial * 2^(attempt-1) + rand[0, Jitter).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
	// Jitter spreads retries of jobs that failed together.
	Jitter time.Duration
}

func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

func (e *Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(e.Initial) * math.Pow(2, float64(attempt-1))
	if e.Jitter > 0 {
		d += float64(rand.Int63n(int64(e.Jitter)))
	}
	if e.Max > 0 && d > float64(e.Max) {
		return e.Max
	}
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Default is the fixed five second pause.
func Default() Strategy {
	return NewConstant(DefaultDelay)
}
