package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	s := Default()
	for attempt := 1; attempt <= 4; attempt++ {
		assert.Equal(t, 5*time.Second, s.Delay(attempt))
	}
}

func TestExponential(t *testing.T) {
	e := NewExponential(time.Second, 10*time.Second)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{80, 10 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExponentialUncapped(t *testing.T) {
	e := NewExponential(time.Millisecond, 0)
	assert.Equal(t, 8*time.Millisecond, e.Delay(4))
}

func TestExponentialJitter(t *testing.T) {
	e := &Exponential{Initial: time.Second, Jitter: 100 * time.Millisecond}

	for i := 0; i < 50; i++ {
		d := e.Delay(2)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.Less(t, d, 2*time.Second+100*time.Millisecond)
	}

	e.Max = 2 * time.Second
	assert.Equal(t, 2*time.Second, e.Delay(2), "jitter never exceeds the cap")
}
