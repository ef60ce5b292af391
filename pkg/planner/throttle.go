package planner

import (
	"context"
	"sync"
	"time"
)

// DefaultRateInterval is the minimum spacing between two provider calls.
const DefaultRateInterval = time.Second

// Throttle runs calls one at a time and keeps at least interval between
// the start of consecutive calls. The first call is not delayed.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func NewThrottle(interval time.Duration) *Throttle {
	if interval < 0 {
		interval = 0
	}
	return &Throttle{interval: interval}
}

// Execute waits for the next slot and runs fn while holding it.
func (t *Throttle) Execute(ctx context.Context, fn func() error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.last.IsZero() {
		if wait := time.Until(t.last.Add(t.interval)); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.last = time.Now()
	return fn()
}

func (t *Throttle) Interval() time.Duration {
	return t.interval
}
