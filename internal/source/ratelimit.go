package source

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter spaces outbound requests with a randomized pause. It is shared by
// all concurrent fetch workers: each Wait reserves the next global request
// slot, so total outbound rate stays capped no matter how many workers run.
// The randomized interval keeps workers from synchronizing into bursts.
type Limiter struct {
	mu   sync.Mutex
	next time.Time
	min  time.Duration
	max  time.Duration
	rng  *rand.Rand
}

// NewLimiter creates a limiter pausing between min and max per request.
// A non-positive max collapses to min (fixed interval).
func NewLimiter(min, max time.Duration) *Limiter {
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}
	return &Limiter{
		min: min,
		max: max,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Wait blocks until the caller's reserved slot arrives or ctx is done.
// This is the only scheduling suspension point tied to the upstream source.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	pause := l.min
	if l.max > l.min {
		pause += time.Duration(l.rng.Int63n(int64(l.max - l.min)))
	}
	now := time.Now()
	slot := l.next
	if slot.Before(now) {
		slot = now
	}
	l.next = slot.Add(pause)
	l.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
