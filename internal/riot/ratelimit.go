package riot

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket sized for the provider's application rate limit.
// Every provider call acquires one token before going on the wire; the bucket
// refills when its window rolls over.
type Limiter struct {
	mu      sync.Mutex
	tokens  int
	max     int
	window  time.Duration
	resetAt time.Time
}

func NewLimiter(max int, window time.Duration) *Limiter {
	return &Limiter{
		tokens:  max,
		max:     max,
		window:  window,
		resetAt: time.Now().Add(window),
	}
}

// Acquire blocks until a token is available or the context is cancelled.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()
		if !now.Before(l.resetAt) {
			l.tokens = l.max
			l.resetAt = now.Add(l.window)
		}
		if l.tokens > 0 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		wait := l.resetAt.Sub(now)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Remaining reports the tokens left in the current window.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !time.Now().Before(l.resetAt) {
		return l.max
	}
	return l.tokens
}
