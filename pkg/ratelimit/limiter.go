// Package ratelimit guards the per-user budget of remote generation calls.
// Every feature that talks to the remote service shares one Limiter instance,
// since extraction, interview turns, and story composition all compete for
// the same downstream budget.
package ratelimit

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Decision is the outcome of one CheckAndConsume call.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// Limiter is a fixed-window per-user rate limiter. State is process-local;
// a multi-instance deployment needs a shared counter store instead.
type Limiter struct {
	mu       sync.Mutex
	windows  map[uuid.UUID]*window
	maxCalls int
	duration time.Duration
	now      func() time.Time
}

type window struct {
	count int
	start time.Time
}

// New creates a Limiter allowing maxCalls per user within each window.
func New(maxCalls int, duration time.Duration) *Limiter {
	return &Limiter{
		windows:  make(map[uuid.UUID]*window),
		maxCalls: maxCalls,
		duration: duration,
		now:      time.Now,
	}
}

// CheckAndConsume atomically increments the caller's counter and reports
// whether the call is within budget. When denied, ResetIn tells the caller
// how long until the window rolls over.
func (l *Limiter) CheckAndConsume(userID uuid.UUID) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	// Opportunistic eviction of long-stale windows; sampled so the
	// common path stays O(1).
	if rand.Intn(100) == 0 {
		l.evictStale(now)
	}

	w, ok := l.windows[userID]
	if !ok || now.Sub(w.start) >= l.duration {
		w = &window{start: now}
		l.windows[userID] = w
	}

	if w.count >= l.maxCalls {
		return Decision{
			Allowed:   false,
			Remaining: 0,
			ResetIn:   w.start.Add(l.duration).Sub(now),
		}
	}

	w.count++
	return Decision{
		Allowed:   true,
		Remaining: l.maxCalls - w.count,
		ResetIn:   w.start.Add(l.duration).Sub(now),
	}
}

// evictStale removes windows idle for more than twice the window duration.
// Caller must hold l.mu.
func (l *Limiter) evictStale(now time.Time) {
	for id, w := range l.windows {
		if now.Sub(w.start) > 2*l.duration {
			delete(l.windows, id)
		}
	}
}

// Len reports how many user windows are currently tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
