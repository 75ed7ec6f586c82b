package handlers

import (
	"strings"
	"sync"
	"time"
)

// checkoutLimiter caps order creation attempts per customer within a fixed window.
type checkoutLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	windows map[string]checkoutWindow
}

type checkoutWindow struct {
	attempts int
	resetAt  time.Time
}

func newCheckoutLimiter(limit int, window time.Duration, clock func() time.Time) *checkoutLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &checkoutLimiter{
		limit:   limit,
		window:  window,
		clock:   clock,
		windows: make(map[string]checkoutWindow),
	}
}

// Allow records an attempt for customerID and reports whether it fits the window. It also returns
// how long until the window resets, for Retry-After.
func (l *checkoutLimiter) Allow(customerID string) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}
	customerID = strings.TrimSpace(customerID)
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.windows[customerID]
	if !ok || !now.Before(current.resetAt) {
		l.windows[customerID] = checkoutWindow{attempts: 1, resetAt: now.Add(l.window)}
		l.evictLocked(now)
		return true, 0
	}
	if current.attempts >= l.limit {
		return false, current.resetAt.Sub(now)
	}
	current.attempts++
	l.windows[customerID] = current
	return true, 0
}

func (l *checkoutLimiter) evictLocked(now time.Time) {
	for id, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, id)
		}
	}
}
