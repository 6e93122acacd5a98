// Package ratelimit implements per-key sliding-window request throttling.
// State is strictly per-process: running several replicas multiplies the
// effective limit, which is an accepted deployment constraint rather than
// something this layer coordinates away.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hexwave/ragchat/internal/metrics"
)

const (
	// DefaultMaxRequests is the request ceiling inside one window.
	DefaultMaxRequests = 60
	// DefaultWindow is the trailing window length.
	DefaultWindow = 60 * time.Second
	// DefaultSweepInterval is how often empty key entries are garbage collected.
	DefaultSweepInterval = 5 * time.Minute
)

// Limiter counts request timestamps per key inside a trailing window.
type Limiter struct {
	maxRequests int
	window      time.Duration
	logger      *zap.Logger
	now         func() time.Time

	mu      sync.Mutex
	windows map[string][]time.Time
}

// New creates a limiter. Non-positive arguments select the defaults.
func New(maxRequests int, window time.Duration, logger *zap.Logger) *Limiter {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		logger:      logger,
		now:         time.Now,
		windows:     make(map[string][]time.Time),
	}
}

// WithClock overrides the time source (tests).
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// IsLimited reports whether the key has exhausted its window. The check and
// record are one atomic step: timestamps older than the window are dropped,
// and the current request is recorded only when it is admitted. A rejected
// request does not consume budget.
func (l *Limiter) IsLimited(key string) bool {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.windows[key][:0]
	for _, ts := range l.windows[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.maxRequests {
		l.windows[key] = kept
		metrics.RateLimitRejectionsTotal.Inc()
		return true
	}

	l.windows[key] = append(kept, now)
	return false
}

// Sweep drops keys whose windows hold no live timestamps. Best effort; it
// never removes a timestamp that is still inside the window.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, stamps := range l.windows {
		live := false
		for _, ts := range stamps {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Run sweeps periodically until the context is cancelled.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := l.Sweep(); removed > 0 && l.logger != nil {
				l.logger.Debug("rate limiter sweep", zap.Int("removed_keys", removed))
			}
		}
	}
}

// Keys returns the number of tracked keys.
func (l *Limiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
