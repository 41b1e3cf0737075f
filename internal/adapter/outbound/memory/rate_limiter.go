// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/docdesk/docdesk/internal/domain/ratelimit"
)

// RateLimiter implements ratelimit.Limiter using GCRA in memory.
// Safe for concurrent use. State is per process, which is all the console
// needs. A background cleanup drops keys that have gone idle.
type RateLimiter struct {
	cells           map[string]time.Time // theoretical arrival time per key
	mu              sync.Mutex
	now             func() time.Time
	logger          *slog.Logger
	stopChan        chan struct{}
	wg              sync.WaitGroup
	once            sync.Once
	cleanupInterval time.Duration
	maxTTL          time.Duration
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RateLimiterOption {
	return func(r *RateLimiter) { r.now = now }
}

// WithCleanup sets how often idle keys are swept and how long a key may sit
// idle before it is dropped. Defaults: 5 minutes and 1 hour.
func WithCleanup(interval, maxTTL time.Duration) RateLimiterOption {
	return func(r *RateLimiter) {
		r.cleanupInterval = interval
		r.maxTTL = maxTTL
	}
}

// WithLimiterLogger sets the logger for cleanup reports.
func WithLimiterLogger(logger *slog.Logger) RateLimiterOption {
	return func(r *RateLimiter) { r.logger = logger }
}

// NewRateLimiter creates an in-memory limiter.
func NewRateLimiter(opts ...RateLimiterOption) *RateLimiter {
	r := &RateLimiter{
		cells:           make(map[string]time.Time),
		now:             time.Now,
		logger:          slog.Default(),
		stopChan:        make(chan struct{}),
		cleanupInterval: 5 * time.Minute,
		maxTTL:          time.Hour,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Allow checks key against cfg and, when allowed, spends one attempt.
func (r *RateLimiter) Allow(ctx context.Context, key string, cfg ratelimit.Config) (ratelimit.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	emission := cfg.Period / time.Duration(cfg.Rate)

	if cfg.Burst <= 0 {
		cfg.Burst = cfg.Rate
	}
	burstOffset := time.Duration(cfg.Burst) * emission

	tat, exists := r.cells[key]
	if !exists || tat.Before(now) {
		tat = now
	}

	allowAt := tat.Add(-burstOffset + emission)
	if now.Before(allowAt) {
		return ratelimit.Result{RetryAfter: allowAt.Sub(now)}, nil
	}

	newTAT := tat.Add(emission)
	r.cells[key] = newTAT

	remaining := int((burstOffset - newTAT.Sub(now)) / emission)
	remaining = max(0, min(remaining, cfg.Burst))

	return ratelimit.Result{Allowed: true, Remaining: remaining}, nil
}

// StartCleanup starts the background sweep. It stops when ctx is cancelled
// or Stop is called.
func (r *RateLimiter) StartCleanup(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopChan:
				return
			case <-ticker.C:
				r.cleanup()
			}
		}
	}()
}

// cleanup removes keys whose arrival time is older than maxTTL.
func (r *RateLimiter) cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.maxTTL)
	cleaned := 0
	for key, tat := range r.cells {
		if tat.Before(cutoff) {
			delete(r.cells, key)
			cleaned++
		}
	}

	if cleaned > 0 {
		r.logger.Debug("rate limiter cleanup completed",
			"cleaned_keys", cleaned,
			"remaining_keys", len(r.cells))
	}
}

// Stop stops the cleanup goroutine and waits for it to exit.
// Safe to call multiple times.
func (r *RateLimiter) Stop() {
	r.once.Do(func() {
		close(r.stopChan)
	})
	r.wg.Wait()
}

// Size returns the number of tracked keys.
func (r *RateLimiter) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cells)
}

var _ ratelimit.Limiter = (*RateLimiter)(nil)
