// Package ratelimit throttles credential form submissions.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Config defines the attempt budget.
type Config struct {
	// Rate is the number of attempts allowed per Period.
	Rate int

	// Burst is the number of attempts that may be made back to back.
	Burst int

	// Period is the window Rate is measured over.
	Period time.Duration
}

// LoginAttempts allows five attempts at once, then one every twelve seconds.
var LoginAttempts = Config{Rate: 5, Burst: 5, Period: time.Minute}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed bool

	// Remaining is the number of attempts left in the burst.
	Remaining int

	// RetryAfter is how long to wait before the next attempt is allowed.
	// Zero when Allowed.
	RetryAfter time.Duration
}

// Limiter decides whether an attempt identified by key may proceed.
//
// Implementations use GCRA (Generic Cell Rate Algorithm), which spreads
// attempts evenly instead of resetting at window boundaries.
type Limiter interface {
	Allow(ctx context.Context, key string, cfg Config) (Result, error)
}

// KeyType identifies what a limiter key is scoped to.
type KeyType string

const (
	// KeyTypeIP scopes attempts to the client address.
	KeyTypeIP KeyType = "ip"

	// KeyTypeEmail scopes attempts to the account being tried.
	KeyTypeEmail KeyType = "email"
)

// FormatKey returns a structured limiter key.
// Format: "{form}:{type}:{value}"
// Examples:
//   - FormatKey("login", KeyTypeIP, "192.168.1.1") -> "login:ip:192.168.1.1"
//   - FormatKey("login", KeyTypeEmail, "ada@example.com") -> "login:email:ada@example.com"
func FormatKey(form string, keyType KeyType, value string) string {
	return fmt.Sprintf("%s:%s:%s", form, keyType, value)
}
