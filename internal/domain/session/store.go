package session

import "context"

// TokenStore persists the single bearer token across process restarts.
// This interface is defined in the domain to avoid circular imports.
// Implementations: file, sqlite, in-memory, and an always-empty store for
// environments without persistent storage.
//
// Implementations never return errors: a failed read reports absent and a
// failed write is logged and dropped.
type TokenStore interface {
	// Get returns the stored token, or false when none is stored.
	Get(ctx context.Context) (string, bool)

	// Set replaces the stored token.
	Set(ctx context.Context, token string)

	// Clear removes the stored token.
	Clear(ctx context.Context)
}

// TokenKey is the fixed storage key the token is persisted under.
const TokenKey = "token"
