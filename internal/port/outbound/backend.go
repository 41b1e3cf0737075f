// Package outbound defines the outbound port interfaces for reaching the
// document-management backend.
package outbound

import (
	"context"

	"github.com/docdesk/docdesk/internal/domain/auth"
	"github.com/docdesk/docdesk/internal/domain/session"
)

// AuthBackend is the outbound port the session service drives.
// The REST adapter implements it; tests use a fake.
type AuthBackend interface {
	// Login exchanges credentials for a token and the user it belongs to.
	Login(ctx context.Context, creds auth.Credentials) (*auth.Grant, error)

	// Register creates an account. It issues no token.
	Register(ctx context.Context, reg auth.Registration) error

	// Logout invalidates the current token on the backend.
	Logout(ctx context.Context) error

	// Refresh trades the current token for a new one. Concurrent callers
	// share a single backend call. An adapter may persist the new token
	// itself.
	Refresh(ctx context.Context) (*auth.Grant, error)

	// Profile returns the user the current token belongs to.
	Profile(ctx context.Context) (*session.User, error)

	// UpdateProfile applies a partial update to the current user.
	UpdateProfile(ctx context.Context, upd auth.ProfileUpdate) (*session.User, error)
}
