// Package inbound defines the inbound port interfaces for the session core.
// Inbound adapters (CLI commands, the web console) call these interfaces.
package inbound

import (
	"context"

	"github.com/docdesk/docdesk/internal/domain/auth"
	"github.com/docdesk/docdesk/internal/domain/session"
)

// SessionReader exposes the current session without mutating it.
// The route guard depends only on this.
type SessionReader interface {
	// Snapshot returns a copy of the current session.
	Snapshot() session.Snapshot
}

// SessionManager is the full session state machine.
type SessionManager interface {
	SessionReader

	// Start rehydrates the session from the token store.
	Start(ctx context.Context) session.Snapshot
	// Login authenticates with credentials.
	Login(ctx context.Context, creds auth.Credentials) error
	// Register creates an account without authenticating.
	Register(ctx context.Context, reg auth.Registration) error
	// Logout ends the session; it always ends anonymous.
	Logout(ctx context.Context)
	// Refresh trades the current token for a new one.
	Refresh(ctx context.Context) error
	// ClearError leaves the error state.
	ClearError()
	// Subscribe streams snapshots after every transition until cancel is called.
	Subscribe() (<-chan session.Snapshot, func())
}
