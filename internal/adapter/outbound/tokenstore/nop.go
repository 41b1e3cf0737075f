package tokenstore

import (
	"context"

	"github.com/docdesk/docdesk/internal/domain/session"
)

// NopStore is the store for environments without persistent storage.
// It is always empty and ignores writes.
type NopStore struct{}

var _ session.TokenStore = NopStore{}

// Get always reports absent.
func (NopStore) Get(context.Context) (string, bool) { return "", false }

// Set is a no-op.
func (NopStore) Set(context.Context, string) {}

// Clear is a no-op.
func (NopStore) Clear(context.Context) {}
