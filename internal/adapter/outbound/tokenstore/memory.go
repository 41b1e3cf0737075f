package tokenstore

import (
	"context"
	"sync"

	"github.com/docdesk/docdesk/internal/domain/session"
)

// MemoryStore keeps the token in process memory. It does not survive restarts.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

var _ session.TokenStore = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore holding token, which may be empty.
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

// Get returns the held token.
func (s *MemoryStore) Get(ctx context.Context) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// Set replaces the held token.
func (s *MemoryStore) Set(ctx context.Context, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Clear drops the held token.
func (s *MemoryStore) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}
