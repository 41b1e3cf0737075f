package tokenstore

import (
	"context"
	"io"
	"log/slog"

	"github.com/docdesk/docdesk/internal/domain/session"
)

// Store kinds accepted by Open.
const (
	KindFile   = "file"
	KindSQLite = "sqlite"
	KindMemory = "memory"
	KindNone   = "none"
)

// Open returns the store for kind. A store that cannot be opened degrades to
// NopStore with a warning, so callers always get a usable store.
// The returned closer releases any underlying resources.
func Open(ctx context.Context, kind, path string, logger *slog.Logger) (session.TokenStore, io.Closer) {
	switch kind {
	case KindFile, "":
		return NewFileStore(path, logger), nopCloser{}
	case KindSQLite:
		s, err := OpenSQLite(ctx, path, logger)
		if err != nil {
			logger.Warn("token storage unavailable, session will not persist", "kind", kind, "path", path, "error", err)
			return NopStore{}, nopCloser{}
		}
		return s, s
	case KindMemory:
		return NewMemoryStore(""), nopCloser{}
	case KindNone:
		return NopStore{}, nopCloser{}
	default:
		logger.Warn("unknown token store kind, session will not persist", "kind", kind)
		return NopStore{}, nopCloser{}
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
