package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure-Go driver registered as "sqlite"

	"github.com/docdesk/docdesk/internal/domain/auth"
	"github.com/docdesk/docdesk/internal/domain/session"
)

const createStorageTable = `CREATE TABLE IF NOT EXISTS storage (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// SQLiteStore keeps the token in a key/value table, one row per key.
// The token lives under session.TokenKey.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

var _ session.TokenStore = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createStorageTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create storage table: %w", err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		logger.Warn("failed to set permissions on database", "path", path, "error", err)
	}

	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

// Get returns the stored token.
func (s *SQLiteStore) Get(ctx context.Context) (string, bool) {
	var token string
	err := s.db.QueryRowContext(context.WithoutCancel(ctx), `SELECT value FROM storage WHERE key = ?`, session.TokenKey).Scan(&token)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to read token", "path", s.path, "error", err)
		}
		return "", false
	}
	return token, token != ""
}

// Set upserts the token row.
func (s *SQLiteStore) Set(ctx context.Context, token string) {
	if token == "" {
		s.Clear(ctx)
		return
	}
	_, err := s.db.ExecContext(context.WithoutCancel(ctx),
		`INSERT INTO storage (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		session.TokenKey, token, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		s.logger.Error("failed to persist token", "path", s.path, "error", err)
		return
	}
	s.logger.Debug("token saved", "path", s.path, "fingerprint", auth.Fingerprint(token))
}

// Clear deletes the token row.
func (s *SQLiteStore) Clear(ctx context.Context) {
	if _, err := s.db.ExecContext(context.WithoutCancel(ctx), `DELETE FROM storage WHERE key = ?`, session.TokenKey); err != nil {
		s.logger.Error("failed to clear token", "path", s.path, "error", err)
	}
}

// Path returns the database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
