// Package tokenstore implements session.TokenStore on top of a JSON file,
// an SQLite key/value table, process memory, or nothing at all.
package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/docdesk/docdesk/internal/domain/auth"
	"github.com/docdesk/docdesk/internal/domain/session"
)

// fileVersion is the on-disk format version of the token file.
const fileVersion = "1"

// tokenFile is the on-disk record.
type tokenFile struct {
	Version   string    `json:"version"`
	Token     string    `json:"token"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileStore keeps the token in a JSON file.
// Writes are atomic (write-tmp-then-rename), keep one backup of the previous
// file, and are serialized by a mutex in-process and an flock across processes.
type FileStore struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

var _ session.TokenStore = (*FileStore)(nil)

// NewFileStore creates a FileStore for the given path.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger,
	}
}

// Get returns the stored token. A missing file reads as absent. A corrupt file
// falls back to the backup, and reads as absent if that fails too.
func (s *FileStore) Get(ctx context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false
		}
		s.logger.Warn("token file unreadable, trying backup", "path", s.path, "error", err)
		rec, err = s.load(s.path + ".bak")
		if err != nil {
			return "", false
		}
	}
	if rec.Token == "" {
		return "", false
	}
	return rec.Token, true
}

// Set writes the token.
func (s *FileStore) Set(ctx context.Context, token string) {
	if token == "" {
		s.Clear(ctx)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &tokenFile{Version: fileVersion, Token: token, UpdatedAt: time.Now().UTC()}
	if err := s.save(rec); err != nil {
		s.logger.Error("failed to persist token", "path", s.path, "error", err)
		return
	}
	s.logger.Debug("token saved", "path", s.path, "fingerprint", auth.Fingerprint(token))
}

// Clear removes the token file and its backup.
func (s *FileStore) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.withLock(func() error {
		for _, p := range []string{s.path, s.path + ".bak"} {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
		}
		return nil
	}); err != nil {
		s.logger.Error("failed to clear token", "path", s.path, "error", err)
		return
	}
	s.logger.Debug("token cleared", "path", s.path)
}

// load reads and parses a token file.
// Warns if the file has permissions more open than 0600.
func (s *FileStore) load(path string) (*tokenFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Skip on Windows where Unix file permission bits are not supported.
	if runtime.GOOS != "windows" {
		if info, statErr := os.Stat(path); statErr == nil {
			mode := info.Mode().Perm()
			if mode&0077 != 0 {
				s.logger.Warn("token file has too-open permissions, should be 0600",
					"path", path, "current_mode", fmt.Sprintf("%04o", mode))
			}
		}
	}

	var rec tokenFile
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	return &rec, nil
}

// save writes rec to disk atomically.
//
// The write sequence is:
//  1. Create the parent directory with 0700
//  2. Acquire flock on path+".lock"
//  3. Copy current file to path+".bak" (ignored if no current file)
//  4. Write to path+".tmp" with 0600 permissions and fsync
//  5. Rename path+".tmp" -> path
func (s *FileStore) save(rec *tokenFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token file: %w", err)
	}
	data = append(data, '\n')

	return s.withLock(func() error {
		if currentData, readErr := os.ReadFile(s.path); readErr == nil {
			if writeErr := os.WriteFile(s.path+".bak", currentData, 0600); writeErr != nil {
				s.logger.Warn("failed to create backup", "error", writeErr)
			}
		}

		if err := s.writeAtomic(data); err != nil {
			return err
		}

		// Rename keeps the temp file's mode, but an umask may have widened it.
		if err := os.Chmod(s.path, 0600); err != nil {
			s.logger.Warn("failed to set permissions on token file", "error", err)
		}
		return nil
	})
}

// withLock runs fn while holding the cross-process lock on path+".lock".
func (s *FileStore) withLock(fn func() error) error {
	lockPath := s.path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Parent directory is missing, so there is nothing to protect.
			return fn()
		}
		return fmt.Errorf("open lock file: %w", err)
	}
	defer func() { _ = lockFile.Close() }()

	if err := flockLock(lockFile.Fd()); err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	defer flockUnlock(lockFile.Fd()) //nolint:errcheck

	return fn()
}

// writeAtomic writes data to a temp file, fsyncs it, and renames it
// over the target path. On any error the temp file is cleaned up.
func (s *FileStore) writeAtomic(data []byte) error {
	tmpPath := s.path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := f.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp to token file: %w", err)
	}
	return nil
}

// Exists returns true if the token file exists on disk.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Path returns the configured file path.
func (s *FileStore) Path() string {
	return s.path
}

// Artifacts returns every file the store may leave on disk.
func (s *FileStore) Artifacts() []string {
	return []string{s.path, s.path + ".bak", s.path + ".lock", s.path + ".tmp"}
}
