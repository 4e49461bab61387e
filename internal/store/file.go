package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"
)

// FileStore keeps State in a single JSON file. Writes go to a temporary file
// in the destination directory, are fsynced, then renamed over the target, so
// a crash mid-write leaves either the old or the new document.
type FileStore struct {
	path string

	mu    sync.Mutex
	state State
}

// OpenFile loads the state file at path. A missing or corrupt file is not an
// error: the store starts empty.
func OpenFile(path string) *FileStore {
	s := &FileStore{path: path}
	if data, err := os.ReadFile(path); err == nil {
		s.state = decode(data)
	}
	return s
}

// Path returns the destination file.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns a copy of the current state.
func (s *FileStore) Get() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.state)
}

// Update merges fn's changes and writes the full document atomically.
func (s *FileStore) Update(ctx context.Context, fn func(*State)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := clone(s.state)
	fn(&next)
	s.state = next

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	if err := renameio.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write state file %s: %w", s.path, err)
	}
	return nil
}

// Close is a no-op; every Update is already durable.
func (s *FileStore) Close() error {
	return nil
}
