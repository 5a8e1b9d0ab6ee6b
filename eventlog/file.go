package eventlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the event log in a local file, for single-machine and
// shared-folder setups and for tests. The version token is the SHA-1 of the
// content. Writes re-read and compare under a process-local mutex before the
// atomic rename; cross-process races collapse to last-writer-wins the same
// way they would for any shared-folder file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path (used by the fsnotify notifier).
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) read() (string, string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	content := string(data)
	return content, contentVersion(content), nil
}

// Read returns the current content and its hash. A missing file reads as empty.
func (s *FileStore) Read(ctx context.Context) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Write replaces the content if the file still hashes to version.
func (s *FileStore) Write(ctx context.Context, content, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, current, err := s.read()
	if err != nil {
		return err
	}
	if current != version {
		return ErrConflict
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".queue-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write queue log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
