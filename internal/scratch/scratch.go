// Package scratch owns the temporary files a single request creates.
package scratch

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
)

// CleanupError reports paths a Scope could not remove. It is logged,
// never surfaced to the request that owned the scope.
type CleanupError struct {
	Failed map[string]error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup failed for %d path(s)", len(e.Failed))
}

// Manager hands out per-request scopes under a root directory
type Manager struct {
	root   string
	remove func(string) error
}

// NewManager creates a manager rooted at dir. An empty dir uses the
// system temp directory.
func NewManager(dir string) (*Manager, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create scratch root: %w", err)
		}
	}
	return &Manager{root: dir, remove: os.RemoveAll}, nil
}

// Root returns the directory scopes are created in
func (m *Manager) Root() string {
	if m.root == "" {
		return os.TempDir()
	}
	return m.root
}

// Open creates a fresh scope with its own directory
func (m *Manager) Open() (*Scope, error) {
	dir, err := os.MkdirTemp(m.root, "asr-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Scope{
		dir:    dir,
		seen:   make(map[string]bool),
		remove: m.remove,
	}, nil
}

// Scope tracks every path created on behalf of one request.
// Close removes all of them.
type Scope struct {
	dir    string
	remove func(string) error

	mu     sync.Mutex
	paths  []string
	seen   map[string]bool
	closed bool
}

// Dir is the directory owned by the scope
func (s *Scope) Dir() string {
	return s.dir
}

// Register adds path to the cleanup set. Registering twice is a no-op.
func (s *Scope) Register(path string) {
	if path == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[path] {
		return
	}
	s.seen[path] = true
	s.paths = append(s.paths, path)
}

// CreateTemp creates an empty file in the scope directory and registers it.
// The caller must close the returned file.
func (s *Scope) CreateTemp(pattern string) (*os.File, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, errors.New("scratch scope already closed")
	}

	f, err := os.CreateTemp(s.dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	s.Register(f.Name())
	return f, nil
}

// Paths returns a copy of the registered paths in registration order
func (s *Scope) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// Close removes every registered path and then the scope directory.
// Failures are logged and returned for inspection only; calling Close
// more than once is safe.
func (s *Scope) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	paths := append([]string(nil), s.paths...)
	s.mu.Unlock()

	failed := make(map[string]error)
	for i := len(paths) - 1; i >= 0; i-- {
		if err := s.remove(paths[i]); err != nil && !os.IsNotExist(err) {
			failed[paths[i]] = err
		}
	}
	if err := s.remove(s.dir); err != nil && !os.IsNotExist(err) {
		failed[s.dir] = err
	}

	if len(failed) == 0 {
		return nil
	}
	cerr := &CleanupError{Failed: failed}
	for path, err := range failed {
		log.Printf("[scratch] failed to remove %s: %v", path, err)
	}
	return cerr
}
