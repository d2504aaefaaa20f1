package evidence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
)

// LocalStore stores evidence blobs under a directory on disk. It backs demo
// deployments and tests where no object store is configured.
type LocalStore struct {
	root string
}

// NewLocalStore constructs a filesystem-backed store rooted at dir.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("evidence: empty local store dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{root: dir}, nil
}

// Write stores a blob under the given object name.
func (s *LocalStore) Write(_ context.Context, name string, data []byte, _ string) error {
	if s == nil || s.root == "" {
		return errors.New("evidence: nil local store")
	}
	if name == "" || name != filepath.Base(name) {
		return errors.New("evidence: invalid object name")
	}
	return os.WriteFile(filepath.Join(s.root, name), data, 0o644)
}

// Read fetches a blob by object name.
func (s *LocalStore) Read(_ context.Context, name string) ([]byte, error) {
	if s == nil || s.root == "" {
		return nil, errors.New("evidence: nil local store")
	}
	if name == "" || name != filepath.Base(name) {
		return nil, errors.New("evidence: invalid object name")
	}
	return os.ReadFile(filepath.Join(s.root, name))
}

// Exists reports whether an object is present.
func (s *LocalStore) Exists(_ context.Context, name string) (bool, error) {
	if s == nil || s.root == "" {
		return false, errors.New("evidence: nil local store")
	}
	if name == "" || name != filepath.Base(name) {
		return false, errors.New("evidence: invalid object name")
	}
	_, err := os.Stat(filepath.Join(s.root, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
