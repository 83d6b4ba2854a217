package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// document is the on-disk YAML layout.
type document struct {
	Disabled []string `yaml:"disabled"`
}

// FileStore persists the disabled set as a YAML file.
type FileStore struct {
	path     string
	dirPerm  os.FileMode
	filePerm os.FileMode
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithFilePermissions sets the permissions of the state file.
func WithFilePermissions(perm os.FileMode) FileStoreOption {
	return func(s *FileStore) { s.filePerm = perm }
}

// NewFileStore creates a FileStore writing to path.
func NewFileStore(path string, opts ...FileStoreOption) *FileStore {
	s := &FileStore{path: path, dirPerm: 0o755, filePerm: 0o644}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the state file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load implements Store. A missing file is an empty set.
func (s *FileStore) Load() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read plugin state: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse plugin state: %w", err)
	}
	return doc.Disabled, nil
}

// Save implements Store. The file is replaced atomically.
func (s *FileStore) Save(disabled []string) error {
	data, err := yaml.Marshal(document{Disabled: disabled})
	if err != nil {
		return fmt.Errorf("marshal plugin state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), s.dirPerm); err != nil {
		return fmt.Errorf("create plugin state directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, s.filePerm); err != nil {
		return fmt.Errorf("write plugin state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write plugin state: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }
