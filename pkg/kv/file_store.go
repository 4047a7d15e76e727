package kv

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps each key in its own file under dir, with an explicit
// byte quota per value. Writes go through a temp file and rename so a
// crash mid-write never leaves a torn value behind.
type FileStore struct {
	dir        string
	quotaBytes int
}

var _ Store = &FileStore{}

func NewFileStore(dir string, quotaBytes int) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir, quotaBytes: quotaBytes}, nil
}

func (s *FileStore) path(key string) string {
	// Keys may contain separators (e.g. "sanctuary:conversations").
	safe := strings.NewReplacer("/", "_", ":", "_", "\\", "_").Replace(key)
	return filepath.Join(s.dir, safe+".json")
}

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	if s.quotaBytes > 0 && len(value) > s.quotaBytes {
		return ErrQuotaExceeded
	}

	target := s.path(key)
	tmp, err := os.CreateTemp(s.dir, ".kv-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, target)
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
