package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// LocalStore keeps artifacts on the local filesystem. Locators are
// baseURL + "/" + key so a static file server in front of dir can
// serve them.
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create artifact directory")
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.dir, filepath.FromSlash(key))
}

func (s *LocalStore) Save(_ context.Context, key string, content []byte, _ string) (string, error) {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", errors.Wrapf(err, "failed to create directory for %s", key)
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", errors.Wrapf(err, "failed to write %s", key)
	}

	if s.baseURL == "" {
		return "file://" + path, nil
	}
	return s.baseURL + "/" + key, nil
}

func (s *LocalStore) Read(_ context.Context, key string) ([]byte, error) {
	content, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", key)
	}
	return content, nil
}

func (s *LocalStore) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to stat %s", key)
	}
	return true, nil
}
