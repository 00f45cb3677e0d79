package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/filekeys"
	"github.com/dmitrijs2005/filekeeper/internal/logging"
)

// LocalStore keeps objects as files beneath a sandboxed root directory.
type LocalStore struct {
	root    string
	baseURL string
	logger  logging.Logger
}

// NewLocalStore creates the root directory if needed. baseURL prefixes the
// URLs returned by URL and PresignedUploadURL and may be empty for
// same-origin paths.
func NewLocalStore(root, baseURL string, logger logging.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o770); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", root, err)
	}
	return &LocalStore{root: root, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}, nil
}

// filePath resolves a key beneath the root, re-sanitizing every segment so
// a hostile key can never escape the sandbox.
func (s *LocalStore) filePath(key string) string {
	parts := strings.Split(key, "/")
	safe := make([]string, 0, len(parts))
	for _, part := range parts {
		part = filekeys.SanitizeSegment(part)
		if part == "" || part == "." || part == ".." {
			continue
		}
		safe = append(safe, part)
	}
	return filepath.Join(append([]string{s.root}, safe...)...)
}

func (s *LocalStore) Store(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	path := s.filePath(key)

	if err := os.MkdirAll(filepath.Dir(path), 0o770); err != nil {
		return "", fmt.Errorf("%w: mkdir: %w", common.ErrStorageBackend, err)
	}
	if err := os.WriteFile(path, data, 0o660); err != nil {
		return "", fmt.Errorf("%w: write %s: %w", common.ErrStorageBackend, key, err)
	}

	s.logger.Info(ctx, "file stored", "key", key, "path", path)
	return key, nil
}

func (s *LocalStore) StoreStream(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	path := s.filePath(key)

	if err := os.MkdirAll(filepath.Dir(path), 0o770); err != nil {
		return "", fmt.Errorf("%w: mkdir: %w", common.ErrStorageBackend, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: create %s: %w", common.ErrStorageBackend, key, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		// The reader's own failure (e.g. a size ceiling) must stay visible
		// to the caller, so it is wrapped as-is rather than reclassified.
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: close %s: %w", common.ErrStorageBackend, key, err)
	}

	s.logger.Info(ctx, "file stored from stream", "key", key, "path", path)
	return key, nil
}

func (s *LocalStore) Retrieve(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.filePath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: read %s: %w", common.ErrStorageBackend, key, err)
	}
	return data, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) (bool, error) {
	err := os.Remove(s.filePath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: delete %s: %w", common.ErrStorageBackend, key, err)
	}

	s.logger.Info(ctx, "file deleted", "key", key)
	return true, nil
}

func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(s.filePath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: stat %s: %w", common.ErrStorageBackend, key, err)
	}
	return true, nil
}

func (s *LocalStore) URL(key string) string {
	return s.baseURL + "/storage/" + key
}

// PresignedUploadURL returns the same-origin upload endpoint carrying the
// pre-generated key. Local storage has no real presigning, so the client
// POSTs the bytes through the service instead.
func (s *LocalStore) PresignedUploadURL(ctx context.Context, key, contentType string, expiresIn time.Duration) (string, string, error) {
	return s.baseURL + "/api/files/upload?file_key=" + url.QueryEscape(key), MethodPost, nil
}
