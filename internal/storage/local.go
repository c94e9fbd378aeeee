package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage implements Storage on the local filesystem, for development
// setups without an S3 bucket.
type LocalStorage struct {
	basePath string
	baseURL  string
}

// NewLocalStorage creates a storage rooted at basePath, serving files under baseURL
func NewLocalStorage(basePath, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	return &LocalStorage{
		basePath: absPath,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
	}, nil
}

func (s *LocalStorage) Upload(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error) {
	key := objectKey(filename)
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a temp file first so a partially written object is never
	// visible under its final name.
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to finalize file: %w", err)
	}

	return s.baseURL + "/" + key, nil
}

func (s *LocalStorage) Delete(ctx context.Context, publicURL string) error {
	key := strings.TrimPrefix(strings.TrimPrefix(publicURL, s.baseURL), "/")
	if key == "" || key == publicURL {
		return fmt.Errorf("url %q does not belong to this storage", publicURL)
	}

	fullPath := filepath.Join(s.basePath, filepath.FromSlash(filepath.Clean(key)))
	if !strings.HasPrefix(fullPath, s.basePath) {
		return fmt.Errorf("url %q resolves outside the storage root", publicURL)
	}

	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
