package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

type fileStorage struct {
	maxBytes int64
}

// NewFileStorage creates a backend over the local filesystem.
// maxBytes <= 0 disables the size check.
func NewFileStorage(maxBytes int64) Backend {
	return &fileStorage{maxBytes: maxBytes}
}

func (s *fileStorage) Read(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", location, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", location, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", location)
	}
	if s.maxBytes > 0 && info.Size() > s.maxBytes {
		return nil, fmt.Errorf("%s is %d bytes: %w", location, info.Size(), ErrTooLarge)
	}

	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", location, err)
	}
	return data, nil
}

// Write replaces the file atomically so a failed write never leaves a
// truncated image behind
func (s *fileStorage) Write(ctx context.Context, location string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(location)
	tmp, err := os.CreateTemp(dir, ".worsen-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", location, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", location, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions on %s: %w", location, err)
	}
	if err := os.Rename(tmpName, location); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move output into place at %s: %w", location, err)
	}
	return nil
}

func (s *fileStorage) Name() string {
	return "file"
}
