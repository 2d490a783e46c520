package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Compile-time check that LocalStore implements Store.
var _ Store = (*LocalStore)(nil)

// LocalStore implements Store using local disk only. Jobs that do not name
// an output directory get one under the configured base directory; uploads
// are not supported unless wrapped by S3Store.
type LocalStore struct {
	baseDir string
}

// NewLocalStore creates a new LocalStore. If baseDir is empty, a directory
// under os.TempDir() is used. The base directory is created if absent.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "framegrab")
	}

	if err := os.MkdirAll(baseDir, 0750); err != nil {
		return nil, fmt.Errorf("create output base directory: %w", err)
	}

	return &LocalStore{baseDir: baseDir}, nil
}

// BaseDir returns the base output directory.
func (s *LocalStore) BaseDir() string {
	return s.baseDir
}

// OutputDir returns the requested directory when set, or a per-job
// directory under the base otherwise. The directory itself is created
// lazily by the frame writer.
func (s *LocalStore) OutputDir(jobID, requested string) string {
	if requested != "" {
		return requested
	}
	return filepath.Join(s.baseDir, jobID)
}

// UploadFile is not supported by LocalStore and returns ErrS3NotConfigured.
func (s *LocalStore) UploadFile(_ context.Context, _, _ string) (string, error) {
	return "", ErrS3NotConfigured
}
