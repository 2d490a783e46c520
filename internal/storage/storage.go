// Package storage provides output locations for extracted frames and
// optional publication of finished frames to S3. It defines the Store
// interface (port) and implementations for local disk and S3.
package storage

import (
	"context"
	"errors"
)

// ErrS3NotConfigured is returned when an upload is attempted without S3
// configuration.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// Store resolves output directories for extraction jobs and publishes
// written frames.
type Store interface {
	// OutputDir returns the directory a job should write frames to.
	// A non-empty requested directory wins; otherwise a per-job directory
	// under the store's base is used.
	OutputDir(jobID, requested string) string

	// UploadFile publishes a local file under the given key and returns its
	// public URL. Returns ErrS3NotConfigured when no bucket is configured.
	UploadFile(ctx context.Context, key, path string) (url string, err error)
}
