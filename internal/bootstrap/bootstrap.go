// Package bootstrap provides dependency initialization for the frame extraction API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vidrio/framegrab/internal/config"
	"github.com/vidrio/framegrab/internal/job"
	"github.com/vidrio/framegrab/internal/storage"
	"github.com/vidrio/framegrab/internal/video"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	JobService *job.Service
	Open       video.OpenFunc
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Video sources use the configured ffmpeg and ffprobe binaries.
	open := func(ctx context.Context, path string) (video.Source, error) {
		return video.Open(ctx, path,
			video.WithFFmpegPath(cfg.FFmpegPath),
			video.WithFFprobePath(cfg.FFprobePath),
		)
	}

	// Initialize job repository
	repo := job.NewMemoryRepository()

	svc := job.NewService(
		repo,
		store,
		logger,
		job.WithOpenFunc(open),
		job.WithJPEGQuality(cfg.JPEGQuality),
	)

	return &Dependencies{
		JobService: svc,
		Open:       open,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Store(cfg.OutputBaseDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStore(cfg.OutputBaseDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("base_dir", localStore.BaseDir()),
	)
	return localStore, nil
}
