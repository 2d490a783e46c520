package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/vidrio/framegrab/internal/extract"
	"github.com/vidrio/framegrab/internal/job/id"
	"github.com/vidrio/framegrab/internal/storage"
	"github.com/vidrio/framegrab/internal/video"
)

// ErrJobNotRunning is returned when cancellation is requested for a job
// that has no active worker.
var ErrJobNotRunning = errors.New("job is not running")

// DefaultStopTimeout bounds the join when a worker is cancelled.
const DefaultStopTimeout = 10 * time.Second

// Service orchestrates extraction jobs: it creates them, runs one worker
// per job, mirrors worker events into the repository and handles
// cancellation. The service never reaches into a running worker's state;
// it only consumes the worker's event channel.
type Service struct {
	repo        Repository
	store       storage.Store
	open        video.OpenFunc
	logger      *slog.Logger
	jpegQuality int
	stopTimeout time.Duration

	mu      sync.Mutex
	workers map[string]*extract.Worker
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithOpenFunc overrides how video sources are opened. Used by tests to
// substitute in-memory sources.
func WithOpenFunc(open video.OpenFunc) ServiceOption {
	return func(s *Service) {
		if open != nil {
			s.open = open
		}
	}
}

// WithJPEGQuality sets the encoder quality for written frames.
func WithJPEGQuality(q int) ServiceOption {
	return func(s *Service) {
		s.jpegQuality = q
	}
}

// WithStopTimeout bounds the worker join on cancellation and shutdown.
func WithStopTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.stopTimeout = d
		}
	}
}

// NewService creates a new extraction Service.
func NewService(repo Repository, store storage.Store, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:        repo,
		store:       store,
		logger:      logger,
		stopTimeout: DefaultStopTimeout,
		workers:     make(map[string]*extract.Worker),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob validates the parameters and persists a new PENDING job.
// When no output directory is requested, a per-job directory under the
// store's base is assigned.
func (s *Service) CreateJob(ctx context.Context, p Params) (*Job, error) {
	jobID := id.Generate()
	p.OutputDir = s.store.OutputDir(jobID, p.OutputDir)

	if err := p.Validate(); err != nil {
		return nil, err
	}

	j := NewWithID(jobID, p)

	s.logger.Info("creating extraction job",
		slog.String("job_id", j.ID),
		slog.String("video", j.VideoPath),
		slog.String("output_dir", j.OutputDir),
		slog.Float64("interval_sec", j.IntervalSec),
		slog.Int("density", j.Density),
		slog.Bool("roi", j.ROI != nil),
	)

	if err := s.repo.Save(ctx, j); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}
	return j, nil
}

// GetJob retrieves a job by ID.
func (s *Service) GetJob(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.FindByID(ctx, jobID)
}

// ListJobs returns all known jobs.
func (s *Service) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// Run executes a previously created job to completion. It blocks until the
// job reaches a terminal state; callers run it on a background goroutine.
func (s *Service) Run(ctx context.Context, jobID string) error {
	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if err := j.Start(); err != nil {
		return fmt.Errorf("start job %s: %w", jobID, err)
	}
	if err := s.repo.Save(ctx, j); err != nil {
		return fmt.Errorf("save job: %w", err)
	}

	w := extract.NewWorker(extract.Config{
		VideoPath:   j.VideoPath,
		OutputDir:   j.OutputDir,
		IntervalSec: j.IntervalSec,
		Density:     j.Density,
		ROI:         j.ROI,
		JPEGQuality: s.jpegQuality,
		Open:        s.open,
		Logger:      s.logger,
	})

	s.mu.Lock()
	s.workers[jobID] = w
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.workers, jobID)
		s.mu.Unlock()
	}()

	if err := w.Start(ctx); err != nil {
		_ = j.Fail(err.Error())
		_ = s.repo.Save(ctx, j)
		return err
	}

	for e := range w.Events() {
		switch ev := e.(type) {
		case extract.ProgressEvent:
			j.UpdateProgress(ev.Percent)

		case extract.CompletedEvent:
			s.finish(ctx, j, ev)

		case extract.ErrorEvent:
			if ev.Cancelled {
				s.logger.Info("job cancelled",
					slog.String("job_id", jobID),
				)
				_ = j.Cancel()
			} else {
				s.logger.Error("job failed",
					slog.String("job_id", jobID),
					slog.String("error", ev.Message),
				)
				_ = j.Fail(ev.Message)
			}
		}

		if err := s.repo.Save(ctx, j); err != nil {
			s.logger.Error("failed to save job state",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// finish handles a successful worker run: optional S3 publication, then the
// terminal COMPLETED (or FAILED, when requested publication does not
// happen) transition.
func (s *Service) finish(ctx context.Context, j *Job, ev extract.CompletedEvent) {
	if j.PushToS3 {
		prefix, err := s.uploadFrames(ctx, j.ID, ev.FramePaths)
		if err != nil {
			s.logger.Error("frame upload failed",
				slog.String("job_id", j.ID),
				slog.String("error", err.Error()),
			)
			_ = j.Fail(fmt.Sprintf("frames extracted but upload failed: %v", err))
			return
		}
		j.SetFramesURL(prefix)
	}

	_ = j.Complete(ev.FramesWritten)
	s.logger.Info("job completed",
		slog.String("job_id", j.ID),
		slog.Int("frames_written", ev.FramesWritten),
	)
}

// uploadFrames publishes every written frame under <jobID>/<filename> and
// returns the common URL prefix.
func (s *Service) uploadFrames(ctx context.Context, jobID string, paths []string) (string, error) {
	var prefix string
	for _, p := range paths {
		key := jobID + "/" + filepath.Base(p)
		url, err := s.store.UploadFile(ctx, key, p)
		if err != nil {
			return "", err
		}
		if prefix == "" {
			prefix = url[:len(url)-len(filepath.Base(p))]
		}
	}
	return prefix, nil
}

// Cancel requests cooperative cancellation of a running job and joins its
// worker with the configured timeout. A PENDING job is cancelled directly.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	s.mu.Lock()
	w, ok := s.workers[jobID]
	s.mu.Unlock()

	if ok {
		return w.Stop(s.stopTimeout)
	}

	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if j.GetStatus() != StatusPending {
		return ErrJobNotRunning
	}
	if err := j.Cancel(); err != nil {
		return err
	}
	return s.repo.Save(ctx, j)
}

// Shutdown stops all running workers, each with the configured bounded
// join. It returns the first stop error encountered.
func (s *Service) Shutdown() error {
	s.mu.Lock()
	workers := make([]*extract.Worker, 0, len(s.workers))
	for _, w := range s.workers {
		workers = append(workers, w)
	}
	s.mu.Unlock()

	var firstErr error
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, w := range workers {
		wg.Add(1)
		go func(w *extract.Worker) {
			defer wg.Done()
			if err := w.Stop(s.stopTimeout); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return firstErr
}
