package job

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vidrio/framegrab/internal/storage"
	"github.com/vidrio/framegrab/internal/video"
)

// fakeSource is a minimal in-memory video.Source.
type fakeSource struct {
	meta      video.Metadata
	readDelay time.Duration
}

func (f *fakeSource) Metadata() video.Metadata { return f.meta }

func (f *fakeSource) ReadFrame(_ context.Context, index int) (image.Image, error) {
	if f.readDelay > 0 {
		time.Sleep(f.readDelay)
	}
	if index < 0 || index >= f.meta.FrameCount {
		return nil, &video.DecodeError{Index: index, Err: video.ErrFrameOutOfRange}
	}
	return image.NewRGBA(image.Rect(0, 0, f.meta.Width, f.meta.Height)), nil
}

func (f *fakeSource) Close() error { return nil }

// fakeStore records uploads and serves URLs from a fixed CDN prefix.
type fakeStore struct {
	base     string
	uploaded []string
}

func (f *fakeStore) OutputDir(jobID, requested string) string {
	if requested != "" {
		return requested
	}
	return filepath.Join(f.base, jobID)
}

func (f *fakeStore) UploadFile(_ context.Context, key, _ string) (string, error) {
	f.uploaded = append(f.uploaded, key)
	return "https://cdn.example.com/" + key, nil
}

func newTestService(t *testing.T, src *fakeSource, store storage.Store) *Service {
	t.Helper()
	if store == nil {
		store = &fakeStore{base: t.TempDir()}
	}
	return NewService(
		NewMemoryRepository(),
		store,
		nil,
		WithOpenFunc(func(context.Context, string) (video.Source, error) {
			return src, nil
		}),
		WithStopTimeout(2*time.Second),
	)
}

func waitTerminal(t *testing.T, s *Service, jobID string) *Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		j, err := s.GetJob(context.Background(), jobID)
		if err != nil {
			t.Fatalf("GetJob() error = %v", err)
		}
		if j.IsTerminal() {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return nil
}

func TestService_CreateJob(t *testing.T) {
	src := &fakeSource{meta: video.Metadata{FPS: 30, FrameCount: 300, Width: 16, Height: 16}}

	t.Run("assigns per-job output dir when none requested", func(t *testing.T) {
		s := newTestService(t, src, nil)
		j, err := s.CreateJob(context.Background(), Params{VideoPath: "in.mp4", Density: 1})
		if err != nil {
			t.Fatalf("CreateJob() error = %v", err)
		}
		if !strings.HasSuffix(j.OutputDir, j.ID) {
			t.Errorf("OutputDir = %s, want per-job suffix %s", j.OutputDir, j.ID)
		}
	})

	t.Run("rejects invalid configurations", func(t *testing.T) {
		s := newTestService(t, src, nil)

		if _, err := s.CreateJob(context.Background(), Params{Density: 1}); !errors.Is(err, ErrVideoPathRequired) {
			t.Errorf("error = %v, want ErrVideoPathRequired", err)
		}
		if _, err := s.CreateJob(context.Background(), Params{VideoPath: "in.mp4"}); !errors.Is(err, ErrInvalidDensity) {
			t.Errorf("error = %v, want ErrInvalidDensity", err)
		}
	})
}

func TestService_RunCompletesJob(t *testing.T) {
	src := &fakeSource{meta: video.Metadata{FPS: 30, FrameCount: 300, Width: 16, Height: 16}}
	s := newTestService(t, src, nil)

	j, err := s.CreateJob(context.Background(), Params{
		VideoPath:   "in.mp4",
		OutputDir:   t.TempDir(),
		IntervalSec: 2,
		Density:     3,
	})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	if err := s.Run(context.Background(), j.ID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	final := waitTerminal(t, s, j.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("status = %s (%s), want COMPLETED", final.Status, final.Error)
	}
	if final.FramesWritten != 30 {
		t.Errorf("FramesWritten = %d, want 30", final.FramesWritten)
	}
	if final.Progress != 100 {
		t.Errorf("Progress = %d, want 100", final.Progress)
	}
}

func TestService_RunMissingJob(t *testing.T) {
	src := &fakeSource{meta: video.Metadata{FPS: 30, FrameCount: 30, Width: 8, Height: 8}}
	s := newTestService(t, src, nil)

	if err := s.Run(context.Background(), "nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Run() error = %v, want ErrJobNotFound", err)
	}
}

func TestService_RunRecordsOpenFailure(t *testing.T) {
	store := &fakeStore{base: t.TempDir()}
	s := NewService(
		NewMemoryRepository(),
		store,
		nil,
		WithOpenFunc(func(_ context.Context, path string) (video.Source, error) {
			return nil, &video.OpenError{Path: path, Err: errors.New("unreadable container")}
		}),
	)

	j, err := s.CreateJob(context.Background(), Params{VideoPath: "bad.mp4", Density: 1})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if err := s.Run(context.Background(), j.ID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	final := waitTerminal(t, s, j.ID)
	if final.Status != StatusFailed {
		t.Errorf("status = %s, want FAILED", final.Status)
	}
	if !strings.Contains(final.Error, "unreadable container") {
		t.Errorf("Error = %q, want the open failure cause", final.Error)
	}
}

func TestService_UploadAfterCompletion(t *testing.T) {
	src := &fakeSource{meta: video.Metadata{FPS: 30, FrameCount: 30, Width: 8, Height: 8}}
	store := &fakeStore{base: t.TempDir()}
	s := newTestService(t, src, store)

	j, err := s.CreateJob(context.Background(), Params{
		VideoPath: "in.mp4",
		Density:   1,
		PushToS3:  true,
	})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if err := s.Run(context.Background(), j.ID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	final := waitTerminal(t, s, j.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("status = %s (%s), want COMPLETED", final.Status, final.Error)
	}
	if final.FramesURL == "" {
		t.Error("FramesURL not set after upload")
	}
	if len(store.uploaded) != final.FramesWritten {
		t.Errorf("uploaded %d frames, want %d", len(store.uploaded), final.FramesWritten)
	}
	for _, key := range store.uploaded {
		if !strings.HasPrefix(key, j.ID+"/") {
			t.Errorf("upload key %q not namespaced by job ID", key)
		}
	}
}

func TestService_UploadFailureFailsJob(t *testing.T) {
	src := &fakeSource{meta: video.Metadata{FPS: 30, FrameCount: 30, Width: 8, Height: 8}}
	local, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	// LocalStore cannot upload, so a PushToS3 job must surface the failure.
	s := NewService(
		NewMemoryRepository(),
		local,
		nil,
		WithOpenFunc(func(context.Context, string) (video.Source, error) {
			return src, nil
		}),
	)

	j, err := s.CreateJob(context.Background(), Params{VideoPath: "in.mp4", Density: 1, PushToS3: true})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if err := s.Run(context.Background(), j.ID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	final := waitTerminal(t, s, j.ID)
	if final.Status != StatusFailed {
		t.Errorf("status = %s, want FAILED when publication cannot happen", final.Status)
	}
}

func TestService_CancelRunningJob(t *testing.T) {
	src := &fakeSource{
		meta:      video.Metadata{FPS: 30, FrameCount: 30000, Width: 8, Height: 8},
		readDelay: 2 * time.Millisecond,
	}
	s := newTestService(t, src, nil)

	j, err := s.CreateJob(context.Background(), Params{
		VideoPath:   "in.mp4",
		IntervalSec: 1,
		Density:     30,
	})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	go func() { _ = s.Run(context.Background(), j.ID) }()

	// Wait for the worker to register, then cancel.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatal("job never started running")
		}
		got, _ := s.GetJob(context.Background(), j.ID)
		if got.Status == StatusRunning {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if err := s.Cancel(context.Background(), j.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	final := waitTerminal(t, s, j.ID)
	if final.Status != StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", final.Status)
	}
}

func TestService_CancelPendingJob(t *testing.T) {
	src := &fakeSource{meta: video.Metadata{FPS: 30, FrameCount: 30, Width: 8, Height: 8}}
	s := newTestService(t, src, nil)

	j, err := s.CreateJob(context.Background(), Params{VideoPath: "in.mp4", Density: 1})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	if err := s.Cancel(context.Background(), j.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	got, _ := s.GetJob(context.Background(), j.ID)
	if got.Status != StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", got.Status)
	}
}

func TestService_CancelTerminalJob(t *testing.T) {
	src := &fakeSource{meta: video.Metadata{FPS: 30, FrameCount: 30, Width: 8, Height: 8}}
	s := newTestService(t, src, nil)

	j, err := s.CreateJob(context.Background(), Params{VideoPath: "in.mp4", Density: 1})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if err := s.Run(context.Background(), j.ID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	waitTerminal(t, s, j.ID)

	if err := s.Cancel(context.Background(), j.ID); !errors.Is(err, ErrJobNotRunning) {
		t.Errorf("Cancel() error = %v, want ErrJobNotRunning", err)
	}
}
