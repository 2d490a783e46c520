package preview

import (
	"context"
	"image"
	"image/color"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vidrio/framegrab/internal/video"
)

type fakeSource struct {
	meta   video.Metadata
	reads  atomic.Int64
	closed atomic.Bool
	last   atomic.Int64
}

func (s *fakeSource) Metadata() video.Metadata { return s.meta }

func (s *fakeSource) ReadFrame(_ context.Context, index int) (image.Image, error) {
	if index < 0 || index >= s.meta.FrameCount {
		return nil, video.ErrFrameOutOfRange
	}
	s.reads.Add(1)
	s.last.Store(int64(index))
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.RGBA{R: uint8(index), A: 255})
	return img, nil
}

func (s *fakeSource) Close() error {
	s.closed.Store(true)
	return nil
}

func newFakeSource(frames int) *fakeSource {
	return &fakeSource{meta: video.Metadata{FPS: 25, FrameCount: frames, Width: 4, Height: 4}}
}

func TestPoller_DeliversSequentialFrames(t *testing.T) {
	src := newFakeSource(100)
	p := NewPoller(src, time.Millisecond, 75, slog.New(slog.DiscardHandler))
	p.Start(context.Background())
	defer p.Stop()

	var got []Frame
	deadline := time.After(2 * time.Second)
	for len(got) < 3 {
		select {
		case f, ok := <-p.Frames():
			if !ok {
				t.Fatal("frame channel closed early")
			}
			got = append(got, f)
		case <-deadline:
			t.Fatal("timed out waiting for frames")
		}
	}

	for i := 1; i < len(got); i++ {
		if got[i].Index <= got[i-1].Index {
			t.Errorf("frame indices not increasing: %d then %d", got[i-1].Index, got[i].Index)
		}
	}
	for _, f := range got {
		if len(f.JPEG) == 0 {
			t.Errorf("frame %d has empty JPEG payload", f.Index)
		}
	}
}

func TestPoller_LoopsBackAtEndOfStream(t *testing.T) {
	src := newFakeSource(3)
	p := NewPoller(src, time.Millisecond, 75, slog.New(slog.DiscardHandler))
	p.Start(context.Background())
	defer p.Stop()

	seen := make(map[int]bool)
	deadline := time.After(2 * time.Second)
	for len(seen) < 3 || src.reads.Load() < 7 {
		select {
		case f, ok := <-p.Frames():
			if !ok {
				t.Fatal("frame channel closed early")
			}
			if f.Index < 0 || f.Index > 2 {
				t.Fatalf("frame index %d out of range [0,2]", f.Index)
			}
			seen[f.Index] = true
		case <-deadline:
			t.Fatal("timed out waiting for wraparound")
		}
	}
}

func TestPoller_StopClosesSourceAndChannel(t *testing.T) {
	src := newFakeSource(100)
	p := NewPoller(src, time.Millisecond, 75, slog.New(slog.DiscardHandler))
	p.Start(context.Background())

	select {
	case <-p.Frames():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first frame")
	}

	p.Stop()
	p.Stop() // idempotent

	if !src.closed.Load() {
		t.Error("source not closed after Stop")
	}
	for range p.Frames() {
	}
}

func TestPoller_ContextCancelStopsLoop(t *testing.T) {
	src := newFakeSource(100)
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPoller(src, time.Millisecond, 75, slog.New(slog.DiscardHandler))
	p.Start(ctx)
	cancel()

	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		t.Fatal("poll loop did not exit after context cancel")
	}
	if !src.closed.Load() {
		t.Error("source not closed after context cancel")
	}
}
