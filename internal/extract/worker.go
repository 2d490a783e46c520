package extract

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vidrio/framegrab/internal/frame"
	"github.com/vidrio/framegrab/internal/geometry"
	"github.com/vidrio/framegrab/internal/sampling"
	"github.com/vidrio/framegrab/internal/video"
)

// Static errors for worker lifecycle misuse.
var (
	// ErrAlreadyStarted is returned when Start is called twice.
	// A worker runs exactly one job; a new job needs a new worker.
	ErrAlreadyStarted = errors.New("worker already started")
	// ErrStopTimeout is returned when a worker does not stop within the
	// bounded join timeout. The worker still releases its video source
	// when it eventually exits.
	ErrStopTimeout = errors.New("worker did not stop within timeout")
)

// State is the worker lifecycle state. There is no transition back to
// StateIdle.
type State int32

const (
	// StateIdle means Start has not been called.
	StateIdle State = iota
	// StateRunning means the job is executing.
	StateRunning
	// StateCompleted means the job finished and all frames were written.
	StateCompleted
	// StateFailed means the job terminated with an error or was cancelled.
	StateFailed
)

// Config holds the immutable parameters of one extraction job. Values are
// copied into the worker at construction time; nothing is shared with the
// caller afterwards.
type Config struct {
	// VideoPath is the video file to extract from.
	VideoPath string
	// OutputDir receives the written frames; created if absent.
	OutputDir string
	// IntervalSec is the sampling window length in seconds.
	// Non-positive means the whole video is one window.
	IntervalSec float64
	// Density is the target frames per second of coverage within a window.
	Density int
	// ROI is an optional crop region in video pixel space. It is re-clamped
	// against the opened video's actual dimensions before use.
	ROI *geometry.Rect
	// JPEGQuality is the encoder quality; non-positive uses the default.
	JPEGQuality int
	// Open opens the video source. Defaults to the ffmpeg-backed source.
	Open video.OpenFunc
	// Logger receives per-frame diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Worker executes one extraction job off the caller's goroutine.
//
// The worker owns its video source and its job configuration exclusively;
// the orchestrating layer observes it only through the Events channel.
// Events must be drained until the channel closes.
type Worker struct {
	cfg    Config
	events chan Event

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu    sync.Mutex
	state State
}

// NewWorker creates a worker for the given job configuration.
func NewWorker(cfg Config) *Worker {
	if cfg.Open == nil {
		cfg.Open = func(ctx context.Context, path string) (video.Source, error) {
			return video.Open(ctx, path)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Worker{
		cfg:    cfg,
		events: make(chan Event, 16),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Events returns the worker's event channel. It is closed after the
// terminal event has been emitted.
func (w *Worker) Events() <-chan Event {
	return w.events
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Start launches the job in a background goroutine. It fails with
// ErrAlreadyStarted on any call after the first.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateIdle {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	w.state = StateRunning
	w.mu.Unlock()

	go w.run(ctx)
	return nil
}

// Stop requests cooperative cancellation and joins the worker with a
// bounded timeout. The stop flag is checked between planned frames, so an
// in-flight decode finishes first. Stop is safe to call multiple times and
// after completion.
func (w *Worker) Stop(timeout time.Duration) error {
	w.stopOnce.Do(func() { close(w.stop) })

	select {
	case <-w.done:
		return nil
	case <-time.After(timeout):
		return ErrStopTimeout
	}
}

// Done returns a channel closed when the worker goroutine has exited and
// the video source has been released.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// run executes the job: open, plan, then decode → crop → write → report for
// every planned sample. It emits exactly one terminal event.
func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	defer close(w.events)

	src, err := w.cfg.Open(ctx, w.cfg.VideoPath)
	if err != nil {
		w.fail(ErrorEvent{Message: err.Error()})
		return
	}
	defer func() { _ = src.Close() }()

	meta := src.Metadata()
	duration := meta.Duration()

	// The ROI may predate this video; re-clamp against the real dimensions
	// and fall back to the full frame when nothing usable remains.
	var roi *geometry.Rect
	if w.cfg.ROI != nil {
		clamped := w.cfg.ROI.Clamp(meta.Width, meta.Height)
		if !clamped.Empty() {
			roi = &clamped
		}
	}

	plan := sampling.BuildPlan(meta.FrameCount, meta.FPS, w.cfg.IntervalSec, w.cfg.Density)
	writer := frame.NewWriter(w.cfg.OutputDir, w.cfg.JPEGQuality)

	w.cfg.Logger.Info("extraction started",
		slog.String("video", w.cfg.VideoPath),
		slog.String("output_dir", w.cfg.OutputDir),
		slog.Int("planned_frames", len(plan)),
		slog.Float64("fps", meta.FPS),
		slog.Float64("duration_sec", duration),
	)

	var paths []string
	counter := 0

	for i := 0; i < len(plan); {
		select {
		case <-w.stop:
			w.fail(ErrorEvent{Message: "extraction cancelled", Cancelled: true})
			return
		case <-ctx.Done():
			w.fail(ErrorEvent{Message: "extraction cancelled: " + ctx.Err().Error(), Cancelled: true})
			return
		default:
		}

		s := plan[i]

		img, err := src.ReadFrame(ctx, s.FrameIndex)
		if err != nil {
			var decodeErr *video.DecodeError
			if errors.As(err, &decodeErr) && ctx.Err() == nil {
				// A bad frame truncates the current window's extraction
				// but does not fail the job; skip to the next window.
				w.cfg.Logger.Warn("frame decode failed, skipping rest of window",
					slog.Int("frame", s.FrameIndex),
					slog.Float64("window_start_sec", s.StartSec),
					slog.String("error", err.Error()),
				)
				i = nextWindow(plan, i)
				continue
			}
			w.fail(ErrorEvent{Message: err.Error()})
			return
		}

		if roi != nil {
			img = frame.Crop(img, *roi)
		}

		path, err := writer.Write(img, counter, s.StartSec)
		if err != nil {
			w.fail(ErrorEvent{Message: err.Error()})
			return
		}
		counter++
		paths = append(paths, path)

		w.emit(ProgressEvent{Percent: percent(s.StartSec, duration)})
		i++
	}

	w.setState(StateCompleted)
	w.emit(CompletedEvent{FramesWritten: counter, FramePaths: paths})

	w.cfg.Logger.Info("extraction completed",
		slog.String("video", w.cfg.VideoPath),
		slog.Int("frames_written", counter),
	)
}

// fail records the terminal Failed state and emits the error event.
func (w *Worker) fail(e ErrorEvent) {
	w.setState(StateFailed)
	w.emit(e)
}

// emit delivers an event. The channel is buffered and the consumer is
// required to drain it until close, so a send never deadlocks a stopped
// worker for long.
func (w *Worker) emit(e Event) {
	w.events <- e
}

// nextWindow returns the index of the first sample belonging to a later
// window than plan[i].
func nextWindow(plan sampling.Plan, i int) int {
	start := plan[i].StartSec
	for i < len(plan) && plan[i].StartSec == start {
		i++
	}
	return i
}

// percent converts a window start time into a progress percentage,
// clamped to [0,100].
func percent(startSec, duration float64) int {
	if duration <= 0 {
		return 0
	}
	p := int(100 * startSec / duration)
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return p
}
