// Package preview provides the interactive-context frame pump: a poller
// that reads sequential frames from its own video source on a fixed period
// and emits them JPEG-encoded. It is independent of, and never blocks on,
// running extraction jobs.
package preview

import (
	"bytes"
	"context"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"

	"github.com/vidrio/framegrab/internal/video"
)

// DefaultPeriod is the frame period used when none is configured.
const DefaultPeriod = 40 * time.Millisecond // ~25 fps

// Frame is one JPEG-encoded preview frame.
type Frame struct {
	// Index is the frame's position in the video.
	Index int
	// JPEG is the encoded image.
	JPEG []byte
}

// Poller reads frames sequentially on a timer and loops back to the first
// frame at end of stream. It owns the source it is given and closes it when
// the poller stops.
//
// Frames are delivered on a small buffered channel; when the consumer falls
// behind, frames are dropped rather than delaying the poll loop.
type Poller struct {
	src     video.Source
	period  time.Duration
	quality int
	logger  *slog.Logger

	frames   chan Frame
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewPoller creates a poller reading from src every period.
// A non-positive period falls back to DefaultPeriod.
func NewPoller(src video.Source, period time.Duration, quality int, logger *slog.Logger) *Poller {
	if period <= 0 {
		period = DefaultPeriod
	}
	if quality <= 0 {
		quality = 75
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		src:     src,
		period:  period,
		quality: quality,
		logger:  logger,
		frames:  make(chan Frame, 4),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Frames returns the poller's output channel. It is closed after Stop.
func (p *Poller) Frames() <-chan Frame {
	return p.frames
}

// Start launches the poll loop.
func (p *Poller) Start(ctx context.Context) {
	go p.run(ctx)
}

// Stop halts the loop, closes the frame channel and releases the source.
// It blocks until the loop has exited and is safe to call multiple times.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)
	defer close(p.frames)
	defer func() { _ = p.src.Close() }()

	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	frameCount := p.src.Metadata().FrameCount
	index := 0

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if frameCount > 0 && index >= frameCount {
			// End of stream: loop back to the first frame.
			index = 0
		}

		img, err := p.src.ReadFrame(ctx, index)
		if err != nil {
			p.logger.Warn("preview frame read failed",
				slog.Int("frame", index),
				slog.String("error", err.Error()),
			)
			index = 0
			continue
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
			p.logger.Warn("preview frame encode failed",
				slog.Int("frame", index),
				slog.String("error", err.Error()),
			)
			index++
			continue
		}

		select {
		case p.frames <- Frame{Index: index, JPEG: buf.Bytes()}:
		default:
			// Consumer is behind; drop the frame.
		}
		index++
	}
}
