// Package video provides read access to video files: container metadata and
// random-access decoding of single frames. Decoding is delegated to the
// ffmpeg and ffprobe binaries.
package video

import (
	"context"
	"fmt"
	"image"
)

// Metadata describes an opened video. It is immutable once read from the
// container and becomes meaningless after the source is closed.
type Metadata struct {
	// FPS is the native frame rate.
	FPS float64
	// FrameCount is the total number of frames.
	FrameCount int
	// Width is the frame width in pixels.
	Width int
	// Height is the frame height in pixels.
	Height int
}

// Duration returns the video length in seconds, or 0 when the frame rate
// is unknown.
func (m Metadata) Duration() float64 {
	if m.FPS <= 0 {
		return 0
	}
	return float64(m.FrameCount) / m.FPS
}

// Source is the narrow decoding capability the extraction engine consumes.
// Implementations must support both sequential and random access; reads at
// or beyond FrameCount fail with *DecodeError.
type Source interface {
	// Metadata returns the container metadata read at open time.
	Metadata() Metadata

	// ReadFrame decodes the frame at the given zero-based index.
	ReadFrame(ctx context.Context, index int) (image.Image, error)

	// Close releases decoder resources. It is idempotent; reads after
	// Close fail with *DecodeError.
	Close() error
}

// OpenFunc opens a video file and returns a Source. The extraction worker
// takes an OpenFunc so tests can substitute an in-memory source.
type OpenFunc func(ctx context.Context, path string) (Source, error)

// OpenError indicates a video file could not be opened or probed.
// It is fatal to any job that depends on the file.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open video %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// DecodeError indicates a single frame could not be decoded. Callers are
// expected to recover locally; a DecodeError does not invalidate the source.
type DecodeError struct {
	Path  string
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame %d of %s: %v", e.Index, e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
