package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"
)

// Static errors for video decoding.
var (
	// ErrSourceClosed is returned when a frame is read from a closed source.
	ErrSourceClosed = errors.New("video source is closed")
	// ErrFrameOutOfRange is returned for reads at or beyond the frame count.
	ErrFrameOutOfRange = errors.New("frame index out of range")
	// ErrNoVideoStream is returned when ffprobe finds no video stream.
	ErrNoVideoStream = errors.New("no video stream found")
)

// FFmpegSource implements Source using the ffmpeg and ffprobe CLIs.
// Each frame read runs one ffmpeg invocation with an input seek, so the
// source holds no decoder state between reads and is safe for concurrent
// use; Close only fences off further reads.
type FFmpegSource struct {
	path        string
	ffmpegPath  string
	ffprobePath string
	meta        Metadata
	closed      atomic.Bool
}

// SourceOption configures an FFmpegSource.
type SourceOption func(*FFmpegSource)

// WithFFmpegPath overrides the ffmpeg binary path. Defaults to "ffmpeg".
func WithFFmpegPath(path string) SourceOption {
	return func(s *FFmpegSource) {
		if path != "" {
			s.ffmpegPath = path
		}
	}
}

// WithFFprobePath overrides the ffprobe binary path. Defaults to "ffprobe".
func WithFFprobePath(path string) SourceOption {
	return func(s *FFmpegSource) {
		if path != "" {
			s.ffprobePath = path
		}
	}
}

// Open probes a video file and returns a Source for it.
// It fails with *OpenError when the file cannot be probed or has no
// usable video stream.
func Open(ctx context.Context, path string, opts ...SourceOption) (*FFmpegSource, error) {
	s := &FFmpegSource{
		path:        path,
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
	}
	for _, opt := range opts {
		opt(s)
	}

	meta, err := s.probe(ctx)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	s.meta = meta
	return s, nil
}

// Metadata returns the container metadata read at open time.
func (s *FFmpegSource) Metadata() Metadata {
	return s.meta
}

// ReadFrame decodes the frame at the given zero-based index by seeking to
// index/fps and decoding a single frame as PNG over a pipe.
func (s *FFmpegSource) ReadFrame(ctx context.Context, index int) (image.Image, error) {
	if s.closed.Load() {
		return nil, &DecodeError{Path: s.path, Index: index, Err: ErrSourceClosed}
	}
	if index < 0 || index >= s.meta.FrameCount {
		return nil, &DecodeError{Path: s.path, Index: index, Err: ErrFrameOutOfRange}
	}

	seek := float64(index) / s.meta.FPS

	// #nosec G204 - binary path is set by the application, not user input
	cmd := exec.CommandContext(ctx, s.ffmpegPath,
		"-ss", strconv.FormatFloat(seek, 'f', 6, 64),
		"-i", s.path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-c:v", "png",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, &DecodeError{Path: s.path, Index: index, Err: ctx.Err()}
		}
		return nil, &DecodeError{Path: s.path, Index: index, Err: fmt.Errorf("ffmpeg: %w, stderr: %s", err, stderr.String())}
	}
	if stdout.Len() == 0 {
		return nil, &DecodeError{Path: s.path, Index: index, Err: errors.New("ffmpeg produced no frame")}
	}

	img, err := png.Decode(&stdout)
	if err != nil {
		return nil, &DecodeError{Path: s.path, Index: index, Err: fmt.Errorf("decode png: %w", err)}
	}
	return img, nil
}

// Close fences off further reads. It is idempotent and never fails.
func (s *FFmpegSource) Close() error {
	s.closed.Store(true)
	return nil
}

// probe reads stream metadata with ffprobe. When the container does not
// report a frame count it is derived from the format duration.
func (s *FFmpegSource) probe(ctx context.Context) (Metadata, error) {
	// #nosec G204 - binary path is set by the application, not user input
	cmd := exec.CommandContext(ctx, s.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,nb_frames",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1",
		s.path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Metadata{}, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return Metadata{}, fmt.Errorf("ffprobe: %w, stderr: %s", err, stderr.String())
	}

	return parseProbeOutput(stdout.String())
}

// parseProbeOutput parses ffprobe key=value lines into Metadata.
func parseProbeOutput(out string) (Metadata, error) {
	fields := map[string]string{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if key, value, ok := strings.Cut(line, "="); ok {
			fields[key] = value
		}
	}

	width, _ := strconv.Atoi(fields["width"])
	height, _ := strconv.Atoi(fields["height"])
	if width <= 0 || height <= 0 {
		return Metadata{}, ErrNoVideoStream
	}

	fps, err := parseFrameRate(fields["r_frame_rate"])
	if err != nil {
		return Metadata{}, err
	}

	frameCount, _ := strconv.Atoi(fields["nb_frames"])
	if frameCount <= 0 {
		// Some containers (notably matroska) omit nb_frames.
		duration, _ := strconv.ParseFloat(fields["duration"], 64)
		frameCount = int(duration * fps)
	}

	return Metadata{
		FPS:        fps,
		FrameCount: frameCount,
		Width:      width,
		Height:     height,
	}, nil
}

// parseFrameRate parses ffprobe's rational frame rate, e.g. "30000/1001".
func parseFrameRate(s string) (float64, error) {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		rate, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("parse frame rate %q: %w", s, err)
		}
		return rate, nil
	}

	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("parse frame rate %q: %w", s, err)
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, fmt.Errorf("parse frame rate %q: %w", s, err)
	}
	if d == 0 || math.IsNaN(n/d) {
		return 0, fmt.Errorf("parse frame rate %q: zero denominator", s)
	}
	return n / d, nil
}
