package frame

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
)

// DefaultJPEGQuality is used when a Writer is created with a non-positive
// quality setting.
const DefaultJPEGQuality = 90

// WriteError indicates a frame could not be persisted to disk.
// It is fatal to the job that produced the frame.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write frame %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Writer encodes frames as JPEG files under a single output directory.
// Filenames carry a sequential counter and the start time of the sampling
// window the frame belongs to: frame_000002_t4.50s.jpg.
type Writer struct {
	dir     string
	quality int
}

// NewWriter creates a Writer for the given output directory. The directory
// and its parents are created on the first write.
func NewWriter(dir string, quality int) *Writer {
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	return &Writer{dir: dir, quality: quality}
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Filename returns the deterministic name for a frame: a zero-padded
// 6-digit counter and the window start time fixed to two decimals.
func Filename(counter int, startSec float64) string {
	return fmt.Sprintf("frame_%06d_t%.2fs.jpg", counter, startSec)
}

// Write encodes img and stores it under the writer's directory.
// It returns the written path, or a *WriteError on any I/O failure.
func (w *Writer) Write(img image.Image, counter int, startSec float64) (string, error) {
	if err := os.MkdirAll(w.dir, 0750); err != nil {
		return "", &WriteError{Path: w.dir, Err: err}
	}

	path := filepath.Join(w.dir, Filename(counter, startSec))
	f, err := os.Create(path) // #nosec G304 - path is built from the job's output directory
	if err != nil {
		return "", &WriteError{Path: path, Err: err}
	}

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: w.quality}); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", &WriteError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return "", &WriteError{Path: path, Err: err}
	}

	return path, nil
}
