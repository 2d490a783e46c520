// Package job provides the Job aggregate for managing frame extraction
// jobs, the state machine for their lifecycle, and repository interfaces
// for persistence.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/vidrio/framegrab/internal/geometry"
	"github.com/vidrio/framegrab/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusPending indicates the job has been created but not started.
	StatusPending Status = "PENDING"
	// StatusRunning indicates frames are being extracted.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the job finished successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job encountered a fatal error.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was stopped before completion.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed. There is no
// way back out of a terminal state; re-running an extraction means creating
// a new job.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Params holds the configuration for a new extraction job.
type Params struct {
	// VideoPath is the source video file.
	VideoPath string
	// OutputDir is where extracted frames are written.
	OutputDir string
	// IntervalSec is the sampling window length in seconds.
	// Non-positive means the whole video is a single window.
	IntervalSec float64
	// Density is the target frames per second of coverage within a window.
	Density int
	// ROI is the optional crop region in video pixel space.
	ROI *geometry.Rect
	// PushToS3 requests upload of the written frames after completion.
	PushToS3 bool
}

// Static errors for job configuration validation.
var (
	// ErrVideoPathRequired is returned when no video path is given.
	ErrVideoPathRequired = errors.New("job: video path is required")
	// ErrOutputDirRequired is returned when no output directory is given.
	ErrOutputDirRequired = errors.New("job: output directory is required")
	// ErrInvalidDensity is returned when density is below 1.
	ErrInvalidDensity = errors.New("job: density must be at least 1")
)

// Validate rejects configurations that must never reach a worker.
func (p Params) Validate() error {
	if p.VideoPath == "" {
		return ErrVideoPathRequired
	}
	if p.OutputDir == "" {
		return ErrOutputDirRequired
	}
	if p.Density < 1 {
		return ErrInvalidDensity
	}
	return nil
}

// Job represents one frame extraction job. The configuration fields are
// copied in at creation time and stay immutable for the job's lifetime;
// only status, progress and result fields change, exclusively through the
// mutex-guarded methods.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// VideoPath is the source video file.
	VideoPath string
	// OutputDir is where extracted frames are written.
	OutputDir string
	// IntervalSec is the sampling window length in seconds.
	IntervalSec float64
	// Density is the target frames per second of coverage within a window.
	Density int
	// ROI is the optional crop region in video pixel space.
	ROI *geometry.Rect
	// PushToS3 indicates whether written frames are uploaded after completion.
	PushToS3 bool
	// Progress is the percentage of completion (0-100).
	Progress int
	// FramesWritten counts successfully written frames.
	FramesWritten int
	// FramesURL is the S3 URL prefix of uploaded frames, when PushToS3 was set.
	FramesURL string
	// Error contains any error message if the job failed.
	Error string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when extraction started.
	StartedAt time.Time
	// CompletedAt is when extraction finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial PENDING status.
func New(p Params) *Job {
	now := time.Now()
	return &Job{
		ID:          id.Generate(),
		Status:      StatusPending,
		VideoPath:   p.VideoPath,
		OutputDir:   p.OutputDir,
		IntervalSec: p.IntervalSec,
		Density:     p.Density,
		ROI:         p.ROI,
		PushToS3:    p.PushToS3,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewWithID creates a new Job with the specified ID.
// Useful for testing or when the ID is generated externally.
func NewWithID(jobID string, p Params) *Job {
	j := New(p)
	j.ID = jobID
	return j
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from PENDING to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED with the final frame count.
func (j *Job) Complete(framesWritten int) error {
	j.mu.Lock()
	j.FramesWritten = framesWritten
	j.Progress = 100
	j.mu.Unlock()
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// Cancel transitions the job to CANCELLED.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// UpdateProgress sets the progress percentage, clamped to [0,100].
func (j *Job) UpdateProgress(progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	j.Progress = progress
	j.UpdatedAt = time.Now()
}

// SetFramesURL records where uploaded frames can be fetched.
func (j *Job) SetFramesURL(url string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.FramesURL = url
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var roi *geometry.Rect
	if j.ROI != nil {
		r := *j.ROI
		roi = &r
	}

	return &Job{
		ID:            j.ID,
		Status:        j.Status,
		VideoPath:     j.VideoPath,
		OutputDir:     j.OutputDir,
		IntervalSec:   j.IntervalSec,
		Density:       j.Density,
		ROI:           roi,
		PushToS3:      j.PushToS3,
		Progress:      j.Progress,
		FramesWritten: j.FramesWritten,
		FramesURL:     j.FramesURL,
		Error:         j.Error,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
		StartedAt:     j.StartedAt,
		CompletedAt:   j.CompletedAt,
	}
}
