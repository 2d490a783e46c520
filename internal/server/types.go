// Package server provides the HTTP server for the frame extraction API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/vidrio/framegrab/internal/geometry"
	"github.com/vidrio/framegrab/internal/job"
)

// RectDTO is the wire representation of a pixel rectangle.
type RectDTO struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width" validate:"min=0"`
	Height int `json:"height" validate:"min=0"`
}

// Rect converts the DTO to a domain rectangle.
func (r RectDTO) Rect() geometry.Rect {
	return geometry.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

func rectDTO(r geometry.Rect) RectDTO {
	return RectDTO{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

// CreateJobRequest is the HTTP request body for creating a new extraction job.
type CreateJobRequest struct {
	// VideoPath is the source video file on the server.
	VideoPath string `json:"video_path" validate:"required"`
	// OutputDir is where frames are written. Empty means a per-job
	// directory under the configured base.
	OutputDir string `json:"output_dir"`
	// IntervalSec is the sampling window length in seconds.
	// Non-positive means the whole video is a single window.
	IntervalSec float64 `json:"interval_sec"`
	// Density is the target frames per second of coverage within a window.
	Density int `json:"density" validate:"required,min=1,max=240"`
	// ROI is the optional crop region in video pixel space.
	ROI *RectDTO `json:"roi,omitempty"`
	// PushToS3 indicates whether to upload the written frames to S3.
	PushToS3 bool `json:"push_to_s3"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
	// OutputDir is the resolved output directory for the job's frames.
	OutputDir string `json:"output_dir"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// FramesWritten counts successfully written frames.
	FramesWritten int `json:"frames_written"`
	// OutputDir is where the frames were written.
	OutputDir string `json:"output_dir"`
	// FramesURL is the S3 URL prefix of uploaded frames (if push_to_s3=true and completed).
	FramesURL string `json:"frames_url,omitempty"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`
}

func jobResponse(j *job.Job) JobResponse {
	return JobResponse{
		ID:            j.ID,
		Status:        string(j.Status),
		Progress:      j.Progress,
		FramesWritten: j.FramesWritten,
		OutputDir:     j.OutputDir,
		FramesURL:     j.FramesURL,
		Error:         j.Error,
		CreatedAt:     j.CreatedAt,
	}
}

// MetadataResponse is the HTTP response for video metadata queries.
type MetadataResponse struct {
	// Path is the probed video file.
	Path string `json:"path"`
	// FPS is the native frame rate.
	FPS float64 `json:"fps"`
	// FrameCount is the total number of frames.
	FrameCount int `json:"frame_count"`
	// Width is the frame width in pixels.
	Width int `json:"width"`
	// Height is the frame height in pixels.
	Height int `json:"height"`
	// DurationSec is the video duration in seconds.
	DurationSec float64 `json:"duration_sec"`
}

// MapSelectionRequest is the HTTP request body for mapping a display-space
// selection into video pixel space.
type MapSelectionRequest struct {
	// Selection is the rectangle in display coordinates.
	Selection RectDTO `json:"selection"`
	// ContainerWidth is the display container width in pixels.
	ContainerWidth int `json:"container_width" validate:"required,min=1"`
	// ContainerHeight is the display container height in pixels.
	ContainerHeight int `json:"container_height" validate:"required,min=1"`
	// ContentWidth is the rendered video width within the container.
	ContentWidth int `json:"content_width" validate:"required,min=1"`
	// ContentHeight is the rendered video height within the container.
	ContentHeight int `json:"content_height" validate:"required,min=1"`
	// VideoWidth is the native video width in pixels.
	VideoWidth int `json:"video_width" validate:"required,min=1"`
	// VideoHeight is the native video height in pixels.
	VideoHeight int `json:"video_height" validate:"required,min=1"`
}

// MapSelectionResponse is the HTTP response carrying the mapped rectangle.
type MapSelectionResponse struct {
	// ROI is the selection mapped into video pixel space, valid only if OK.
	ROI *RectDTO `json:"roi,omitempty"`
	// OK is false when the selection falls outside the rendered content.
	OK bool `json:"ok"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
