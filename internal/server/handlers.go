package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vidrio/framegrab/internal/geometry"
	"github.com/vidrio/framegrab/internal/job"
	"github.com/vidrio/framegrab/internal/preview"
	"github.com/vidrio/framegrab/internal/video"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.Service
	open               video.OpenFunc
	validator          *validator.Validate
	logger             *slog.Logger
	previewPeriod      time.Duration
	previewQuality     int
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background extraction.
// When disabled, CreateJob only creates the job and returns immediately
// without starting background extraction.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithPreviewSettings sets the frame period and JPEG quality of the
// preview stream.
func WithPreviewSettings(period time.Duration, quality int) HandlerOption {
	return func(h *Handlers) {
		h.previewPeriod = period
		h.previewQuality = quality
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.Service, open video.OpenFunc, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if open == nil {
		open = func(ctx context.Context, path string) (video.Source, error) {
			return video.Open(ctx, path)
		}
	}
	h := &Handlers{
		service:            service,
		open:               open,
		validator:          validator.New(),
		logger:             logger,
		previewPeriod:      preview.DefaultPeriod,
		previewQuality:     75,
		enableAsyncProcess: true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateJob handles POST /jobs requests.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	params := job.Params{
		VideoPath:   req.VideoPath,
		OutputDir:   req.OutputDir,
		IntervalSec: req.IntervalSec,
		Density:     req.Density,
		PushToS3:    req.PushToS3,
	}
	if req.ROI != nil {
		roi := req.ROI.Rect()
		params.ROI = &roi
	}

	// Create job first (synchronously)
	createdJob, err := h.service.CreateJob(r.Context(), params)
	if err != nil {
		if errors.Is(err, job.ErrVideoPathRequired) || errors.Is(err, job.ErrInvalidDensity) {
			writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
			return
		}
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	// Start extraction in background with a detached context
	// Use context.WithoutCancel to prevent cancellation when the request ends
	if h.enableAsyncProcess {
		go func(ctx context.Context, jobID string) {
			if runErr := h.service.Run(ctx, jobID); runErr != nil {
				h.logger.Error("background extraction failed",
					slog.String("job_id", jobID),
					slog.String("error", runErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), createdJob.ID)
	}

	h.logger.Info("job created",
		slog.String("job_id", createdJob.ID),
		slog.String("video_path", req.VideoPath),
		slog.Int("density", req.Density),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:        createdJob.ID,
		Status:    string(createdJob.Status),
		OutputDir: createdJob.OutputDir,
	})
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, jobResponse(foundJob))
}

// ListJobs handles GET /jobs requests.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_LIST_FAILED")
		return
	}

	resp := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		resp = append(resp, jobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CancelJob handles POST /jobs/{id}/cancel requests.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	if err := h.service.Cancel(r.Context(), jobID); err != nil {
		switch {
		case errors.Is(err, job.ErrJobNotFound):
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
		case errors.Is(err, job.ErrJobNotRunning):
			writeError(w, http.StatusConflict, "job is not running", "JOB_NOT_RUNNING")
		default:
			h.logger.Error("failed to cancel job",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to cancel job", "JOB_CANCEL_FAILED")
		}
		return
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, jobResponse(foundJob))
}

// VideoMetadata handles GET /videos/metadata requests. It probes the video
// named by the path query parameter.
func (h *Handlers) VideoMetadata(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path query parameter is required", "MISSING_PATH")
		return
	}

	src, err := h.open(r.Context(), path)
	if err != nil {
		h.logger.Warn("failed to open video",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusUnprocessableEntity, "failed to open video", "VIDEO_OPEN_FAILED")
		return
	}
	defer func() { _ = src.Close() }()

	meta := src.Metadata()
	writeJSON(w, http.StatusOK, MetadataResponse{
		Path:        path,
		FPS:         meta.FPS,
		FrameCount:  meta.FrameCount,
		Width:       meta.Width,
		Height:      meta.Height,
		DurationSec: meta.Duration(),
	})
}

// MapSelection handles POST /selection/map requests. It maps a display-space
// selection rectangle into video pixel space, accounting for letterboxing.
func (h *Handlers) MapSelection(w http.ResponseWriter, r *http.Request) {
	var req MapSelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	display := geometry.DisplayGeometry{
		ContainerWidth:  req.ContainerWidth,
		ContainerHeight: req.ContainerHeight,
		ContentWidth:    req.ContentWidth,
		ContentHeight:   req.ContentHeight,
	}

	roi, ok := geometry.MapToVideo(req.Selection.Rect(), display, req.VideoWidth, req.VideoHeight)
	resp := MapSelectionResponse{OK: ok}
	if ok {
		dto := rectDTO(roi)
		resp.ROI = &dto
	}
	writeJSON(w, http.StatusOK, resp)
}

// Preview handles GET /videos/preview requests. It streams JPEG frames as
// multipart/x-mixed-replace until the client disconnects.
func (h *Handlers) Preview(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path query parameter is required", "MISSING_PATH")
		return
	}

	src, err := h.open(r.Context(), path)
	if err != nil {
		h.logger.Warn("failed to open video for preview",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusUnprocessableEntity, "failed to open video", "VIDEO_OPEN_FAILED")
		return
	}

	// The poller owns src and closes it when stopped.
	p := preview.NewPoller(src, h.previewPeriod, h.previewQuality, h.logger)
	p.Start(r.Context())
	defer p.Stop()

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.WriteHeader(http.StatusOK)

	for frame := range p.Frames() {
		if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame.JPEG)); err != nil {
			return
		}
		if _, err := w.Write(frame.JPEG); err != nil {
			return
		}
		if _, err := fmt.Fprint(w, "\r\n"); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
