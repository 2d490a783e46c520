// Package extract runs frame extraction jobs: it sequences decode, crop,
// write and progress reporting in a background goroutine, with cooperative
// cancellation.
package extract

// Event is a one-directional notification from a running worker to its
// consumer. A worker emits zero or more ProgressEvents in non-decreasing
// percent order, then exactly one terminal event (CompletedEvent or
// ErrorEvent), then closes its event channel.
type Event interface {
	isEvent()
}

// ProgressEvent reports job progress as a percentage of the video timeline
// covered so far, clamped to [0,100].
type ProgressEvent struct {
	Percent int
}

// CompletedEvent is the terminal event of a successful job.
type CompletedEvent struct {
	// FramesWritten is the number of frames persisted to disk.
	FramesWritten int
	// FramePaths lists the written files in write order.
	FramePaths []string
}

// ErrorEvent is the terminal event of a failed or cancelled job.
type ErrorEvent struct {
	Message string
	// Cancelled distinguishes cooperative cancellation from failure.
	Cancelled bool
}

func (ProgressEvent) isEvent()  {}
func (CompletedEvent) isEvent() {}
func (ErrorEvent) isEvent()     {}
