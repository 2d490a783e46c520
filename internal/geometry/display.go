package geometry

// DisplayGeometry describes how a video frame is rendered inside a display
// container: the frame is scaled to ContentWidth x ContentHeight preserving
// aspect ratio and centered, leaving letterbox margins on one axis.
type DisplayGeometry struct {
	// ContainerWidth is the width of the display container.
	ContainerWidth int `json:"container_width"`
	// ContainerHeight is the height of the display container.
	ContainerHeight int `json:"container_height"`
	// ContentWidth is the width of the rendered frame inside the container.
	ContentWidth int `json:"content_width"`
	// ContentHeight is the height of the rendered frame inside the container.
	ContentHeight int `json:"content_height"`
}

// OffsetX returns the horizontal letterbox margin.
func (g DisplayGeometry) OffsetX() int {
	return (g.ContainerWidth - g.ContentWidth) / 2
}

// OffsetY returns the vertical letterbox margin.
func (g DisplayGeometry) OffsetY() int {
	return (g.ContainerHeight - g.ContentHeight) / 2
}

// MapToVideo converts a rectangle drawn in display coordinates into video
// pixel coordinates. It returns false when the selection does not describe
// a usable region: the start point falls in the letterbox margin, the
// content size is zero, or the mapped region is degenerate.
//
// Scaled coordinates are truncated toward zero, then clamped to the frame
// so the result always lies within [0,videoW) x [0,videoH).
func MapToVideo(r Rect, g DisplayGeometry, videoW, videoH int) (Rect, bool) {
	if g.ContentWidth <= 0 || g.ContentHeight <= 0 || videoW <= 0 || videoH <= 0 {
		return Rect{}, false
	}

	// Content-relative coordinates.
	adjX := r.X - g.OffsetX()
	adjY := r.Y - g.OffsetY()

	// A drag that starts in the margin is treated as no selection.
	if adjX < 0 || adjY < 0 || adjX >= g.ContentWidth || adjY >= g.ContentHeight {
		return Rect{}, false
	}

	scaleX := float64(videoW) / float64(g.ContentWidth)
	scaleY := float64(videoH) / float64(g.ContentHeight)

	mapped := Rect{
		X:      int(float64(adjX) * scaleX),
		Y:      int(float64(adjY) * scaleY),
		Width:  int(float64(r.Width) * scaleX),
		Height: int(float64(r.Height) * scaleY),
	}
	mapped = mapped.Clamp(videoW, videoH)

	if mapped.Empty() {
		return Rect{}, false
	}
	return mapped, true
}
