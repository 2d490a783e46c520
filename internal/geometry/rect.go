// Package geometry provides rectangle types and the display-to-video
// coordinate mapping used when a selection is drawn over a scaled,
// letterboxed preview of a video frame.
package geometry

// Rect is an axis-aligned rectangle with a non-negative size.
// The same type is used in display space and in video pixel space;
// values are only moved between spaces through MapToVideo.
type Rect struct {
	// X is the left edge.
	X int `json:"x"`
	// Y is the top edge.
	Y int `json:"y"`
	// Width is the horizontal extent (>= 0 after NewRect).
	Width int `json:"width"`
	// Height is the vertical extent (>= 0 after NewRect).
	Height int `json:"height"`
}

// NewRect builds a normalized Rect from two arbitrary corner points.
// The points may be given in any order; the result always has
// non-negative width and height.
func NewRect(x1, y1, x2, y2 int) Rect {
	x := min(x1, x2)
	y := min(y1, y2)
	return Rect{
		X:      x,
		Y:      y,
		Width:  abs(x2 - x1),
		Height: abs(y2 - y1),
	}
}

// Empty reports whether the rectangle has zero area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Clamp constrains the rectangle to the bounds [0,w) x [0,h).
// The origin is clamped into the bounds first, then the size is
// shrunk so the rectangle does not extend past the right or bottom edge.
func (r Rect) Clamp(w, h int) Rect {
	x := clamp(r.X, 0, w-1)
	y := clamp(r.Y, 0, h-1)
	return Rect{
		X:      x,
		Y:      y,
		Width:  min(r.Width, w-x),
		Height: min(r.Height, h-y),
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
