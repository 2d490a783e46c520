// Package frame provides per-frame pixel operations for extraction jobs:
// cropping a decoded frame to a region of interest and encoding frames to
// deterministically named JPEG files.
package frame

import (
	"image"
	"image/draw"

	"github.com/vidrio/framegrab/internal/geometry"
)

// subImager is implemented by the stdlib image types that can share pixels
// with a cropped view.
type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Crop extracts the region of interest from a decoded frame.
//
// The ROI is re-clamped against the frame's actual bounds at call time; a
// region computed against a previously loaded video of different dimensions
// never slices out of range. A ROI that clamps to zero area returns the
// full frame unchanged so a stale selection cannot produce empty output.
func Crop(img image.Image, roi geometry.Rect) image.Image {
	bounds := img.Bounds()
	clamped := roi.Clamp(bounds.Dx(), bounds.Dy())
	if clamped.Empty() {
		return img
	}

	region := image.Rect(
		bounds.Min.X+clamped.X,
		bounds.Min.Y+clamped.Y,
		bounds.Min.X+clamped.X+clamped.Width,
		bounds.Min.Y+clamped.Y+clamped.Height,
	)

	if si, ok := img.(subImager); ok {
		return si.SubImage(region)
	}

	out := image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))
	draw.Draw(out, out.Bounds(), img, region.Min, draw.Src)
	return out
}
