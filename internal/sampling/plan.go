// Package sampling turns an interval/density configuration into the ordered
// list of frame indices an extraction job will decode.
//
// The video timeline [0, duration) is partitioned into consecutive windows
// of the configured interval (the last window truncated at the duration).
// Within each window up to density*interval frames are picked, evenly
// spaced across the window's frame range.
package sampling

// Sample is one planned extraction: the frame to decode and the start time
// of the window it belongs to. Written frames are stamped with StartSec,
// not with the decoded frame's own timestamp.
type Sample struct {
	// StartSec is the window start time in seconds.
	StartSec float64
	// FrameIndex is the zero-based frame to decode.
	FrameIndex int
}

// Plan is an ordered sequence of samples. Window start times are
// non-decreasing and frame indices are non-decreasing within a window,
// which favors forward-seeking decoders.
type Plan []Sample

// Windows returns the number of distinct window start times in the plan.
func (p Plan) Windows() int {
	n := 0
	for i, s := range p {
		if i == 0 || s.StartSec != p[i-1].StartSec {
			n++
		}
	}
	return n
}

// BuildPlan computes the extraction plan for a video of frameCount frames
// at fps frames per second.
//
// intervalSec is the window length in seconds; a non-positive value means
// the whole video is one window. density is the target number of frames per
// second of coverage within a window. Every non-degenerate window yields at
// least one sample. All computations truncate so indices stay inside
// [0, frameCount).
//
// The plan is empty when the video has no playable duration (fps <= 0 or
// frameCount <= 0), including the degenerate zero-duration, non-positive
// interval case that would otherwise loop forever.
func BuildPlan(frameCount int, fps, intervalSec float64, density int) Plan {
	if fps <= 0 || frameCount <= 0 {
		return nil
	}
	duration := float64(frameCount) / fps

	interval := intervalSec
	if interval <= 0 {
		interval = duration
	}
	if interval <= 0 {
		return nil
	}

	var plan Plan
	for t := 0.0; t < duration; t += interval {
		startFrame := int(t * fps)
		endFrame := int((t + interval) * fps)
		if endFrame > frameCount {
			endFrame = frameCount
		}

		target := int(float64(density) * interval)
		if avail := endFrame - startFrame; target > avail {
			target = avail
		}

		switch {
		case target > 0:
			plan = append(plan, windowSamples(t, startFrame, endFrame, target)...)
		case startFrame < frameCount:
			plan = append(plan, Sample{StartSec: t, FrameIndex: startFrame})
		}
	}
	return plan
}

// windowSamples spreads target indices evenly across [start, end-1],
// inclusive of both endpoints, truncating intermediate positions.
func windowSamples(t float64, start, end, target int) []Sample {
	samples := make([]Sample, 0, target)
	if target == 1 {
		return append(samples, Sample{StartSec: t, FrameIndex: start})
	}
	step := float64(end-1-start) / float64(target-1)
	for i := 0; i < target; i++ {
		idx := int(float64(start) + float64(i)*step)
		samples = append(samples, Sample{StartSec: t, FrameIndex: idx})
	}
	return samples
}
