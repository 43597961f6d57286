package media

import (
	"context"
	"image"
)

// DefaultFrameInterval is the sampling spacing in seconds when none is configured.
const DefaultFrameInterval = 10.0

// FrameSampler extracts still frames from a video.
type FrameSampler interface {
	// Sample returns frames spaced roughly intervalSeconds apart from time 0
	// across the whole video. An undeterminable duration yields no frames and
	// no error.
	Sample(ctx context.Context, path string, intervalSeconds float64) ([]image.Image, error)
}

// SampleTimes returns the timestamps, in seconds, to sample from a video of the
// given duration: n = max(1, floor(duration/interval)+1) points at i*duration/n.
// A single point is always at 0. A non-positive duration yields none.
func SampleTimes(duration, interval float64) []float64 {
	if duration <= 0 {
		return []float64{}
	}
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	n := int(duration/interval) + 1
	if n < 1 {
		n = 1
	}
	return evenTimes(duration, n)
}

func evenTimes(duration float64, n int) []float64 {
	if n <= 1 {
		return []float64{0}
	}
	times := make([]float64, n)
	for i := range times {
		times[i] = float64(i) * duration / float64(n)
	}
	return times
}

// StaticSampler returns fixed frames for every path. Frames maps a path to its
// frames; Default is used for unknown paths.
type StaticSampler struct {
	Frames  map[string][]image.Image
	Default []image.Image
	Err     error
}

// Sample implements FrameSampler.
func (s *StaticSampler) Sample(ctx context.Context, path string, _ float64) ([]image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if frames, ok := s.Frames[path]; ok {
		return frames, nil
	}
	return s.Default, nil
}
