// Package audio provides the PCM format shared by the mixer and its sinks, and
// turns segment files into clips in that format.
package audio

import (
	"errors"
	"time"
)

const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

var (
	ErrSegmentNotFound   = errors.New("segment not found")
	ErrUnsupportedFormat = errors.New("unsupported segment format")
	ErrEmptySegment      = errors.New("segment has no audio")
)

// Clip is a decoded segment: interleaved stereo int16 at SampleRate.
type Clip struct {
	Name    string
	Samples []int16
}

// Frames returns the number of sample frames in the clip.
func (c *Clip) Frames() int {
	if c == nil {
		return 0
	}
	return len(c.Samples) / Channels
}

// Duration returns the playback length of the clip.
func (c *Clip) Duration() time.Duration {
	return FramesToDuration(int64(c.Frames()))
}

// FramesToDuration converts a frame count at SampleRate to a duration.
func FramesToDuration(n int64) time.Duration {
	return time.Duration(n) * time.Second / SampleRate
}

// DurationToFrames converts d to a frame count at SampleRate, rounding to the
// nearest frame. Sums and differences of FramesToDuration values map back to
// the exact frame count.
func DurationToFrames(d time.Duration) int64 {
	half := int64(time.Second) / 2
	if d < 0 {
		return -((-int64(d)*SampleRate + half) / int64(time.Second))
	}
	return (int64(d)*SampleRate + half) / int64(time.Second)
}
