// Package track defines the music contexts and the per-context track descriptors.
package track

import "time"

// Context names a mood (e.g. "Exploration", "Combat"). It is only a lookup key.
type Context string

// Silence is the distinguished context that plays nothing.
const Silence Context = ""

// String returns the context name, or "silence" for [Silence].
func (c Context) String() string {
	if c == Silence {
		return "silence"
	}
	return string(c)
}

// ParseContext is the inverse of String.
func ParseContext(name string) Context {
	if name == "silence" {
		return Silence
	}
	return Context(name)
}

// SegmentID references a piece of audio content. How it is resolved is up to
// the playback channel (asset bank, file path, ...). Empty means absent.
type SegmentID string

// Descriptor describes what to play for a context. Treat it as immutable.
type Descriptor struct {
	Loop    SegmentID     // main segment; empty means the context is silent
	Intro   SegmentID     // optional lead-in played once before Loop
	Volume  float64       // target gain, 0.0-1.0
	Looping bool          // false only for one-shot stingers
	Fade    time.Duration // 0 means use the table default
}

// Silent reports whether the descriptor produces silence.
func (d Descriptor) Silent() bool { return d.Loop == "" }

// HasIntro reports whether an intro segment precedes the loop.
func (d Descriptor) HasIntro() bool { return d.Intro != "" && !d.Silent() }

// ClampVolume limits gain to [0, 1].
func ClampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
