package scheduler

import (
	"time"

	"github.com/satindergrewal/moodscore/internal/track"
)

// Channel is a controllable audio output slot. The scheduler owns its two
// channels exclusively; nothing else may start or stop them.
type Channel interface {
	// Load cues seg on the channel. The cued content does not sound until Play
	// or PlayAt. A non-nil error means the segment is missing or unloadable.
	Load(seg track.SegmentID, loop bool) error
	// Play starts the cued content immediately.
	Play()
	// PlayAt starts the cued content at an absolute output-clock time. The
	// content already sounding keeps sounding until then.
	PlayAt(at time.Duration)
	// Stop silences the channel and clears its content.
	Stop()
	SetVolume(gain float64)
	Volume() float64
	IsPlaying() bool
	// Elapsed is the playback position inside the sounding segment.
	Elapsed() time.Duration
	// Length is the duration of the most recently loaded segment.
	Length() time.Duration
}

// Clock reports the absolute output time, i.e. how much audio the output has
// consumed. Intro to loop hand-offs are scheduled against it.
type Clock interface {
	Now() time.Duration
}
