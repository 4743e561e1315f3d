package scheduler

import (
	"time"

	"github.com/satindergrewal/moodscore/internal/track"
)

type phase int

const (
	phaseRamp phase = iota
	phaseIntroWait
	phaseDone
)

func (p phase) String() string {
	switch p {
	case phaseRamp:
		return "ramp"
	case phaseIntroWait:
		return "intro"
	case phaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Transition describes one scheduled crossfade.
type Transition struct {
	ID         string
	Descriptor track.Descriptor
	Fade       time.Duration
	Started    time.Time
	// FadeIn is the index of the channel receiving new content, or -1 when the
	// transition fades to silence.
	FadeIn int
}

// task is a cancellable timed operation. advance is its resumption point; it
// is called on every scheduler tick until the task reports done.
type task struct {
	Transition

	canceled bool
	phase    phase

	fadeOut, fadeIn Channel
	outFrom, inFrom float64
	target          float64
	silence         bool

	handoffAt time.Duration
}

func (t *task) cancel() { t.canceled = true }

func (t *task) progress(now time.Time) float64 {
	if t.Fade <= 0 {
		return 1
	}
	p := float64(now.Sub(t.Started)) / float64(t.Fade)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func lerp(from, to, p float64) float64 {
	return from + (to-from)*p
}
