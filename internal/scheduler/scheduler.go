// Package scheduler runs crossfades between a fixed pair of playback channels.
//
// One transition runs at a time. Starting a new transition cancels the one in
// flight before any channel is touched, and the new ramps start from whatever
// volumes the channels currently hold, so rapid re-entrant requests produce a
// continuous gain curve instead of jumps.
//
// The scheduler is not safe for concurrent use. A single owner loop calls
// Transition and Update; Update is driven by wall-clock time that is never
// scaled by game time dilation.
package scheduler

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/satindergrewal/moodscore/internal/logging"
	"github.com/satindergrewal/moodscore/internal/track"
)

// DefaultHandoffLead is how long before the end of an intro the loop segment is
// cued on the output clock.
const DefaultHandoffLead = 100 * time.Millisecond

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHandoffLead sets how early the loop is cued before the intro ends. It
// must exceed the update interval plus the output's render-ahead.
func WithHandoffLead(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.lead = d
		}
	}
}

// WithOnComplete registers a callback for transitions that run to completion.
// Canceled transitions never report.
func WithOnComplete(fn func(Transition)) Option {
	return func(s *Scheduler) {
		s.onComplete = fn
	}
}

// Scheduler owns the A/B channel pair.
type Scheduler struct {
	channels [2]Channel
	active   int
	clock    Clock

	logger     *log.Logger
	lead       time.Duration
	onComplete func(Transition)

	current *task
}

// New creates a scheduler over channels a and b. Channel a starts as active.
func New(a, b Channel, clock Clock, opts ...Option) *Scheduler {
	s := &Scheduler{
		channels: [2]Channel{a, b},
		clock:    clock,
		lead:     DefaultHandoffLead,
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = logging.Component(nil, "scheduler")
	}
	return s
}

// Transition starts crossfading to d over fade. Any transition in flight is
// canceled first.
func (s *Scheduler) Transition(d track.Descriptor, fade time.Duration, now time.Time) Transition {
	if s.current != nil {
		s.logger.Debug("canceling transition", "id", s.current.ID, "phase", s.current.phase)
		s.current.cancel()
		s.current = nil
	}

	prev := s.active
	s.active = 1 - s.active

	t := &task{
		Transition: Transition{
			ID:         uuid.NewString(),
			Descriptor: d,
			Fade:       fade,
			Started:    now,
			FadeIn:     s.active,
		},
		fadeOut: s.channels[prev],
		fadeIn:  s.channels[s.active],
		target:  track.ClampVolume(d.Volume),
	}
	t.outFrom = t.fadeOut.Volume()

	if d.Silent() || !s.start(t) {
		t.silence = true
		t.FadeIn = -1
		t.inFrom = t.fadeIn.Volume()
	}

	s.logger.Info("transition started",
		"id", t.ID, "loop", d.Loop, "intro", d.Intro, "fade", fade, "channel", s.active, "silence", t.silence)

	s.current = t
	s.Update(now)
	return t.Transition
}

// start cues the first segment of t on the fade-in channel and starts it at
// zero volume. It returns false when the segment cannot be loaded.
func (s *Scheduler) start(t *task) bool {
	d := t.Descriptor
	seg, loop := d.Loop, d.Looping
	if d.HasIntro() {
		seg, loop = d.Intro, false
	}
	if err := t.fadeIn.Load(seg, loop); err != nil {
		s.logger.Warn("segment unavailable, fading to silence", "id", t.ID, "segment", seg, "err", err)
		return false
	}
	t.fadeIn.SetVolume(0)
	t.fadeIn.Play()
	return true
}

// Update advances the running transition to now.
func (s *Scheduler) Update(now time.Time) {
	t := s.current
	if t == nil {
		return
	}
	s.advance(t, now)
	if t.phase != phaseDone {
		return
	}
	s.current = nil
	s.logger.Info("transition complete", "id", t.ID)
	if s.onComplete != nil {
		s.onComplete(t.Transition)
	}
}

func (s *Scheduler) advance(t *task, now time.Time) {
	if t.canceled {
		return
	}

	switch t.phase {
	case phaseRamp:
		p := t.progress(now)
		t.fadeOut.SetVolume(lerp(t.outFrom, 0, p))
		if t.silence {
			t.fadeIn.SetVolume(lerp(t.inFrom, 0, p))
		} else {
			t.fadeIn.SetVolume(lerp(0, t.target, p))
		}
		if p < 1 {
			return
		}

		t.fadeOut.Stop()
		if t.silence {
			t.fadeIn.Stop()
			t.phase = phaseDone
			return
		}
		if !t.Descriptor.HasIntro() {
			t.phase = phaseDone
			return
		}

		remaining := t.fadeIn.Length() - t.fadeIn.Elapsed()
		if remaining < 0 {
			remaining = 0
		}
		t.handoffAt = s.clock.Now() + remaining
		t.phase = phaseIntroWait
		s.logger.Debug("waiting for intro", "id", t.ID, "remaining", remaining, "handoff", t.handoffAt)
		fallthrough

	case phaseIntroWait:
		if s.clock.Now() < t.handoffAt-s.lead {
			return
		}
		d := t.Descriptor
		if err := t.fadeIn.Load(d.Loop, d.Looping); err != nil {
			s.logger.Warn("loop segment unavailable, intro will end in silence", "id", t.ID, "segment", d.Loop, "err", err)
		} else {
			t.fadeIn.SetVolume(t.target)
			t.fadeIn.PlayAt(t.handoffAt)
		}
		t.phase = phaseDone
	}
}

// Busy reports whether a transition is in flight.
func (s *Scheduler) Busy() bool { return s.current != nil }

// Active returns the index of the channel holding the current context.
func (s *Scheduler) Active() int { return s.active }

// Channels returns the channel pair in index order.
func (s *Scheduler) Channels() (Channel, Channel) { return s.channels[0], s.channels[1] }

// Shutdown cancels any transition and silences both channels immediately.
func (s *Scheduler) Shutdown() {
	if s.current != nil {
		s.current.cancel()
		s.current = nil
	}
	for _, ch := range s.channels {
		ch.SetVolume(0)
		ch.Stop()
	}
}
