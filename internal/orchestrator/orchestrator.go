// Package orchestrator is the public face of the music system. It tracks the
// current and previous context, applies the priority rules from the context
// table, and hands accepted changes to the crossfade scheduler.
//
// An Orchestrator is owned by a single goroutine. Hosts with more than one
// goroutine go through Loop, which marshals every call onto its owner.
package orchestrator

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/satindergrewal/moodscore/internal/logging"
	"github.com/satindergrewal/moodscore/internal/scheduler"
	"github.com/satindergrewal/moodscore/internal/table"
	"github.com/satindergrewal/moodscore/internal/track"
)

// ChangeFunc receives (previous, next) after every accepted or forced change.
type ChangeFunc func(prev, next track.Context)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the wall-clock source used to time fades. It must not be
// scaled by game time.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Snapshot is a point-in-time view of the orchestrator.
type Snapshot struct {
	Current    track.Context
	Previous   track.Context
	Busy       bool
	Active     int
	Volumes    [2]float64
	Playing    [2]bool
	Transition string
}

type subscriber struct {
	id int
	fn ChangeFunc
}

// Orchestrator decides which context plays.
type Orchestrator struct {
	table  *table.Table
	sched  *scheduler.Scheduler
	logger *log.Logger
	now    func() time.Time

	current  track.Context
	previous track.Context
	lastID   string

	subs   []subscriber
	nextID int

	configErrLogged bool
	warnedMissing   map[track.Context]bool
}

// New creates an orchestrator in the silence context. A nil table is allowed:
// every request is then rejected and reported as a configuration error.
func New(t *table.Table, s *scheduler.Scheduler, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		table:         t,
		sched:         s,
		now:           time.Now,
		current:       track.Silence,
		previous:      track.Silence,
		warnedMissing: make(map[track.Context]bool),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.Component(nil, "orchestrator")
	}
	return o
}

// RequestContext asks for c. It returns false when c ranks strictly below the
// current context; nothing changes in that case. Requesting the current
// context is a no-op that returns true.
func (o *Orchestrator) RequestContext(c track.Context) bool {
	if !o.configured() {
		return false
	}
	if c == o.current {
		return true
	}
	want, have := o.table.PriorityOf(c), o.table.PriorityOf(o.current)
	if want < have {
		o.logger.Debug("request rejected", "context", c, "priority", want, "current", o.current, "current_priority", have)
		return false
	}
	o.change(c)
	return true
}

// ForceContext switches to c regardless of priority.
func (o *Orchestrator) ForceContext(c track.Context) {
	if !o.configured() {
		return
	}
	if c == o.current {
		return
	}
	o.change(c)
}

// ReturnToPrevious forces the previous context. Only one level of history is
// kept, so after two nested changes this does not unwind to the first.
func (o *Orchestrator) ReturnToPrevious() {
	o.ForceContext(o.previous)
}

// Stop fades everything to silence.
func (o *Orchestrator) Stop() {
	o.ForceContext(track.Silence)
}

// Current returns the current context.
func (o *Orchestrator) Current() track.Context { return o.current }

// Previous returns the context that was current before the last change.
func (o *Orchestrator) Previous() track.Context { return o.previous }

// OnContextChanged subscribes fn to change notifications. Subscribers run
// synchronously inside the call that changed the context, in subscription
// order. The returned func unsubscribes.
func (o *Orchestrator) OnContextChanged(fn ChangeFunc) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	o.nextID++
	id := o.nextID
	o.subs = append(o.subs, subscriber{id: id, fn: fn})
	return func() {
		for i, s := range o.subs {
			if s.id == id {
				o.subs = append(o.subs[:i:i], o.subs[i+1:]...)
				return
			}
		}
	}
}

// Update advances the running fade to now.
func (o *Orchestrator) Update(now time.Time) {
	o.sched.Update(now)
}

// Snapshot reports the orchestrator and channel state.
func (o *Orchestrator) Snapshot() Snapshot {
	s := Snapshot{
		Current:  o.current,
		Previous: o.previous,
		Busy:     o.sched.Busy(),
		Active:   o.sched.Active(),
	}
	if s.Busy {
		s.Transition = o.lastID
	}
	a, b := o.sched.Channels()
	for i, ch := range []scheduler.Channel{a, b} {
		s.Volumes[i] = ch.Volume()
		s.Playing[i] = ch.IsPlaying()
	}
	return s
}

// Shutdown cancels any fade and silences both channels at once.
func (o *Orchestrator) Shutdown() {
	o.sched.Shutdown()
	o.logger.Info("shutdown", "context", o.current)
}

// Table returns the context table in use.
func (o *Orchestrator) Table() *table.Table { return o.table }

func (o *Orchestrator) configured() bool {
	if o.table != nil && o.sched != nil {
		return true
	}
	if !o.configErrLogged {
		o.logger.Error("no context table configured, rejecting all requests")
		o.configErrLogged = true
	}
	return false
}

func (o *Orchestrator) change(next track.Context) {
	d, ok := o.table.Resolve(next)
	if !ok && next != track.Silence && !o.warnedMissing[next] {
		o.logger.Warn("context has no table entry, playing silence", "context", next)
		o.warnedMissing[next] = true
	}

	prev := o.current
	o.previous, o.current = prev, next
	o.logger.Info("context changed", "from", prev, "to", next)

	tr := o.sched.Transition(d, o.table.FadeDurationFor(next), o.now())
	o.lastID = tr.ID

	for _, s := range o.subs {
		s.fn(prev, next)
	}
}
