package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/satindergrewal/moodscore/internal/track"
)

// DefaultTick is the fade update interval.
const DefaultTick = 20 * time.Millisecond

// Loop owns an Orchestrator and serializes every call onto one goroutine. The
// same goroutine ticks the running fade. Change notifications are delivered in
// order on a second goroutine, so subscribers may call back into the Loop.
type Loop struct {
	o    *Orchestrator
	tick time.Duration

	cmds    chan func(*Orchestrator)
	stopped chan struct{}
	done    chan struct{}

	mu    sync.Mutex
	queue []notification
	wake  chan struct{}
}

type notification struct {
	fn         ChangeFunc
	prev, next track.Context
}

// NewLoop wraps o. Calls block until Run is started.
func NewLoop(o *Orchestrator, tick time.Duration) *Loop {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Loop{
		o:       o,
		tick:    tick,
		cmds:    make(chan func(*Orchestrator)),
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
		wake:    make(chan struct{}, 1),
	}
}

// Run processes calls and ticks until ctx is cancelled, then silences both
// channels. Pending notifications are delivered before Run returns. Calls made
// after that return zero values.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)

	drained := make(chan struct{})
	go l.dispatch(drained)
	defer func() {
		close(l.stopped)
		<-drained
	}()

	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	l.o.logger.Info("orchestrator loop started", "tick", l.tick)
	for {
		select {
		case <-ctx.Done():
			l.o.Shutdown()
			return
		case fn := <-l.cmds:
			fn(l.o)
		case <-ticker.C:
			l.o.Update(l.o.now())
		}
	}
}

// Done is closed when Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) post(fn ChangeFunc, prev, next track.Context) {
	l.mu.Lock()
	l.queue = append(l.queue, notification{fn: fn, prev: prev, next: next})
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) dispatch(drained chan<- struct{}) {
	defer close(drained)
	for {
		select {
		case <-l.wake:
			l.deliver()
		case <-l.stopped:
			l.deliver()
			return
		}
	}
}

func (l *Loop) deliver() {
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, n := range batch {
			n.fn(n.prev, n.next)
		}
	}
}

func (l *Loop) call(fn func(*Orchestrator)) bool {
	reply := make(chan struct{})
	select {
	case l.cmds <- func(o *Orchestrator) {
		fn(o)
		close(reply)
	}:
	case <-l.stopped:
		return false
	}
	<-reply
	return true
}

// RequestContext calls RequestContext on the owner goroutine.
func (l *Loop) RequestContext(c track.Context) bool {
	var ok bool
	l.call(func(o *Orchestrator) { ok = o.RequestContext(c) })
	return ok
}

// ForceContext calls ForceContext on the owner goroutine.
func (l *Loop) ForceContext(c track.Context) {
	l.call(func(o *Orchestrator) { o.ForceContext(c) })
}

// ReturnToPrevious calls ReturnToPrevious on the owner goroutine.
func (l *Loop) ReturnToPrevious() {
	l.call(func(o *Orchestrator) { o.ReturnToPrevious() })
}

// Stop calls Stop on the owner goroutine.
func (l *Loop) Stop() {
	l.call(func(o *Orchestrator) { o.Stop() })
}

// Current returns the current context.
func (l *Loop) Current() track.Context {
	var c track.Context
	l.call(func(o *Orchestrator) { c = o.Current() })
	return c
}

// Previous returns the previous context.
func (l *Loop) Previous() track.Context {
	var c track.Context
	l.call(func(o *Orchestrator) { c = o.Previous() })
	return c
}

// Snapshot returns a snapshot taken on the owner goroutine.
func (l *Loop) Snapshot() Snapshot {
	var s Snapshot
	l.call(func(o *Orchestrator) { s = o.Snapshot() })
	return s
}

// OnContextChanged subscribes fn from any goroutine. fn runs on the
// notification goroutine, after the call that caused the change has returned,
// and may call any Loop method.
func (l *Loop) OnContextChanged(fn ChangeFunc) (unsubscribe func()) {
	unsub := func() {}
	if fn == nil {
		return unsub
	}
	l.call(func(o *Orchestrator) {
		unsub = o.OnContextChanged(func(prev, next track.Context) { l.post(fn, prev, next) })
	})
	return func() { l.call(func(*Orchestrator) { unsub() }) }
}
