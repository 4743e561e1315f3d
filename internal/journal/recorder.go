package journal

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/satindergrewal/moodscore/internal/logging"
	"github.com/satindergrewal/moodscore/internal/track"
)

// Recorder writes changes to a Journal off the caller's goroutine. Observe
// never blocks; when the buffer is full the change is dropped and counted.
type Recorder struct {
	j      *Journal
	logger *log.Logger
	ch     chan Entry
	now    func() time.Time

	dropped atomic.Uint64
}

// NewRecorder creates a recorder with room for buffer pending changes.
func NewRecorder(j *Journal, buffer int, logger *log.Logger) *Recorder {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = logging.Component(nil, "journal")
	}
	return &Recorder{j: j, logger: logger, ch: make(chan Entry, buffer), now: time.Now}
}

// Observe queues a change. Its signature matches orchestrator change
// subscribers.
func (r *Recorder) Observe(prev, next track.Context) {
	select {
	case r.ch <- Entry{Previous: prev, Next: next, At: r.now()}:
	default:
		r.dropped.Add(1)
		r.logger.Warn("journal buffer full, change dropped", "from", prev, "to", next)
	}
}

// Dropped returns how many changes were not recorded.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Run writes queued changes until ctx is cancelled, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case e := <-r.ch:
			r.write(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-r.ch:
					r.write(e)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(e Entry) {
	e, err := r.j.Record(e)
	if err != nil {
		r.logger.Error("journal write failed", "err", err)
		return
	}
	r.logger.Debug("change recorded", "id", e.ID, "from", e.Previous, "to", e.Next)
}
