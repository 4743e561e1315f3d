// Package stream fans mixed PCM frames out to monitor outputs: an HTTP MP3
// stream and a WebRTC Opus stream.
package stream

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/satindergrewal/moodscore/internal/logging"
)

// ListenerBuffer is how many 20ms frames a listener may fall behind before
// frames are dropped for it.
const ListenerBuffer = 150

// Broadcaster fans out PCM frames from one source to N listeners.
type Broadcaster struct {
	logger *log.Logger

	mu        sync.RWMutex
	listeners map[*Listener]struct{}

	frames  atomic.Uint64
	dropped atomic.Uint64
}

// Listener receives PCM frames from the broadcaster.
type Listener struct {
	C    chan []int16 // buffered channel of 20ms PCM frames
	done chan struct{}
}

// Done is closed when the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} { return l.done }

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster(logger *log.Logger) *Broadcaster {
	if logger == nil {
		logger = logging.Component(nil, "stream")
	}
	return &Broadcaster{
		logger:    logger,
		listeners: make(map[*Listener]struct{}),
	}
}

// Subscribe registers a new listener.
func (b *Broadcaster) Subscribe() *Listener {
	l := &Listener{
		C:    make(chan []int16, ListenerBuffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	n := len(b.listeners)
	b.mu.Unlock()
	b.logger.Debug("listener subscribed", "listeners", n)
	return l
}

// Unsubscribe removes a listener and signals it to stop. Removing a listener
// twice is harmless.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	_, ok := b.listeners[l]
	delete(b.listeners, l)
	b.mu.Unlock()
	if ok {
		close(l.done)
	}
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Stats returns the number of frames broadcast and the number of per-listener
// deliveries dropped because a listener was too slow.
func (b *Broadcaster) Stats() (frames, dropped uint64) {
	return b.frames.Load(), b.dropped.Load()
}

// Run reads frames from source and fans out to all listeners.
// Slow listeners get frames dropped rather than blocking the broadcast.
func (b *Broadcaster) Run(ctx context.Context, source <-chan []int16) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}
			b.frames.Add(1)
			b.mu.RLock()
			for l := range b.listeners {
				select {
				case l.C <- frame:
				default:
					b.dropped.Add(1)
				}
			}
			b.mu.RUnlock()
		}
	}
}
