package stream

import (
	"context"
	"testing"
	"time"

	"github.com/satindergrewal/moodscore/internal/logging"
)

func newTestBroadcaster() *Broadcaster {
	return NewBroadcaster(logging.Discard())
}

func drain(l *Listener) int {
	n := 0
	for {
		select {
		case <-l.C:
			n++
		default:
			return n
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := newTestBroadcaster()
	if b.ListenerCount() != 0 {
		t.Fatalf("initial ListenerCount = %d, want 0", b.ListenerCount())
	}

	l1 := b.Subscribe()
	l2 := b.Subscribe()
	if b.ListenerCount() != 2 {
		t.Errorf("ListenerCount = %d, want 2", b.ListenerCount())
	}

	b.Unsubscribe(l1)
	b.Unsubscribe(l1)
	if b.ListenerCount() != 1 {
		t.Errorf("ListenerCount = %d, want 1 after double unsubscribe", b.ListenerCount())
	}
	select {
	case <-l1.Done():
	default:
		t.Error("Done() not closed after unsubscribe")
	}

	b.Unsubscribe(l2)
	if b.ListenerCount() != 0 {
		t.Errorf("ListenerCount = %d, want 0", b.ListenerCount())
	}
}

func TestBroadcastToAllListeners(t *testing.T) {
	b := newTestBroadcaster()
	listeners := make([]*Listener, 3)
	for i := range listeners {
		listeners[i] = b.Subscribe()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	source := make(chan []int16, 1)
	go b.Run(ctx, source)

	source <- []int16{42, -42}
	for i, l := range listeners {
		select {
		case got := <-l.C:
			if len(got) != 2 || got[0] != 42 || got[1] != -42 {
				t.Errorf("listener %d got %v, want [42 -42]", i, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("listener %d timed out", i)
		}
	}
}

func TestBroadcastDropsForSlowListener(t *testing.T) {
	b := newTestBroadcaster()
	slow := b.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	source := make(chan []int16)
	go b.Run(ctx, source)

	const sent = ListenerBuffer + 50
	for i := 0; i < sent; i++ {
		source <- []int16{int16(i)}
	}
	// Unbuffered source: once the last send returns, all but the last frame
	// have been fanned out.
	deadline := time.Now().Add(time.Second)
	for {
		frames, dropped := b.Stats()
		if frames == sent && dropped == sent-ListenerBuffer {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Stats() = %d, %d; want %d, %d", frames, dropped, sent, sent-ListenerBuffer)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := drain(slow); got != ListenerBuffer {
		t.Errorf("slow listener buffered %d frames, want %d", got, ListenerBuffer)
	}
}

func TestRunStops(t *testing.T) {
	tests := []struct {
		name string
		stop func(cancel context.CancelFunc, source chan []int16)
	}{
		{"context cancel", func(cancel context.CancelFunc, _ chan []int16) { cancel() }},
		{"source closed", func(_ context.CancelFunc, source chan []int16) { close(source) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBroadcaster()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			source := make(chan []int16)

			done := make(chan struct{})
			go func() {
				b.Run(ctx, source)
				close(done)
			}()
			tt.stop(cancel, source)

			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("Run did not return")
			}
		})
	}
}
