// Package output plays the music mix on the local sound device.
package output

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/hajimehoshi/oto/v2"
	"github.com/satindergrewal/moodscore/internal/audio"
	"github.com/satindergrewal/moodscore/internal/logging"
	"github.com/satindergrewal/moodscore/internal/stream"
)

// Speaker feeds broadcaster frames to the default output device.
type Speaker struct {
	ctx    *oto.Context
	ready  chan struct{}
	b      *stream.Broadcaster
	logger *log.Logger
}

// Open initializes the audio device. Callers treat an error as "no local
// output" and carry on.
func Open(b *stream.Broadcaster, logger *log.Logger) (*Speaker, error) {
	if logger == nil {
		logger = logging.Component(nil, "output")
	}
	ctx, ready, err := oto.NewContext(audio.SampleRate, audio.Channels, oto.FormatSignedInt16LE)
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	return &Speaker{ctx: ctx, ready: ready, b: b, logger: logger}, nil
}

// Run plays until ctx is cancelled.
func (s *Speaker) Run(ctx context.Context) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return
	}

	l := s.b.Subscribe()
	defer s.b.Unsubscribe(l)

	player := s.ctx.NewPlayer(newFrameReader(ctx, l))
	defer player.Close()
	player.Play()
	s.logger.Info("speaker output started")

	<-ctx.Done()
	s.logger.Info("speaker output stopped")
}

// frameReader adapts a broadcaster listener to the byte stream oto pulls from.
type frameReader struct {
	ctx  context.Context
	l    *stream.Listener
	rest []byte
}

func newFrameReader(ctx context.Context, l *stream.Listener) *frameReader {
	return &frameReader{ctx: ctx, l: l}
}

func (r *frameReader) Read(p []byte) (int, error) {
	if len(r.rest) == 0 {
		select {
		case <-r.ctx.Done():
			return 0, io.EOF
		case <-r.l.Done():
			return 0, io.EOF
		case frame, ok := <-r.l.C:
			if !ok {
				return 0, io.EOF
			}
			r.rest = audio.SamplesToBytes(frame)
		}
	}
	n := copy(p, r.rest)
	r.rest = r.rest[n:]
	return n, nil
}
