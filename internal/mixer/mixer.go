// Package mixer implements the playback channel pair in software. Two channels
// are summed into 20ms stereo frames, and the count of rendered frames is the
// output clock that intro hand-offs are scheduled against.
package mixer

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/satindergrewal/moodscore/internal/audio"
	"github.com/satindergrewal/moodscore/internal/logging"
	"github.com/satindergrewal/moodscore/internal/scheduler"
	"github.com/satindergrewal/moodscore/internal/track"
)

var (
	_ scheduler.Channel = (*Channel)(nil)
	_ scheduler.Clock   = (*Mixer)(nil)
)

// ClipSource resolves segment IDs to decoded clips.
type ClipSource interface {
	Clip(id track.SegmentID) (*audio.Clip, error)
}

// Mixer renders two channels into one PCM stream.
type Mixer struct {
	src    ClipSource
	logger *log.Logger

	mu       sync.Mutex
	pos      int64 // frames rendered so far
	channels [2]*Channel
	acc      []float32
	scratch  []int16

	frameCh chan []int16
}

// New creates a mixer reading clips from src.
func New(src ClipSource, logger *log.Logger) *Mixer {
	if logger == nil {
		logger = logging.Component(nil, "mixer")
	}
	m := &Mixer{
		src:     src,
		logger:  logger,
		frameCh: make(chan []int16, 100),
	}
	for i := range m.channels {
		m.channels[i] = &Channel{m: m, index: i}
	}
	return m
}

// Channels returns the two channels.
func (m *Mixer) Channels() (*Channel, *Channel) {
	return m.channels[0], m.channels[1]
}

// Now returns the output clock: the playback time of everything rendered.
func (m *Mixer) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return audio.FramesToDuration(m.pos)
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (m *Mixer) Frames() <-chan []int16 {
	return m.frameCh
}

// Render mixes the next block into dst. dst holds interleaved stereo and its
// length sets the block size.
func (m *Mixer) Render(dst []int16) {
	n := len(dst) / audio.Channels
	if n == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cap(m.acc) < len(dst) {
		m.acc = make([]float32, len(dst))
		m.scratch = make([]int16, len(dst))
	}
	acc := m.acc[:len(dst)]
	clear(acc)
	scratch := m.scratch[:len(dst)]

	for _, c := range m.channels {
		c.render(acc, scratch, m.pos, n)
	}
	audio.Quantize(dst, acc)
	m.pos += int64(n)
}

// Run renders one frame per FrameDuration and sends it on Frames. Blocks until
// ctx is cancelled.
func (m *Mixer) Run(ctx context.Context) {
	defer close(m.frameCh)

	ticker := time.NewTicker(audio.FrameDuration)
	defer ticker.Stop()

	m.logger.Info("mixer started", "rate", audio.SampleRate, "frame", audio.FrameDuration)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame := make([]int16, audio.FrameSamples)
		m.Render(frame)

		select {
		case m.frameCh <- frame:
		case <-ctx.Done():
			return
		}
	}
}
