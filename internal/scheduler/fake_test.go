package scheduler

import (
	"errors"
	"time"

	"github.com/satindergrewal/moodscore/internal/track"
)

var errMissing = errors.New("segment missing")

type fakeClock struct{ now time.Duration }

func (c *fakeClock) Now() time.Duration { return c.now }

// fakeChannel records what the scheduler does to it. Playback time follows the
// shared fake output clock.
type fakeChannel struct {
	clock   *fakeClock
	lengths map[track.SegmentID]time.Duration

	cued     track.SegmentID
	cuedLoop bool
	length   time.Duration

	playing   track.SegmentID
	looping   bool
	startedAt time.Duration

	playAtCalls []time.Duration
	stops       int

	volume    float64
	maxVolume float64
	negative  bool
}

func newFakeChannel(clock *fakeClock, lengths map[track.SegmentID]time.Duration) *fakeChannel {
	return &fakeChannel{clock: clock, lengths: lengths}
}

func (c *fakeChannel) Load(seg track.SegmentID, loop bool) error {
	l, ok := c.lengths[seg]
	if !ok {
		return errMissing
	}
	c.cued, c.cuedLoop, c.length = seg, loop, l
	return nil
}

func (c *fakeChannel) Play() { c.PlayAtNow(c.clock.now) }

func (c *fakeChannel) PlayAtNow(at time.Duration) {
	c.playing, c.looping, c.startedAt = c.cued, c.cuedLoop, at
}

func (c *fakeChannel) PlayAt(at time.Duration) {
	c.playAtCalls = append(c.playAtCalls, at)
	c.PlayAtNow(at)
}

func (c *fakeChannel) Stop() {
	c.stops++
	c.playing, c.cued = "", ""
}

func (c *fakeChannel) SetVolume(v float64) {
	if v < 0 {
		c.negative = true
	}
	if v > c.maxVolume {
		c.maxVolume = v
	}
	c.volume = v
}

func (c *fakeChannel) Volume() float64 { return c.volume }
func (c *fakeChannel) IsPlaying() bool { return c.playing != "" }
func (c *fakeChannel) Length() time.Duration { return c.length }
func (c *fakeChannel) Elapsed() time.Duration { return c.clock.now - c.startedAt }
func (c *fakeChannel) audible() bool { return c.IsPlaying() && c.volume > 0 }
