package mixer

import (
	"time"

	"github.com/satindergrewal/moodscore/internal/audio"
	"github.com/satindergrewal/moodscore/internal/track"
)

// voice is a clip placed on the output timeline. Sample 0 of the clip sounds
// at output frame start.
type voice struct {
	clip  *audio.Clip
	loop  bool
	start int64
}

// offset returns the clip frame sounding at output frame f, or -1 for silence.
func (v *voice) offset(f int64) int64 {
	frames := int64(v.clip.Frames())
	idx := f - v.start
	if idx < 0 || frames == 0 {
		return -1
	}
	if v.loop {
		return idx % frames
	}
	if idx >= frames {
		return -1
	}
	return idx
}

func (v *voice) finished(f int64) bool {
	return !v.loop && f-v.start >= int64(v.clip.Frames())
}

// Channel is one playback slot of the mixer. All methods are safe for
// concurrent use with rendering.
type Channel struct {
	m     *Mixer
	index int

	cued    *voice
	current *voice
	pending *voice // starts at pending.start, replacing current

	volume   float64
	rendered float64 // gain at the end of the last rendered block
	length   time.Duration
}

// Load cues seg. The channel keeps sounding whatever it was playing.
func (c *Channel) Load(seg track.SegmentID, loop bool) error {
	clip, err := c.m.src.Clip(seg)
	if err != nil {
		return err
	}
	if clip.Frames() == 0 {
		return audio.ErrEmptySegment
	}

	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.cued = &voice{clip: clip, loop: loop}
	c.length = clip.Duration()
	return nil
}

// Play starts the cued clip with the next rendered block, replacing whatever
// the channel was sounding. The new clip starts at the current volume, with
// no ramp from the gain of the content it replaces.
func (c *Channel) Play() {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if c.cued == nil {
		return
	}
	c.cued.start = c.m.pos
	c.current, c.pending, c.cued = c.cued, nil, nil
	c.rendered = c.volume
}

// PlayAt starts the cued clip at output time at. If at has already been
// rendered, the clip starts part way in so that it stays aligned to at. Gain
// carries over from the sounding clip.
func (c *Channel) PlayAt(at time.Duration) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if c.cued == nil {
		return
	}
	c.cued.start = audio.DurationToFrames(at)
	c.pending, c.cued = c.cued, nil
}

// Stop silences the channel and drops all content.
func (c *Channel) Stop() {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.cued, c.current, c.pending = nil, nil, nil
	c.length = 0
}

// SetVolume sets the gain, clamped to [0, 1]. The change is spread over the
// next rendered block.
func (c *Channel) SetVolume(gain float64) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.volume = track.ClampVolume(gain)
}

func (c *Channel) Volume() float64 {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.volume
}

// IsPlaying reports whether the channel has sounding or scheduled content.
func (c *Channel) IsPlaying() bool {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if c.pending != nil {
		return true
	}
	return c.current != nil && !c.current.finished(c.m.pos)
}

// Elapsed returns the position inside the sounding clip.
func (c *Channel) Elapsed() time.Duration {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	v := c.current
	if c.pending != nil && c.m.pos >= c.pending.start {
		v = c.pending
	}
	if v == nil {
		return 0
	}
	idx := c.m.pos - v.start
	if idx < 0 {
		return 0
	}
	frames := int64(v.clip.Frames())
	if v.loop {
		idx %= frames
	} else if idx > frames {
		idx = frames
	}
	return audio.FramesToDuration(idx)
}

// Length returns the duration of the most recently loaded clip.
func (c *Channel) Length() time.Duration {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.length
}

// render adds n frames starting at output frame from into acc. Called with the
// mixer lock held.
func (c *Channel) render(acc []float32, scratch []int16, from int64, n int) {
	g0, g1 := c.rendered, c.volume
	c.rendered = g1
	if c.current == nil && c.pending == nil {
		return
	}

	for i := 0; i < n; i++ {
		f := from + int64(i)
		v := c.current
		if c.pending != nil && f >= c.pending.start {
			v = c.pending
		}
		off := int64(-1)
		if v != nil {
			off = v.offset(f)
		}
		for ch := 0; ch < audio.Channels; ch++ {
			if off < 0 {
				scratch[i*audio.Channels+ch] = 0
				continue
			}
			scratch[i*audio.Channels+ch] = v.clip.Samples[off*audio.Channels+int64(ch)]
		}
	}
	audio.MixRamp(acc, scratch[:n*audio.Channels], g0, g1)

	if c.pending != nil && c.pending.start < from+int64(n) {
		c.current, c.pending = c.pending, nil
	}
}
