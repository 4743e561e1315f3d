package scheduler

import (
	"math"
	"testing"
	"time"

	"github.com/satindergrewal/moodscore/internal/logging"
	"github.com/satindergrewal/moodscore/internal/track"
)

var (
	calm   = track.Descriptor{Loop: "calm.ogg", Volume: 0.6, Looping: true}
	combat = track.Descriptor{Loop: "combat.ogg", Intro: "combat_intro.ogg", Volume: 0.8, Looping: true}
	boss   = track.Descriptor{Loop: "boss.ogg", Volume: 1, Looping: true}
)

type rig struct {
	clock *fakeClock
	a, b  *fakeChannel
	s     *Scheduler
	wall  time.Time
	done  []Transition
}

func newRig(t *testing.T) *rig {
	t.Helper()
	lengths := map[track.SegmentID]time.Duration{
		"calm.ogg":         30 * time.Second,
		"combat.ogg":       20 * time.Second,
		"combat_intro.ogg": 2 * time.Second,
		"boss.ogg":         40 * time.Second,
		"short_intro.ogg":  time.Second,
	}
	r := &rig{clock: &fakeClock{now: 10 * time.Second}, wall: time.Unix(1000, 0)}
	r.a = newFakeChannel(r.clock, lengths)
	r.b = newFakeChannel(r.clock, lengths)
	r.s = New(r.a, r.b, r.clock,
		WithLogger(logging.Discard()),
		WithOnComplete(func(tr Transition) { r.done = append(r.done, tr) }))
	return r
}

// advance moves wall and output clocks together in 20ms ticks.
func (r *rig) advance(d time.Duration) {
	const tick = 20 * time.Millisecond
	for step := time.Duration(0); step < d; step += tick {
		r.wall = r.wall.Add(tick)
		r.clock.now += tick
		r.s.Update(r.wall)
	}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCrossfadeWithoutIntro(t *testing.T) {
	r := newRig(t)

	tr := r.s.Transition(calm, 1500*time.Millisecond, r.wall)
	if tr.FadeIn != 1 {
		t.Fatalf("FadeIn = %d, want 1", tr.FadeIn)
	}
	if r.b.playing != "calm.ogg" || !r.b.looping {
		t.Fatalf("channel b playing %q loop=%v, want calm.ogg looping", r.b.playing, r.b.looping)
	}
	if r.b.volume != 0 {
		t.Errorf("fade-in should start at 0, got %v", r.b.volume)
	}

	r.advance(740 * time.Millisecond)
	if v := r.b.volume; v <= 0.28 || v >= 0.31 {
		t.Errorf("mid-ramp volume = %v, want about 0.3", v)
	}
	if !r.s.Busy() {
		t.Error("scheduler should be busy mid-ramp")
	}

	r.advance(800 * time.Millisecond)
	if r.s.Busy() {
		t.Error("scheduler still busy after fade")
	}
	if !approx(r.b.volume, 0.6) {
		t.Errorf("final volume = %v, want 0.6", r.b.volume)
	}
	if r.a.IsPlaying() || r.a.volume != 0 {
		t.Errorf("fade-out channel still active: playing=%q vol=%v", r.a.playing, r.a.volume)
	}
	if len(r.done) != 1 || r.done[0].ID != tr.ID {
		t.Errorf("completion callbacks = %v, want one for %s", r.done, tr.ID)
	}
}

func TestInterruptionStartsFromCurrentVolumes(t *testing.T) {
	r := newRig(t)

	r.s.Transition(calm, time.Second, r.wall)
	r.advance(2 * time.Second)

	t1 := r.s.Transition(boss, time.Second, r.wall)
	r.advance(400 * time.Millisecond)
	calmVol := r.b.volume
	bossVol := r.a.volume
	if calmVol <= 0 || bossVol <= 0 {
		t.Fatalf("expected both channels audible mid-transition, calm=%v boss=%v", calmVol, bossVol)
	}

	t2 := r.s.Transition(combat, time.Second, r.wall)
	if t2.ID == t1.ID {
		t.Fatal("new transition reused id")
	}
	// boss was fading in on a; it is now the fade-out channel and must not jump.
	if !approx(r.a.volume, bossVol) {
		t.Errorf("fade-out volume jumped from %v to %v", bossVol, r.a.volume)
	}
	if r.b.playing != "combat_intro.ogg" {
		t.Errorf("fade-in channel playing %q, want combat_intro.ogg", r.b.playing)
	}

	r.advance(500 * time.Millisecond)
	if r.a.volume >= bossVol {
		t.Errorf("fade-out did not decrease: %v >= %v", r.a.volume, bossVol)
	}

	r.advance(3 * time.Second)
	if r.s.Busy() {
		t.Error("scheduler busy after interrupted sequence settled")
	}
	for name, ch := range map[string]*fakeChannel{"a": r.a, "b": r.b} {
		if ch.negative {
			t.Errorf("channel %s went negative", name)
		}
		if ch.maxVolume > 1 {
			t.Errorf("channel %s exceeded unity: %v", name, ch.maxVolume)
		}
	}
	if len(r.done) != 2 {
		t.Errorf("completed transitions = %d, want 2 (first and last)", len(r.done))
	}
}

func TestRapidInterruptionsKeepOneTask(t *testing.T) {
	r := newRig(t)
	seq := []track.Descriptor{calm, boss, combat, calm, boss}
	for _, d := range seq {
		r.s.Transition(d, time.Second, r.wall)
		r.advance(100 * time.Millisecond)
		if r.a.audible() && r.b.audible() && r.a.volume+r.b.volume > 2 {
			t.Fatalf("combined gain exceeded bounds: %v + %v", r.a.volume, r.b.volume)
		}
	}
	r.advance(2 * time.Second)

	active, other := r.b, r.a
	if r.s.Active() == 0 {
		active, other = r.a, r.b
	}
	if active.playing != "boss.ogg" || !approx(active.volume, 1) {
		t.Errorf("active channel = %q @ %v, want boss.ogg @ 1", active.playing, active.volume)
	}
	if other.IsPlaying() || other.volume != 0 {
		t.Errorf("inactive channel = %q @ %v, want stopped", other.playing, other.volume)
	}
	if len(r.done) != 1 {
		t.Errorf("completed = %d, want only the last transition", len(r.done))
	}
}

func TestSilenceRoundTrip(t *testing.T) {
	r := newRig(t)

	r.s.Transition(calm, time.Second, r.wall)
	r.advance(1200 * time.Millisecond)

	tr := r.s.Transition(track.Descriptor{}, time.Second, r.wall)
	if tr.FadeIn != -1 {
		t.Errorf("silence FadeIn = %d, want -1", tr.FadeIn)
	}
	r.advance(1200 * time.Millisecond)
	if r.a.IsPlaying() || r.b.IsPlaying() {
		t.Fatalf("channels still playing after silence: a=%q b=%q", r.a.playing, r.b.playing)
	}

	r.s.Transition(calm, time.Second, r.wall)
	r.advance(1200 * time.Millisecond)

	var audible []*fakeChannel
	for _, ch := range []*fakeChannel{r.a, r.b} {
		if ch.audible() {
			audible = append(audible, ch)
		}
	}
	if len(audible) != 1 {
		t.Fatalf("audible channels = %d, want 1", len(audible))
	}
	if audible[0].playing != "calm.ogg" || !approx(audible[0].volume, 0.6) {
		t.Errorf("audible channel = %q @ %v", audible[0].playing, audible[0].volume)
	}
}

func TestSilenceFadesBothChannelsMidTransition(t *testing.T) {
	r := newRig(t)
	r.s.Transition(calm, time.Second, r.wall)
	r.advance(2 * time.Second)
	r.s.Transition(boss, time.Second, r.wall)
	r.advance(500 * time.Millisecond)

	r.s.Transition(track.Descriptor{}, time.Second, r.wall)
	r.advance(1100 * time.Millisecond)

	if r.a.audible() || r.b.audible() {
		t.Errorf("audible after stop: a=%v b=%v", r.a.volume, r.b.volume)
	}
	if r.a.cued != "" || r.b.cued != "" {
		t.Error("channel content not cleared")
	}
}

func TestIntroHandoffIsAnchoredToOutputClock(t *testing.T) {
	tests := []struct {
		name string
		tick time.Duration
	}{
		{"regular ticks", 20 * time.Millisecond},
		{"jittery ticks", 70 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t)
			introStart := r.clock.now

			r.s.Transition(combat, 1500*time.Millisecond, r.wall)
			for r.s.Busy() {
				r.wall = r.wall.Add(tt.tick)
				r.clock.now += tt.tick
				r.s.Update(r.wall)
			}

			if len(r.b.playAtCalls) != 1 {
				t.Fatalf("PlayAt calls = %v, want exactly one", r.b.playAtCalls)
			}
			want := introStart + 2*time.Second
			if got := r.b.playAtCalls[0]; got != want {
				t.Errorf("loop scheduled at %v, want %v", got, want)
			}
			if r.b.playing != "combat.ogg" || !r.b.looping {
				t.Errorf("after hand-off playing %q loop=%v", r.b.playing, r.b.looping)
			}
			if !approx(r.b.volume, 0.8) {
				t.Errorf("loop volume = %v, want 0.8", r.b.volume)
			}
		})
	}
}

func TestIntroShorterThanFadeNeverWaitsNegative(t *testing.T) {
	r := newRig(t)
	d := track.Descriptor{Loop: "combat.ogg", Intro: "short_intro.ogg", Volume: 0.5, Looping: true}

	r.s.Transition(d, 1500*time.Millisecond, r.wall)
	r.advance(1600 * time.Millisecond)

	if r.s.Busy() {
		t.Fatal("transition should complete right after the ramp")
	}
	if len(r.b.playAtCalls) != 1 {
		t.Fatalf("PlayAt calls = %v, want one", r.b.playAtCalls)
	}
	if at := r.b.playAtCalls[0]; at > r.clock.now {
		t.Errorf("hand-off at %v is after now %v", at, r.clock.now)
	}
}

func TestCancelDuringIntroWaitSkipsHandoff(t *testing.T) {
	r := newRig(t)
	r.s.Transition(combat, 500*time.Millisecond, r.wall)
	r.advance(600 * time.Millisecond)
	if !r.s.Busy() {
		t.Fatal("expected to be waiting for the intro")
	}

	r.s.Transition(calm, 500*time.Millisecond, r.wall)
	r.advance(3 * time.Second)

	if len(r.b.playAtCalls) != 0 {
		t.Errorf("canceled hand-off still fired: %v", r.b.playAtCalls)
	}
	if len(r.done) != 1 {
		t.Errorf("completed = %d, want 1", len(r.done))
	}
}

func TestMissingSegmentFadesToSilence(t *testing.T) {
	r := newRig(t)
	r.s.Transition(calm, time.Second, r.wall)
	r.advance(1200 * time.Millisecond)

	tr := r.s.Transition(track.Descriptor{Loop: "gone.ogg", Volume: 1, Looping: true}, time.Second, r.wall)
	if tr.FadeIn != -1 {
		t.Errorf("FadeIn = %d, want -1 for unloadable segment", tr.FadeIn)
	}
	r.advance(1200 * time.Millisecond)
	if r.a.IsPlaying() || r.b.IsPlaying() {
		t.Error("unloadable segment should leave silence")
	}
}

func TestMissingLoopAfterIntro(t *testing.T) {
	r := newRig(t)
	d := track.Descriptor{Loop: "gone.ogg", Intro: "combat_intro.ogg", Volume: 0.7}

	r.s.Transition(d, 500*time.Millisecond, r.wall)
	r.advance(3 * time.Second)

	if r.s.Busy() {
		t.Error("transition should finish even when the loop is missing")
	}
	if len(r.b.playAtCalls) != 0 {
		t.Errorf("PlayAt called for a missing loop: %v", r.b.playAtCalls)
	}
}

func TestZeroFadeCompletesImmediately(t *testing.T) {
	r := newRig(t)
	r.s.Transition(boss, 0, r.wall)
	if r.s.Busy() {
		t.Error("zero fade should complete synchronously")
	}
	if !approx(r.b.volume, 1) {
		t.Errorf("volume = %v, want 1", r.b.volume)
	}
}

func TestShutdown(t *testing.T) {
	r := newRig(t)
	r.s.Transition(calm, time.Second, r.wall)
	r.advance(300 * time.Millisecond)

	r.s.Shutdown()
	if r.s.Busy() {
		t.Error("busy after shutdown")
	}
	if r.a.IsPlaying() || r.b.IsPlaying() || r.a.volume != 0 || r.b.volume != 0 {
		t.Error("channels not silenced by shutdown")
	}
	r.advance(2 * time.Second)
	if len(r.done) != 0 {
		t.Errorf("canceled transition reported completion: %v", r.done)
	}
}

func TestPhaseString(t *testing.T) {
	for p, want := range map[phase]string{phaseRamp: "ramp", phaseIntroWait: "intro", phaseDone: "done", phase(9): "unknown"} {
		if got := p.String(); got != want {
			t.Errorf("phase(%d).String() = %q, want %q", p, got, want)
		}
	}
}
