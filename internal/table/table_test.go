package table

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/satindergrewal/moodscore/internal/logging"
	"github.com/satindergrewal/moodscore/internal/track"
)

func desc(loop string, vol float64) *track.Descriptor {
	return &track.Descriptor{Loop: track.SegmentID(loop), Volume: vol, Looping: true}
}

func sample(t *testing.T) *Table {
	t.Helper()
	tbl, warnings := Build([]Entry{
		{Context: "Calm", Priority: 10, Descriptor: desc("calm.ogg", 0.6)},
		{Context: "Combat", Priority: 40, Descriptor: &track.Descriptor{
			Loop: "combat.ogg", Intro: "combat_intro.ogg", Volume: 0.8, Looping: true, Fade: 3 * time.Second,
		}},
		{Context: "Boss", Priority: 90, Descriptor: desc("boss.ogg", 1)},
	}, 1500*time.Millisecond, logging.Discard())
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	return tbl
}

func TestResolve(t *testing.T) {
	tbl := sample(t)

	d, ok := tbl.Resolve("Combat")
	if !ok {
		t.Fatal("Resolve(Combat) not found")
	}
	if d.Intro != "combat_intro.ogg" || d.Volume != 0.8 {
		t.Errorf("Resolve(Combat) = %+v", d)
	}

	if _, ok := tbl.Resolve("Stealth"); ok {
		t.Error("Resolve(Stealth) should report no entry")
	}
}

func TestPriorityOf(t *testing.T) {
	tbl := sample(t)
	tests := []struct {
		ctx  track.Context
		want int
	}{
		{"Calm", 10},
		{"Combat", 40},
		{"Boss", 90},
		{"Stealth", NoPriority},
		{track.Silence, NoPriority},
	}
	for _, tt := range tests {
		if got := tbl.PriorityOf(tt.ctx); got != tt.want {
			t.Errorf("PriorityOf(%q) = %d, want %d", tt.ctx, got, tt.want)
		}
	}
}

func TestFadeDurationFor(t *testing.T) {
	tbl := sample(t)
	tests := []struct {
		ctx  track.Context
		want time.Duration
	}{
		{"Calm", 1500 * time.Millisecond},
		{"Combat", 3 * time.Second},
		{"Stealth", 1500 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := tbl.FadeDurationFor(tt.ctx); got != tt.want {
			t.Errorf("FadeDurationFor(%q) = %v, want %v", tt.ctx, got, tt.want)
		}
	}
}

func TestBuildDuplicateKeepsFirst(t *testing.T) {
	tbl, warnings := Build([]Entry{
		{Context: "Calm", Priority: 10, Descriptor: desc("first.ogg", 0.5)},
		{Context: "Calm", Priority: 99, Descriptor: desc("second.ogg", 0.9)},
	}, time.Second, nil)

	if len(warnings) != 1 || !strings.Contains(warnings[0], "duplicate") {
		t.Errorf("warnings = %v, want one duplicate warning", warnings)
	}
	d, _ := tbl.Resolve("Calm")
	if d.Loop != "first.ogg" || tbl.PriorityOf("Calm") != 10 {
		t.Errorf("duplicate replaced first entry: %+v priority %d", d, tbl.PriorityOf("Calm"))
	}
}

func TestBuildMissingDescriptorIsSilence(t *testing.T) {
	tbl, warnings := Build([]Entry{{Context: "Broken", Priority: 5}}, time.Second, nil)

	if len(warnings) != 1 {
		t.Errorf("warnings = %v, want 1", warnings)
	}
	d, ok := tbl.Resolve("Broken")
	if !ok {
		t.Fatal("malformed entry should still be present")
	}
	if !d.Silent() {
		t.Errorf("malformed entry should be silent, got %+v", d)
	}
	if tbl.PriorityOf("Broken") != 5 {
		t.Errorf("PriorityOf(Broken) = %d, want 5", tbl.PriorityOf("Broken"))
	}
}

func TestBuildSanitizes(t *testing.T) {
	tbl, warnings := Build([]Entry{
		{Context: track.Silence, Priority: 1, Descriptor: desc("x.ogg", 1)},
		{Context: "Loud", Priority: 1, Descriptor: desc("loud.ogg", 1.7)},
		{Context: "Odd", Priority: 1, Descriptor: &track.Descriptor{Loop: "odd.ogg", Volume: 0.5, Fade: -time.Second}},
	}, 0, nil)

	if len(warnings) != 4 {
		t.Errorf("got %d warnings, want 4: %v", len(warnings), warnings)
	}
	if tbl.Has(track.Silence) {
		t.Error("silence entry should be ignored")
	}
	if d, _ := tbl.Resolve("Loud"); d.Volume != 1 {
		t.Errorf("Loud volume = %v, want 1", d.Volume)
	}
	if got := tbl.FadeDurationFor("Odd"); got != DefaultFade {
		t.Errorf("FadeDurationFor(Odd) = %v, want %v", got, DefaultFade)
	}
}

func TestBuildNegativePriority(t *testing.T) {
	tbl, warnings := Build([]Entry{
		{Context: "Ambient", Priority: -5, Descriptor: desc("ambient.ogg", 1)},
		{Context: "Calm", Priority: 10, Descriptor: desc("calm.ogg", 1)},
	}, time.Second, nil)

	if len(warnings) != 1 || !strings.Contains(warnings[0], "negative priority") {
		t.Errorf("warnings = %v, want one about the negative priority", warnings)
	}
	if got := tbl.PriorityOf("Ambient"); got != 0 {
		t.Errorf("PriorityOf(Ambient) = %d, want 0", got)
	}
	if tbl.PriorityOf("Ambient") <= tbl.PriorityOf("Unknown") {
		t.Error("a configured context must outrank an unconfigured one")
	}
}

func TestContextsOrder(t *testing.T) {
	tbl := sample(t)
	got := tbl.Contexts()
	want := []track.Context{"Boss", "Combat", "Calm"}
	if len(got) != len(want) {
		t.Fatalf("Contexts() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Contexts()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSegmentsUnique(t *testing.T) {
	tbl, _ := Build([]Entry{
		{Context: "A", Priority: 1, Descriptor: desc("shared.ogg", 1)},
		{Context: "B", Priority: 2, Descriptor: &track.Descriptor{Loop: "shared.ogg", Intro: "b_intro.ogg", Volume: 1}},
	}, time.Second, nil)

	segs := tbl.Segments()
	if len(segs) != 2 {
		t.Errorf("Segments() = %v, want 2 unique ids", segs)
	}
}

func TestNilTable(t *testing.T) {
	var tbl *Table
	if tbl.PriorityOf("Calm") != NoPriority {
		t.Error("nil table PriorityOf should be NoPriority")
	}
	if _, ok := tbl.Resolve("Calm"); ok {
		t.Error("nil table Resolve should miss")
	}
	if tbl.Len() != 0 || tbl.Contexts() != nil {
		t.Error("nil table should be empty")
	}
}

func TestConcurrentReads(t *testing.T) {
	tbl := sample(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				tbl.Resolve("Combat")
				tbl.PriorityOf("Boss")
				tbl.FadeDurationFor("Calm")
			}
		}()
	}
	wg.Wait()
}
