// Package table holds the context table: the immutable mapping from a context
// to its track descriptor and priority rank.
//
// A Table is built once at startup and never mutated afterwards, so any number
// of goroutines may read it without locking.
package table

import (
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/satindergrewal/moodscore/internal/track"
)

// DefaultFade is used when the configuration supplies no usable default.
const DefaultFade = time.Second

// NoPriority is the rank of a context that has no entry.
const NoPriority = -1

// Entry is one configured row. A nil Descriptor denotes a malformed row and
// degrades to silence for that context.
type Entry struct {
	Context    track.Context
	Priority   int
	Descriptor *track.Descriptor
}

type row struct {
	priority   int
	descriptor track.Descriptor
}

// Table maps contexts to descriptors and priorities.
type Table struct {
	rows        map[track.Context]row
	defaultFade time.Duration
}

// Build creates a Table from entries. Problems in the input never fail the
// build: duplicates keep the first entry, a missing descriptor becomes silence,
// out of range volumes are clamped, negative priorities are raised to 0 so that
// every configured context outranks an unconfigured one. Every problem is reported to logger as a
// warning. Build returns the warnings as well so tooling can print them.
func Build(entries []Entry, defaultFade time.Duration, logger *log.Logger) (*Table, []string) {
	var warnings []string
	warn := func(msg string, kv ...any) {
		if logger != nil {
			logger.Warn(msg, kv...)
		}
		warnings = append(warnings, formatWarning(msg, kv...))
	}

	if defaultFade <= 0 {
		warn("default fade must be positive, using fallback", "fade", defaultFade, "fallback", DefaultFade)
		defaultFade = DefaultFade
	}

	t := &Table{
		rows:        make(map[track.Context]row, len(entries)),
		defaultFade: defaultFade,
	}

	for _, e := range entries {
		if e.Context == track.Silence {
			warn("entry for the silence context ignored")
			continue
		}
		if _, dup := t.rows[e.Context]; dup {
			warn("duplicate context entry, keeping the first", "context", e.Context)
			continue
		}

		var d track.Descriptor
		if e.Descriptor == nil {
			warn("context has no descriptor, treating as silence", "context", e.Context)
		} else {
			d = *e.Descriptor
			if d.Silent() {
				warn("context has no loop segment, treating as silence", "context", e.Context)
			}
			if v := track.ClampVolume(d.Volume); v != d.Volume {
				warn("volume out of range, clamped", "context", e.Context, "volume", d.Volume, "clamped", v)
				d.Volume = v
			}
			if d.Fade < 0 {
				warn("negative fade override ignored", "context", e.Context, "fade", d.Fade)
				d.Fade = 0
			}
		}
		priority := e.Priority
		if priority < 0 {
			warn("negative priority raised to 0", "context", e.Context, "priority", priority)
			priority = 0
		}
		t.rows[e.Context] = row{priority: priority, descriptor: d}
	}

	return t, warnings
}

// Resolve returns the descriptor for c. ok is false when c has no entry.
func (t *Table) Resolve(c track.Context) (track.Descriptor, bool) {
	if t == nil {
		return track.Descriptor{}, false
	}
	r, ok := t.rows[c]
	return r.descriptor, ok
}

// PriorityOf returns the rank of c, or NoPriority when c has no entry.
func (t *Table) PriorityOf(c track.Context) int {
	if t == nil {
		return NoPriority
	}
	r, ok := t.rows[c]
	if !ok {
		return NoPriority
	}
	return r.priority
}

// FadeDurationFor returns the descriptor's fade override when set, else the
// table default.
func (t *Table) FadeDurationFor(c track.Context) time.Duration {
	if t == nil {
		return DefaultFade
	}
	if r, ok := t.rows[c]; ok && r.descriptor.Fade > 0 {
		return r.descriptor.Fade
	}
	return t.defaultFade
}

// DefaultFade returns the table-wide fade duration.
func (t *Table) DefaultFade() time.Duration {
	if t == nil {
		return DefaultFade
	}
	return t.defaultFade
}

// Has reports whether c has an entry.
func (t *Table) Has(c track.Context) bool {
	if t == nil {
		return false
	}
	_, ok := t.rows[c]
	return ok
}

// Len returns the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Contexts returns every configured context, highest priority first and by
// name within a rank.
func (t *Table) Contexts() []track.Context {
	if t == nil {
		return nil
	}
	names := make([]track.Context, 0, len(t.rows))
	for c := range t.rows {
		names = append(names, c)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := t.rows[names[i]].priority, t.rows[names[j]].priority
		if pi != pj {
			return pi > pj
		}
		return names[i] < names[j]
	})
	return names
}

// Segments returns every segment referenced by the table, without duplicates.
func (t *Table) Segments() []track.SegmentID {
	if t == nil {
		return nil
	}
	seen := make(map[track.SegmentID]bool)
	var out []track.SegmentID
	for _, c := range t.Contexts() {
		d := t.rows[c].descriptor
		for _, s := range []track.SegmentID{d.Intro, d.Loop} {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
