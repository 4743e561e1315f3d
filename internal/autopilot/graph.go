// Package autopilot drives the orchestrator when no game is attached. It
// wanders between neighbouring contexts on a dwell timer, which is enough to
// hear every crossfade, preemption and return path of a table.
package autopilot

import (
	"sort"

	"github.com/satindergrewal/moodscore/internal/table"
	"github.com/satindergrewal/moodscore/internal/track"
)

// Graph holds the moves the autopilot may make. Moves only follow edges,
// no jumping across the graph.
type Graph struct {
	edges map[track.Context][]track.Context
	entry track.Context
}

// Ladder links every looping context of t to the contexts directly above and
// below it in priority order. Silent contexts and one-shot stingers are left
// out. The entry point is the lowest ranked context.
func Ladder(t *table.Table) *Graph {
	var rungs []track.Context
	for _, c := range t.Contexts() {
		d, _ := t.Resolve(c)
		if d.Silent() || !d.Looping {
			continue
		}
		rungs = append(rungs, c)
	}

	g := &Graph{edges: make(map[track.Context][]track.Context, len(rungs))}
	for i, c := range rungs {
		var adj []track.Context
		if i > 0 {
			adj = append(adj, rungs[i-1])
		}
		if i+1 < len(rungs) {
			adj = append(adj, rungs[i+1])
		}
		g.edges[c] = adj
	}
	if len(rungs) > 0 {
		g.entry = rungs[len(rungs)-1]
	}
	return g
}

// Neighbours returns the contexts reachable from c. ok is false when c is not
// on the graph.
func (g *Graph) Neighbours(c track.Context) (adj []track.Context, ok bool) {
	adj, ok = g.edges[c]
	return adj, ok
}

// Entry is where the autopilot starts from silence or from a context that is
// not on the graph. It is Silence for an empty graph.
func (g *Graph) Entry() track.Context { return g.entry }

// Len returns the number of contexts on the graph.
func (g *Graph) Len() int { return len(g.edges) }

// Contexts returns the contexts on the graph sorted by name.
func (g *Graph) Contexts() []track.Context {
	out := make([]track.Context, 0, len(g.edges))
	for c := range g.edges {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
