package autopilot

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/satindergrewal/moodscore/internal/logging"
	"github.com/satindergrewal/moodscore/internal/track"
)

// DefaultPoll is how often Run checks the dwell timer.
const DefaultPoll = 250 * time.Millisecond

// Controller is the orchestrator surface the autopilot plays through, the
// same one a game would use.
type Controller interface {
	RequestContext(c track.Context) bool
	ForceContext(c track.Context)
	ReturnToPrevious()
	Current() track.Context
	Previous() track.Context
}

// Config holds the dwell range and polling interval.
type Config struct {
	DwellMin time.Duration
	DwellMax time.Duration
	Poll     time.Duration
}

// Status is the current autopilot state.
type Status struct {
	Enabled        bool    `json:"enabled"`
	DwellRemaining float64 `json:"dwell_remaining"` // seconds
	Moves          int     `json:"moves"`
}

// Option configures a Pilot.
type Option func(*Pilot)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Pilot) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRand makes move and dwell choices come from r.
func WithRand(r *rand.Rand) Option {
	return func(p *Pilot) { p.rng = r }
}

// WithClock replaces time.Now for the dwell timer.
func WithClock(now func() time.Time) Option {
	return func(p *Pilot) {
		if now != nil {
			p.now = now
		}
	}
}

// Pilot moves along a Graph, one neighbour per dwell period.
type Pilot struct {
	ctl    Controller
	graph  *Graph
	cfg    Config
	logger *log.Logger
	now    func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	mu       sync.RWMutex
	enabled  bool
	dwellEnd time.Time
	moves    int
}

// New creates a disabled Pilot.
func New(ctl Controller, g *Graph, cfg Config, opts ...Option) *Pilot {
	if cfg.DwellMin <= 0 {
		cfg.DwellMin = 20 * time.Second
	}
	if cfg.DwellMax < cfg.DwellMin {
		cfg.DwellMax = cfg.DwellMin
	}
	if cfg.Poll <= 0 {
		cfg.Poll = DefaultPoll
	}
	p := &Pilot{
		ctl:    ctl,
		graph:  g,
		cfg:    cfg,
		logger: logging.Component(nil, "autopilot"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetEnabled turns automatic moves on or off. Enabling starts a fresh dwell
// period so the current context is heard before the first move.
func (p *Pilot) SetEnabled(enabled bool) {
	p.mu.Lock()
	p.enabled = enabled
	if enabled {
		p.resetDwell()
	}
	p.mu.Unlock()
	p.logger.Info("autopilot", "enabled", enabled)
}

// Enabled reports whether automatic moves are on.
func (p *Pilot) Enabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}

// Status returns the current state.
func (p *Pilot) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := Status{Enabled: p.enabled, Moves: p.moves}
	if p.enabled {
		if remaining := p.dwellEnd.Sub(p.now()).Seconds(); remaining > 0 {
			s.DwellRemaining = remaining
		}
	}
	return s
}

// Run checks the dwell timer every poll interval until ctx is cancelled.
func (p *Pilot) Run(ctx context.Context) {
	p.logger.Info("autopilot started", "contexts", p.graph.Len(), "dwell_min", p.cfg.DwellMin, "dwell_max", p.cfg.DwellMax)

	ticker := time.NewTicker(p.cfg.Poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Step()
		}
	}
}

// Step makes one move if enabled and the dwell period is over. It returns
// the context moved to.
func (p *Pilot) Step() (track.Context, bool) {
	p.mu.Lock()
	if !p.enabled || p.now().Before(p.dwellEnd) {
		p.mu.Unlock()
		return track.Silence, false
	}
	p.resetDwell()
	p.mu.Unlock()

	cur := p.ctl.Current()
	next, ok := p.pick(cur)
	if !ok {
		return track.Silence, false
	}

	how := "request"
	switch {
	case next == p.ctl.Previous():
		how = "return"
		p.ctl.ReturnToPrevious()
	case !p.ctl.RequestContext(next):
		// Heading down the ladder never wins on priority.
		how = "force"
		p.ctl.ForceContext(next)
	}

	p.mu.Lock()
	p.moves++
	p.mu.Unlock()
	p.logger.Info("autopilot move", "from", cur, "to", next, "via", how)
	return next, true
}

func (p *Pilot) pick(cur track.Context) (track.Context, bool) {
	adj, ok := p.graph.Neighbours(cur)
	if !ok {
		entry := p.graph.Entry()
		return entry, entry != track.Silence
	}
	if len(adj) == 0 {
		return track.Silence, false
	}
	return adj[p.intN(len(adj))], true
}

// resetDwell picks a new dwell period. Must be called with mu held.
func (p *Pilot) resetDwell() {
	dwell := p.cfg.DwellMin
	if spread := p.cfg.DwellMax - p.cfg.DwellMin; spread > 0 {
		dwell += time.Duration(p.int64N(int64(spread)))
	}
	p.dwellEnd = p.now().Add(dwell)
}

func (p *Pilot) intN(n int) int {
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	if p.rng != nil {
		return p.rng.IntN(n)
	}
	return rand.IntN(n)
}

func (p *Pilot) int64N(n int64) int64 {
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	if p.rng != nil {
		return p.rng.Int64N(n)
	}
	return rand.Int64N(n)
}
