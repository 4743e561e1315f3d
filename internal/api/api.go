// Package api exposes the orchestrator over HTTP so a dev console or an
// out-of-process game can drive the music.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/satindergrewal/moodscore/internal/autopilot"
	"github.com/satindergrewal/moodscore/internal/orchestrator"
	"github.com/satindergrewal/moodscore/internal/table"
	"github.com/satindergrewal/moodscore/internal/track"
)

// Controller is the part of the orchestrator loop the API drives. Every
// method must be safe to call from HTTP handler goroutines.
type Controller interface {
	RequestContext(c track.Context) bool
	ForceContext(c track.Context)
	ReturnToPrevious()
	Stop()
	Snapshot() orchestrator.Snapshot
}

var _ Controller = (*orchestrator.Loop)(nil)

// Autopilot is the optional driver toggled through /api/autopilot.
type Autopilot interface {
	SetEnabled(enabled bool)
	Status() autopilot.Status
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRateLimit caps POST requests at rps per second with the given burst.
// rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithListenerCount reports connected monitor listeners in /api/status.
func WithListenerCount(fn func() int) Option {
	return func(s *Server) { s.listeners = fn }
}

// WithAutopilot exposes p under /api/autopilot.
func WithAutopilot(p Autopilot) Option {
	return func(s *Server) { s.pilot = p }
}

// Server serves the control API.
type Server struct {
	ctl       Controller
	pilot     Autopilot
	table     *table.Table
	limiter   *rate.Limiter
	listeners func() int
	logger    *log.Logger
	mux       *http.ServeMux
}

// New builds the API for ctl. t may be nil, in which case /api/contexts lists
// nothing.
func New(ctl Controller, t *table.Table, opts ...Option) *Server {
	s := &Server{
		ctl:     ctl,
		table:   t,
		limiter: rate.NewLimiter(rate.Inf, 0),
		logger:  log.Default(),
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type statusResponse struct {
	Current    string     `json:"current"`
	Previous   string     `json:"previous"`
	Busy       bool       `json:"busy"`
	Transition string     `json:"transition,omitempty"`
	Active     int        `json:"active"`
	Volumes    [2]float64 `json:"volumes"`
	Playing    [2]bool    `json:"playing"`
	Listeners  int        `json:"listeners"`
}

type contextRequest struct {
	Context string `json:"context"`
	Force   bool   `json:"force"`
}

type contextResponse struct {
	Accepted bool   `json:"accepted"`
	Current  string `json:"current"`
	Previous string `json:"previous"`
}

type contextInfo struct {
	Name     string  `json:"name"`
	Priority int     `json:"priority"`
	Loop     string  `json:"loop,omitempty"`
	Intro    string  `json:"intro,omitempty"`
	Volume   float64 `json:"volume"`
	Looping  bool    `json:"looping"`
	Fade     float64 `json:"fade"`
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "GET required", http.StatusMethodNotAllowed)
			return
		}
		snap := s.ctl.Snapshot()
		resp := statusResponse{
			Current:    snap.Current.String(),
			Previous:   snap.Previous.String(),
			Busy:       snap.Busy,
			Transition: snap.Transition,
			Active:     snap.Active,
			Volumes:    snap.Volumes,
			Playing:    snap.Playing,
		}
		if s.listeners != nil {
			resp.Listeners = s.listeners()
		}
		writeJSON(w, resp)
	})

	s.mux.HandleFunc("/api/contexts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "GET required", http.StatusMethodNotAllowed)
			return
		}
		out := []contextInfo{}
		for _, c := range s.table.Contexts() {
			d, _ := s.table.Resolve(c)
			out = append(out, contextInfo{
				Name:     c.String(),
				Priority: s.table.PriorityOf(c),
				Loop:     string(d.Loop),
				Intro:    string(d.Intro),
				Volume:   d.Volume,
				Looping:  d.Looping,
				Fade:     s.table.FadeDurationFor(c).Seconds(),
			})
		}
		writeJSON(w, out)
	})

	s.mux.HandleFunc("/api/context", s.post(func(w http.ResponseWriter, r *http.Request) {
		var req contextRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		c := track.ParseContext(req.Context)
		var accepted bool
		if req.Force {
			s.ctl.ForceContext(c)
		} else {
			accepted = s.ctl.RequestContext(c)
		}
		snap := s.ctl.Snapshot()
		if req.Force {
			// A force is ignored only when the orchestrator has no table.
			accepted = snap.Current == c
		}
		s.logger.Debug("context request", "context", c, "force", req.Force, "accepted", accepted)
		writeJSON(w, contextResponse{
			Accepted: accepted,
			Current:  snap.Current.String(),
			Previous: snap.Previous.String(),
		})
	}))

	s.mux.HandleFunc("/api/return", s.post(func(w http.ResponseWriter, r *http.Request) {
		target := s.ctl.Snapshot().Previous
		s.ctl.ReturnToPrevious()
		snap := s.ctl.Snapshot()
		writeJSON(w, contextResponse{
			Accepted: snap.Current == target,
			Current:  snap.Current.String(),
			Previous: snap.Previous.String(),
		})
	}))

	s.mux.HandleFunc("/api/stop", s.post(func(w http.ResponseWriter, r *http.Request) {
		s.ctl.Stop()
		snap := s.ctl.Snapshot()
		writeJSON(w, contextResponse{
			Accepted: snap.Current == track.Silence,
			Current:  snap.Current.String(),
			Previous: snap.Previous.String(),
		})
	}))

	if s.pilot == nil {
		return
	}
	s.mux.HandleFunc("/api/autopilot", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			writeJSON(w, s.pilot.Status())
			return
		}
		s.post(func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Enabled bool `json:"enabled"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid request", http.StatusBadRequest)
				return
			}
			s.pilot.SetEnabled(req.Enabled)
			writeJSON(w, s.pilot.Status())
		})(w, r)
	})
}

// post restricts h to POST and applies the rate limit.
func (s *Server) post(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		if !s.limiter.Allow() {
			s.logger.Warn("rate limited", "path", r.URL.Path, "remote", r.RemoteAddr)
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(v)
}
