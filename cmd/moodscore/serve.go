package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/satindergrewal/moodscore/internal/api"
	"github.com/satindergrewal/moodscore/internal/audio"
	"github.com/satindergrewal/moodscore/internal/autopilot"
	"github.com/satindergrewal/moodscore/internal/config"
	"github.com/satindergrewal/moodscore/internal/journal"
	"github.com/satindergrewal/moodscore/internal/logging"
	"github.com/satindergrewal/moodscore/internal/mixer"
	"github.com/satindergrewal/moodscore/internal/orchestrator"
	"github.com/satindergrewal/moodscore/internal/output"
	"github.com/satindergrewal/moodscore/internal/scheduler"
	"github.com/satindergrewal/moodscore/internal/stream"
	"github.com/satindergrewal/moodscore/internal/track"
	"github.com/satindergrewal/moodscore/internal/web"
)

// Serve runs the music engine with its HTTP API and monitor streams until
// SIGINT or SIGTERM, then fades to silence and exits.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := *r.config
	if p := cmd.String("table"); p != "" {
		cfg.TablePath = p
	}
	if p := cmd.String("assets"); p != "" {
		cfg.AssetsDir = p
	}
	if port := int(cmd.Int("port")); port > 0 {
		cfg.Port = port
	}
	if cmd.Bool("speaker") {
		cfg.Speaker = true
	}
	if cmd.Bool("autopilot") {
		cfg.Autopilot = true
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	r.logger.Info("moodscore starting up", "table", cfg.TablePath, "assets", cfg.AssetsDir)

	// A missing or unreadable table is not fatal: the orchestrator rejects
	// every request and says so.
	tbl, _, err := config.BuildTable(cfg.TablePath, cfg.FadeOverride, logging.Component(r.logger, "table"))
	if err != nil {
		r.logger.Error("context table unavailable", "err", err)
	} else {
		r.logger.Info("context table loaded", "contexts", tbl.Len(), "default_fade", tbl.DefaultFade())
	}

	bank := audio.NewBank(cfg.AssetsDir, logging.Component(r.logger, "audio"))
	if err := bank.Preload(tbl.Segments()...); err != nil {
		r.logger.Warn("some segments failed to load and will play as silence", "err", err)
	}

	mix := mixer.New(bank, logging.Component(r.logger, "mixer"))
	chA, chB := mix.Channels()
	sched := scheduler.New(chA, chB, mix, scheduler.WithLogger(logging.Component(r.logger, "scheduler")))
	orch := orchestrator.New(tbl, sched, orchestrator.WithLogger(logging.Component(r.logger, "orchestrator")))
	loop := orchestrator.NewLoop(orch, cfg.Tick)

	// Audio and the owner loop outlive the signal so the final fade is heard.
	audioCtx, stopAudio := context.WithCancel(context.Background())
	defer stopAudio()
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()

	go mix.Run(audioCtx)

	broadcaster := stream.NewBroadcaster(logging.Component(r.logger, "stream"))
	go broadcaster.Run(audioCtx, mix.Frames())

	go loop.Run(loopCtx)

	var wg sync.WaitGroup
	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			r.logger.Warn("journal disabled", "path", cfg.JournalPath, "err", err)
		} else {
			defer j.Close()
			rec := journal.NewRecorder(j, 0, logging.Component(r.logger, "journal"))
			recCtx, stopRec := context.WithCancel(context.Background())
			defer func() {
				stopRec()
				wg.Wait()
			}()
			wg.Add(1)
			go func() {
				defer wg.Done()
				rec.Run(recCtx)
			}()
			loop.OnContextChanged(rec.Observe)
		}
	}

	if cfg.Speaker {
		if spk, err := output.Open(broadcaster, logging.Component(r.logger, "output")); err != nil {
			r.logger.Warn("local output disabled", "err", err)
		} else {
			go spk.Run(audioCtx)
		}
	}

	if cfg.StartContext != "" {
		loop.ForceContext(track.ParseContext(cfg.StartContext))
	}

	pilot := autopilot.New(loop, autopilot.Ladder(tbl), autopilot.Config{
		DwellMin: cfg.DwellMin,
		DwellMax: cfg.DwellMax,
	}, autopilot.WithLogger(logging.Component(r.logger, "autopilot")))
	pilot.SetEnabled(cfg.Autopilot)
	go pilot.Run(ctx)

	webrtcHandler := stream.NewWebRTCHandler(broadcaster, cfg.STUNURLs, logging.Component(r.logger, "webrtc"))

	mux := http.NewServeMux()
	mux.Handle("/", web.Handler())
	mux.Handle("/api/", api.New(loop, tbl,
		api.WithLogger(logging.Component(r.logger, "api")),
		api.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		api.WithAutopilot(pilot),
		api.WithListenerCount(func() int {
			return broadcaster.ListenerCount() + webrtcHandler.PeerCount()
		}),
	))
	mux.Handle("/stream", stream.NewHTTPHandler(broadcaster, cfg.MP3Bitrate, logging.Component(r.logger, "http")))
	mux.Handle("/offer", webrtcHandler)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	serveErr := make(chan error, 1)
	go func() {
		r.logger.Info("moodscore live", "addr", addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			r.logger.Error("HTTP server error", "err", err)
		}
	}

	r.logger.Info("shutting down, fading out")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := server.Shutdown(shutdownCtx); err != nil {
		server.Close()
	}
	shutdownCancel()

	pilot.SetEnabled(false)
	loop.Stop()
	waitForFade(loop, tbl.DefaultFade()+time.Second, cfg.Tick)

	stopLoop()
	<-loop.Done()
	stopAudio()
	return nil
}

// waitForFade polls until no transition is running or limit passes.
func waitForFade(l *orchestrator.Loop, limit, poll time.Duration) {
	if poll <= 0 {
		poll = orchestrator.DefaultTick
	}
	deadline := time.After(limit)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for l.Snapshot().Busy {
		select {
		case <-deadline:
			return
		case <-ticker.C:
		}
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the music engine with the control API and monitor streams",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "table",
				Aliases: []string{"t"},
				Usage:   "Path to the context table (.toml, .yaml)",
			},
			&cli.StringFlag{
				Name:    "assets",
				Aliases: []string{"a"},
				Usage:   "Directory segment IDs are resolved against",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "HTTP port",
			},
			&cli.BoolFlag{
				Name:  "speaker",
				Usage: "Also play on the local audio device",
			},
			&cli.BoolFlag{
				Name:  "autopilot",
				Usage: "Wander between contexts without a game attached",
			},
		},
		Action: r.Serve,
	}
}
