package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/satindergrewal/moodscore/internal/config"
	"github.com/satindergrewal/moodscore/internal/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.New(os.Stderr, cfg.LogLevel)

	runner := NewRunner(RunnerOpts{Config: &cfg, Logger: logger})

	app := &cli.Command{
		Name:     "moodscore",
		Usage:    "Context-driven adaptive music with priority preemption and crossfades",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
