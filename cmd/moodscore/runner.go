package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/satindergrewal/moodscore/internal/config"
	"github.com/satindergrewal/moodscore/internal/logging"
)

var (
	ErrTableWarnings = errors.New("context table has warnings")
	ErrNoJournal     = errors.New("no journal configured")
)

// Runner holds the dependencies shared by every command.
type Runner struct {
	config *config.Config
	logger *log.Logger
	output io.Writer
}

// RunnerOpts configures a Runner. Zero fields get defaults.
type RunnerOpts struct {
	Config *config.Config
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a Runner.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		cfg := config.Load()
		opts.Config = &cfg
	}
	if opts.Logger == nil {
		opts.Logger = logging.New(nil, opts.Config.LogLevel)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{config: opts.Config, logger: opts.Logger, output: opts.Output}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, checkCommand, historyCommand, initCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

func (r *Runner) writeJSON(data any) error {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if _, err := r.output.Write(append(out, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
