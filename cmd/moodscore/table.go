package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/satindergrewal/moodscore/internal/config"
	"github.com/satindergrewal/moodscore/internal/table"
)

// Check parses a context table and prints its warnings and contexts. With
// --watch it re-checks on every save until interrupted.
func (r *Runner) Check(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		path = r.config.TablePath
	}
	strict := cmd.Bool("strict")

	err := r.checkTable(path, strict)
	if !cmd.Bool("watch") {
		return err
	}
	if err != nil {
		r.writePlain("error: %v\n", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	w, err := config.WatchFile(path, 0)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	defer w.Close()

	r.writePlain("watching %s for changes\n", path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-w.Events:
			if !ok {
				return nil
			}
			r.writePlain("\n%s changed\n", path)
			if err := r.checkTable(path, strict); err != nil {
				r.writePlain("error: %v\n", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("watch error", "err", err)
		}
	}
}

func (r *Runner) checkTable(path string, strict bool) error {
	tbl, warnings, err := config.BuildTable(path, 0, nil)
	if err != nil {
		return err
	}

	for _, w := range warnings {
		r.writePlain("warning: %s\n", w)
	}
	r.writePlain("%s: %d contexts, default fade %s, %d warnings\n\n",
		path, tbl.Len(), tbl.DefaultFade(), len(warnings))
	if err := r.writeContexts(tbl); err != nil {
		return err
	}

	if strict && len(warnings) > 0 {
		return fmt.Errorf("%w: %d", ErrTableWarnings, len(warnings))
	}
	return nil
}

func (r *Runner) writeContexts(tbl *table.Table) error {
	tw := tabwriter.NewWriter(r.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CONTEXT\tPRIORITY\tLOOP\tINTRO\tVOLUME\tLOOPING\tFADE")
	for _, c := range tbl.Contexts() {
		d, _ := tbl.Resolve(c)
		loop, intro := string(d.Loop), string(d.Intro)
		if loop == "" {
			loop = "(silence)"
		}
		if intro == "" {
			intro = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%.2f\t%t\t%s\n",
			c, tbl.PriorityOf(c), loop, intro, d.Volume, d.Looping, tbl.FadeDurationFor(c))
	}
	return tw.Flush()
}

// Init writes the example context table.
func (r *Runner) Init(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		path = r.config.TablePath
	}
	if err := config.WriteExampleTable(path); err != nil {
		return err
	}
	return r.writePlain("wrote example context table to %s\n", path)
}

func checkCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Validate a context table and list its contexts",
		ArgsUsage: "[FILE]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Re-check the file every time it is saved",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Fail when the table has warnings",
			},
		},
		Action: r.Check,
	}
}

func initCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Write an example context table",
		ArgsUsage: "[FILE]",
		Action:    r.Init,
	}
}
