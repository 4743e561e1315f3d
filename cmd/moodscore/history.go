package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/satindergrewal/moodscore/internal/journal"
)

type historyRow struct {
	ID       string    `json:"id"`
	Previous string    `json:"previous"`
	Next     string    `json:"next"`
	At       time.Time `json:"at"`
}

// History prints the most recent context changes from the journal.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("journal")
	if path == "" {
		path = r.config.JournalPath
	}
	if path == "" {
		return fmt.Errorf("%w: set MOODSCORE_JOURNAL or --journal", ErrNoJournal)
	}

	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.Recent(int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		rows := make([]historyRow, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, historyRow{ID: e.ID, Previous: e.Previous.String(), Next: e.Next.String(), At: e.At})
		}
		return r.writeJSON(rows)
	}

	if len(entries) == 0 {
		return r.writePlain("no context changes recorded\n")
	}
	tw := tabwriter.NewWriter(r.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "AT\tPREVIOUS\tNEXT\tID")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.At.Local().Format(time.DateTime), e.Previous, e.Next, e.ID)
	}
	return tw.Flush()
}

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent context changes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "journal",
				Aliases: []string{"j"},
				Usage:   "Path to the journal database",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of entries",
				Value:   20,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output JSON",
			},
		},
		Action: r.History,
	}
}
