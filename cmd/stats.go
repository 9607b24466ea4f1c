package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/jensroland/git-lineage/internal/format"
	"github.com/jensroland/git-lineage/internal/index"
)

// StatsCommand returns the stats command.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Summarize the attribution index",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Output as JSON"},
		},
		Action: runStats,
	}
}

func runStats(c *cli.Context) error {
	s, err := newSession(c, "lineage", c.App.ErrWriter)
	if err != nil {
		return err
	}
	defer s.Close()

	store, err := index.Open(s.paths.IndexDB)
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := store.Stats(c.Context)
	if err != nil {
		return fmt.Errorf("reading index: %w", err)
	}
	if c.Bool("json") {
		return writeJSON(s, st)
	}
	fmt.Fprint(s.out, format.Stats(st, format.ColorsFor(s.out)))
	return nil
}
