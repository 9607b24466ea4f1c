package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/jensroland/git-lineage/internal/ci"
	"github.com/jensroland/git-lineage/internal/config"
	"github.com/jensroland/git-lineage/internal/format"
	"github.com/jensroland/git-lineage/internal/index"
	"github.com/jensroland/git-lineage/internal/rewrite"
)

// CICommand returns the ci command group.
func CICommand() *cli.Command {
	providerFlag := &cli.StringFlag{
		Name:    "provider",
		Aliases: []string{"p"},
		Usage:   "Use `PROVIDER` (gitlab, github) instead of detecting it",
	}
	keepFlag := &cli.BoolFlag{
		Name:  "keep",
		Usage: "Keep the clone workspace after the command finishes",
	}
	return &cli.Command{
		Name:  "ci",
		Usage: "Resolve and rewrite attribution inside a CI pipeline",
		Subcommands: []*cli.Command{
			{
				Name:   "context",
				Usage:  "Find the merge request behind this pipeline and materialize it",
				Flags:  []cli.Flag{providerFlag, keepFlag},
				Action: runCIContext,
			},
			{
				Name:      "rewrite",
				Usage:     "Carry checkpoint attribution onto the merged commit",
				ArgsUsage: "[PATHSPEC...]",
				Flags: []cli.Flag{
					providerFlag,
					keepFlag,
					&cli.BoolFlag{Name: "json", Usage: "Print the result as JSON"},
					&cli.BoolFlag{Name: "no-index", Usage: "Do not save the result to the index"},
				},
				Action: runCIRewrite,
			},
			{
				Name:      "template",
				Usage:     "Print the pipeline snippet that runs the rewrite",
				ArgsUsage: "PROVIDER",
				Action:    runCITemplate,
			},
		},
	}
}

func ciOptions(s *session) ci.Options {
	return ci.Options{
		Lookback:        s.cfg.CI.Lookback,
		RequestTimeout:  s.cfg.CI.RequestTimeout,
		PageSize:        s.cfg.CI.PageSize,
		WorkspaceDir:    s.cfg.CI.WorkspaceDir,
		UniqueWorkspace: s.cfg.CI.UniqueWorkspace,
		Version:         s.version,
		Logger:          s.log,
	}
}

// resolve looks up and materializes the pipeline's merge request. A nil
// context with a nil error means the commit came from no merge request.
func resolve(ctx context.Context, c *cli.Context, s *session) (*ci.Context, error) {
	vars, err := cfgEnviron()
	if err != nil {
		return nil, err
	}
	opts := ciOptions(s)

	var res *ci.Resolution
	if name := c.String("provider"); name != "" {
		p, err := ci.ParseProvider(name)
		if err != nil {
			return nil, err
		}
		res, err = ci.LookupProvider(ctx, p, vars, opts)
		if err != nil {
			return nil, err
		}
	} else if res, err = ci.Lookup(ctx, vars, opts); err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	cctx, err := ci.Materialize(res, opts)
	var merr *ci.MaterializeError
	if errors.As(err, &merr) {
		if merr.Removed {
			s.log.Debug().Str("workspace", merr.Workspace).Msg("discarded partial workspace")
		} else {
			s.log.Warn().Str("workspace", merr.Workspace).Msg("workspace left in place; remove it before the next run")
		}
	}
	return cctx, err
}

type contextJSON struct {
	Provider       ci.Provider `json:"provider"`
	Workspace      string      `json:"workspace"`
	MergeCommitSHA string      `json:"merge_commit_sha"`
	HeadRef        string      `json:"head_ref"`
	HeadSHA        string      `json:"head_sha"`
	BaseRef        string      `json:"base_ref"`
	BaseSHA        string      `json:"base_sha,omitempty"`
	MergeRequestID int         `json:"merge_request_id"`
	FetchedRef     string      `json:"fetched_ref"`
}

func runCIContext(c *cli.Context) error {
	s, err := newSession(c, "ci", c.App.ErrWriter)
	if err != nil {
		return err
	}
	defer s.Close()

	cctx, err := resolve(c.Context, c, s)
	if err != nil {
		return err
	}
	if cctx == nil {
		fmt.Fprintln(s.out, "No merge request corresponds to this commit.")
		return nil
	}
	if !c.Bool("keep") {
		defer cleanup(s, cctx)
	}

	ev := cctx.Merge()
	return writeJSON(s, contextJSON{
		Provider:       cctx.Provider,
		Workspace:      cctx.Workspace,
		MergeCommitSHA: ev.MergeCommitSHA,
		HeadRef:        ev.HeadRef,
		HeadSHA:        ev.HeadSHA,
		BaseRef:        ev.BaseRef,
		BaseSHA:        ev.BaseSHA,
		MergeRequestID: ev.MergeRequestID,
		FetchedRef:     ev.FetchedRef,
	})
}

func runCIRewrite(c *cli.Context) error {
	s, err := newSession(c, "ci", c.App.ErrWriter)
	if err != nil {
		return err
	}
	defer s.Close()
	s.log = s.log.With().Str("run", uuid.NewString()).Logger()

	var (
		cctx  *ci.Context
		store *index.Store
	)
	g, gctx := errgroup.WithContext(c.Context)
	g.Go(func() error {
		var err error
		cctx, err = resolve(gctx, c, s)
		return err
	})
	if !c.Bool("no-index") {
		g.Go(func() error {
			var err error
			store, err = index.Open(s.paths.IndexDB)
			return err
		})
	}
	err = g.Wait()
	if store != nil {
		defer store.Close()
	}
	if cctx != nil && !c.Bool("keep") {
		defer cleanup(s, cctx)
	}
	if err != nil {
		return err
	}
	if cctx == nil {
		fmt.Fprintln(s.out, "No merge request corresponds to this commit; nothing to rewrite.")
		return nil
	}

	in, err := rewrite.InputFromContext(cctx, c.Args().Slice()...)
	if err != nil {
		return err
	}
	s.log.Info().
		Str("base", in.Base).
		Str("final", in.Final).
		Int("checkpoints", len(in.Checkpoints)).
		Msg("rewriting attribution")
	res, err := rewrite.New(cctx.Repo, s.log).Run(c.Context, in)
	if err != nil {
		return err
	}

	if store != nil {
		meta := index.Meta{
			Provider:     string(cctx.Provider),
			MergeRequest: cctx.Merge().MergeRequestID,
			RecordedAt:   time.Now(),
		}
		if err := store.Save(c.Context, res, meta); err != nil {
			return fmt.Errorf("saving to index: %w", err)
		}
		s.log.Debug().Str("index", s.paths.IndexDB).Msg("saved attribution")
	}

	if c.Bool("json") {
		return writeJSON(s, res)
	}
	fmt.Fprint(s.out, format.Summary(res, format.ColorsFor(s.out)))
	return nil
}

func runCITemplate(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: git-lineage ci template <gitlab|github>")
	}
	p, err := ci.ParseProvider(c.Args().First())
	if err != nil {
		return err
	}
	return ci.PrintTemplate(c.App.Writer, p)
}

// cfgEnviron snapshots the variables the CI resolver reads.
func cfgEnviron() (ci.Env, error) {
	vars, err := config.Environ(ci.Variables()...)
	if err != nil {
		return nil, err
	}
	return ci.Env(vars), nil
}

func cleanup(s *session, cctx *ci.Context) {
	if err := cctx.Cleanup(); err != nil {
		s.log.Warn().Err(err).Str("workspace", cctx.Workspace).Msg("failed to remove workspace")
	}
}

func writeJSON(s *session, v interface{}) error {
	enc := json.NewEncoder(s.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
