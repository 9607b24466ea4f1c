package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/jensroland/git-lineage/internal/hook"
)

// HookCommand returns the hook command group. Hook actions always
// succeed; failures go to <gitdir>/lineage/logs/hook.log.
func HookCommand() *cli.Command {
	return &cli.Command{
		Name:  "hook",
		Usage: "Run a git hook",
		Subcommands: []*cli.Command{
			{
				Name:      "post-clone",
				Usage:     "Fetch attribution notes into a fresh clone",
				ArgsUsage: "[--exit-code N] -- CLONE_ARGS...",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "exit-code", Usage: "Exit status of the git clone"},
				},
				Action: runPostClone,
			},
			{
				Name:      "pre-push",
				Usage:     "Push attribution notes with the code",
				ArgsUsage: "[REMOTE [URL]]",
				Action:    runPrePush,
			},
		},
	}
}

func runPostClone(c *cli.Context) error {
	s, err := newSession(c, "hook", nil)
	if err != nil {
		return nil
	}
	defer s.Close()
	args, after := splitDashes(c.Args().Slice())
	if after != nil {
		args = after
	}
	hook.PostClone(s.dir, args, c.Int("exit-code"), s.log)
	return nil
}

func runPrePush(c *cli.Context) error {
	s, err := newSession(c, "hook", nil)
	if err != nil {
		return nil
	}
	defer s.Close()
	if s.root == "" {
		return nil
	}
	hook.PrePush(s.root, c.Args().First(), s.log)
	return nil
}
