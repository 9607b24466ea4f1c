package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-git/go-git/v5/utils/binary"
	"github.com/urfave/cli/v2"

	"github.com/jensroland/git-lineage/internal/format"
	"github.com/jensroland/git-lineage/internal/git"
	"github.com/jensroland/git-lineage/internal/lineset"
)

// AddedLinesCommand returns the added-lines command.
func AddedLinesCommand() *cli.Command {
	return &cli.Command{
		Name:      "added-lines",
		Usage:     "Print the lines of NEW that are not carried over from OLD",
		ArgsUsage: "OLD NEW",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "show", Usage: "Render the diff side by side"},
		},
		Action: runAddedLines,
	}
}

func runAddedLines(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: git-lineage added-lines OLD NEW")
	}
	oldText, err := readText(c.Args().Get(0), true)
	if err != nil {
		return err
	}
	newText, err := readText(c.Args().Get(1), false)
	if err != nil {
		return err
	}

	w := c.App.Writer
	if c.Bool("show") {
		fmt.Fprintln(w, format.SideBySide(oldText, newText, format.Width(w), 0, format.ColorsFor(w)))
	}
	fmt.Fprintln(w, lineset.AddedLines(oldText, newText).String())
	return nil
}

// readText reads a text file for diffing. When optional is set, a missing
// file or /dev/null reads as empty so new files can be diffed. Binary
// content is rejected the way revision diffs skip it.
func readText(path string, optional bool) (string, error) {
	if optional && path == os.DevNull {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if optional && os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if isBin, err := binary.IsBinary(bytes.NewReader(data)); err != nil || isBin {
		return "", fmt.Errorf("%s: binary file, not diffing", path)
	}
	return string(data), nil
}

// DiffFilesCommand returns the diff-files command.
func DiffFilesCommand() *cli.Command {
	return &cli.Command{
		Name:      "diff-files",
		Usage:     "Print the lines each file gained between two revisions",
		ArgsUsage: "FROM [TO] [-- PATHSPEC...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print a path to line set JSON object"},
			&cli.BoolFlag{Name: "show", Usage: "Render each changed file side by side"},
			&cli.IntFlag{Name: "max-rows", Usage: "Rows per file with --show", Value: 40},
		},
		Action: runDiffFiles,
	}
}

func runDiffFiles(c *cli.Context) error {
	s, err := newSession(c, "lineage", c.App.ErrWriter)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := requireRepo(s); err != nil {
		return err
	}

	revs, pathspecs := splitDashes(c.Args().Slice())
	if len(revs) == 0 || len(revs) > 2 {
		return fmt.Errorf("usage: git-lineage diff-files FROM [TO] [-- PATHSPEC...]")
	}
	from, to := revs[0], "HEAD"
	if len(revs) == 2 {
		to = revs[1]
	}

	repo, err := git.Open(s.root)
	if err != nil {
		return err
	}
	if c.Bool("show") {
		changes, err := repo.Changes(c.Context, from, to, pathspecs...)
		if err != nil {
			return err
		}
		colors := format.ColorsFor(s.out)
		for _, ch := range changes {
			fmt.Fprintf(s.out, "%s%s%s\n", colors.Bold, ch.Path, colors.Reset)
			fmt.Fprintln(s.out, format.SideBySide(ch.OldText, ch.NewText, format.Width(s.out), c.Int("max-rows"), colors))
		}
	}

	fs, err := repo.DiffAddedLines(c.Context, from, to, pathspecs...)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		return writeJSON(s, fs)
	}
	fmt.Fprint(s.out, format.Added(fs))
	return nil
}

// splitDashes separates arguments before and after a "--" separator.
// The flag parser drops a leading "--" but keeps one after a positional.
func splitDashes(args []string) (before, after []string) {
	for i, a := range args {
		if a == "--" {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}
