// Package cmd wires the git-lineage command line.
package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/jensroland/git-lineage/internal/config"
	"github.com/jensroland/git-lineage/internal/format"
	"github.com/jensroland/git-lineage/internal/logging"
	"github.com/jensroland/git-lineage/internal/project"
)

// NewApp returns the git-lineage application.
func NewApp(version string) *cli.App {
	return &cli.App{
		Name:    "git-lineage",
		Usage:   "Track which lines of a repository AI agents wrote",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE` (default: <repo>/" + config.FileName + ")",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Export variables from a dotenv `FILE` before running",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override log.level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log at debug level",
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Run as if started in `DIR`",
				Value: ".",
			},
		},
		Metadata: map[string]interface{}{"version": version},
		Commands: []*cli.Command{
			CICommand(),
			AddedLinesCommand(),
			DiffFilesCommand(),
			StatsCommand(),
			HookCommand(),
		},
	}
}

// session is the per-invocation state shared by commands.
type session struct {
	cfg     *config.Config
	log     zerolog.Logger
	dir     string
	root    string // empty outside a repository
	paths   project.Paths
	version string
	out     io.Writer
	closeFn func() error
}

func (s *session) Close() error { return s.closeFn() }

// newSession loads configuration and builds the logger. console receives
// log output; hooks pass nil to log only to the file.
func newSession(c *cli.Context, name string, console io.Writer) (*session, error) {
	if f := c.String("env-file"); f != "" {
		if err := config.LoadEnvFile(f); err != nil {
			return nil, err
		}
	}

	dir, err := filepath.Abs(c.String("dir"))
	if err != nil {
		return nil, err
	}
	s := &session{dir: dir, out: c.App.Writer, closeFn: func() error { return nil }}
	s.version = c.App.Version
	if v, ok := c.App.Metadata["version"].(string); ok {
		s.version = v
	}
	if root, err := project.FindRoot(dir); err == nil {
		s.root = root
	}

	cfgPath := c.String("config")
	if cfgPath == "" && s.root != "" {
		cfgPath = filepath.Join(s.root, config.FileName)
	}
	if s.cfg, err = config.Load(cfgPath); err != nil {
		return nil, err
	}

	base := s.root
	if base == "" {
		base = dir
	}
	s.paths = project.NewPaths(base, s.cfg.Index.Path)

	levelName := s.cfg.Log.Level
	if l := c.String("log-level"); l != "" {
		levelName = l
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	if c.Bool("verbose") {
		level = zerolog.DebugLevel
	}

	opts := logging.Options{Console: console, Name: name, Level: level}
	if s.root != "" {
		opts.CacheDir = s.paths.CacheDir
	}
	if console != nil {
		opts.NoColor = format.ColorsFor(console) == (format.Colors{})
	}
	s.log, s.closeFn = logging.New(opts)
	return s, nil
}

func requireRepo(s *session) error {
	if s.root == "" {
		return fmt.Errorf("not inside a git repository: %s", s.dir)
	}
	return nil
}
