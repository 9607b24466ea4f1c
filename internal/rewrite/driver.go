package rewrite

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/jensroland/git-lineage/internal/ci"
	"github.com/jensroland/git-lineage/internal/git"
	"github.com/jensroland/git-lineage/internal/lineset"
)

// Repo is the read access the driver needs. *git.Repository implements it.
type Repo interface {
	Commit(rev string) (*git.CommitInfo, error)
	FileAt(rev, path string) (string, bool, error)
	Changes(ctx context.Context, from, to string, pathspecs ...string) ([]git.FileChange, error)
}

// Checkpoint is one commit collapsed into the final commit.
type Checkpoint struct {
	SHA   string `json:"sha"`
	Agent string `json:"agent,omitempty"`
}

// Input names the commits of one rewrite.
type Input struct {
	// Base is the final commit's first parent; empty for a root commit.
	Base  string
	Final string
	// Checkpoints are ordered oldest first.
	Checkpoints []Checkpoint
	Pathspecs   []string
}

// CheckpointResult is what one checkpoint contributed to the final files.
type CheckpointResult struct {
	Checkpoint
	Added lineset.FileSet `json:"added"`
}

// Result is the attribution of every file the final commit changed.
type Result struct {
	Commit      string                     `json:"commit"`
	Base        string                     `json:"base"`
	Files       map[string]FileAttribution `json:"files"`
	Checkpoints []CheckpointResult         `json:"checkpoints"`
}

type blob struct {
	content string
	ok      bool
}

// Driver computes Results. It caches blob reads across files and runs.
type Driver struct {
	repo  Repo
	log   zerolog.Logger
	blobs *lru.Cache[string, blob]
}

const blobCacheSize = 512

// New returns a Driver reading from repo.
func New(repo Repo, log zerolog.Logger) *Driver {
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, blob](blobCacheSize)
	return &Driver{repo: repo, log: log, blobs: cache}
}

func (d *Driver) fileAt(rev, path string) (string, bool, error) {
	key := rev + ":" + path
	if b, ok := d.blobs.Get(key); ok {
		return b.content, b.ok, nil
	}
	content, ok, err := d.repo.FileAt(rev, path)
	if err != nil {
		return "", false, err
	}
	d.blobs.Add(key, blob{content: content, ok: ok})
	return content, ok, nil
}

// Run attributes every line of every text file in.Final changed against
// in.Base. Running it twice on the same input gives the same Result.
func (d *Driver) Run(ctx context.Context, in Input) (*Result, error) {
	changes, err := d.repo.Changes(ctx, in.Base, in.Final, in.Pathspecs...)
	if err != nil {
		return nil, fmt.Errorf("listing changes in %s: %w", in.Final, err)
	}

	res := &Result{
		Commit:      in.Final,
		Base:        in.Base,
		Files:       make(map[string]FileAttribution, len(changes)),
		Checkpoints: make([]CheckpointResult, len(in.Checkpoints)),
	}
	for i, cp := range in.Checkpoints {
		res.Checkpoints[i] = CheckpointResult{Checkpoint: cp, Added: lineset.FileSet{}}
	}

	for _, ch := range changes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snapshots := make([]Snapshot, len(in.Checkpoints))
		for i, cp := range in.Checkpoints {
			s, err := d.snapshot(cp, ch)
			if err != nil {
				return nil, err
			}
			snapshots[i] = s
		}

		lines, added := AttributeFile(ch.OldText, snapshots, ch.NewText)
		fa := NewFileAttribution(ch.Path, lines)
		res.Files[ch.Path] = fa
		for i, ls := range added {
			if !ls.IsEmpty() {
				res.Checkpoints[i].Added[ch.Path] = ls
			}
		}
		d.log.Debug().
			Str("path", ch.Path).
			Int("lines", fa.LineCount).
			Strs("agents", fa.AgentNames()).
			Msg("attributed")
	}
	return res, nil
}

// snapshot reads the changed file at a checkpoint, falling back to its
// pre-rename path.
func (d *Driver) snapshot(cp Checkpoint, ch git.FileChange) (Snapshot, error) {
	paths := []string{ch.Path}
	if ch.OldPath != "" && ch.OldPath != ch.Path {
		paths = append(paths, ch.OldPath)
	}
	for _, p := range paths {
		content, ok, err := d.fileAt(cp.SHA, p)
		if err != nil {
			return Snapshot{}, fmt.Errorf("reading %s at checkpoint %s: %w", p, cp.SHA, err)
		}
		if ok {
			return Snapshot{Agent: cp.Agent, Content: content, Present: true}, nil
		}
	}
	return Snapshot{Agent: cp.Agent}, nil
}

// LoadCheckpoints reads the agent trailer of each commit in shas.
func LoadCheckpoints(repo Repo, shas []string) ([]Checkpoint, error) {
	cps := make([]Checkpoint, 0, len(shas))
	for _, sha := range shas {
		info, err := repo.Commit(sha)
		if err != nil {
			return nil, err
		}
		cps = append(cps, Checkpoint{SHA: info.SHA, Agent: info.Agent})
	}
	return cps, nil
}

// InputFromContext builds the rewrite input for a resolved CI merge: the
// final commit is the effective merge sha, the base its first parent, and
// the checkpoints the merge request's commits not reachable from base.
func InputFromContext(c *ci.Context, pathspecs ...string) (Input, error) {
	ev := c.Merge()
	if ev.MergeCommitSHA == "" {
		return Input{}, fmt.Errorf("context has no merge event")
	}
	return InputForMerge(c.Repo, git.Runner{Dir: c.Workspace}, ev.MergeCommitSHA, ev.FetchedRef, pathspecs...)
}

// InputForMerge builds the rewrite input for final with the merge
// request head at headRef, reading history through runner.
func InputForMerge(repo Repo, runner git.Runner, final, headRef string, pathspecs ...string) (Input, error) {
	info, err := repo.Commit(final)
	if err != nil {
		return Input{}, err
	}
	in := Input{Final: info.SHA, Pathspecs: pathspecs}
	if len(info.Parents) > 0 {
		in.Base = info.Parents[0]
	}

	shas, err := runner.RevList(in.Base, headRef)
	if err != nil {
		return Input{}, fmt.Errorf("listing merge request commits: %w", err)
	}
	if in.Checkpoints, err = LoadCheckpoints(repo, shas); err != nil {
		return Input{}, err
	}
	return in, nil
}
