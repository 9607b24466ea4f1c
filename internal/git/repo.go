package git

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"

	"github.com/jensroland/git-lineage/internal/lineset"
)

// Repository wraps a go-git repository opened from disk.
type Repository struct {
	repo *gogit.Repository
	path string
}

// Open opens the repository at path or any of its parents.
func Open(path string) (*Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening repository %s: %w", path, err)
	}
	return &Repository{repo: repo, path: path}, nil
}

// Path returns the directory the repository was opened from.
func (r *Repository) Path() string { return r.path }

// Resolve turns a revision (sha, branch, tag, HEAD~1) into a full sha.
func (r *Repository) Resolve(rev string) (string, error) {
	h, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", rev, err)
	}
	return h.String(), nil
}

// HasCommit reports whether sha names a commit object in the repository.
func (r *Repository) HasCommit(sha string) bool {
	if !plumbing.IsHash(sha) {
		return false
	}
	_, err := r.repo.CommitObject(plumbing.NewHash(sha))
	return err == nil
}

// CommitInfo is the subset of a commit the attribution layer reads.
type CommitInfo struct {
	SHA     string
	Parents []string
	Author  string
	Message string
	// Agent is the Lineage-Agent trailer value, empty for human commits.
	Agent string
}

// Commit loads the commit named by rev.
func (r *Repository) Commit(rev string) (*CommitInfo, error) {
	c, err := r.commit(rev)
	if err != nil {
		return nil, err
	}
	info := &CommitInfo{
		SHA:     c.Hash.String(),
		Author:  c.Author.Name,
		Message: c.Message,
		Agent:   AgentFromMessage(c.Message),
	}
	for _, p := range c.ParentHashes {
		info.Parents = append(info.Parents, p.String())
	}
	return info, nil
}

func (r *Repository) commit(rev string) (*object.Commit, error) {
	sha, err := r.Resolve(rev)
	if err != nil {
		return nil, err
	}
	c, err := r.repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, fmt.Errorf("reading commit %s: %w", sha, err)
	}
	return c, nil
}

func (r *Repository) tree(rev string) (*object.Tree, error) {
	if rev == "" {
		return &object.Tree{}, nil
	}
	c, err := r.commit(rev)
	if err != nil {
		return nil, err
	}
	t, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("reading tree of %s: %w", rev, err)
	}
	return t, nil
}

// FileAt returns the content of path at rev. ok is false when the file
// does not exist at that revision.
func (r *Repository) FileAt(rev, path string) (content string, ok bool, err error) {
	t, err := r.tree(rev)
	if err != nil {
		return "", false, err
	}
	f, err := t.File(path)
	if errors.Is(err, object.ErrFileNotFound) || errors.Is(err, object.ErrDirectoryNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s at %s: %w", path, rev, err)
	}
	content, err = f.Contents()
	if err != nil {
		return "", false, fmt.Errorf("reading %s at %s: %w", path, rev, err)
	}
	return content, true, nil
}

// FileChange is one text file added, modified, or renamed between two
// revisions.
type FileChange struct {
	Path    string
	OldPath string // empty for added files
	OldText string
	NewText string
}

// Changes lists the text files that differ between from and to, with
// rename detection. Deleted and binary files are skipped. An empty from
// compares against the empty tree. pathspecs restrict the result; each is
// a doublestar glob or a directory prefix.
func (r *Repository) Changes(ctx context.Context, from, to string, pathspecs ...string) ([]FileChange, error) {
	fromTree, err := r.tree(from)
	if err != nil {
		return nil, err
	}
	toTree, err := r.tree(to)
	if err != nil {
		return nil, err
	}

	opts := *object.DefaultDiffTreeOptions
	opts.RenameScore = 50
	changes, err := object.DiffTreeWithOptions(ctx, fromTree, toTree, &opts)
	if err != nil {
		return nil, fmt.Errorf("diffing %s..%s: %w", from, to, err)
	}

	var out []FileChange
	for _, ch := range changes {
		action, err := ch.Action()
		if err != nil {
			return nil, err
		}
		if action == merkletrie.Delete {
			continue
		}
		ok, err := matchPathspecs(ch.To.Name, pathspecs)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		fromFile, toFile, err := ch.Files()
		if err != nil {
			return nil, fmt.Errorf("reading change %s: %w", ch.To.Name, err)
		}
		if toFile == nil {
			continue
		}
		fc := FileChange{Path: ch.To.Name}
		if binary, err := toFile.IsBinary(); err != nil || binary {
			continue
		}
		if fc.NewText, err = toFile.Contents(); err != nil {
			return nil, err
		}
		if fromFile != nil {
			if binary, err := fromFile.IsBinary(); err != nil || binary {
				continue
			}
			fc.OldPath = ch.From.Name
			if fc.OldText, err = fromFile.Contents(); err != nil {
				return nil, err
			}
		}
		out = append(out, fc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// DiffAddedLines returns the lines each changed file gained between from
// and to. Files with no added lines are omitted.
func (r *Repository) DiffAddedLines(ctx context.Context, from, to string, pathspecs ...string) (lineset.FileSet, error) {
	changes, err := r.Changes(ctx, from, to, pathspecs...)
	if err != nil {
		return nil, err
	}
	fs := lineset.FileSet{}
	for _, ch := range changes {
		if added := lineset.AddedLines(ch.OldText, ch.NewText); !added.IsEmpty() {
			fs[ch.Path] = added
		}
	}
	return fs, nil
}

func matchPathspecs(path string, pathspecs []string) (bool, error) {
	if len(pathspecs) == 0 {
		return true, nil
	}
	for _, spec := range pathspecs {
		spec = strings.TrimSuffix(strings.TrimPrefix(spec, "./"), "/")
		if spec == "" || spec == "." {
			return true, nil
		}
		if path == spec || strings.HasPrefix(path, spec+"/") {
			return true, nil
		}
		ok, err := doublestar.Match(spec, path)
		if err != nil {
			return false, fmt.Errorf("invalid pathspec %q: %w", spec, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
