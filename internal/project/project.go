// Package project locates a repository's lineage directories.
package project

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jensroland/git-lineage/internal/git"
)

// Paths holds the directories lineage reads and writes in one repository.
type Paths struct {
	Root     string // work tree root
	GitDir   string // .git, or the worktree's gitdir
	CacheDir string // <gitdir>/lineage
	IndexDB  string // <gitdir>/lineage/index.db by default
}

// FindRoot returns the work tree root containing dir.
func FindRoot(dir string) (string, error) {
	return git.RevParseTopLevel(dir)
}

// NewPaths builds Paths for root. indexPath is relative to root unless
// absolute; a relative path under .git follows a worktree's gitdir.
func NewPaths(root, indexPath string) Paths {
	gitDir := resolveGitDir(root)
	p := Paths{
		Root:     root,
		GitDir:   gitDir,
		CacheDir: filepath.Join(gitDir, "lineage"),
	}
	switch {
	case indexPath == "":
		p.IndexDB = filepath.Join(p.CacheDir, "index.db")
	case filepath.IsAbs(indexPath):
		p.IndexDB = indexPath
	default:
		rel := filepath.ToSlash(filepath.Clean(indexPath))
		if rest, ok := strings.CutPrefix(rel, ".git/"); ok {
			p.IndexDB = filepath.Join(gitDir, filepath.FromSlash(rest))
		} else {
			p.IndexDB = filepath.Join(root, indexPath)
		}
	}
	return p
}

// resolveGitDir follows a "gitdir: <path>" file as written for linked
// worktrees. Anything else resolves to <root>/.git.
func resolveGitDir(root string) string {
	dotGit := filepath.Join(root, ".git")
	info, err := os.Stat(dotGit)
	if err != nil || info.IsDir() {
		return dotGit
	}
	data, err := os.ReadFile(dotGit)
	if err != nil {
		return dotGit
	}
	target, ok := strings.CutPrefix(strings.TrimSpace(string(data)), "gitdir: ")
	if !ok || target == "" {
		return dotGit
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	return target
}
