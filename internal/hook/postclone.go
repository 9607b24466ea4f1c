// Package hook implements the git hooks that keep attribution notes in
// step with a repository's remote. Hooks never fail the git command that
// ran them; problems are logged.
package hook

import (
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jensroland/git-lineage/internal/git"
)

// NotesRef is the notes ref attribution is stored under.
const NotesRef = "refs/notes/lineage"

// PostClone fetches the attribution notes into a repository that
// `git clone <args>` created from cwd. It does nothing when the clone
// failed.
func PostClone(cwd string, args []string, exitCode int, log zerolog.Logger) {
	if exitCode != 0 {
		return
	}
	target, ok := CloneTargetDir(args)
	if !ok {
		log.Debug().Strs("args", args).Msg("post-clone: no target directory in clone arguments, skipping notes fetch")
		return
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(cwd, target)
	}
	log.Debug().Str("dir", target).Msg("post-clone: fetching attribution notes")

	if _, err := git.Open(target); err != nil {
		log.Debug().Err(err).Str("dir", target).Msg("post-clone: cannot open cloned repository, skipping notes fetch")
		return
	}
	if err := FetchNotes(target, "origin"); err != nil {
		log.Debug().Err(err).Msg("post-clone: notes fetch from origin failed")
		return
	}
	log.Debug().Msg("post-clone: fetched attribution notes from origin")
}

// FetchNotes fetches NotesRef from remote into the same local ref.
func FetchNotes(dir, remote string) error {
	_, err := git.Runner{Dir: dir, Env: []string{"GIT_TERMINAL_PROMPT=0"}}.
		Run("fetch", "--quiet", remote, "+"+NotesRef+":"+NotesRef)
	return err
}

// CloneTargetDir returns the directory a `git clone` with args writes
// to: the second positional argument, or the last component of the
// repository URL without its .git suffix.
func CloneTargetDir(args []string) (string, bool) {
	var positional []string
	afterDashes := false
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !afterDashes {
			switch {
			case arg == "--":
				afterDashes = true
				continue
			case optionTakesValue(arg):
				i++
				continue
			case strings.HasPrefix(arg, "-"):
				continue
			}
		}
		positional = append(positional, arg)
	}

	switch len(positional) {
	case 0:
		return "", false
	case 1:
		return dirFromURL(positional[0])
	default:
		return positional[1], true
	}
}

// dirFromURL mimics git's default clone directory: the last path
// component of url, or of the path part of an SCP-like user@host:path.
func dirFromURL(url string) (string, bool) {
	url = strings.TrimRight(url, "/")
	last := url
	if i := strings.LastIndex(url, "/"); i >= 0 {
		last = url[i+1:]
	} else if i := strings.LastIndex(url, ":"); i >= 0 {
		last = url[i+1:]
	}
	name := strings.TrimSuffix(last, ".git")
	return name, name != ""
}

var (
	longValueOptions = map[string]bool{
		"--branch": true, "--config": true, "--depth": true, "--origin": true,
		"--reference": true, "--reference-if-able": true, "--separate-git-dir": true,
		"--shallow-exclude": true, "--shallow-since": true, "--template": true,
		"--upload-pack": true, "--jobs": true, "--recurse-submodules": true,
	}
	shortValueOptions = map[string]bool{"-b": true, "-c": true, "-j": true, "-o": true, "-u": true}
)

// optionTakesValue reports whether arg consumes the argument after it.
// --opt=value is a single token.
func optionTakesValue(arg string) bool {
	if strings.HasPrefix(arg, "--") {
		return !strings.Contains(arg, "=") && longValueOptions[arg]
	}
	return len(arg) == 2 && shortValueOptions[arg]
}
