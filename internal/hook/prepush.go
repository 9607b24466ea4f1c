package hook

import (
	"github.com/rs/zerolog"

	"github.com/jensroland/git-lineage/internal/git"
)

// PrePush pushes the attribution notes alongside the code being pushed
// to remote. Repositories without notes or without the remote are
// skipped.
func PrePush(root, remote string, log zerolog.Logger) {
	if remote == "" {
		remote = "origin"
	}
	r := git.Runner{Dir: root, Env: []string{"GIT_TERMINAL_PROMPT=0"}}
	if _, err := r.Run("rev-parse", "--verify", "--quiet", NotesRef); err != nil {
		return
	}
	if _, err := r.Run("remote", "get-url", remote); err != nil {
		return
	}
	if _, err := r.Run("push", "--quiet", "--no-verify", remote, NotesRef); err != nil {
		log.Warn().Err(err).Str("remote", remote).Msg("pre-push: failed to push attribution notes")
		return
	}
	log.Debug().Str("remote", remote).Msg("pre-push: pushed attribution notes")
}
