package ci

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jensroland/git-lineage/internal/git"
)

// adapter is one provider's view of the pipeline environment and API.
type adapter interface {
	provider() Provider
	commit() string
	credential() Credential
	listMerged(ctx context.Context, since time.Time) ([]MergeRecord, error)
	cloneURL() (string, error)
	// refspec maps the provider's merge request head ref to a local ref.
	refspec(id int) (remote, local string)
}

func newAdapter(p Provider, env Env, opts Options) (adapter, error) {
	switch p {
	case GitLab:
		return newGitLab(env, opts)
	case GitHub:
		return newGitHub(env, opts)
	}
	return nil, fmt.Errorf("%w: unsupported provider %q", ErrConfiguration, p)
}

// Resolution is a matched merge request, ready to be materialized.
type Resolution struct {
	Provider Provider
	Record   MergeRecord
	Event    MergeEvent

	// CloneURL embeds the credential. Do not log it.
	CloneURL string
	Refspec  string
	secret   string
}

// Lookup detects the provider from env and finds the merge request that
// produced the commit under test. It returns nil, nil when none did.
func Lookup(ctx context.Context, env Env, opts Options) (*Resolution, error) {
	p, ok := Detect(env)
	if !ok {
		return nil, fmt.Errorf("%w: no supported CI provider detected (%s or %s)",
			ErrConfiguration, envGitLabCI, envGitHubActions)
	}
	return LookupProvider(ctx, p, env, opts)
}

// LookupProvider is Lookup for an explicitly chosen provider.
func LookupProvider(ctx context.Context, p Provider, env Env, opts Options) (*Resolution, error) {
	opts = opts.withDefaults()
	a, err := newAdapter(p, env, opts)
	if err != nil {
		return nil, err
	}
	log := opts.Logger.With().Str("provider", string(p)).Logger()
	commit := a.commit()
	log.Debug().
		Str("commit", commit).
		Str("auth", a.credential().Source).
		Msg("environment")

	since := opts.Now().Add(-opts.Lookback).UTC().Truncate(time.Second)
	reqCtx, cancel := context.WithTimeout(ctx, opts.RequestTimeout)
	defer cancel()
	records, err := a.listMerged(reqCtx, since)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("count", len(records)).Time("since", since).Msg("recently merged")
	for _, r := range records {
		logRecord(log, r, commit)
	}

	rec, ok := FindMatch(records, commit)
	if !ok {
		log.Info().Str("commit", commit).Msg("no recent merge request corresponds to this commit, skipping")
		return nil, nil
	}
	effective := rec.EffectiveSHA(commit)
	log.Info().
		Int("id", rec.ID).
		Str("effective_sha", effective).
		Bool("squash_match", rec.SquashCommitSHA == commit).
		Msg("matched merge request")

	url, err := a.cloneURL()
	if err != nil {
		return nil, err
	}
	remote, local := a.refspec(rec.ID)
	return &Resolution{
		Provider: p,
		Record:   rec,
		Event: MergeEvent{
			MergeCommitSHA: effective,
			HeadRef:        rec.SourceBranch,
			HeadSHA:        rec.HeadSHA,
			BaseRef:        rec.TargetBranch,
			BaseSHA:        rec.BaseSHA,
			MergeRequestID: rec.ID,
			FetchedRef:     local,
		},
		CloneURL: url,
		Refspec:  remote + ":" + local,
		secret:   a.credential().Token,
	}, nil
}

func logRecord(log zerolog.Logger, r MergeRecord, commit string) {
	title := r.Title
	if title == "" {
		title = "(no title)"
	}
	log.Debug().
		Int("id", r.ID).
		Str("title", title).
		Str("source_branch", r.SourceBranch).
		Str("target_branch", r.TargetBranch).
		Str("head_sha", r.HeadSHA).
		Str("merge_commit_sha", r.MergeCommitSHA).
		Str("squash_commit_sha", r.SquashCommitSHA).
		Bool("squash", r.Squash).
		Bool("merge_matches", r.MergeCommitSHA != "" && r.MergeCommitSHA == commit).
		Bool("squash_matches", r.SquashCommitSHA != "" && r.SquashCommitSHA == commit).
		Msg("candidate")
}

// Materialize clones the merge request's target branch into the
// workspace directory and fetches its head ref. On failure it returns a
// *MaterializeError and removes the workspace if this call created it.
func Materialize(res *Resolution, opts Options) (*Context, error) {
	opts = opts.withDefaults()
	dir := opts.WorkspaceDir
	if opts.UniqueWorkspace {
		dir += "-" + uuid.NewString()
	}
	_, statErr := os.Stat(dir)
	created := os.IsNotExist(statErr)

	ctx, err := materialize(res, opts, dir)
	if err == nil {
		return ctx, nil
	}
	merr := &MaterializeError{Workspace: dir, Err: err}
	if created {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			opts.Logger.Warn().Err(rmErr).Str("workspace", dir).Msg("failed to remove partial workspace")
		} else {
			merr.Removed = true
		}
	}
	return nil, merr
}

func materialize(res *Resolution, opts Options, dir string) (*Context, error) {
	runner := git.Runner{
		Env:     []string{"GIT_TERMINAL_PROMPT=0"},
		Secrets: []string{res.secret},
	}
	if err := runner.Clone(res.CloneURL, res.Record.TargetBranch, dir); err != nil {
		return nil, fmt.Errorf("%w: cloning %s: %w", ErrSubprocess, res.Record.TargetBranch, err)
	}
	if err := runner.Fetch(dir, res.CloneURL, res.Refspec); err != nil {
		return nil, fmt.Errorf("%w: fetching merge request %d: %w", ErrSubprocess, res.Record.ID, err)
	}

	repo, err := git.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubprocess, err)
	}
	if !repo.HasCommit(res.Event.MergeCommitSHA) {
		return nil, fmt.Errorf("%w: merge commit %s is not in the clone of %s",
			ErrSubprocess, res.Event.MergeCommitSHA, res.Record.TargetBranch)
	}

	opts.Logger.Info().
		Str("workspace", dir).
		Str("merge_commit_sha", res.Event.MergeCommitSHA).
		Str("head_sha", res.Event.HeadSHA).
		Str("head_ref", res.Event.HeadRef).
		Str("base_ref", res.Event.BaseRef).
		Msg("created CI context")
	return &Context{
		Provider:  res.Provider,
		Repo:      repo,
		Workspace: dir,
		Event:     res.Event,
	}, nil
}

// Resolve runs Lookup then Materialize.
func Resolve(ctx context.Context, env Env, opts Options) (*Context, error) {
	res, err := Lookup(ctx, env, opts)
	if err != nil || res == nil {
		return nil, err
	}
	return Materialize(res, opts)
}
