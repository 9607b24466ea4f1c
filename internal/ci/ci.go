// Package ci resolves the merge request behind a CI pipeline run.
//
// Resolution has two halves. Lookup reads the provider's environment,
// lists recently merged merge requests, and picks the one whose merge or
// squash commit is the commit under test. Materialize clones the target
// branch and fetches the merge request's head ref so the commits that
// were squashed away stay readable. Resolve runs both.
package ci

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/jensroland/git-lineage/internal/git"
)

// Provider names a supported CI platform.
type Provider string

const (
	GitLab Provider = "gitlab"
	GitHub Provider = "github"
)

// Errors returned by resolution. A run on a commit that no merge request
// produced is not an error: Lookup and Resolve return nil, nil.
var (
	ErrConfiguration = errors.New("ci configuration error")
	ErrNetwork       = errors.New("ci network error")
	ErrParse         = errors.New("ci response parse error")
	ErrSubprocess    = errors.New("ci git subprocess error")
)

// APIError is a non-success response from the provider's REST API.
type APIError struct {
	Provider   Provider
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error { return ErrNetwork }

// MaterializeError is a failed Materialize. Workspace is the directory the
// call cloned into. Removed reports whether Materialize discarded it; a
// directory that existed before the call is never removed.
type MaterializeError struct {
	Workspace string
	Removed   bool
	Err       error
}

func (e *MaterializeError) Error() string { return e.Err.Error() }

func (e *MaterializeError) Unwrap() error { return e.Err }

// Event describes what triggered the pipeline. MergeEvent is the only
// implementation.
type Event interface {
	isEvent()
}

// MergeEvent is a merge request that landed on its target branch.
type MergeEvent struct {
	// MergeCommitSHA is the commit attribution is rewritten onto: the
	// squash commit for squash merges, otherwise the commit under test.
	MergeCommitSHA string
	HeadRef        string
	HeadSHA        string
	BaseRef        string

	// BaseSHA is empty for GitLab, whose list API does not expose it.
	BaseSHA        string
	MergeRequestID int

	// FetchedRef is the local ref holding the merge request's head.
	FetchedRef string
}

func (MergeEvent) isEvent() {}

// Context is a resolved merge event with the workspace it was
// materialized in. The caller owns the workspace and must call Cleanup.
type Context struct {
	Provider  Provider
	Repo      *git.Repository
	Workspace string
	Event     Event
}

// Merge returns the context's merge event.
func (c *Context) Merge() MergeEvent {
	ev, _ := c.Event.(MergeEvent)
	return ev
}

// Cleanup removes the workspace.
func (c *Context) Cleanup() error {
	if c == nil || c.Workspace == "" {
		return nil
	}
	return os.RemoveAll(c.Workspace)
}

// Options tunes resolution. Zero values take the documented defaults.
type Options struct {
	Lookback        time.Duration // 15m
	RequestTimeout  time.Duration // 30s
	PageSize        int           // 100
	WorkspaceDir    string        // lineage-ci-clone
	UniqueWorkspace bool

	// Version is reported in the User-Agent header.
	Version    string
	Logger     zerolog.Logger
	HTTPClient *http.Client
	Now        func() time.Time
}

const (
	DefaultLookback       = 15 * time.Minute
	DefaultRequestTimeout = 30 * time.Second
	DefaultPageSize       = 100
	DefaultWorkspaceDir   = "lineage-ci-clone"
)

func (o Options) withDefaults() Options {
	if o.Lookback <= 0 {
		o.Lookback = DefaultLookback
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.WorkspaceDir == "" {
		o.WorkspaceDir = DefaultWorkspaceDir
	}
	if o.Version == "" {
		o.Version = "dev"
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.RequestTimeout}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func (o Options) userAgent() string { return "git-lineage/" + o.Version }

// MergeRecord is a provider's merge request, normalized.
type MergeRecord struct {
	ID              int
	Title           string
	SourceBranch    string
	TargetBranch    string
	HeadSHA         string
	MergeCommitSHA  string
	SquashCommitSHA string
	Squash          bool

	// BaseSHA is known only for providers that report it.
	BaseSHA string
}

// Matches reports whether commit is the record's merge or squash commit.
func (r MergeRecord) Matches(commit string) bool {
	if commit == "" {
		return false
	}
	return r.MergeCommitSHA == commit || r.SquashCommitSHA == commit
}

// EffectiveSHA returns the commit that carries the record's content when
// the pipeline runs on commit. A merge-commit match on a record that was
// also squashed yields the squash commit.
func (r MergeRecord) EffectiveSHA(commit string) string {
	if r.SquashCommitSHA == commit {
		return commit
	}
	if r.SquashCommitSHA != "" {
		return r.SquashCommitSHA
	}
	return commit
}

// FindMatch returns the first record that matches commit.
func FindMatch(records []MergeRecord, commit string) (MergeRecord, bool) {
	for _, r := range records {
		if r.Matches(commit) {
			return r, true
		}
	}
	return MergeRecord{}, false
}
