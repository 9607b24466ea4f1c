package ci

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v71/github"
)

const (
	githubJobToken      = "GITHUB_TOKEN"
	githubPersonalToken = "GH_TOKEN"
)

var githubRequired = []string{
	"GITHUB_API_URL",
	"GITHUB_REPOSITORY",
	"GITHUB_SHA",
	"GITHUB_SERVER_URL",
}

type githubAdapter struct {
	owner      string
	repo       string
	repository string
	commitSHA  string
	serverURL  string
	cred       Credential
	client     *github.Client
	pageSize   int
}

func newGitHub(env Env, opts Options) (*githubAdapter, error) {
	vals, err := env.require(githubRequired...)
	if err != nil {
		return nil, err
	}
	cred, err := pickCredential(env, githubJobToken, githubPersonalToken)
	if err != nil {
		return nil, err
	}

	repository := vals["GITHUB_REPOSITORY"]
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("%w: GITHUB_REPOSITORY must be owner/repo, got %q", ErrConfiguration, repository)
	}
	base, err := url.Parse(strings.TrimSuffix(vals["GITHUB_API_URL"], "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("%w: invalid GITHUB_API_URL: %w", ErrConfiguration, err)
	}

	client := github.NewClient(opts.HTTPClient).WithAuthToken(cred.Token)
	client.BaseURL = base
	client.UserAgent = opts.userAgent()

	return &githubAdapter{
		owner:      owner,
		repo:       repo,
		repository: repository,
		commitSHA:  vals["GITHUB_SHA"],
		serverURL:  vals["GITHUB_SERVER_URL"],
		cred:       cred,
		client:     client,
		pageSize:   opts.PageSize,
	}, nil
}

func (a *githubAdapter) provider() Provider     { return GitHub }
func (a *githubAdapter) commit() string         { return a.commitSHA }
func (a *githubAdapter) credential() Credential { return a.cred }

// listMerged filters closed pull requests client-side; the pulls API has
// no merged state or updated-since parameter.
func (a *githubAdapter) listMerged(ctx context.Context, since time.Time) ([]MergeRecord, error) {
	prs, resp, err := a.client.PullRequests.List(ctx, a.owner, a.repo, &github.PullRequestListOptions{
		State:       "closed",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: a.pageSize},
	})
	if err != nil {
		var hr *http.Response
		if resp != nil {
			hr = resp.Response
		}
		return nil, classifyError(GitHub, hr, err)
	}

	var records []MergeRecord
	for _, pr := range prs {
		if pr == nil || pr.MergedAt == nil {
			continue
		}
		if pr.GetUpdatedAt().Before(since) {
			break
		}
		records = append(records, MergeRecord{
			ID:             pr.GetNumber(),
			Title:          pr.GetTitle(),
			SourceBranch:   pr.GetHead().GetRef(),
			TargetBranch:   pr.GetBase().GetRef(),
			HeadSHA:        pr.GetHead().GetSHA(),
			MergeCommitSHA: pr.GetMergeCommitSHA(),
			BaseSHA:        pr.GetBase().GetSHA(),
		})
	}
	return records, nil
}

func (a *githubAdapter) cloneURL() (string, error) {
	return cloneURL(GitHub, a.serverURL, a.repository, a.cred)
}

func (a *githubAdapter) refspec(id int) (string, string) {
	return fmt.Sprintf("refs/pull/%d/head", id), fmt.Sprintf("refs/github/pr/%d", id)
}
