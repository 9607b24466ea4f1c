package ci

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"
	"golang.org/x/time/rate"
)

const (
	gitlabJobToken      = "CI_JOB_TOKEN"
	gitlabPersonalToken = "GITLAB_TOKEN"
)

var gitlabRequired = []string{
	"CI_API_V4_URL",
	"CI_PROJECT_ID",
	"CI_COMMIT_SHA",
	"CI_SERVER_URL",
	"CI_PROJECT_PATH",
}

type gitlabAdapter struct {
	apiURL      string
	projectID   string
	commitSHA   string
	serverURL   string
	projectPath string
	cred        Credential
	client      *gitlab.Client
	pageSize    int
}

func newGitLab(env Env, opts Options) (*gitlabAdapter, error) {
	vals, err := env.require(gitlabRequired...)
	if err != nil {
		return nil, err
	}
	cred, err := pickCredential(env, gitlabJobToken, gitlabPersonalToken)
	if err != nil {
		return nil, err
	}

	a := &gitlabAdapter{
		apiURL:      vals["CI_API_V4_URL"],
		projectID:   vals["CI_PROJECT_ID"],
		commitSHA:   vals["CI_COMMIT_SHA"],
		serverURL:   vals["CI_SERVER_URL"],
		projectPath: vals["CI_PROJECT_PATH"],
		cred:        cred,
		pageSize:    opts.PageSize,
	}

	clientOpts := []gitlab.ClientOptionFunc{
		gitlab.WithBaseURL(a.apiURL),
		gitlab.WithHTTPClient(opts.HTTPClient),
		gitlab.WithCustomRetryMax(0),
		// An unlimited limiter keeps the client from probing the server
		// for rate limit headers.
		gitlab.WithCustomLimiter(rate.NewLimiter(rate.Inf, 0)),
	}
	var client *gitlab.Client
	switch cred.scheme(GitLab).Header {
	case "JOB-TOKEN":
		client, err = gitlab.NewJobClient(cred.Token, clientOpts...)
	default:
		client, err = gitlab.NewClient(cred.Token, clientOpts...)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: creating GitLab client: %w", ErrConfiguration, err)
	}
	client.UserAgent = opts.userAgent()
	a.client = client
	return a, nil
}

func (a *gitlabAdapter) provider() Provider     { return GitLab }
func (a *gitlabAdapter) commit() string         { return a.commitSHA }
func (a *gitlabAdapter) credential() Credential { return a.cred }

func (a *gitlabAdapter) listMerged(ctx context.Context, since time.Time) ([]MergeRecord, error) {
	mrs, resp, err := a.client.MergeRequests.ListProjectMergeRequests(a.projectID,
		&gitlab.ListProjectMergeRequestsOptions{
			ListOptions:  gitlab.ListOptions{PerPage: a.pageSize},
			State:        gitlab.Ptr("merged"),
			UpdatedAfter: gitlab.Ptr(since),
			OrderBy:      gitlab.Ptr("updated_at"),
			Sort:         gitlab.Ptr("desc"),
		},
		gitlab.WithContext(ctx),
	)
	if err != nil {
		var hr *http.Response
		if resp != nil {
			hr = resp.Response
		}
		return nil, classifyError(GitLab, hr, err)
	}

	records := make([]MergeRecord, 0, len(mrs))
	for _, mr := range mrs {
		if mr == nil {
			continue
		}
		records = append(records, MergeRecord{
			ID:              int(mr.IID),
			Title:           mr.Title,
			SourceBranch:    mr.SourceBranch,
			TargetBranch:    mr.TargetBranch,
			HeadSHA:         mr.SHA,
			MergeCommitSHA:  mr.MergeCommitSHA,
			SquashCommitSHA: mr.SquashCommitSHA,
			Squash:          mr.Squash,
		})
	}
	return records, nil
}

func (a *gitlabAdapter) cloneURL() (string, error) {
	return cloneURL(GitLab, a.serverURL, a.projectPath, a.cred)
}

func (a *gitlabAdapter) refspec(id int) (string, string) {
	return fmt.Sprintf("refs/merge-requests/%d/head", id), fmt.Sprintf("refs/gitlab/mr/%d", id)
}
