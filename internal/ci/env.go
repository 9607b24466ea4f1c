package ci

import "fmt"

// Env is a snapshot of the process environment.
type Env map[string]string

const (
	envGitLabCI      = "GITLAB_CI"
	envGitHubActions = "GITHUB_ACTIONS"
)

// Variables lists every environment variable resolution can read.
func Variables() []string {
	vars := []string{envGitLabCI, envGitHubActions}
	vars = append(vars, gitlabRequired...)
	vars = append(vars, gitlabJobToken, gitlabPersonalToken)
	vars = append(vars, githubRequired...)
	vars = append(vars, githubJobToken, githubPersonalToken)
	return vars
}

// Detect names the provider whose marker variable is set. GitLab wins
// when both are.
func Detect(env Env) (Provider, bool) {
	switch {
	case env[envGitLabCI] != "":
		return GitLab, true
	case env[envGitHubActions] != "":
		return GitHub, true
	}
	return "", false
}

// require returns the values of names, failing on the first that is unset
// or empty.
func (e Env) require(names ...string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	for _, n := range names {
		v := e[n]
		if v == "" {
			return nil, fmt.Errorf("%w: %s environment variable not set", ErrConfiguration, n)
		}
		out[n] = v
	}
	return out, nil
}
