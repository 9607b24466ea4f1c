package ci

import (
	"fmt"
	"net/url"
	"strings"
)

// CredentialKind is the form of token the job authenticates with.
type CredentialKind int

const (
	JobToken CredentialKind = iota
	PersonalToken
)

func (k CredentialKind) String() string {
	if k == JobToken {
		return "job token"
	}
	return "personal token"
}

// credentialScheme is how one kind of token is presented: the REST header
// that carries it and the username it pairs with in a clone URL.
type credentialScheme struct {
	Header   string
	Username string
}

var credentialSchemes = map[Provider]map[CredentialKind]credentialScheme{
	GitLab: {
		JobToken:      {Header: "JOB-TOKEN", Username: "gitlab-ci-token"},
		PersonalToken: {Header: "PRIVATE-TOKEN", Username: "oauth2"},
	},
	GitHub: {
		JobToken:      {Header: "Authorization", Username: "x-access-token"},
		PersonalToken: {Header: "Authorization", Username: "oauth2"},
	},
}

// Credential is the token a provider adapter was configured with.
type Credential struct {
	Kind  CredentialKind
	Token string
	// Source is the environment variable the token came from.
	Source string
}

func (c Credential) scheme(p Provider) credentialScheme {
	return credentialSchemes[p][c.Kind]
}

// pickCredential returns the first non-empty token among jobVar and
// personalVar, preferring the job token.
func pickCredential(env Env, jobVar, personalVar string) (Credential, error) {
	if tok := env[jobVar]; tok != "" {
		return Credential{Kind: JobToken, Token: tok, Source: jobVar}, nil
	}
	if tok := env[personalVar]; tok != "" {
		return Credential{Kind: PersonalToken, Token: tok, Source: personalVar}, nil
	}
	return Credential{}, fmt.Errorf("%w: neither %s nor %s is set", ErrConfiguration, jobVar, personalVar)
}

// cloneURL embeds the credential into serverURL/projectPath.git.
func cloneURL(p Provider, serverURL, projectPath string, cred Credential) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(serverURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: invalid server URL %q", ErrConfiguration, serverURL)
	}
	u.User = url.UserPassword(cred.scheme(p).Username, cred.Token)
	u.Path = u.Path + "/" + strings.Trim(projectPath, "/") + ".git"
	return u.String(), nil
}
