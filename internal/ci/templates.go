package ci

import (
	_ "embed"
	"fmt"
	"io"
	"strings"
)

//go:embed templates/gitlab.yaml
var gitlabTemplate string

//go:embed templates/github.yaml
var githubTemplate string

var templateTargets = map[Provider]string{
	GitLab: "your .gitlab-ci.yml",
	GitHub: ".github/workflows/lineage.yml",
}

// Template returns the pipeline snippet that runs the rewrite for p.
func Template(p Provider) (string, error) {
	switch p {
	case GitLab:
		return gitlabTemplate, nil
	case GitHub:
		return githubTemplate, nil
	}
	return "", fmt.Errorf("%w: no template for provider %q", ErrConfiguration, p)
}

// PrintTemplate writes the snippet for p with copy instructions.
func PrintTemplate(w io.Writer, p Provider) error {
	tmpl, err := Template(p)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "Add the following to %s:\n\n---\n%s\n---\n",
		templateTargets[p], strings.TrimRight(tmpl, "\n"))
	return err
}

// ParseProvider accepts a provider name as typed on the command line.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case GitLab, GitHub:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown provider %q (want gitlab or github)", ErrConfiguration, s)
}
