package git

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CommandError reports a git invocation that exited non-zero. Args and
// Stderr have credentials redacted.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: exit status %d", strings.Join(e.Args, " "), e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Runner invokes the git binary. Secrets are scrubbed from any error it
// returns.
type Runner struct {
	Dir     string
	Env     []string
	Secrets []string
}

// Run executes git with args and returns stdout.
func (r Runner) Run(args ...string) ([]byte, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}

	cerr := &CommandError{
		Args:     make([]string, len(args)),
		ExitCode: -1,
		Stderr:   Redact(stderr.String(), r.Secrets...),
	}
	for i, a := range args {
		cerr.Args[i] = Redact(a, r.Secrets...)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cerr.ExitCode = exitErr.ExitCode()
	} else {
		cerr.Stderr = Redact(err.Error(), r.Secrets...)
	}
	return nil, cerr
}

// Redact replaces every occurrence of each non-empty secret in s.
func Redact(s string, secrets ...string) string {
	for _, secret := range secrets {
		if secret != "" {
			s = strings.ReplaceAll(s, secret, "[REDACTED]")
		}
	}
	return s
}

// Clone runs `git clone --branch <branch> <url> <dir>`.
func (r Runner) Clone(url, branch, dir string) error {
	_, err := r.Run("clone", "--branch", branch, url, dir)
	return err
}

// Fetch runs `git -C <dir> fetch <url> <refspec>`.
func (r Runner) Fetch(dir, url, refspec string) error {
	_, err := r.Run("-C", dir, "fetch", url, refspec)
	return err
}

// RevList returns the commits reachable from to but not from, oldest first.
func (r Runner) RevList(from, to string) ([]string, error) {
	spec := to
	if from != "" {
		spec = from + ".." + to
	}
	out, err := r.Run("rev-list", "--reverse", spec)
	if err != nil {
		return nil, err
	}
	return strings.Fields(string(out)), nil
}

// RevParseTopLevel returns the root of the repository containing dir.
func RevParseTopLevel(dir string) (string, error) {
	out, err := Runner{Dir: dir}.Run("rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("not inside a git repository")
	}
	return strings.TrimSpace(string(out)), nil
}
