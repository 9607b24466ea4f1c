package rewrite

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jensroland/git-lineage/internal/ci"
	"github.com/jensroland/git-lineage/internal/git"
)

type testRepo struct {
	t   *testing.T
	dir string
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	r := &testRepo{t: t, dir: t.TempDir()}
	r.git("init", "-b", "main")
	r.git("config", "user.email", "test@test.com")
	r.git("config", "user.name", "Test")
	r.git("config", "commit.gpgsign", "false")
	return r
}

func (r *testRepo) git(args ...string) string {
	r.t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test",
		"GIT_AUTHOR_EMAIL=test@test.com",
		"GIT_COMMITTER_NAME=Test",
		"GIT_COMMITTER_EMAIL=test@test.com",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		r.t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

func (r *testRepo) write(name, content string) {
	r.t.Helper()
	path := filepath.Join(r.dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		r.t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		r.t.Fatal(err)
	}
}

func (r *testRepo) commit(msg string) string {
	r.t.Helper()
	r.git("add", "-A")
	r.git("commit", "-q", "-m", msg)
	return r.git("rev-parse", "HEAD")
}

// mergeRequest builds a feature branch of three checkpoints on top of a
// base commit: claude adds B, a human adds a header, cursor adds C and
// a new file. It returns the base sha and the checkpoint shas.
func mergeRequest(r *testRepo) (string, []string) {
	r.write("app.go", "package app\n\nfunc A() {}\n")
	base := r.commit("base")

	r.git("checkout", "-q", "-b", "feature")
	r.write("app.go", "package app\n\nfunc A() {}\n\nfunc B() {}\n")
	c1 := r.commit("add B\n\nLineage-Agent: claude")
	r.write("app.go", "// Package app.\npackage app\n\nfunc A() {}\n\nfunc B() {}\n")
	c2 := r.commit("header")
	r.write("app.go", "// Package app.\npackage app\n\nfunc A() {}\n\nfunc B() {}\n\nfunc C() {}\n")
	r.write("util.go", "package app\n")
	c3 := r.commit("add C\n\nLineage-Agent: cursor")
	r.git("checkout", "-q", "main")
	return base, []string{c1, c2, c3}
}

type countingRepo struct {
	*git.Repository
	fileAt int
}

func (c *countingRepo) FileAt(rev, path string) (string, bool, error) {
	c.fileAt++
	return c.Repository.FileAt(rev, path)
}

func TestDriver_Run(t *testing.T) {
	tests := []struct {
		name  string
		merge func(r *testRepo) string
	}{
		{
			name: "squash",
			merge: func(r *testRepo) string {
				r.git("merge", "-q", "--squash", "feature")
				return r.commit("Feature (!7)")
			},
		},
		{
			name: "merge commit",
			merge: func(r *testRepo) string {
				r.git("merge", "-q", "--no-ff", "-m", "Merge feature", "feature")
				return r.git("rev-parse", "HEAD")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRepo(t)
			base, shas := mergeRequest(r)
			final := tt.merge(r)

			repo, err := git.Open(r.dir)
			if err != nil {
				t.Fatal(err)
			}
			in, err := InputForMerge(repo, git.Runner{Dir: r.dir}, final, "feature")
			if err != nil {
				t.Fatal(err)
			}
			if in.Base != base || in.Final != final {
				t.Errorf("Input base/final = %s/%s, want %s/%s", in.Base, in.Final, base, final)
			}
			want := []Checkpoint{{SHA: shas[0], Agent: "claude"}, {SHA: shas[1]}, {SHA: shas[2], Agent: "cursor"}}
			if !reflect.DeepEqual(in.Checkpoints, want) {
				t.Fatalf("Checkpoints = %+v, want %+v", in.Checkpoints, want)
			}

			res, err := New(repo, zerolog.Nop()).Run(context.Background(), in)
			if err != nil {
				t.Fatal(err)
			}

			app := res.Files["app.go"]
			if app.LineCount != 8 {
				t.Errorf("app.go LineCount = %d, want 8", app.LineCount)
			}
			if got := app.Human.String(); got != "1-4" {
				t.Errorf("app.go human = %q, want 1-4", got)
			}
			if got := app.Agents["claude"].String(); got != "5-6" {
				t.Errorf("app.go claude = %q, want 5-6", got)
			}
			if got := app.Agents["cursor"].String(); got != "7-8" {
				t.Errorf("app.go cursor = %q, want 7-8", got)
			}
			if got := res.Files["util.go"].Agents["cursor"].String(); got != "1" {
				t.Errorf("util.go cursor = %q, want 1", got)
			}

			added := []map[string]string{
				{"app.go": "4-5"},
				{"app.go": "1"},
				{"app.go": "7-8", "util.go": "1"},
			}
			for i, cp := range res.Checkpoints {
				got := map[string]string{}
				for p, ls := range cp.Added {
					got[p] = ls.String()
				}
				if !reflect.DeepEqual(got, added[i]) {
					t.Errorf("checkpoint %d added = %v, want %v", i, got, added[i])
				}
			}
		})
	}
}

func TestDriver_RunIsIdempotent(t *testing.T) {
	r := newTestRepo(t)
	_, _ = mergeRequest(r)
	r.git("merge", "-q", "--squash", "feature")
	final := r.commit("squash")

	repo, err := git.Open(r.dir)
	if err != nil {
		t.Fatal(err)
	}
	in, err := InputForMerge(repo, git.Runner{Dir: r.dir}, final, "feature")
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	first, err := New(repo, zerolog.Nop()).Run(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	second, err := New(repo, zerolog.Nop()).Run(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("second run produced a different result")
	}
}

func TestDriver_CachesBlobs(t *testing.T) {
	r := newTestRepo(t)
	_, _ = mergeRequest(r)
	r.git("merge", "-q", "--squash", "feature")
	final := r.commit("squash")

	gr, err := git.Open(r.dir)
	if err != nil {
		t.Fatal(err)
	}
	repo := &countingRepo{Repository: gr}
	in, err := InputForMerge(repo, git.Runner{Dir: r.dir}, final, "feature")
	if err != nil {
		t.Fatal(err)
	}

	d := New(repo, zerolog.Nop())
	if _, err := d.Run(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	reads := repo.fileAt
	if reads == 0 {
		t.Fatal("expected checkpoint reads")
	}
	if _, err := d.Run(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	if repo.fileAt != reads {
		t.Errorf("second run read %d blobs, want 0", repo.fileAt-reads)
	}
}

func TestDriver_NoCheckpoints(t *testing.T) {
	r := newTestRepo(t)
	r.write("a.txt", "1\n")
	base := r.commit("base")
	r.write("a.txt", "1\n2\n")
	final := r.commit("direct push")

	repo, err := git.Open(r.dir)
	if err != nil {
		t.Fatal(err)
	}
	res, err := New(repo, zerolog.Nop()).Run(context.Background(), Input{Base: base, Final: final})
	if err != nil {
		t.Fatal(err)
	}
	fa := res.Files["a.txt"]
	if fa.Human.String() != "1-2" || len(fa.Agents) != 0 {
		t.Errorf("a.txt = %+v, want all human", fa)
	}
}

func TestDriver_RenamedInCheckpoint(t *testing.T) {
	r := newTestRepo(t)
	r.write("old.txt", "one\ntwo\nthree\nfour\n")
	r.commit("base")

	r.git("checkout", "-q", "-b", "feature")
	r.write("old.txt", "one\ntwo\nthree\nfour\nfive\n")
	r.commit("extend\n\nLineage-Agent: claude")
	r.git("mv", "old.txt", "new.txt")
	r.commit("rename")
	r.git("checkout", "-q", "main")
	r.git("merge", "-q", "--squash", "feature")
	final := r.commit("squash")

	repo, err := git.Open(r.dir)
	if err != nil {
		t.Fatal(err)
	}
	in, err := InputForMerge(repo, git.Runner{Dir: r.dir}, final, "feature")
	if err != nil {
		t.Fatal(err)
	}
	res, err := New(repo, zerolog.Nop()).Run(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Files["new.txt"].Agents["claude"].String(); got != "5" {
		t.Errorf("new.txt claude = %q, want 5", got)
	}
}

func TestInputFromContext(t *testing.T) {
	r := newTestRepo(t)
	base, shas := mergeRequest(r)
	r.git("merge", "-q", "--squash", "feature")
	final := r.commit("squash")

	repo, err := git.Open(r.dir)
	if err != nil {
		t.Fatal(err)
	}
	c := &ci.Context{
		Provider:  ci.GitLab,
		Repo:      repo,
		Workspace: r.dir,
		Event:     ci.MergeEvent{MergeCommitSHA: final, FetchedRef: "feature", MergeRequestID: 7},
	}
	in, err := InputFromContext(c, "app.go")
	if err != nil {
		t.Fatal(err)
	}
	if in.Base != base || len(in.Checkpoints) != len(shas) || !reflect.DeepEqual(in.Pathspecs, []string{"app.go"}) {
		t.Errorf("InputFromContext = %+v", in)
	}

	if _, err := InputFromContext(&ci.Context{Repo: repo}); err == nil {
		t.Error("expected error for a context without a merge event")
	}
}
