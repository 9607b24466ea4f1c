package format

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/jensroland/git-lineage/internal/index"
	"github.com/jensroland/git-lineage/internal/lineset"
	"github.com/jensroland/git-lineage/internal/rewrite"
)

func TestWordWrap(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{"short", "hello world", 80, []string{"hello world"}},
		{"wraps at words", "the quick brown fox jumps over the lazy dog", 20, []string{"the quick brown fox", "jumps over the lazy", "dog"}},
		{"empty", "", 40, []string{""}},
		{"long word", "superlongwordthatexceedswidth", 10, []string{"superlongwordthatexceedswidth"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wordWrap(tt.text, tt.width)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("wordWrap(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
			}
		})
	}
}

func TestPadOrTrunc(t *testing.T) {
	if got := padOrTrunc("ab", 4); got != "ab  " {
		t.Errorf("pad = %q", got)
	}
	if got := padOrTrunc("abcdef", 4); got != "abc…" {
		t.Errorf("trunc = %q", got)
	}
	if got := padOrTrunc("äöü", 3); got != "äöü" {
		t.Errorf("exact = %q", got)
	}
}

func TestBox(t *testing.T) {
	out := Box("Title", "First paragraph.\n\nSecond.", 40)
	lines := strings.Split(out, "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "┌─ Title ") || !strings.HasSuffix(lines[0], "┐") {
		t.Errorf("top border = %q", lines[0])
	}
	if !strings.HasPrefix(lines[4], "└") || !strings.HasSuffix(lines[4], "┘") {
		t.Errorf("bottom border = %q", lines[4])
	}
	for i, l := range lines {
		if n := utf8.RuneCountInString(l); n != 40 {
			t.Errorf("line %d is %d runes wide, want 40: %q", i, n, l)
		}
	}
}

func TestTableRender(t *testing.T) {
	tbl := Table{
		Header:  []string{"a", "n"},
		Rows:    [][]string{{"xy", "5"}, {"z", "10"}},
		Numeric: []bool{false, true},
	}
	want := strings.Join([]string{
		"┌────┬────┐",
		"│ a  │  n │",
		"├────┼────┤",
		"│ xy │  5 │",
		"│ z  │ 10 │",
		"└────┴────┘",
		"",
	}, "\n")
	if got := tbl.Render(); got != want {
		t.Errorf("Render =\n%s\nwant\n%s", got, want)
	}
}

func TestSideBySide(t *testing.T) {
	out := SideBySide("a\nb\n", "a\nc\nd\n", 80, 0, Colors{})
	lines := strings.Split(out, "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5:\n%s", len(lines), out)
	}
	width := utf8.RuneCountInString(lines[0])
	for i, l := range lines {
		if n := utf8.RuneCountInString(l); n != width {
			t.Errorf("line %d is %d runes wide, want %d", i, n, width)
		}
	}
	if !strings.Contains(lines[2], "   2 b") || !strings.Contains(lines[2], "   2 c") {
		t.Errorf("changed row = %q", lines[2])
	}
	if !strings.Contains(lines[3], "   3 d") || strings.Contains(lines[3], "b") {
		t.Errorf("insert row = %q", lines[3])
	}

	truncated := SideBySide("a\nb\n", "a\nc\nd\n", 80, 1, Colors{})
	if !strings.HasSuffix(truncated, "2 more lines not shown") {
		t.Errorf("truncated output = %q", truncated)
	}
}

func TestSideBySide_HighlightsChangedCharacters(t *testing.T) {
	c := Colors{Bold: "<b>", Reset: "</>", Red: "<r>", Green: "<g>", Dim: "<d>"}
	out := SideBySide("return a + b\n", "return a - b\n", 80, 0, c)
	for _, want := range []string{"return a <b>+</><r> b", "return a <b>-</><g> b"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	plain := SideBySide("return a + b\n", "return a - b\n", 80, 0, Colors{})
	if strings.Contains(plain, "<") {
		t.Errorf("uncolored output has markup:\n%s", plain)
	}
	if !strings.Contains(plain, "   1 return a - b") {
		t.Errorf("uncolored row = %q", plain)
	}
}

func TestSummary(t *testing.T) {
	res := &rewrite.Result{
		Commit: "0123456789abcdef",
		Base:   "fedcba9876543210",
		Files: map[string]rewrite.FileAttribution{
			"b.go": rewrite.NewFileAttribution("b.go", []string{rewrite.Human, "claude"}),
			"a.go": rewrite.NewFileAttribution("a.go", []string{"cursor", "cursor", rewrite.Human}),
		},
		Checkpoints: []rewrite.CheckpointResult{
			{Checkpoint: rewrite.Checkpoint{SHA: "aaaaaaaaaaaa", Agent: "claude"}, Added: lineset.FileSet{"b.go": lineset.New(2)}},
			{Checkpoint: rewrite.Checkpoint{SHA: "bbbbbbbbbbbb"}, Added: lineset.FileSet{}},
		},
	}
	out := Summary(res, Colors{})
	for _, want := range []string{
		"Attribution for 0123456789 (base fedcba9876)",
		"  aaaaaaaaaa claude +1 lines",
		"  bbbbbbbbbb human +0 lines",
		"│ file │ lines │ human │ claude │ cursor │",
		"│ a.go │     3 │     1 │      0 │      2 │",
		"│ b.go │     2 │     1 │      1 │      0 │",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "a.go") > strings.Index(out, "b.go") {
		t.Error("files not in path order")
	}

	empty := Summary(&rewrite.Result{Commit: "abc"}, Colors{})
	if !strings.Contains(empty, "(root)") || !strings.Contains(empty, "No changed text files.") {
		t.Errorf("empty summary = %q", empty)
	}
}

func TestStats(t *testing.T) {
	out := Stats(index.Stats{
		Commits: 2, Files: 3, Lines: 200, HumanLines: 150,
		Agents: []index.AgentLines{{Agent: "claude", Lines: 40}, {Agent: "cursor", Lines: 10}},
	}, Colors{})
	for _, want := range []string{
		"2 commits, 3 files, 200 lines",
		"│ human  │   150 │ 75.0% │",
		"│ claude │    40 │ 20.0% │",
		"│ cursor │    10 │  5.0% │",
		"Agent share: 25.0%",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("stats missing %q:\n%s", want, out)
		}
	}
	empty := Stats(index.Stats{}, Colors{})
	if strings.Contains(empty, "│ human") || !strings.Contains(empty, "┌─ Empty index ") {
		t.Errorf("empty stats = %q", empty)
	}
}

func TestAdded(t *testing.T) {
	got := Added(lineset.FileSet{"b.go": lineset.New(1, 2, 3, 7), "a.go": lineset.New(4)})
	if got != "a.go: 4\nb.go: 1-3,7\n" {
		t.Errorf("Added = %q", got)
	}
}

func TestColorsFor_NonTerminal(t *testing.T) {
	if c := ColorsFor(&bytes.Buffer{}); c != (Colors{}) {
		t.Errorf("ColorsFor(buffer) = %+v, want no colors", c)
	}
	t.Setenv("NO_COLOR", "1")
	if c := ColorsFor(nil); c != (Colors{}) {
		t.Errorf("ColorsFor with NO_COLOR = %+v", c)
	}
	if w := Width(&bytes.Buffer{}); w != 80 {
		t.Errorf("Width(buffer) = %d, want 80", w)
	}
}
