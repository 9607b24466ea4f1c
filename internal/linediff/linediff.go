// Package linediff produces line-level edit scripts that agree with what
// `git diff` reports for the same two blobs.
//
// Lines are interned and run through git's xdiff pipeline: trimming and
// discarding of unmatched lines, the Myers search with git's heuristics,
// and then change-group compaction (slide, align with the other side,
// indent heuristic) so that insertions land on the same lines a reviewer
// sees in their VCS UI.
package linediff

import (
	"fmt"
	"strings"
)

// Kind classifies a single line edit.
type Kind int

const (
	Equal Kind = iota
	Insert
	Delete
)

func (k Kind) String() string {
	switch k {
	case Equal:
		return "equal"
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Op is one line of an edit script. OldLine and NewLine are 1-based
// positions in the old and new text; the side an op does not touch is 0.
type Op struct {
	Kind    Kind
	OldLine int
	NewLine int
}

// SplitLines tokenizes text on "\n". A final unterminated line is its own
// token; a trailing terminator does not start an extra empty line.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// LineCount returns the number of lines SplitLines would produce.
func LineCount(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

// Diff returns the ordered edit script turning oldText into newText.
// Within each hunk deletions precede insertions. The result is fully
// determined by the inputs.
func Diff(oldText, newText string) []Op {
	return DiffLines(SplitLines(oldText), SplitLines(newText))
}

// DiffLines is Diff over already tokenized lines.
func DiffLines(oldLines, newLines []string) []Op {
	oldIDs, newIDs := intern(oldLines, newLines)
	a := newSide(oldLines, oldIDs)
	b := newSide(newLines, newIDs)

	markChanges(a, b)
	compact(a, b)
	compact(b, a)
	return emit(a, b)
}

func emit(a, b *side) []Op {
	ops := make([]Op, 0, max(a.n(), b.n()))
	i, j := 0, 0
	for i < a.n() || j < b.n() {
		switch {
		case i < a.n() && a.changed(i):
			ops = append(ops, Op{Kind: Delete, OldLine: i + 1})
			i++
		case j < b.n() && b.changed(j):
			ops = append(ops, Op{Kind: Insert, NewLine: j + 1})
			j++
		case i < a.n() && j < b.n():
			ops = append(ops, Op{Kind: Equal, OldLine: i + 1, NewLine: j + 1})
			i++
			j++
		default:
			panic("linediff: unchanged lines out of step")
		}
	}
	return ops
}

// intern numbers every distinct line so records compare as integers.
func intern(a, b []string) ([]int, []int) {
	ids := make(map[string]int, len(a)+len(b))
	encode := func(lines []string) []int {
		out := make([]int, len(lines))
		for k, line := range lines {
			id, ok := ids[line]
			if !ok {
				id = len(ids)
				ids[line] = id
			}
			out[k] = id
		}
		return out
	}
	return encode(a), encode(b)
}
