package lineset

import (
	"sort"

	"github.com/jensroland/git-lineage/internal/linediff"
)

// AddedLines returns the 1-based line numbers in newText that have no
// counterpart in oldText: lines introduced by the edit rather than lines
// that only moved because of insertions or deletions around them.
//
// A file that only exists in the new revision is compared with "".
func AddedLines(oldText, newText string) LineSet {
	if oldText == newText {
		return LineSet{}
	}
	return FromOps(linediff.Diff(oldText, newText))
}

// FromOps collects the new-side cursor positions of Insert ops. Deletions
// do not move the cursor; equal lines advance it without contributing.
func FromOps(ops []linediff.Op) LineSet {
	var added []int
	cursor := 1
	for _, op := range ops {
		switch op.Kind {
		case linediff.Delete:
		case linediff.Equal:
			cursor++
		case linediff.Insert:
			added = append(added, cursor)
			cursor++
		}
	}
	return LineSet{lines: added}
}

// FileSet maps repository-relative, forward-slash paths to the lines added
// in that file.
type FileSet map[string]LineSet

// Paths returns the file paths in lexical order.
func (fs FileSet) Paths() []string {
	paths := make([]string, 0, len(fs))
	for p := range fs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Total returns the number of added lines across all files.
func (fs FileSet) Total() int {
	n := 0
	for _, ls := range fs {
		n += ls.Len()
	}
	return n
}
