// Package rewrite carries line attribution from the commits a merge
// request collapsed onto the commit that landed on the target branch.
package rewrite

import (
	"sort"

	"github.com/jensroland/git-lineage/internal/linediff"
	"github.com/jensroland/git-lineage/internal/lineset"
)

// Human is the attribution of every line no agent checkpoint introduced.
const Human = "human"

// Carry applies an edit script to a per-line attribution slice. Lines
// the script keeps retain their attribution; inserted lines take actor.
// oldAttr may be shorter than the old text; missing entries are Human.
func Carry(oldAttr []string, ops []linediff.Op, actor string) []string {
	var out []string
	for _, op := range ops {
		switch op.Kind {
		case linediff.Equal:
			a := Human
			if i := op.OldLine - 1; i < len(oldAttr) && oldAttr[i] != "" {
				a = oldAttr[i]
			}
			out = append(out, a)
		case linediff.Insert:
			out = append(out, actor)
		}
	}
	return out
}

// Snapshot is a file's content at one checkpoint. Present is false when
// the checkpoint does not contain the file.
type Snapshot struct {
	Agent   string
	Content string
	Present bool
}

// AttributeFile walks base through the snapshots to final and returns one
// attribution per line of final, plus the lines each snapshot added to
// the one before it. Edits between the last snapshot and final are Human.
func AttributeFile(base string, snapshots []Snapshot, final string) ([]string, []lineset.LineSet) {
	attr := make([]string, linediff.LineCount(base))
	for i := range attr {
		attr[i] = Human
	}
	added := make([]lineset.LineSet, len(snapshots))

	prev := base
	for i, s := range snapshots {
		if !s.Present || s.Content == prev {
			continue
		}
		actor := s.Agent
		if actor == "" {
			actor = Human
		}
		ops := linediff.Diff(prev, s.Content)
		attr = Carry(attr, ops, actor)
		added[i] = lineset.FromOps(ops)
		prev = s.Content
	}
	if prev != final {
		attr = Carry(attr, linediff.Diff(prev, final), Human)
	}
	return attr, added
}

// FileAttribution is the attribution of every line of one file.
type FileAttribution struct {
	Path      string                     `json:"path"`
	LineCount int                        `json:"line_count"`
	Agents    map[string]lineset.LineSet `json:"agents,omitempty"`
	Human     lineset.LineSet            `json:"human"`
	Lines     []string                   `json:"-"`
}

// NewFileAttribution groups per-line attributions by author.
func NewFileAttribution(path string, lines []string) FileAttribution {
	fa := FileAttribution{Path: path, LineCount: len(lines), Lines: lines}
	byAgent := map[string][]int{}
	var human []int
	for i, a := range lines {
		if a == Human || a == "" {
			human = append(human, i+1)
			continue
		}
		byAgent[a] = append(byAgent[a], i+1)
	}
	fa.Human = lineset.New(human...)
	if len(byAgent) > 0 {
		fa.Agents = make(map[string]lineset.LineSet, len(byAgent))
		for a, ls := range byAgent {
			fa.Agents[a] = lineset.New(ls...)
		}
	}
	return fa
}

// AgentNames returns the agents with at least one line, sorted.
func (fa FileAttribution) AgentNames() []string {
	names := make([]string, 0, len(fa.Agents))
	for a := range fa.Agents {
		names = append(names, a)
	}
	sort.Strings(names)
	return names
}
