package format

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jensroland/git-lineage/internal/index"
	"github.com/jensroland/git-lineage/internal/lineset"
	"github.com/jensroland/git-lineage/internal/rewrite"
)

// Summary renders one rewrite result: a header naming the commit, then a
// table with a row per file and a column per agent.
func Summary(res *rewrite.Result, c Colors) string {
	agents := map[string]bool{}
	paths := make([]string, 0, len(res.Files))
	for p, fa := range res.Files {
		paths = append(paths, p)
		for _, a := range fa.AgentNames() {
			agents[a] = true
		}
	}
	sort.Strings(paths)
	names := make([]string, 0, len(agents))
	for a := range agents {
		names = append(names, a)
	}
	sort.Strings(names)

	t := Table{Header: append([]string{"file", "lines", rewrite.Human}, names...)}
	t.Numeric = make([]bool, len(t.Header))
	for i := 1; i < len(t.Numeric); i++ {
		t.Numeric[i] = true
	}
	for _, p := range paths {
		fa := res.Files[p]
		row := []string{p, strconv.Itoa(fa.LineCount), strconv.Itoa(fa.Human.Len())}
		for _, a := range names {
			row = append(row, strconv.Itoa(fa.Agents[a].Len()))
		}
		t.Rows = append(t.Rows, row)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%sAttribution for %s%s (base %s)\n", c.Bold, short(res.Commit), c.Reset, short(res.Base))
	for i, cp := range res.Checkpoints {
		agent := cp.Agent
		if agent == "" {
			agent = rewrite.Human
		}
		fmt.Fprintf(&b, "  %s%s%s %s%s%s +%d lines\n",
			c.Dim, short(cp.SHA), c.Reset, c.agent(i), agent, c.Reset, cp.Added.Total())
	}
	if len(paths) == 0 {
		b.WriteString("No changed text files.\n")
		return b.String()
	}
	b.WriteString(t.Render())
	return b.String()
}

// Stats renders index totals with each agent's share of all lines.
func Stats(st index.Stats, c Colors) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%d commits, %d files, %d lines%s\n", c.Bold, st.Commits, st.Files, st.Lines, c.Reset)
	if st.Lines == 0 {
		b.WriteString(Box("Empty index", emptyIndexHint, 64))
		b.WriteString("\n")
		return b.String()
	}

	t := Table{Header: []string{"author", "lines", "share"}, Numeric: []bool{false, true, true}}
	t.Rows = append(t.Rows, []string{rewrite.Human, strconv.Itoa(st.HumanLines), percent(st.HumanLines, st.Lines)})
	for _, a := range st.Agents {
		t.Rows = append(t.Rows, []string{a.Agent, strconv.Itoa(a.Lines), percent(a.Lines, st.Lines)})
	}
	b.WriteString(t.Render())
	fmt.Fprintf(&b, "%sAgent share: %s%s\n", c.Dim, percent(st.Lines-st.HumanLines, st.Lines), c.Reset)
	return b.String()
}

const emptyIndexHint = "No attribution has been recorded yet.\n\n" +
	"Run `git-lineage ci rewrite` in the pipeline of the target branch; " +
	"print a ready-made job with `git-lineage ci template gitlab` or `git-lineage ci template github`."

// Added renders a line-set map as "path: 1-3,7" lines in path order.
func Added(fs lineset.FileSet) string {
	var b strings.Builder
	for _, p := range fs.Paths() {
		fmt.Fprintf(&b, "%s: %s\n", p, fs[p].String())
	}
	return b.String()
}

func percent(n, total int) string {
	return fmt.Sprintf("%.1f%%", 100*float64(n)/float64(total))
}

func short(sha string) string {
	if len(sha) > 10 {
		return sha[:10]
	}
	if sha == "" {
		return "(root)"
	}
	return sha
}
