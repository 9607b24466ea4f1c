package format

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/jensroland/git-lineage/internal/linediff"
)

// sideRow is one displayed row. kind is Equal, or Delete/Insert for a
// changed row; a row pairing a deletion with an insertion is Insert.
type sideRow struct {
	kind    linediff.Kind
	oldNum  int
	newNum  int
	oldText string
	newText string
	hasOld  bool
	hasNew  bool
}

// SideBySide renders the line diff of oldText and newText in two columns
// with new-side line numbers, so the lines an added-line set names can be
// read off directly. At most maxRows rows are shown; zero shows all.
func SideBySide(oldText, newText string, width, maxRows int, c Colors) string {
	oldLines := linediff.SplitLines(expandTabs(oldText))
	newLines := linediff.SplitLines(expandTabs(newText))
	colW := (width - 17) / 2
	if colW < 20 {
		colW = 20
	}

	var rows []sideRow
	var dels, ins []sideRow
	flush := func() {
		for i := 0; i < len(dels) || i < len(ins); i++ {
			var r sideRow
			if i < len(dels) {
				r.kind, r.oldNum, r.oldText, r.hasOld = linediff.Delete, dels[i].oldNum, dels[i].oldText, true
			}
			if i < len(ins) {
				r.kind, r.newNum, r.newText, r.hasNew = linediff.Insert, ins[i].newNum, ins[i].newText, true
			}
			rows = append(rows, r)
		}
		dels, ins = nil, nil
	}
	for _, op := range linediff.DiffLines(oldLines, newLines) {
		switch op.Kind {
		case linediff.Equal:
			flush()
			rows = append(rows, sideRow{
				kind: linediff.Equal, oldNum: op.OldLine, newNum: op.NewLine,
				oldText: oldLines[op.OldLine-1], newText: newLines[op.NewLine-1],
				hasOld: true, hasNew: true,
			})
		case linediff.Delete:
			dels = append(dels, sideRow{oldNum: op.OldLine, oldText: oldLines[op.OldLine-1]})
		case linediff.Insert:
			ins = append(ins, sideRow{newNum: op.NewLine, newText: newLines[op.NewLine-1]})
		}
	}
	flush()

	total := len(rows)
	if maxRows > 0 && total > maxRows {
		rows = rows[:maxRows]
	}

	var b strings.Builder
	lblL, lblR := "─ Before ", "─ After "
	fmt.Fprintf(&b, "┌%s%s┬%s%s┐\n",
		lblL, strings.Repeat("─", colW+7-runeLen(lblL)),
		lblR, strings.Repeat("─", colW+7-runeLen(lblR)))
	for _, r := range rows {
		var oldMask, newMask []bool
		if r.hasOld && r.hasNew {
			oldMask, newMask = changedRunes(r.oldText, r.newText)
		}
		left := cell(r.oldNum, r.oldText, r.hasOld, colW, oldMask, c.Bold, c.Reset+c.Red)
		right := cell(r.newNum, r.newText, r.hasNew, colW, newMask, c.Bold, c.Reset+c.Green)
		switch {
		case r.kind == linediff.Equal:
			left, right = c.Dim+left+c.Reset, c.Dim+right+c.Reset
		default:
			if r.hasOld {
				left = c.Red + left + c.Reset
			}
			if r.hasNew {
				right = c.Green + right + c.Reset
			}
		}
		fmt.Fprintf(&b, "│ %s │ %s │\n", left, right)
	}
	fmt.Fprintf(&b, "└%s┴%s┘", strings.Repeat("─", colW+7), strings.Repeat("─", colW+7))
	if len(rows) < total {
		fmt.Fprintf(&b, "\n  %s… %d more lines not shown%s", c.Dim, total-len(rows), c.Reset)
	}
	return b.String()
}

// cell formats one side of a row: a four-digit line number and the text.
// Runes set in mask are wrapped in on and off.
func cell(num int, text string, ok bool, w int, mask []bool, on, off string) string {
	if !ok {
		return strings.Repeat(" ", w+5)
	}
	shown := []rune(padOrTrunc(text, w))
	if len(mask) == 0 || on == "" {
		return fmt.Sprintf("%4d %s", num, string(shown))
	}
	truncated := runeLen(text) > w && w > 1

	var b strings.Builder
	fmt.Fprintf(&b, "%4d ", num)
	lit := false
	for i, r := range shown {
		hl := i < len(mask) && mask[i] && !(truncated && i == len(shown)-1)
		if hl != lit {
			if hl {
				b.WriteString(on)
			} else {
				b.WriteString(off)
			}
			lit = hl
		}
		b.WriteRune(r)
	}
	if lit {
		b.WriteString(off)
	}
	return b.String()
}

// changedRunes marks the runes of oldText and newText that a character
// diff of the pair deletes or inserts.
func changedRunes(oldText, newText string) (oldMask, newMask []bool) {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(oldText, newText, false))
	for _, d := range diffs {
		n := utf8.RuneCountInString(d.Text)
		for i := 0; i < n; i++ {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				oldMask = append(oldMask, false)
				newMask = append(newMask, false)
			case diffmatchpatch.DiffDelete:
				oldMask = append(oldMask, true)
			case diffmatchpatch.DiffInsert:
				newMask = append(newMask, true)
			}
		}
	}
	return oldMask, newMask
}

func expandTabs(text string) string {
	return strings.ReplaceAll(text, "\t", "    ")
}
