package format

import "strings"

// Table is a grid of cells rendered with box-drawing rules. Columns flagged
// in Numeric are right-aligned.
type Table struct {
	Header  []string
	Rows    [][]string
	Numeric []bool
}

// Render lays the table out. Cells are measured in runes; escape
// sequences must not appear in cells.
func (t Table) Render() string {
	widths := make([]int, len(t.Header))
	for i, h := range t.Header {
		widths[i] = runeLen(h)
	}
	for _, row := range t.Rows {
		for i := range widths {
			if i < len(row) && runeLen(row[i]) > widths[i] {
				widths[i] = runeLen(row[i])
			}
		}
	}

	var b strings.Builder
	rule := func(left, mid, right string) {
		b.WriteString(left)
		for i, w := range widths {
			if i > 0 {
				b.WriteString(mid)
			}
			b.WriteString(strings.Repeat("─", w+2))
		}
		b.WriteString(right)
		b.WriteByte('\n')
	}
	line := func(cells []string) {
		b.WriteString("│")
		for i, w := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			pad := strings.Repeat(" ", w-runeLen(cell))
			b.WriteByte(' ')
			if i < len(t.Numeric) && t.Numeric[i] {
				b.WriteString(pad + cell)
			} else {
				b.WriteString(cell + pad)
			}
			b.WriteString(" │")
		}
		b.WriteByte('\n')
	}

	rule("┌", "┬", "┐")
	line(t.Header)
	rule("├", "┼", "┤")
	for _, row := range t.Rows {
		line(row)
	}
	rule("└", "┴", "┘")
	return b.String()
}
