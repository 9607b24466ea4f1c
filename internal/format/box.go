package format

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Box renders text inside a bordered box of the given outer width, word
// wrapping each paragraph.
func Box(title, text string, width int) string {
	innerW := width - 4
	if innerW < 30 {
		innerW = 30
	}

	var wrapped []string
	for _, paragraph := range strings.Split(text, "\n") {
		if strings.TrimSpace(paragraph) == "" {
			wrapped = append(wrapped, "")
			continue
		}
		wrapped = append(wrapped, wordWrap(paragraph, innerW)...)
	}

	var b strings.Builder
	if title != "" {
		lbl := fmt.Sprintf("─ %s ", title)
		fmt.Fprintf(&b, "┌%s%s┐\n", lbl, strings.Repeat("─", max(innerW+2-runeLen(lbl), 0)))
	} else {
		fmt.Fprintf(&b, "┌%s┐\n", strings.Repeat("─", innerW+2))
	}
	for _, line := range wrapped {
		fmt.Fprintf(&b, "│ %s │\n", padOrTrunc(line, innerW))
	}
	fmt.Fprintf(&b, "└%s┘", strings.Repeat("─", innerW+2))
	return b.String()
}

// wordWrap breaks text at word boundaries. A word longer than width gets
// a line of its own.
func wordWrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if runeLen(current)+1+runeLen(word) <= width {
			current += " " + word
		} else {
			lines = append(lines, current)
			current = word
		}
	}
	return append(lines, current)
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// padOrTrunc fits s to exactly width runes, marking truncation with an
// ellipsis.
func padOrTrunc(s string, width int) string {
	n := runeLen(s)
	switch {
	case n == width:
		return s
	case n < width:
		return s + strings.Repeat(" ", width-n)
	case width <= 1:
		return string([]rune(s)[:width])
	default:
		return string([]rune(s)[:width-1]) + "…"
	}
}
