package lineset

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// LineSet is an immutable set of 1-based line numbers, kept as a sorted,
// deduplicated slice. It serializes to compact notation like "5,7-8,12".
type LineSet struct {
	lines []int
}

// New creates a LineSet from individual line numbers. Non-positive
// numbers are dropped.
func New(lines ...int) LineSet {
	return LineSet{lines: normalize(append([]int(nil), lines...))}
}

// FromRange creates a LineSet covering the contiguous range [start, end].
func FromRange(start, end int) LineSet {
	if start <= 0 || end < start {
		return LineSet{}
	}
	lines := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		lines = append(lines, i)
	}
	return LineSet{lines: lines}
}

// Parse reads compact notation like "5", "5-7", or "5,7-8,12".
func Parse(s string) (LineSet, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return LineSet{}, nil
	}

	var lines []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil || start <= 0 {
			return LineSet{}, fmt.Errorf("invalid line number %q", lo)
		}
		if !isRange {
			lines = append(lines, start)
			continue
		}
		end, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil || end < start {
			return LineSet{}, fmt.Errorf("invalid range %q", part)
		}
		lines = append(lines, FromRange(start, end).lines...)
	}
	return LineSet{lines: normalize(lines)}, nil
}

// String returns the compact notation: "5,7-8,12".
func (ls LineSet) String() string {
	var b strings.Builder
	for i := 0; i < len(ls.lines); i++ {
		start := ls.lines[i]
		end := start
		for i+1 < len(ls.lines) && ls.lines[i+1] == end+1 {
			i++
			end = ls.lines[i]
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(start))
		if end != start {
			b.WriteByte('-')
			b.WriteString(strconv.Itoa(end))
		}
	}
	return b.String()
}

// IsEmpty returns true if the set contains no lines.
func (ls LineSet) IsEmpty() bool {
	return len(ls.lines) == 0
}

// Lines returns a copy of the sorted line numbers.
func (ls LineSet) Lines() []int {
	if len(ls.lines) == 0 {
		return nil
	}
	return append([]int(nil), ls.lines...)
}

// Len returns the number of lines in the set.
func (ls LineSet) Len() int {
	return len(ls.lines)
}

// MarshalJSON serializes as a JSON string in compact notation.
func (ls LineSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(ls.String())
}

// UnmarshalJSON accepts the compact string notation or null.
func (ls *LineSet) UnmarshalJSON(data []byte) error {
	if strings.TrimSpace(string(data)) == "null" {
		ls.lines = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("line set must be a string: %w", err)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	ls.lines = parsed.lines
	return nil
}

func normalize(nums []int) []int {
	sort.Ints(nums)
	out := nums[:0]
	for _, n := range nums {
		if n <= 0 {
			continue
		}
		if len(out) > 0 && out[len(out)-1] == n {
			continue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
