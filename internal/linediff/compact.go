package linediff

// This file ports the change-group compaction of git's xdiff
// (xdl_change_compact in xdiff/xdiffi.c), including the indent heuristic.
// Groups are runs of changed lines on one side; the unchanged lines
// between groups pair one-to-one with the other side, so walking the
// groups of both sides in lockstep keeps them aligned.

const (
	maxIndent  = 200
	maxBlanks  = 20
	maxSliding = 100

	startOfFilePenalty              = 1
	endOfFilePenalty                = 21
	totalBlankWeight                = -30
	postBlankWeight                 = 6
	relativeIndentPenalty           = -4
	relativeIndentWithBlankPenalty  = 10
	relativeOutdentPenalty          = 24
	relativeOutdentWithBlankPenalty = 17
	relativeDedentPenalty           = 23
	relativeDedentWithBlankPenalty  = 17
	indentWeight                    = 60
)

// side is one file of the pair: its records (interned lines), the raw
// text used by the indent heuristic, and a change map with a false
// sentinel on both ends.
type side struct {
	ids     []int
	lines   []string
	chg     []bool
	indents []int
}

func newSide(lines []string, ids []int) *side {
	s := &side{
		ids:     ids,
		lines:   lines,
		chg:     make([]bool, len(lines)+2),
		indents: make([]int, len(lines)),
	}
	for i := range s.indents {
		s.indents[i] = indentUnknown
	}
	return s
}

func (s *side) n() int { return len(s.ids) }

func (s *side) changed(i int) bool { return s.chg[i+1] }

func (s *side) mark(i int, v bool) { s.chg[i+1] = v }

type group struct {
	start, end int
}

func (s *side) firstGroup() group {
	var g group
	for s.changed(g.end) {
		g.end++
	}
	return g
}

func (s *side) nextGroup(g *group) bool {
	if g.end == s.n() {
		return false
	}
	g.start = g.end + 1
	g.end = g.start
	for s.changed(g.end) {
		g.end++
	}
	return true
}

func (s *side) previousGroup(g *group) bool {
	if g.start == 0 {
		return false
	}
	g.end = g.start - 1
	g.start = g.end
	for s.changed(g.start - 1) {
		g.start--
	}
	return true
}

// slideDown moves a non-empty group one line down when the line after it
// equals its first line, absorbing any group it runs into.
func (s *side) slideDown(g *group) bool {
	if g.end < s.n() && s.ids[g.start] == s.ids[g.end] {
		s.mark(g.start, false)
		g.start++
		s.mark(g.end, true)
		g.end++
		for s.changed(g.end) {
			g.end++
		}
		return true
	}
	return false
}

// slideUp is the mirror of slideDown.
func (s *side) slideUp(g *group) bool {
	if g.start > 0 && s.ids[g.start-1] == s.ids[g.end-1] {
		g.start--
		s.mark(g.start, true)
		g.end--
		s.mark(g.end, false)
		for s.changed(g.start - 1) {
			g.start--
		}
		return true
	}
	return false
}

func mustStep(ok bool) {
	if !ok {
		panic("linediff: group sync broken")
	}
}

// compact normalizes the change groups of s, moving the matching groups of
// o along with them.
func compact(s, o *side) {
	g := s.firstGroup()
	og := o.firstGroup()

	for {
		if g.end != g.start {
			var groupSize, earliestEnd int
			endMatchingOther := -1

			// Slide up then down until the group stops growing by
			// merging with its neighbours.
			for {
				groupSize = g.end - g.start
				endMatchingOther = -1

				for s.slideUp(&g) {
					mustStep(o.previousGroup(&og))
				}
				earliestEnd = g.end
				if og.end > og.start {
					endMatchingOther = g.end
				}

				for s.slideDown(&g) {
					mustStep(o.nextGroup(&og))
					if og.end > og.start {
						endMatchingOther = g.end
					}
				}

				if groupSize == g.end-g.start {
					break
				}
			}

			switch {
			case g.end == earliestEnd:
				// Not movable.
			case endMatchingOther != -1:
				// Line up with the change on the other side.
				for og.end == og.start {
					mustStep(s.slideUp(&g))
					mustStep(o.previousGroup(&og))
				}
			default:
				best := s.bestShift(g, groupSize, earliestEnd)
				for g.end > best {
					mustStep(s.slideUp(&g))
					mustStep(o.previousGroup(&og))
				}
			}
		}

		if !s.nextGroup(&g) {
			break
		}
		mustStep(o.nextGroup(&og))
	}
}

// bestShift picks the end position for a slidable group whose lowest
// position ends at g.end, scoring each candidate split by indentation.
func (s *side) bestShift(g group, groupSize, earliestEnd int) int {
	shift := earliestEnd
	if g.end-groupSize-1 > shift {
		shift = g.end - groupSize - 1
	}
	if g.end-maxSliding > shift {
		shift = g.end - maxSliding
	}

	best := -1
	var bestScore splitScore
	for ; shift <= g.end; shift++ {
		var sc splitScore
		sc.add(s.measure(shift))
		sc.add(s.measure(shift - groupSize))
		if best == -1 || sc.cmp(bestScore) <= 0 {
			bestScore = sc
			best = shift
		}
	}
	return best
}

const indentUnknown = -2

// indent returns the visual indentation of line i, or -1 for a line that
// is blank or whitespace-only.
func (s *side) indent(i int) int {
	if v := s.indents[i]; v != indentUnknown {
		return v
	}
	v := lineIndent(s.lines[i])
	s.indents[i] = v
	return v
}

func lineIndent(line string) int {
	ret := 0
	for i := 0; i < len(line); i++ {
		c := line[i]
		if !isSpace(c) {
			return ret
		}
		switch c {
		case ' ':
			ret++
		case '\t':
			ret += 8 - ret%8
		}
		if ret >= maxIndent {
			return maxIndent
		}
	}
	return -1
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

type splitMeasurement struct {
	endOfFile  bool
	indent     int
	preBlank   int
	preIndent  int
	postBlank  int
	postIndent int
}

// measure describes the surroundings of a split placed just before line
// split.
func (s *side) measure(split int) splitMeasurement {
	var m splitMeasurement
	if split >= s.n() {
		m.endOfFile = true
		m.indent = -1
	} else {
		m.indent = s.indent(split)
	}

	m.preIndent = -1
	for i := split - 1; i >= 0; i-- {
		m.preIndent = s.indent(i)
		if m.preIndent != -1 {
			break
		}
		m.preBlank++
		if m.preBlank == maxBlanks {
			m.preIndent = 0
			break
		}
	}

	m.postIndent = -1
	for i := split + 1; i < s.n(); i++ {
		m.postIndent = s.indent(i)
		if m.postIndent != -1 {
			break
		}
		m.postBlank++
		if m.postBlank == maxBlanks {
			m.postIndent = 0
			break
		}
	}
	return m
}

type splitScore struct {
	effectiveIndent int
	penalty         int
}

func (sc *splitScore) add(m splitMeasurement) {
	if m.preIndent == -1 && m.preBlank == 0 {
		sc.penalty += startOfFilePenalty
	}
	if m.endOfFile {
		sc.penalty += endOfFilePenalty
	}

	postBlank := 0
	if m.indent == -1 {
		postBlank = 1 + m.postBlank
	}
	totalBlank := m.preBlank + postBlank

	sc.penalty += totalBlankWeight * totalBlank
	sc.penalty += postBlankWeight * postBlank

	indent := m.indent
	if indent == -1 {
		indent = m.postIndent
	}
	anyBlanks := totalBlank != 0

	sc.effectiveIndent += indent

	switch {
	case indent == -1, m.preIndent == -1:
	case indent > m.preIndent:
		if anyBlanks {
			sc.penalty += relativeIndentWithBlankPenalty
		} else {
			sc.penalty += relativeIndentPenalty
		}
	case indent == m.preIndent:
	default:
		if m.postIndent != -1 && m.postIndent > indent {
			if anyBlanks {
				sc.penalty += relativeOutdentWithBlankPenalty
			} else {
				sc.penalty += relativeOutdentPenalty
			}
		} else {
			if anyBlanks {
				sc.penalty += relativeDedentWithBlankPenalty
			} else {
				sc.penalty += relativeDedentPenalty
			}
		}
	}
}

// cmp is negative when sc is the better split.
func (sc splitScore) cmp(other splitScore) int {
	cmpIndents := 0
	switch {
	case sc.effectiveIndent > other.effectiveIndent:
		cmpIndents = 1
	case sc.effectiveIndent < other.effectiveIndent:
		cmpIndents = -1
	}
	return indentWeight*cmpIndents + (sc.penalty - other.penalty)
}
