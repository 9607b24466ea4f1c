package linediff

import "math"

// This file ports the core of git's xdiff (xdiff/xprepare.c and
// xdiff/xdiffi.c): common prefix and suffix trimming, the discarding of
// lines with no or too many counterparts, and the divide-and-conquer
// Myers search with git's cost heuristics. Matching git here, and not
// only some minimal edit script, is what keeps added-line sets equal to
// what `git diff` shows on repetitive content.

const (
	maxEqLimit    = 1024
	simscanWindow = 100
	keepDiscards  = 4

	maxCostMin  = 256
	heurMinCost = 256
	snakeCount  = 20
	heurFactor  = 4
)

// markChanges fills the change maps of a and b.
func markChanges(a, b *side) {
	countA := make(map[int]int, a.n())
	for _, id := range a.ids {
		countA[id]++
	}
	countB := make(map[int]int, b.n())
	for _, id := range b.ids {
		countB[id]++
	}

	lim := min(a.n(), b.n())
	start := 0
	for start < lim && a.ids[start] == b.ids[start] {
		start++
	}
	suffix := 0
	for suffix < lim-start && a.ids[a.n()-1-suffix] == b.ids[b.n()-1-suffix] {
		suffix++
	}

	ha1, idx1 := a.reduce(countB, start, a.n()-1-suffix)
	ha2, idx2 := b.reduce(countA, start, b.n()-1-suffix)

	m := &myers{a: ha1, b: ha2, idx1: idx1, idx2: idx2, s1: a, s2: b}
	ndiags := len(ha1) + len(ha2) + 3
	m.kvdf = make([]int, ndiags)
	m.kvdb = make([]int, ndiags)
	m.zero = len(ha2) + 1
	m.maxCost = max(bogosqrt(ndiags), maxCostMin)
	m.compare(0, len(ha1), 0, len(ha2), false)
}

// bogosqrt is git's cheap square root estimate.
func bogosqrt(n int) int {
	i := 1
	for ; n > 0; n >>= 2 {
		i <<= 1
	}
	return i
}

// reduce returns the records in [start, end] that take part in the
// search, with their positions. Lines the other side never has, and runs
// of lines it has too often amid such lines, are marked changed directly.
func (s *side) reduce(other map[int]int, start, end int) ([]int, []int) {
	mlim := min(bogosqrt(s.n()), maxEqLimit)
	dis := make([]byte, s.n()+1)
	for i := start; i <= end; i++ {
		switch nm := other[s.ids[i]]; {
		case nm == 0:
			dis[i] = 0
		case nm >= mlim:
			dis[i] = 2
		default:
			dis[i] = 1
		}
	}

	var ha, idx []int
	for i := start; i <= end; i++ {
		if dis[i] == 1 || (dis[i] == 2 && !discardMultimatch(dis, i, start, end)) {
			ha = append(ha, s.ids[i])
			idx = append(idx, i)
		} else {
			s.mark(i, true)
		}
	}
	return ha, idx
}

// discardMultimatch reports whether the multi-match line i sits in a run
// dominated by lines with no match at all.
func discardMultimatch(dis []byte, i, s, e int) bool {
	if i-s > simscanWindow {
		s = i - simscanWindow
	}
	if e-i > simscanWindow {
		e = i + simscanWindow
	}

	rdis0, rpdis0 := 0, 1
	for r := 1; i-r >= s; r++ {
		if dis[i-r] == 0 {
			rdis0++
		} else if dis[i-r] == 2 {
			rpdis0++
		} else {
			break
		}
	}
	if rdis0 == 0 {
		return false
	}
	rdis1, rpdis1 := 0, 1
	for r := 1; i+r <= e; r++ {
		if dis[i+r] == 0 {
			rdis1++
		} else if dis[i+r] == 2 {
			rpdis1++
		} else {
			break
		}
	}
	if rdis1 == 0 {
		return false
	}
	rdis1 += rdis0
	rpdis1 += rpdis0
	return rpdis1*keepDiscards < rpdis1+rdis1
}

type myers struct {
	a, b       []int
	idx1, idx2 []int
	s1, s2     *side

	// kvdf and kvdb are the forward and backward furthest-reaching
	// paths, indexed by diagonal + zero.
	kvdf, kvdb []int
	zero       int
	maxCost    int
}

type splitPoint struct {
	i1, i2       int
	minLo, minHi bool
}

func (m *myers) compare(off1, lim1, off2, lim2 int, needMin bool) {
	for off1 < lim1 && off2 < lim2 && m.a[off1] == m.b[off2] {
		off1++
		off2++
	}
	for off1 < lim1 && off2 < lim2 && m.a[lim1-1] == m.b[lim2-1] {
		lim1--
		lim2--
	}

	switch {
	case off1 == lim1:
		for ; off2 < lim2; off2++ {
			m.s2.mark(m.idx2[off2], true)
		}
	case off2 == lim2:
		for ; off1 < lim1; off1++ {
			m.s1.mark(m.idx1[off1], true)
		}
	default:
		sp := m.split(off1, lim1, off2, lim2, needMin)
		m.compare(off1, sp.i1, off2, sp.i2, sp.minLo)
		m.compare(sp.i1, lim1, sp.i2, lim2, sp.minHi)
	}
}

// split finds the middle snake of the box, or a good-enough split point
// once the edit cost passes the heuristic limits.
func (m *myers) split(off1, lim1, off2, lim2 int, needMin bool) splitPoint {
	a, b, kf, kb, z := m.a, m.b, m.kvdf, m.kvdb, m.zero
	dmin, dmax := off1-lim2, lim1-off2
	fmid, bmid := off1-off2, lim1-lim2
	odd := (fmid-bmid)&1 != 0
	fmin, fmax := fmid, fmid
	bmin, bmax := bmid, bmid

	kf[z+fmid] = off1
	kb[z+bmid] = lim1

	for ec := 1; ; ec++ {
		gotSnake := false

		if fmin > dmin {
			fmin--
			kf[z+fmin-1] = -1
		} else {
			fmin++
		}
		if fmax < dmax {
			fmax++
			kf[z+fmax+1] = -1
		} else {
			fmax--
		}

		for d := fmax; d >= fmin; d -= 2 {
			var i1 int
			if kf[z+d-1] >= kf[z+d+1] {
				i1 = kf[z+d-1] + 1
			} else {
				i1 = kf[z+d+1]
			}
			prev := i1
			i2 := i1 - d
			for i1 < lim1 && i2 < lim2 && a[i1] == b[i2] {
				i1++
				i2++
			}
			if i1-prev > snakeCount {
				gotSnake = true
			}
			kf[z+d] = i1
			if odd && bmin <= d && d <= bmax && kb[z+d] <= i1 {
				return splitPoint{i1: i1, i2: i2, minLo: true, minHi: true}
			}
		}

		if bmin > dmin {
			bmin--
			kb[z+bmin-1] = math.MaxInt
		} else {
			bmin++
		}
		if bmax < dmax {
			bmax++
			kb[z+bmax+1] = math.MaxInt
		} else {
			bmax--
		}

		for d := bmax; d >= bmin; d -= 2 {
			var i1 int
			if kb[z+d-1] < kb[z+d+1] {
				i1 = kb[z+d-1]
			} else {
				i1 = kb[z+d+1] - 1
			}
			prev := i1
			i2 := i1 - d
			for i1 > off1 && i2 > off2 && a[i1-1] == b[i2-1] {
				i1--
				i2--
			}
			if prev-i1 > snakeCount {
				gotSnake = true
			}
			kb[z+d] = i1
			if !odd && fmin <= d && d <= fmax && i1 <= kf[z+d] {
				return splitPoint{i1: i1, i2: i2, minLo: true, minHi: true}
			}
		}

		if needMin {
			continue
		}

		// Past the trigger cost, take a diagonal that has come far and
		// ends in a long snake.
		if gotSnake && ec > heurMinCost {
			best := 0
			var sp splitPoint
			for d := fmax; d >= fmin; d -= 2 {
				dd := abs(d - fmid)
				i1 := kf[z+d]
				i2 := i1 - d
				v := (i1 - off1) + (i2 - off2) - dd
				if v > heurFactor*ec && v > best &&
					off1+snakeCount <= i1 && i1 < lim1 &&
					off2+snakeCount <= i2 && i2 < lim2 {
					for k := 1; a[i1-k] == b[i2-k]; k++ {
						if k == snakeCount {
							best = v
							sp.i1, sp.i2 = i1, i2
							break
						}
					}
				}
			}
			if best > 0 {
				sp.minLo, sp.minHi = true, false
				return sp
			}

			best = 0
			for d := bmax; d >= bmin; d -= 2 {
				dd := abs(d - bmid)
				i1 := kb[z+d]
				i2 := i1 - d
				v := (lim1 - i1) + (lim2 - i2) - dd
				if v > heurFactor*ec && v > best &&
					off1 < i1 && i1 <= lim1-snakeCount &&
					off2 < i2 && i2 <= lim2-snakeCount {
					for k := 0; a[i1+k] == b[i2+k]; k++ {
						if k == snakeCount-1 {
							best = v
							sp.i1, sp.i2 = i1, i2
							break
						}
					}
				}
			}
			if best > 0 {
				sp.minLo, sp.minHi = false, true
				return sp
			}
		}

		if ec >= m.maxCost {
			fbest, fbest1 := -1, -1
			for d := fmax; d >= fmin; d -= 2 {
				i1 := min(kf[z+d], lim1)
				i2 := i1 - d
				if lim2 < i2 {
					i1, i2 = lim2+d, lim2
				}
				if fbest < i1+i2 {
					fbest, fbest1 = i1+i2, i1
				}
			}

			bbest, bbest1 := math.MaxInt, math.MaxInt
			for d := bmax; d >= bmin; d -= 2 {
				i1 := max(off1, kb[z+d])
				i2 := i1 - d
				if i2 < off2 {
					i1, i2 = off2+d, off2
				}
				if i1+i2 < bbest {
					bbest, bbest1 = i1+i2, i1
				}
			}

			if (lim1+lim2)-bbest < fbest-(off1+off2) {
				return splitPoint{i1: fbest1, i2: fbest - fbest1, minLo: true}
			}
			return splitPoint{i1: bbest1, i2: bbest - bbest1, minHi: true}
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
