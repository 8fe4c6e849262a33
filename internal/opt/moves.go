package opt

import (
	"cmp"
	"fmt"
	"slices"
)

// MoveKind names a neighborhood.
type MoveKind int

const (
	MoveRelocate MoveKind = iota
	MoveExchange
	MoveTwoOpt
)

func (k MoveKind) String() string {
	switch k {
	case MoveRelocate:
		return "relocate"
	case MoveExchange:
		return "exchange"
	case MoveTwoOpt:
		return "two_opt"
	}
	return fmt.Sprintf("move(%d)", int(k))
}

// Move identifies one neighbor of the current assignment. Positions are
// extended route positions (visits are 1..len).
//
//	relocate: visit P1 of R1 goes between P2 and P2+1 of R2. When R1 == R2,
//	          P2 indexes the route with the visit already removed.
//	exchange: visit P1 of R1 swaps with visit P2 of R2.
//	two_opt:  visits P1..P2 of R1 are reversed (R2 == R1).
type Move struct {
	Kind   MoveKind
	R1, P1 int
	R2, P2 int
	Delta  int
}

func (m Move) String() string {
	return fmt.Sprintf("%s r%d/%d r%d/%d", m.Kind, m.R1, m.P1, m.R2, m.P2)
}

// compareMoves orders candidates by delta, then by identity, so any scan
// partitioning reduces to the same winner.
func compareMoves(x, y Move) int {
	if c := cmp.Compare(x.Delta, y.Delta); c != 0 {
		return c
	}
	if c := cmp.Compare(x.R1, y.R1); c != 0 {
		return c
	}
	if c := cmp.Compare(x.Kind, y.Kind); c != 0 {
		return c
	}
	if c := cmp.Compare(x.P1, y.P1); c != 0 {
		return c
	}
	if c := cmp.Compare(x.R2, y.R2); c != 0 {
		return c
	}
	return cmp.Compare(x.P2, y.P2)
}

// stops returns the stop indices a move repositions.
func (m Move) stops(a *Assignment) []int {
	r1 := a.Routes[m.R1]
	switch m.Kind {
	case MoveExchange:
		return []int{r1.Visits[m.P1-1], a.Routes[m.R2].Visits[m.P2-1]}
	case MoveTwoOpt:
		return []int{r1.Visits[m.P1-1], r1.Visits[m.P2-1]}
	}
	return []int{r1.Visits[m.P1-1]}
}

// evalIntra prices a same-length rewrite of one route. Only the span that
// differs is walked; the unchanged prefix and suffix come from the
// cumulative arrays.
func evalIntra(p *Problem, r *Route, next []int) (int, bool) {
	i := 0
	for i < len(next) && next[i] == r.Visits[i] {
		i++
	}
	if i == len(next) {
		return 0, false
	}
	j := len(next) - 1
	for next[j] == r.Visits[j] {
		j--
	}
	start, resume := i, j+2
	seq := next[i : j+1]
	if !r.feasibleWith(p, start, seq, resume) {
		return 0, false
	}
	return r.segmentCost(p, start, seq, resume) - (r.dist[resume] - r.dist[start]), true
}

// relocated returns r's visits with position from moved after position to of
// the shortened sequence.
func relocated(visits []int, from, to int) []int {
	u := visits[from-1]
	out := make([]int, 0, len(visits))
	out = append(out, visits[:from-1]...)
	out = append(out, visits[from:]...)
	return slices.Insert(out, to, u)
}

func exchanged(visits []int, p1, p2 int) []int {
	out := slices.Clone(visits)
	out[p1-1], out[p2-1] = out[p2-1], out[p1-1]
	return out
}

func reversed(visits []int, p1, p2 int) []int {
	out := slices.Clone(visits)
	slices.Reverse(out[p1-1 : p2])
	return out
}

// scanAnchor evaluates every feasible move whose first visit is (r1, p1) and
// passes visit to each one in a fixed order. visit returns false to stop.
func scanAnchor(a *Assignment, r1, p1 int, visit func(Move) bool) {
	p := a.p
	ra := a.Routes[r1]
	u := ra.Visits[p1-1]
	du := p.Stops[u].Demand

	// relocate
	removeDelta := p.Distance(ra.node(p, p1-1), ra.node(p, p1+1)) -
		p.Distance(ra.node(p, p1-1), u) - p.Distance(u, ra.node(p, p1+1))
	removeOK := ra.feasibleWith(p, p1-1, nil, p1+1)
	for r2, rb := range a.Routes {
		if r2 == r1 {
			for to := 0; to < len(ra.Visits); to++ {
				if to == p1-1 {
					continue
				}
				if d, ok := evalIntra(p, ra, relocated(ra.Visits, p1, to)); ok {
					if !visit(Move{Kind: MoveRelocate, R1: r1, P1: p1, R2: r2, P2: to, Delta: d}) {
						return
					}
				}
			}
			continue
		}
		if !removeOK || !rb.fitsLoad(p, du) {
			continue
		}
		for to := 0; to <= len(rb.Visits); to++ {
			if !rb.feasibleWith(p, to, []int{u}, to+1) {
				continue
			}
			d := removeDelta + rb.insertCost(p, to, u)
			if !visit(Move{Kind: MoveRelocate, R1: r1, P1: p1, R2: r2, P2: to, Delta: d}) {
				return
			}
		}
	}

	// exchange
	for r2 := r1; r2 < len(a.Routes); r2++ {
		rb := a.Routes[r2]
		if r2 == r1 {
			for p2 := p1 + 1; p2 <= len(ra.Visits); p2++ {
				if d, ok := evalIntra(p, ra, exchanged(ra.Visits, p1, p2)); ok {
					if !visit(Move{Kind: MoveExchange, R1: r1, P1: p1, R2: r2, P2: p2, Delta: d}) {
						return
					}
				}
			}
			continue
		}
		for p2 := 1; p2 <= len(rb.Visits); p2++ {
			v := rb.Visits[p2-1]
			dv := p.Stops[v].Demand
			if !ra.fitsLoad(p, dv-du) || !rb.fitsLoad(p, du-dv) {
				continue
			}
			if !ra.feasibleWith(p, p1-1, []int{v}, p1+1) || !rb.feasibleWith(p, p2-1, []int{u}, p2+1) {
				continue
			}
			d := ra.segmentCost(p, p1-1, []int{v}, p1+1) - (ra.dist[p1+1] - ra.dist[p1-1]) +
				rb.segmentCost(p, p2-1, []int{u}, p2+1) - (rb.dist[p2+1] - rb.dist[p2-1])
			if !visit(Move{Kind: MoveExchange, R1: r1, P1: p1, R2: r2, P2: p2, Delta: d}) {
				return
			}
		}
	}

	// 2-opt
	for p2 := p1 + 1; p2 <= len(ra.Visits); p2++ {
		if d, ok := evalIntra(p, ra, reversed(ra.Visits, p1, p2)); ok {
			if !visit(Move{Kind: MoveTwoOpt, R1: r1, P1: p1, R2: r1, P2: p2, Delta: d}) {
				return
			}
		}
	}
}

// apply commits a move. Affected routes are rebuilt as a whole before their
// cumulative arrays are refreshed, so no reader sees a half-applied move.
func (a *Assignment) apply(m Move) {
	p := a.p
	ra, rb := a.Routes[m.R1], a.Routes[m.R2]
	switch m.Kind {
	case MoveRelocate:
		if m.R1 == m.R2 {
			ra.Visits = relocated(ra.Visits, m.P1, m.P2)
			ra.refresh(p)
			return
		}
		u := ra.Visits[m.P1-1]
		ra.Visits = slices.Delete(slices.Clone(ra.Visits), m.P1-1, m.P1)
		rb.Visits = slices.Insert(slices.Clone(rb.Visits), m.P2, u)
	case MoveExchange:
		if m.R1 == m.R2 {
			ra.Visits = exchanged(ra.Visits, m.P1, m.P2)
			ra.refresh(p)
			return
		}
		va, vb := slices.Clone(ra.Visits), slices.Clone(rb.Visits)
		va[m.P1-1], vb[m.P2-1] = vb[m.P2-1], va[m.P1-1]
		ra.Visits, rb.Visits = va, vb
	case MoveTwoOpt:
		ra.Visits = reversed(ra.Visits, m.P1, m.P2)
		ra.refresh(p)
		return
	}
	ra.refresh(p)
	rb.refresh(p)
}
