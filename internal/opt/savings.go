package opt

import (
	"cmp"
	"context"
	"slices"
)

type saving struct {
	From, To int
	Amount   int
}

// buildSavings is Clarke-Wright: every customer starts on its own
// out-and-back route, then route ends are joined in order of decreasing
// savings d(i,depot) + d(depot,j) - d(i,j) while both dimensions hold. The
// longest merged routes are kept, one per vehicle; stops on any surplus
// route are placed by cheapest insertion.
func buildSavings(ctx context.Context, p *Problem, a *Assignment) error {
	customers := p.Customers()
	if len(customers) == 0 {
		return nil
	}

	routes := make(map[int][]int, len(customers)) // keyed by head stop
	headOf := make([]int, len(p.Stops))           // stop -> head of its route
	for _, c := range customers {
		if _, _, err := Replay(p, []int{c}); err != nil {
			// A stop that cannot be served alone is left for the fallback.
			headOf[c] = -1
			continue
		}
		routes[c] = []int{c}
		headOf[c] = c
	}

	var list []saving
	for _, i := range customers {
		for _, j := range customers {
			if i == j {
				continue
			}
			s := p.Distance(i, p.Depot) + p.Distance(p.Depot, j) - p.Distance(i, j)
			if s > 0 {
				list = append(list, saving{From: i, To: j, Amount: s})
			}
		}
	}
	slices.SortStableFunc(list, func(x, y saving) int {
		if c := cmp.Compare(y.Amount, x.Amount); c != 0 {
			return c
		}
		if c := cmp.Compare(x.From, y.From); c != 0 {
			return c
		}
		return cmp.Compare(x.To, y.To)
	})

	for k, s := range list {
		if k%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		hi, hj := headOf[s.From], headOf[s.To]
		if hi < 0 || hj < 0 || hi == hj {
			continue
		}
		ri, rj := routes[hi], routes[hj]
		// From must end its route and To must start the other.
		if ri[len(ri)-1] != s.From || rj[0] != s.To {
			continue
		}
		merged := append(slices.Clone(ri), rj...)
		if _, _, err := Replay(p, merged); err != nil {
			continue
		}
		routes[hi] = merged
		delete(routes, hj)
		for _, u := range rj {
			headOf[u] = hi
		}
	}

	built := make([][]int, 0, len(routes))
	for _, r := range routes {
		built = append(built, r)
	}
	slices.SortFunc(built, func(x, y []int) int {
		if c := cmp.Compare(len(y), len(x)); c != 0 {
			return c
		}
		return cmp.Compare(x[0], y[0])
	})

	var left []int
	for k, seq := range built {
		if k < len(a.Routes) {
			a.Routes[k].Visits = seq
			a.Routes[k].refresh(p)
			continue
		}
		left = append(left, seq...)
	}
	for _, c := range customers {
		if headOf[c] < 0 {
			left = append(left, c)
		}
	}
	return insertCheapest(ctx, p, a, left)
}
