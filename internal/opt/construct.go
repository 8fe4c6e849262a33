package opt

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Strategy selects how the first feasible assignment is built.
type Strategy string

const (
	StrategyCheapestInsertion Strategy = "cheapest_insertion"
	StrategySavings           Strategy = "savings"
	StrategyNearestNeighbor   Strategy = "nearest_neighbor"
)

// ParseStrategy resolves a strategy name. The empty string is the default;
// "path_cheapest_arc" is accepted as an alias of cheapest insertion.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", string(StrategyCheapestInsertion), "path_cheapest_arc":
		return StrategyCheapestInsertion, nil
	case string(StrategySavings):
		return StrategySavings, nil
	case string(StrategyNearestNeighbor):
		return StrategyNearestNeighbor, nil
	}
	return "", fmt.Errorf("%w: unknown first_solution_strategy %q", ErrInvalidInstance, name)
}

// Construct builds a feasible assignment covering every customer, or fails
// with ErrNoFeasibleConstruction.
func Construct(ctx context.Context, p *Problem, s Strategy) (*Assignment, error) {
	a := NewAssignment(p)
	var err error
	switch s {
	case StrategyCheapestInsertion, "":
		err = insertCheapest(ctx, p, a, p.Customers())
	case StrategySavings:
		err = buildSavings(ctx, p, a)
	case StrategyNearestNeighbor:
		err = buildNearest(ctx, p, a)
	default:
		return nil, fmt.Errorf("%w: unknown first_solution_strategy %q", ErrInvalidInstance, s)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// insertCheapest repeatedly places the (stop, vehicle, position) triple with
// the smallest marginal distance until pending is empty. Ties go to the
// lowest vehicle, then the lowest position, then the lowest stop index.
func insertCheapest(ctx context.Context, p *Problem, a *Assignment, pending []int) error {
	left := slices.Clone(pending)
	slices.Sort(left)
	for len(left) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		bestK, bestV, bestPos, bestCost := -1, -1, -1, 0
		for v, r := range a.Routes {
			for pos := 0; pos <= len(r.Visits); pos++ {
				for k, u := range left {
					if !r.canInsert(p, pos, u) {
						continue
					}
					c := r.insertCost(p, pos, u)
					if bestK < 0 || c < bestCost {
						bestK, bestV, bestPos, bestCost = k, v, pos, c
					}
				}
			}
		}
		if bestK < 0 {
			return constructionError(p, left)
		}
		a.Routes[bestV].insert(p, bestPos, left[bestK])
		left = append(left[:bestK], left[bestK+1:]...)
	}
	return nil
}

// buildNearest grows the routes round-robin: each vehicle in turn appends the
// closest stop it can still reach. Stops no route end can take are then
// placed by cheapest insertion.
func buildNearest(ctx context.Context, p *Problem, a *Assignment) error {
	used := make([]bool, len(p.Stops))
	used[p.Depot] = true
	remaining := len(p.Stops) - 1
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		progress := false
		for _, r := range a.Routes {
			last := len(r.Visits)
			from := r.node(p, last)
			best, bestDist := -1, 0
			for u := range p.Stops {
				if used[u] || !r.canInsert(p, last, u) {
					continue
				}
				if d := p.Distance(from, u); best < 0 || d < bestDist {
					best, bestDist = u, d
				}
			}
			if best < 0 {
				continue
			}
			r.insert(p, last, best)
			used[best] = true
			remaining--
			progress = true
			if remaining == 0 {
				break
			}
		}
		if !progress {
			break
		}
	}
	var left []int
	for u, ok := range used {
		if !ok {
			left = append(left, u)
		}
	}
	return insertCheapest(ctx, p, a, left)
}

// constructionError reports the stops that could not be placed, adding the
// fleet diagnostic when demand alone rules out a solution.
func constructionError(p *Problem, left []int) error {
	// total > vehicles*capacity, without forming the product
	total := p.TotalDemand()
	if total > 0 && (p.Capacity <= 0 || p.Vehicles <= (total-1)/p.Capacity) {
		return fmt.Errorf("%w: %w: total demand %d exceeds fleet capacity %d", ErrNoFeasibleConstruction, ErrInfeasibleFleet, total, p.Vehicles*max(p.Capacity, 0))
	}
	return fmt.Errorf("%w: %d stop(s) cannot be placed, first is %d", ErrNoFeasibleConstruction, len(left), left[0])
}
