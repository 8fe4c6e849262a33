package opt

import (
	"fmt"
	"slices"
)

// Assignment maps every vehicle to its route. It is the solver state handed
// from construction to local search to extraction.
type Assignment struct {
	Routes []*Route
	p      *Problem
}

// NewAssignment returns one empty depot-to-depot route per vehicle.
func NewAssignment(p *Problem) *Assignment {
	a := &Assignment{Routes: make([]*Route, p.Vehicles), p: p}
	for v := range a.Routes {
		a.Routes[v] = newRoute(p, v)
	}
	return a
}

// Problem returns the instance this assignment belongs to.
func (a *Assignment) Problem() *Problem { return a.p }

// Cost is the total distance over all routes.
func (a *Assignment) Cost() int {
	total := 0
	for _, r := range a.Routes {
		total += r.Distance()
	}
	return total
}

// Clone deep-copies the routes.
func (a *Assignment) Clone() *Assignment {
	out := &Assignment{Routes: make([]*Route, len(a.Routes)), p: a.p}
	for i, r := range a.Routes {
		out.Routes[i] = &Route{
			Vehicle: r.Vehicle,
			Visits:  slices.Clone(r.Visits),
			load:    slices.Clone(r.load),
			arrival: slices.Clone(r.arrival),
			latest:  slices.Clone(r.latest),
			dist:    slices.Clone(r.dist),
		}
	}
	return out
}

// Sequences returns a copy of every route's visit order.
func (a *Assignment) Sequences() [][]int {
	out := make([][]int, len(a.Routes))
	for i, r := range a.Routes {
		out[i] = append(make([]int, 0, len(r.Visits)), r.Visits...)
	}
	return out
}

// Validate checks the whole-lifecycle invariants: every customer is visited
// exactly once, the depot never appears mid-route, and every route replays
// cleanly through both dimensions.
func (a *Assignment) Validate() error {
	p := a.p
	seen := make([]int, len(p.Stops))
	for _, r := range a.Routes {
		for _, s := range r.Visits {
			if s < 0 || s >= len(p.Stops) {
				return fmt.Errorf("vehicle %d: unknown stop %d", r.Vehicle, s)
			}
			if s == p.Depot {
				return fmt.Errorf("vehicle %d: depot inside route", r.Vehicle)
			}
			seen[s]++
		}
		if _, _, err := Replay(p, r.Visits); err != nil {
			return fmt.Errorf("vehicle %d: %w", r.Vehicle, err)
		}
	}
	for i, c := range seen {
		if i == p.Depot {
			continue
		}
		if c != 1 {
			return fmt.Errorf("stop %d visited %d times", i, c)
		}
	}
	return nil
}
