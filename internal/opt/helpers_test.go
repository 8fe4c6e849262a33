package opt

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"routeopt/internal/geo"
)

func ptr[T any](v T) *T { return &v }

// randomInstance scatters n stops (depot included) over a ~20 km box with
// small demands; roughly a third of the stops get a time window.
func randomInstance(seed uint64, n, vehicles, capacity int) Instance {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	locs := make([]Location, n)
	locs[0] = Location{Lat: 40.75, Lng: -73.98}
	for i := 1; i < n; i++ {
		loc := Location{
			Lat:    40.65 + r.Float64()*0.2,
			Lng:    -74.08 + r.Float64()*0.2,
			Demand: 1 + r.IntN(9),
		}
		if r.IntN(3) == 0 {
			start := r.IntN(600)
			loc.Window = &TimeWindow{Earliest: start, Latest: start + 300 + r.IntN(300)}
		}
		locs[i] = loc
	}
	return Instance{Locations: locs, Vehicles: ptr(vehicles), Capacity: ptr(capacity)}
}

// shortService keeps generated instances comfortably feasible.
func shortService() TimeModel {
	return TimeModel{DistancePerMinute: DefaultDistancePerMinute, ServiceMinutes: ptr(10)}
}

func mustProblem(t *testing.T, inst Instance, tm TimeModel) *Problem {
	t.Helper()
	p, err := NewProblem(inst, tm)
	require.NoError(t, err)
	m, err := geo.Build(context.Background(), geo.Haversine{}, p.Points(), 2)
	require.NoError(t, err)
	require.NoError(t, p.AttachMatrix(m))
	return p
}

// matrixProblem builds a problem over an explicit distance matrix, all
// windows open.
func matrixProblem(t *testing.T, rows [][]int, vehicles, capacity int, demands []int, tm TimeModel) *Problem {
	t.Helper()
	locs := make([]Location, len(rows))
	for i := range locs {
		if demands != nil {
			locs[i].Demand = demands[i]
		}
	}
	p, err := NewProblem(Instance{Locations: locs, Vehicles: ptr(vehicles), Capacity: ptr(capacity)}, tm)
	require.NoError(t, err)
	m, err := geo.NewMatrix(rows)
	require.NoError(t, err)
	require.NoError(t, p.AttachMatrix(m))
	return p
}

func construct(t *testing.T, p *Problem, s Strategy) *Assignment {
	t.Helper()
	a, err := Construct(context.Background(), p, s)
	require.NoError(t, err)
	require.NoError(t, a.Validate())
	return a
}
