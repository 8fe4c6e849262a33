package opt

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStrategy(t *testing.T) {
	cases := map[string]Strategy{
		"":                   StrategyCheapestInsertion,
		"cheapest_insertion": StrategyCheapestInsertion,
		"PATH_CHEAPEST_ARC":  StrategyCheapestInsertion,
		"savings":            StrategySavings,
		" nearest_neighbor ": StrategyNearestNeighbor,
	}
	for in, want := range cases {
		got, err := ParseStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseStrategy("genetic")
	require.ErrorIs(t, err, ErrInvalidInstance)
}

func TestConstruct_AllStrategiesFeasible(t *testing.T) {
	for _, s := range []Strategy{StrategyCheapestInsertion, StrategySavings, StrategyNearestNeighbor} {
		for seed := uint64(1); seed <= 4; seed++ {
			p := mustProblem(t, randomInstance(seed, 25, 5, 40), shortService())
			a, err := Construct(context.Background(), p, s)
			require.NoError(t, err, "%s seed %d", s, seed)
			require.NoError(t, a.Validate(), "%s seed %d", s, seed)
			assert.Len(t, a.Routes, 5)
		}
	}
}

func TestConstruct_TieBreakLowestVehicle(t *testing.T) {
	p := matrixProblem(t, uniform(2, 1000), 3, 10, nil, shortService())
	a := construct(t, p, StrategyCheapestInsertion)
	assert.Equal(t, [][]int{{1}, {}, {}}, a.Sequences())
}

func TestConstruct_CheapestInsertionOrder(t *testing.T) {
	// Stops on a line: 0 - 1 - 2 - 3.
	rows := [][]int{
		{0, 1000, 2000, 3000},
		{1000, 0, 1000, 2000},
		{2000, 1000, 0, 1000},
		{3000, 2000, 1000, 0},
	}
	p := matrixProblem(t, rows, 1, 10, nil, shortService())
	a := construct(t, p, StrategyCheapestInsertion)
	// Every later insertion ties between the front and the back; the lower
	// position wins.
	assert.Equal(t, [][]int{{3, 2, 1}}, a.Sequences())
	assert.Equal(t, 6000, a.Cost())
}

func TestConstruct_SavingsMergesEnds(t *testing.T) {
	rows := [][]int{
		{0, 1000, 2000, 3000},
		{1000, 0, 1000, 2000},
		{2000, 1000, 0, 1000},
		{3000, 2000, 1000, 0},
	}
	p := matrixProblem(t, rows, 3, 10, nil, shortService())
	a := construct(t, p, StrategySavings)
	// All three merge into one route; the other vehicles stay empty.
	assert.Equal(t, 6000, a.Cost())
	assert.Len(t, a.Routes[0].Visits, 3)
}

func TestConstruct_CapacityOverflow(t *testing.T) {
	p := matrixProblem(t, uniform(3, 1000), 1, 100, []int{0, 60, 60}, shortService())
	for _, s := range []Strategy{StrategyCheapestInsertion, StrategySavings, StrategyNearestNeighbor} {
		_, err := Construct(context.Background(), p, s)
		require.ErrorIs(t, err, ErrNoFeasibleConstruction, s)
		require.ErrorIs(t, err, ErrInfeasibleFleet, s)
	}
}

func TestConstruct_WindowUnreachable(t *testing.T) {
	p := matrixProblem(t, uniform(3, 30_000), 2, 100, []int{0, 1, 1}, shortService())
	p.Stops[2].Window = TimeWindow{0, 10}
	_, err := Construct(context.Background(), p, StrategyCheapestInsertion)
	require.ErrorIs(t, err, ErrNoFeasibleConstruction)
	assert.NotErrorIs(t, err, ErrInfeasibleFleet)
	assert.Contains(t, err.Error(), "first is 2")
}

func TestConstruct_HugeFleetCapacity(t *testing.T) {
	p := matrixProblem(t, uniform(3, 30_000), 3, math.MaxInt/2, []int{0, 1, 1}, shortService())
	p.Stops[2].Window = TimeWindow{0, 10}
	_, err := Construct(context.Background(), p, StrategyCheapestInsertion)
	require.ErrorIs(t, err, ErrNoFeasibleConstruction)
	assert.NotErrorIs(t, err, ErrInfeasibleFleet)
}

func TestConstructionError_FleetBoundary(t *testing.T) {
	p := matrixProblem(t, uniform(3, 1000), 2, 50, []int{0, 50, 50}, shortService())
	assert.NotErrorIs(t, constructionError(p, []int{1}), ErrInfeasibleFleet, "demand equal to fleet capacity fits")

	p.Stops[2].Demand = 51
	err := constructionError(p, []int{1})
	require.ErrorIs(t, err, ErrInfeasibleFleet)
	assert.Contains(t, err.Error(), "total demand 101 exceeds fleet capacity 100")
}

func TestConstruct_Cancelled(t *testing.T) {
	p := mustProblem(t, randomInstance(9, 20, 3, 100), shortService())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Construct(ctx, p, StrategyCheapestInsertion)
	require.ErrorIs(t, err, context.Canceled)
}

func TestConstruct_DepotOnly(t *testing.T) {
	p := matrixProblem(t, [][]int{{0}}, 2, 10, nil, shortService())
	a := construct(t, p, StrategySavings)
	assert.Equal(t, [][]int{{}, {}}, a.Sequences())
	assert.Equal(t, 0, a.Cost())
}
