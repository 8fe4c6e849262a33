package opt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every neighbor the scan reports must apply to a feasible assignment whose
// cost moves by exactly the reported delta.
func TestScanAnchor_DeltaMatchesApply(t *testing.T) {
	kinds := map[MoveKind]int{}
	for seed := uint64(1); seed <= 3; seed++ {
		p := mustProblem(t, randomInstance(seed, 12, 3, 30), shortService())
		a := construct(t, p, StrategyNearestNeighbor)
		base := a.Cost()
		for _, an := range anchors(a) {
			scanAnchor(a, an.r, an.p, func(m Move) bool {
				kinds[m.Kind]++
				b := a.Clone()
				b.apply(m)
				require.NoError(t, b.Validate(), "seed %d %v", seed, m)
				require.Equal(t, base+m.Delta, b.Cost(), "seed %d %v", seed, m)
				return true
			})
		}
	}
	assert.Positive(t, kinds[MoveRelocate])
	assert.Positive(t, kinds[MoveExchange])
	assert.Positive(t, kinds[MoveTwoOpt])
}

func TestSearch_TwoOptUncrosses(t *testing.T) {
	// Corners of a square visited in crossing order 1,3,2,4 from depot 0 at
	// the first corner's side.
	rows := [][]int{
		{0, 1000, 1414, 1000, 1414},
		{1000, 0, 1000, 1414, 2000},
		{1414, 1000, 0, 1000, 1414},
		{1000, 1414, 1000, 0, 1000},
		{1414, 2000, 1414, 1000, 0},
	}
	p := matrixProblem(t, rows, 1, 10, nil, shortService())
	a := NewAssignment(p)
	for i, s := range []int{1, 3, 2, 4} {
		a.Routes[0].insert(p, i, s)
	}
	before := a.Cost()

	best, stats := Search(context.Background(), a, SearchOptions{Workers: 1})
	require.NoError(t, best.Validate())
	assert.Less(t, best.Cost(), before)
	assert.Equal(t, StopLocalOptimum, stats.Stop)
	assert.Equal(t, []int{1, 3, 2, 4}, a.Routes[0].Visits, "input is not modified")
}

func TestSearch_MonotonicImprovement(t *testing.T) {
	p := mustProblem(t, randomInstance(3, 40, 4, 60), shortService())
	a := construct(t, p, StrategyNearestNeighbor)

	var costs []int
	best, stats := Search(context.Background(), a, SearchOptions{
		Observer: func(pr Progress) {
			assert.Equal(t, PhaseSearch, pr.Phase)
			costs = append(costs, pr.Cost)
		},
	})
	require.NoError(t, best.Validate())
	assert.Equal(t, StopLocalOptimum, stats.Stop)
	assert.Equal(t, a.Cost(), stats.InitialCost)
	assert.Equal(t, best.Cost(), stats.FinalCost)
	assert.LessOrEqual(t, best.Cost(), a.Cost())
	assert.Len(t, costs, stats.Improvements)

	prev := a.Cost()
	for _, c := range costs {
		assert.Less(t, c, prev)
		prev = c
	}
}

func TestSearch_ParallelScanDeterministic(t *testing.T) {
	p := mustProblem(t, randomInstance(11, 35, 4, 60), shortService())
	a := construct(t, p, StrategySavings)

	one, s1 := Search(context.Background(), a, SearchOptions{Workers: 1})
	four, s4 := Search(context.Background(), a, SearchOptions{Workers: 4})
	odd, s7 := Search(context.Background(), a, SearchOptions{Workers: 7})

	assert.Equal(t, one.Sequences(), four.Sequences())
	assert.Equal(t, one.Sequences(), odd.Sequences())
	assert.Equal(t, s1.Iterations, s4.Iterations)
	assert.Equal(t, s1.Moves, s7.Moves)
}

func TestSearch_FirstImprovement(t *testing.T) {
	p := mustProblem(t, randomInstance(5, 30, 3, 80), shortService())
	a := construct(t, p, StrategyNearestNeighbor)
	best, stats := Search(context.Background(), a, SearchOptions{FirstImprovement: true})
	require.NoError(t, best.Validate())
	assert.Equal(t, StopLocalOptimum, stats.Stop)
	assert.LessOrEqual(t, best.Cost(), a.Cost())
}

func TestSearch_EscapeNeverWorse(t *testing.T) {
	p := mustProblem(t, randomInstance(7, 30, 4, 50), shortService())
	a := construct(t, p, StrategyCheapestInsertion)
	plain, _ := Search(context.Background(), a, SearchOptions{})

	escaped, stats := Search(context.Background(), a, SearchOptions{
		Escape: &EscapePolicy{MaxWorsening: 5000, MaxEscapes: 20, TabuTenure: 5},
	})
	require.NoError(t, escaped.Validate())
	assert.LessOrEqual(t, escaped.Cost(), a.Cost())
	assert.LessOrEqual(t, stats.Escapes, 20)
	assert.Equal(t, escaped.Cost(), stats.FinalCost)
	// Escapes start from the same first local optimum, so they can only help.
	assert.LessOrEqual(t, escaped.Cost(), plain.Cost())
}

func TestSearch_IterationLimit(t *testing.T) {
	p := mustProblem(t, randomInstance(2, 30, 3, 80), shortService())
	a := construct(t, p, StrategyNearestNeighbor)
	best, stats := Search(context.Background(), a, SearchOptions{MaxIterations: 1})
	require.NoError(t, best.Validate())
	assert.Equal(t, 1, stats.Iterations)
	assert.Contains(t, []StopReason{StopIterationLimit, StopLocalOptimum}, stats.Stop)
}

func TestSearch_Cancelled(t *testing.T) {
	p := mustProblem(t, randomInstance(4, 20, 3, 80), shortService())
	a := construct(t, p, StrategyNearestNeighbor)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	best, stats := Search(ctx, a, SearchOptions{TimeLimit: time.Minute})
	assert.Equal(t, StopCancelled, stats.Stop)
	assert.Equal(t, 0, stats.Iterations)
	assert.Equal(t, a.Sequences(), best.Sequences())
}

func TestSearch_TimeLimit(t *testing.T) {
	p := mustProblem(t, randomInstance(8, 200, 6, 300), shortService())
	a := construct(t, p, StrategyNearestNeighbor)
	start := time.Now()
	best, stats := Search(context.Background(), a, SearchOptions{TimeLimit: time.Millisecond, Workers: 2})
	assert.Equal(t, StopTimeLimit, stats.Stop)
	assert.Less(t, time.Since(start), 5*time.Second)
	require.NoError(t, best.Validate())
	assert.LessOrEqual(t, best.Cost(), a.Cost())
}
