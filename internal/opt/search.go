package opt

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// StopReason says why a search returned.
type StopReason string

const (
	StopLocalOptimum   StopReason = "local_optimum"
	StopTimeLimit      StopReason = "time_limit"
	StopIterationLimit StopReason = "iteration_limit"
	StopCancelled      StopReason = "cancelled"
)

// EscapePolicy lets the search step out of a local optimum by taking the
// least-worsening admissible move. Recently moved stops are tabu for
// TabuTenure iterations unless the move would beat the best cost seen.
type EscapePolicy struct {
	MaxWorsening int
	MaxEscapes   int
	TabuTenure   int
}

// DefaultTabuTenure applies when an escape policy leaves TabuTenure at zero.
const DefaultTabuTenure = 10

// Search phases reported through Progress.
const (
	PhaseConstruct = "construct"
	PhaseSearch    = "search"
)

// Progress is handed to an Observer after every applied move.
type Progress struct {
	Phase     string
	Iteration int
	Cost      int
	BestCost  int
	Move      Move
	Escape    bool
	Elapsed   time.Duration
}

// Observer receives progress from the search goroutine. It must not block
// for long; the search waits for it.
type Observer func(Progress)

type SearchOptions struct {
	TimeLimit        time.Duration // <= 0: no wall-clock limit
	MaxIterations    int           // <= 0: unlimited
	Workers          int           // <= 0: GOMAXPROCS
	FirstImprovement bool
	Escape           *EscapePolicy
	Observer         Observer
}

type SearchStats struct {
	Iterations   int
	Improvements int
	Escapes      int
	InitialCost  int
	FinalCost    int
	Moves        map[string]int
	Stop         StopReason
	Elapsed      time.Duration
}

// Search improves a feasible assignment with relocate, exchange and 2-opt
// moves until no admissible move remains or a limit is hit. The input is not
// modified; the best assignment seen is returned.
func Search(ctx context.Context, start *Assignment, opts SearchOptions) (*Assignment, SearchStats) {
	began := time.Now()
	cur := start.Clone()
	best := cur.Clone()
	curCost := cur.Cost()
	bestCost := curCost
	stats := SearchStats{InitialCost: curCost, Moves: map[string]int{}}

	parent := ctx
	if opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.TimeLimit)
		defer cancel()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var tabu []int
	tenure := 0
	if opts.Escape != nil {
		tabu = make([]int, len(cur.p.Stops))
		tenure = opts.Escape.TabuTenure
		if tenure <= 0 {
			tenure = DefaultTabuTenure
		}
	}

	stopFor := func() StopReason {
		if parent.Err() != nil {
			return StopCancelled
		}
		return StopTimeLimit
	}

	for {
		if ctx.Err() != nil {
			stats.Stop = stopFor()
			break
		}
		if opts.MaxIterations > 0 && stats.Iterations >= opts.MaxIterations {
			stats.Stop = StopIterationLimit
			break
		}
		stats.Iterations++
		iter := stats.Iterations

		admissible := func(m Move) bool {
			if tabu == nil || curCost+m.Delta < bestCost {
				return true
			}
			for _, s := range m.stops(cur) {
				if tabu[s] >= iter {
					return false
				}
			}
			return true
		}

		var m Move
		var found, aborted bool
		if opts.FirstImprovement {
			m, found, aborted = scanFirst(ctx, cur, admissible)
		} else {
			m, found, aborted = scanBest(ctx, cur, workers, admissible)
		}
		if aborted {
			stats.Stop = stopFor()
			break
		}

		escape := false
		switch {
		case found && m.Delta < 0:
			stats.Improvements++
		case found && opts.Escape != nil && stats.Escapes < opts.Escape.MaxEscapes && m.Delta <= opts.Escape.MaxWorsening:
			stats.Escapes++
			escape = true
		default:
			stats.Stop = StopLocalOptimum
		}
		if stats.Stop != "" {
			break
		}

		moved := m.stops(cur)
		cur.apply(m)
		curCost += m.Delta
		stats.Moves[m.Kind.String()]++
		for _, s := range moved {
			if tabu != nil {
				tabu[s] = iter + tenure
			}
		}
		if curCost < bestCost {
			bestCost = curCost
			best = cur.Clone()
		}
		if opts.Observer != nil {
			opts.Observer(Progress{
				Phase:     PhaseSearch,
				Iteration: iter,
				Cost:      curCost,
				BestCost:  bestCost,
				Move:      m,
				Escape:    escape,
				Elapsed:   time.Since(began),
			})
		}
	}

	stats.FinalCost = bestCost
	stats.Elapsed = time.Since(began)
	return best, stats
}

type anchor struct{ r, p int }

func anchors(a *Assignment) []anchor {
	var out []anchor
	for r, route := range a.Routes {
		for p := 1; p <= len(route.Visits); p++ {
			out = append(out, anchor{r, p})
		}
	}
	return out
}

var errAborted = errors.New("scan aborted")

// scanBest finds the minimum admissible move. Anchors are split into
// contiguous chunks scanned in parallel; each chunk keeps its own winner and
// the winners are reduced with compareMoves, so the result does not depend
// on the number of workers.
func scanBest(ctx context.Context, a *Assignment, workers int, admissible func(Move) bool) (Move, bool, bool) {
	tasks := anchors(a)
	if len(tasks) == 0 {
		return Move{}, false, false
	}
	workers = min(workers, len(tasks))
	chunk := (len(tasks) + workers - 1) / workers

	type result struct {
		m     Move
		found bool
	}
	results := make([]result, workers)
	var abort atomic.Bool

	g := new(errgroup.Group)
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, min((w+1)*chunk, len(tasks))
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			res := &results[w]
			for _, t := range tasks[lo:hi] {
				if abort.Load() {
					return errAborted
				}
				if ctx.Err() != nil {
					abort.Store(true)
					return errAborted
				}
				scanAnchor(a, t.r, t.p, func(m Move) bool {
					if !admissible(m) {
						return true
					}
					if !res.found || compareMoves(m, res.m) < 0 {
						res.m, res.found = m, true
					}
					return true
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Move{}, false, true
	}

	var best result
	for _, r := range results {
		if r.found && (!best.found || compareMoves(r.m, best.m) < 0) {
			best = r
		}
	}
	return best.m, best.found, false
}

// scanFirst walks anchors in order and returns the first improving
// admissible move. Without one it falls back to the minimum, which the
// escape policy may still take.
func scanFirst(ctx context.Context, a *Assignment, admissible func(Move) bool) (Move, bool, bool) {
	var best Move
	found, improving := false, false
	for _, t := range anchors(a) {
		if ctx.Err() != nil {
			return Move{}, false, true
		}
		scanAnchor(a, t.r, t.p, func(m Move) bool {
			if !admissible(m) {
				return true
			}
			if m.Delta < 0 {
				best, found, improving = m, true, true
				return false
			}
			if !found || compareMoves(m, best) < 0 {
				best, found = m, true
			}
			return true
		})
		if improving {
			break
		}
	}
	return best, found, false
}
