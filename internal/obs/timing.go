// Package obs correlates log lines belonging to one solve.
package obs

import (
	"context"
	"log"
	"time"
)

type solveKey struct{}

// Solve identifies the solve a context belongs to.
type Solve struct {
	Tenant string
	ID     string
}

func WithSolve(ctx context.Context, tenant, id string) context.Context {
	return context.WithValue(ctx, solveKey{}, Solve{Tenant: tenant, ID: id})
}

// SolveFrom returns the solve tagged on ctx, or the zero Solve.
func SolveFrom(ctx context.Context) Solve {
	s, _ := ctx.Value(solveKey{}).(Solve)
	return s
}

// Time logs how long a solve phase took and how it ended. Use as
//
//	done := obs.Time(ctx, "solve")
//	resp := ...
//	done(resp.Status, err)
func Time(ctx context.Context, phase string) func(status string, err error) {
	start := time.Now()
	s := SolveFrom(ctx)
	return func(status string, err error) {
		ms := time.Since(start).Milliseconds()
		if err != nil {
			log.Printf("[obs] tenant=%s solve=%s phase=%s status=%s dur=%dms err=%v", s.Tenant, s.ID, phase, status, ms, err)
			return
		}
		log.Printf("[obs] tenant=%s solve=%s phase=%s status=%s dur=%dms", s.Tenant, s.ID, phase, status, ms)
	}
}
