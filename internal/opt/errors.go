package opt

import "errors"

var (
	// ErrInvalidInstance marks malformed input. It is detected before any
	// search work and is never retried.
	ErrInvalidInstance = errors.New("invalid instance")
	// ErrNoFeasibleConstruction means the route builder could not place every
	// stop without breaking a capacity or time constraint.
	ErrNoFeasibleConstruction = errors.New("no feasible construction")
	// ErrInfeasibleFleet is a diagnostic attached to a failed construction when
	// total demand exceeds what the whole fleet can carry.
	ErrInfeasibleFleet = errors.New("infeasible fleet")
)
