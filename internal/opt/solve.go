package opt

import (
	"context"
	"fmt"
	"math"
	"time"

	"routeopt/internal/geo"
	"routeopt/internal/model"
)

// DefaultTimeLimit bounds local search when the caller sets nothing.
const DefaultTimeLimit = 10 * time.Second

// Options configure one solve. The zero value is usable; DefaultOptions
// spells the defaults out.
type Options struct {
	TimeLimit        time.Duration
	Strategy         Strategy
	TimeModel        TimeModel
	MaxIterations    int
	Workers          int
	FirstImprovement bool
	Escape           *EscapePolicy
	Metric           geo.Metric
	Observer         Observer
	Limits           Limits
}

func DefaultOptions() Options {
	svc := DefaultServiceMinutes
	return Options{
		TimeLimit: DefaultTimeLimit,
		Strategy:  StrategyCheapestInsertion,
		TimeModel: TimeModel{
			DistancePerMinute: DefaultDistancePerMinute,
			ServiceMinutes:    &svc,
			HorizonMinutes:    DefaultHorizonMinutes,
		},
	}
}

// With overlays per-request options. Fields the request leaves unset keep
// the receiver's values.
func (o Options) With(so *model.SolveOptions) (Options, error) {
	if so == nil {
		return o, nil
	}
	if so.TimeLimitSeconds != nil {
		s := *so.TimeLimitSeconds
		if s < 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return o, fmt.Errorf("%w: time_limit_seconds must be >= 0", ErrInvalidInstance)
		}
		if ceil := o.Limits.timeLimit(); s > ceil.Seconds() {
			return o, fmt.Errorf("%w: time_limit_seconds %g exceeds the limit of %g", ErrInvalidInstance, s, ceil.Seconds())
		}
		if s > 0 {
			o.TimeLimit = time.Duration(s * float64(time.Second))
		}
	}
	if so.DistancePerMinute != nil {
		if *so.DistancePerMinute <= 0 {
			return o, fmt.Errorf("%w: distance_per_minute must be > 0", ErrInvalidInstance)
		}
		o.TimeModel.DistancePerMinute = *so.DistancePerMinute
	}
	if so.ServiceMinutes != nil {
		v := *so.ServiceMinutes
		o.TimeModel.ServiceMinutes = &v
	}
	if so.HorizonMinutes != nil {
		if *so.HorizonMinutes <= 0 {
			return o, fmt.Errorf("%w: horizon_minutes must be > 0", ErrInvalidInstance)
		}
		o.TimeModel.HorizonMinutes = *so.HorizonMinutes
	}
	if so.FirstSolutionStrategy != "" {
		s, err := ParseStrategy(so.FirstSolutionStrategy)
		if err != nil {
			return o, err
		}
		o.Strategy = s
	}
	if so.MaxIterations != nil {
		o.MaxIterations = *so.MaxIterations
	}
	if so.Workers != nil {
		o.Workers = *so.Workers
	}
	if so.FirstImprovement != nil {
		o.FirstImprovement = *so.FirstImprovement
	}
	if so.Escape != nil {
		if so.Escape.MaxWorsening < 0 || so.Escape.MaxEscapes < 0 {
			return o, fmt.Errorf("%w: escape bounds must be >= 0", ErrInvalidInstance)
		}
		o.Escape = &EscapePolicy{
			MaxWorsening: so.Escape.MaxWorsening,
			MaxEscapes:   so.Escape.MaxEscapes,
			TabuTenure:   so.Escape.TabuTenure,
		}
	}
	return o, nil
}

// Wire reports o in request form, so With(o.Wire()) reproduces o apart from
// Metric and Observer.
func (o Options) Wire() model.SolveOptions {
	secs := o.TimeLimit.Seconds()
	dpm := o.TimeModel.DistancePerMinute
	horizon := o.TimeModel.HorizonMinutes
	iters, workers, first := o.MaxIterations, o.Workers, o.FirstImprovement
	so := model.SolveOptions{
		TimeLimitSeconds:      &secs,
		DistancePerMinute:     &dpm,
		HorizonMinutes:        &horizon,
		FirstSolutionStrategy: string(o.Strategy),
		MaxIterations:         &iters,
		Workers:               &workers,
		FirstImprovement:      &first,
	}
	if o.TimeModel.ServiceMinutes != nil {
		svc := *o.TimeModel.ServiceMinutes
		so.ServiceMinutes = &svc
	}
	if o.Escape != nil {
		so.Escape = &model.EscapeOptions{
			MaxWorsening: o.Escape.MaxWorsening,
			MaxEscapes:   o.Escape.MaxEscapes,
			TabuTenure:   o.Escape.TabuTenure,
		}
	}
	return so
}

// Metrics summarizes one solve for logging and instrumentation.
type Metrics struct {
	Stops            int
	Vehicles         int
	Strategy         Strategy
	ConstructionCost int
	FinalCost        int
	Search           SearchStats
	MatrixTime       time.Duration
	ConstructTime    time.Duration
	SearchTime       time.Duration
	Status           string
}

// Solve runs the whole pipeline: validation, distance matrix, construction
// and local search. A cancelled context before construction finishes is a
// construction failure; during search it just ends the search early.
func Solve(ctx context.Context, inst Instance, opts Options) (*Assignment, Metrics, error) {
	m := Metrics{Strategy: opts.Strategy}
	if m.Strategy == "" {
		m.Strategy = StrategyCheapestInsertion
	}
	if err := opts.Limits.Check(inst); err != nil {
		return nil, m, err
	}
	p, err := NewProblem(inst, opts.TimeModel)
	if err != nil {
		return nil, m, err
	}
	m.Stops, m.Vehicles = len(p.Stops), p.Vehicles

	metric := opts.Metric
	if metric == nil {
		metric = geo.Haversine{}
	}
	t0 := time.Now()
	mat, err := geo.Build(ctx, metric, p.Points(), opts.Workers)
	m.MatrixTime = time.Since(t0)
	if err != nil {
		return nil, m, fmt.Errorf("%w: %w", ErrNoFeasibleConstruction, err)
	}
	if err := p.AttachMatrix(mat); err != nil {
		return nil, m, err
	}

	t0 = time.Now()
	a, err := Construct(ctx, p, m.Strategy)
	m.ConstructTime = time.Since(t0)
	if err != nil {
		if ctx.Err() != nil {
			return nil, m, fmt.Errorf("%w: %w", ErrNoFeasibleConstruction, err)
		}
		return nil, m, err
	}
	m.ConstructionCost = a.Cost()
	if opts.Observer != nil {
		opts.Observer(Progress{Phase: PhaseConstruct, Cost: m.ConstructionCost, BestCost: m.ConstructionCost})
	}

	limit := opts.TimeLimit
	if limit <= 0 {
		limit = DefaultTimeLimit
	}
	limit = min(limit, opts.Limits.timeLimit())
	t0 = time.Now()
	best, stats := Search(ctx, a, SearchOptions{
		TimeLimit:        limit,
		MaxIterations:    opts.MaxIterations,
		Workers:          opts.Workers,
		FirstImprovement: opts.FirstImprovement,
		Escape:           opts.Escape,
		Observer:         opts.Observer,
	})
	m.SearchTime = time.Since(t0)
	m.Search = stats
	m.FinalCost = best.Cost()
	return best, m, nil
}

// SolveRequest is the wire-level entry point: it never returns an error,
// only a response carrying one of the three statuses.
func SolveRequest(ctx context.Context, req model.SolveRequest, base Options) (model.SolveResponse, Metrics) {
	opts, err := base.With(req.Options)
	if err != nil {
		return finish(ExtractError(err), Metrics{Strategy: base.Strategy})
	}
	inst, err := InstanceFromRequest(req)
	if err != nil {
		return finish(ExtractError(err), Metrics{Strategy: opts.Strategy})
	}
	a, m, err := Solve(ctx, inst, opts)
	if err != nil {
		return finish(ExtractError(err), m)
	}
	return finish(Extract(a), m)
}

func finish(resp model.SolveResponse, m Metrics) (model.SolveResponse, Metrics) {
	m.Status = resp.Status
	return resp, m
}
