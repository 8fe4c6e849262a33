package model

// Wire types shared by the HTTP API, the CLI and the solver.

// Solve statuses. These three values are the whole outcome contract.
const (
	StatusOK         = "ok"
	StatusNoSolution = "no_solution"
	StatusError      = "error"
)

type SolveRequest struct {
	Locations       []Location    `json:"locations"`
	NumVehicles     *int          `json:"num_vehicles,omitempty"`
	VehicleCapacity *int          `json:"vehicle_capacity,omitempty"`
	Depot           *int          `json:"depot,omitempty"`
	Options         *SolveOptions `json:"options,omitempty"`
}

// Location is a stop. Window is [start_minute, end_minute]; omitted means the
// whole planning horizon.
type Location struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Demand int     `json:"demand,omitempty"`
	Window []int   `json:"window,omitempty"`
}

// SolveOptions are the caller-tunable solver knobs. Nil/zero fields fall back
// to the server (or CLI) defaults.
type SolveOptions struct {
	TimeLimitSeconds      *float64       `json:"time_limit_seconds,omitempty" yaml:"time_limit_seconds,omitempty"`
	DistancePerMinute     *float64       `json:"distance_per_minute,omitempty" yaml:"distance_per_minute,omitempty"`
	ServiceMinutes        *int           `json:"service_minutes,omitempty" yaml:"service_minutes,omitempty"`
	HorizonMinutes        *int           `json:"horizon_minutes,omitempty" yaml:"horizon_minutes,omitempty"`
	FirstSolutionStrategy string         `json:"first_solution_strategy,omitempty" yaml:"first_solution_strategy,omitempty"`
	MaxIterations         *int           `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	Workers               *int           `json:"workers,omitempty" yaml:"workers,omitempty"`
	FirstImprovement      *bool          `json:"first_improvement,omitempty" yaml:"first_improvement,omitempty"`
	Escape                *EscapeOptions `json:"escape,omitempty" yaml:"escape,omitempty"`
}

// EscapeOptions enables accepting bounded-worsening moves at local optima.
type EscapeOptions struct {
	MaxWorsening int `json:"max_worsening" yaml:"max_worsening"`
	MaxEscapes   int `json:"max_escapes" yaml:"max_escapes"`
	TabuTenure   int `json:"tabu_tenure,omitempty" yaml:"tabu_tenure,omitempty"`
}

// SolveResponse is the serialized solver outcome. Routes holds one list per
// vehicle (possibly empty), depot excluded.
type SolveResponse struct {
	Status        string  `json:"status"`
	Routes        [][]int `json:"routes,omitempty"`
	TotalDistance *int    `json:"total_distance,omitempty"`
	Msg           string  `json:"msg,omitempty"`
}

// ProgressEvent is published while a solve improves its assignment.
type ProgressEvent struct {
	SolveID   string `json:"solveId,omitempty"`
	Phase     string `json:"phase"`
	Iteration int    `json:"iteration"`
	Cost      int    `json:"cost"`
	Move      string `json:"move,omitempty"`
	Delta     int    `json:"delta,omitempty"`
	ElapsedMs int64  `json:"elapsedMs"`
}
