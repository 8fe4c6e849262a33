package opt

import (
	"fmt"
	"math"
	"time"

	"routeopt/internal/geo"
	"routeopt/internal/model"
)

// Fallbacks for fields the caller may omit.
const (
	DefaultVehicles          = 3
	DefaultCapacity          = 1000
	DefaultDepot             = 0
	DefaultHorizonMinutes    = 24 * 60
	DefaultServiceMinutes    = 60
	DefaultDistancePerMinute = 1000.0
)

// Work bounds for a single solve. The distance matrix grows with the square
// of the location count.
const (
	DefaultMaxVehicles  = 1000
	DefaultMaxLocations = 2000
	DefaultMaxTimeLimit = 5 * time.Minute
)

// Limits cap what one request may ask for. Zero fields take the defaults.
type Limits struct {
	MaxVehicles  int
	MaxLocations int
	MaxTimeLimit time.Duration
}

func (l Limits) vehicles() int {
	if l.MaxVehicles > 0 {
		return l.MaxVehicles
	}
	return DefaultMaxVehicles
}

func (l Limits) locations() int {
	if l.MaxLocations > 0 {
		return l.MaxLocations
	}
	return DefaultMaxLocations
}

func (l Limits) timeLimit() time.Duration {
	if l.MaxTimeLimit > 0 {
		return l.MaxTimeLimit
	}
	return DefaultMaxTimeLimit
}

// Check rejects instances larger than the limits before anything is
// allocated for them.
func (l Limits) Check(inst Instance) error {
	if n := len(inst.Locations); n > l.locations() {
		return fmt.Errorf("%w: %d locations exceeds the limit of %d", ErrInvalidInstance, n, l.locations())
	}
	if inst.Vehicles != nil && *inst.Vehicles > l.vehicles() {
		return fmt.Errorf("%w: num_vehicles %d exceeds the limit of %d", ErrInvalidInstance, *inst.Vehicles, l.vehicles())
	}
	return nil
}

// TimeWindow bounds the arrival minute at a stop, inclusive.
type TimeWindow struct {
	Earliest int
	Latest   int
}

// Stop is an immutable, validated location.
type Stop struct {
	Index  int
	Point  geo.Point
	Demand int
	Window TimeWindow
}

// Location is raw stop input. A nil Window means the whole horizon.
type Location struct {
	Lat    float64
	Lng    float64
	Demand int
	Window *TimeWindow
}

// Instance is the unvalidated problem as handed over by a caller. Nil
// pointers take the package defaults.
type Instance struct {
	Locations []Location
	Vehicles  *int
	Capacity  *int
	Depot     *int
}

// TimeModel converts distance into minutes. Zero values take the defaults.
type TimeModel struct {
	DistancePerMinute float64
	ServiceMinutes    *int
	HorizonMinutes    int
}

// Problem is a validated CVRPTW instance. Once a distance matrix is attached
// it is read-only for the rest of the solve.
type Problem struct {
	Stops    []Stop
	Depot    int
	Vehicles int
	Capacity int

	DistancePerMinute float64
	ServiceMinutes    int
	HorizonMinutes    int

	dist    *geo.Matrix
	transit []int
}

// InstanceFromRequest maps the wire request onto an Instance.
func InstanceFromRequest(req model.SolveRequest) (Instance, error) {
	inst := Instance{
		Locations: make([]Location, len(req.Locations)),
		Vehicles:  req.NumVehicles,
		Capacity:  req.VehicleCapacity,
		Depot:     req.Depot,
	}
	for i, l := range req.Locations {
		loc := Location{Lat: l.Lat, Lng: l.Lng, Demand: l.Demand}
		if l.Window != nil {
			if len(l.Window) != 2 {
				return Instance{}, fmt.Errorf("%w: location %d: window must be [start, end], got %d values", ErrInvalidInstance, i, len(l.Window))
			}
			loc.Window = &TimeWindow{Earliest: l.Window[0], Latest: l.Window[1]}
		}
		inst.Locations[i] = loc
	}
	return inst, nil
}

// NewProblem validates and normalizes an instance. Every failure wraps
// ErrInvalidInstance.
func NewProblem(inst Instance, tm TimeModel) (*Problem, error) {
	if len(inst.Locations) == 0 {
		return nil, fmt.Errorf("%w: no locations", ErrInvalidInstance)
	}
	p := &Problem{
		Vehicles:          intOr(inst.Vehicles, DefaultVehicles),
		Capacity:          intOr(inst.Capacity, DefaultCapacity),
		Depot:             intOr(inst.Depot, DefaultDepot),
		DistancePerMinute: tm.DistancePerMinute,
		ServiceMinutes:    intOr(tm.ServiceMinutes, DefaultServiceMinutes),
		HorizonMinutes:    tm.HorizonMinutes,
	}
	if p.DistancePerMinute == 0 {
		p.DistancePerMinute = DefaultDistancePerMinute
	}
	if p.HorizonMinutes == 0 {
		p.HorizonMinutes = DefaultHorizonMinutes
	}

	switch {
	case p.Vehicles < 1:
		return nil, fmt.Errorf("%w: num_vehicles must be >= 1, got %d", ErrInvalidInstance, p.Vehicles)
	case p.Capacity < 0:
		return nil, fmt.Errorf("%w: vehicle_capacity must be >= 0, got %d", ErrInvalidInstance, p.Capacity)
	case p.Depot < 0 || p.Depot >= len(inst.Locations):
		return nil, fmt.Errorf("%w: depot index %d out of range [0,%d)", ErrInvalidInstance, p.Depot, len(inst.Locations))
	case p.DistancePerMinute < 0 || math.IsNaN(p.DistancePerMinute) || math.IsInf(p.DistancePerMinute, 0):
		return nil, fmt.Errorf("%w: distance_per_minute must be > 0", ErrInvalidInstance)
	case p.ServiceMinutes < 0:
		return nil, fmt.Errorf("%w: service_minutes must be >= 0, got %d", ErrInvalidInstance, p.ServiceMinutes)
	case p.HorizonMinutes < 0:
		return nil, fmt.Errorf("%w: horizon_minutes must be > 0, got %d", ErrInvalidInstance, p.HorizonMinutes)
	}

	p.Stops = make([]Stop, len(inst.Locations))
	for i, loc := range inst.Locations {
		if err := validPoint(loc.Lat, loc.Lng); err != nil {
			return nil, fmt.Errorf("%w: location %d: %v", ErrInvalidInstance, i, err)
		}
		s := Stop{
			Index:  i,
			Point:  geo.Point{Lat: loc.Lat, Lng: loc.Lng},
			Demand: loc.Demand,
			Window: TimeWindow{Earliest: 0, Latest: p.HorizonMinutes},
		}
		if loc.Window != nil {
			s.Window = *loc.Window
		}
		if s.Window.Earliest > s.Window.Latest {
			return nil, fmt.Errorf("%w: location %d: inverted time window [%d, %d]", ErrInvalidInstance, i, s.Window.Earliest, s.Window.Latest)
		}
		if i == p.Depot {
			s.Demand = 0
		} else {
			if s.Demand < 0 {
				return nil, fmt.Errorf("%w: location %d: negative demand %d", ErrInvalidInstance, i, s.Demand)
			}
			if s.Demand > p.Capacity {
				return nil, fmt.Errorf("%w: location %d: demand %d exceeds vehicle capacity %d", ErrInvalidInstance, i, s.Demand, p.Capacity)
			}
		}
		p.Stops[i] = s
	}
	return p, nil
}

func validPoint(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return fmt.Errorf("coordinate is NaN")
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range", lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude %v out of range", lng)
	}
	return nil
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// Points returns the stop coordinates in index order.
func (p *Problem) Points() []geo.Point {
	out := make([]geo.Point, len(p.Stops))
	for i, s := range p.Stops {
		out[i] = s.Point
	}
	return out
}

// AttachMatrix installs the distance matrix and precomputes transit minutes.
func (p *Problem) AttachMatrix(m *geo.Matrix) error {
	n := len(p.Stops)
	if m == nil || m.Size() != n {
		return fmt.Errorf("attach matrix: want %dx%d matrix", n, n)
	}
	p.dist = m
	p.transit = make([]int, n*n)
	for i := 0; i < n; i++ {
		svc := p.Service(i)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			p.transit[i*n+j] = svc + int(math.Floor(float64(m.At(i, j))/p.DistancePerMinute))
		}
	}
	return nil
}

// Distance is the arc cost from i to j.
func (p *Problem) Distance(i, j int) int { return p.dist.At(i, j) }

// Transit is the minutes between arriving at i and reaching j: the service
// time at i plus the travel time. The depot has no service time.
func (p *Problem) Transit(i, j int) int { return p.transit[i*len(p.Stops)+j] }

// Service is the dwell time charged at stop i.
func (p *Problem) Service(i int) int {
	if i == p.Depot {
		return 0
	}
	return p.ServiceMinutes
}

// Customers lists the non-depot stop indices in ascending order.
func (p *Problem) Customers() []int {
	out := make([]int, 0, len(p.Stops)-1)
	for i := range p.Stops {
		if i != p.Depot {
			out = append(out, i)
		}
	}
	return out
}

// TotalDemand sums all stop demands.
func (p *Problem) TotalDemand() int {
	total := 0
	for _, s := range p.Stops {
		total += s.Demand
	}
	return total
}
