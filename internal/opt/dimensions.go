package opt

import "fmt"

// Route is one vehicle's visit sequence together with the cumulative values
// of both dimensions. Positions are "extended": position 0 is the depot
// start, 1..len(Visits) are the visits and len(Visits)+1 is the depot end.
//
// The cumulative arrays are only valid after refresh; every mutation of
// Visits goes through a method that refreshes them.
type Route struct {
	Vehicle int
	Visits  []int

	load    []int // load after serving position k
	arrival []int // service start at position k (after waiting)
	latest  []int // latest arrival at k that keeps the suffix feasible
	dist    []int // distance travelled up to position k
}

func newRoute(p *Problem, vehicle int) *Route {
	r := &Route{Vehicle: vehicle}
	r.refresh(p)
	return r
}

// node maps an extended position to a stop index.
func (r *Route) node(p *Problem, k int) int {
	if k <= 0 || k > len(r.Visits) {
		return p.Depot
	}
	return r.Visits[k-1]
}

// end is the extended position of the closing depot.
func (r *Route) end() int { return len(r.Visits) + 1 }

// refresh recomputes the forward load/arrival/distance arrays and the
// backward latest-arrival array.
func (r *Route) refresh(p *Problem) {
	n := len(r.Visits) + 2
	r.load = resize(r.load, n)
	r.arrival = resize(r.arrival, n)
	r.latest = resize(r.latest, n)
	r.dist = resize(r.dist, n)

	depot := p.Stops[p.Depot]
	r.load[0] = 0
	r.arrival[0] = depot.Window.Earliest
	r.dist[0] = 0
	prev := p.Depot
	for k := 1; k < n; k++ {
		cur := r.node(p, k)
		r.load[k] = r.load[k-1] + p.Stops[cur].Demand
		r.arrival[k] = max(p.Stops[cur].Window.Earliest, r.arrival[k-1]+p.Transit(prev, cur))
		r.dist[k] = r.dist[k-1] + p.Distance(prev, cur)
		prev = cur
	}

	r.latest[n-1] = depot.Window.Latest
	for k := n - 2; k >= 0; k-- {
		cur, next := r.node(p, k), r.node(p, k+1)
		r.latest[k] = min(p.Stops[cur].Window.Latest, r.latest[k+1]-p.Transit(cur, next))
	}
}

func resize(s []int, n int) []int {
	if cap(s) >= n {
		return s[:n]
	}
	return make([]int, n)
}

// Load is the total demand carried by the vehicle.
func (r *Route) Load() int { return r.load[len(r.load)-1] }

// Distance is the total route distance, depot to depot.
func (r *Route) Distance() int { return r.dist[len(r.dist)-1] }

// Arrivals returns the service start minute at every extended position.
func (r *Route) Arrivals() []int { return append([]int(nil), r.arrival...) }

// Loads returns the cumulative load at every extended position.
func (r *Route) Loads() []int { return append([]int(nil), r.load...) }

// fitsLoad reports whether the capacity dimension allows changing the
// route's load by delta. Loads are monotonic along a route, so the final
// load is the maximum.
func (r *Route) fitsLoad(p *Problem, delta int) bool {
	return r.Load()+delta <= p.Capacity
}

// feasibleWith checks the time dimension for a route whose extended
// positions start..resume are replaced by start, seq..., resume: the prefix
// up to start and the suffix from resume are unchanged. It walks only seq,
// then joins the untouched suffix through its latest-arrival bound, so an
// insertion or removal costs O(1).
func (r *Route) feasibleWith(p *Problem, start int, seq []int, resume int) bool {
	t := r.arrival[start]
	prev := r.node(p, start)
	for _, v := range seq {
		w := p.Stops[v].Window
		t = max(w.Earliest, t+p.Transit(prev, v))
		if t > w.Latest {
			return false
		}
		prev = v
	}
	next := r.node(p, resume)
	t = max(p.Stops[next].Window.Earliest, t+p.Transit(prev, next))
	return t <= r.latest[resume]
}

// canInsert is the O(1) pre-check for putting stop u between extended
// positions pos and pos+1.
func (r *Route) canInsert(p *Problem, pos, u int) bool {
	return r.fitsLoad(p, p.Stops[u].Demand) && r.feasibleWith(p, pos, []int{u}, pos+1)
}

// insertCost is the distance added by putting u between pos and pos+1.
func (r *Route) insertCost(p *Problem, pos, u int) int {
	a, b := r.node(p, pos), r.node(p, pos+1)
	return p.Distance(a, u) + p.Distance(u, b) - p.Distance(a, b)
}

// segmentCost is the distance of the path start, seq..., resume.
func (r *Route) segmentCost(p *Problem, start int, seq []int, resume int) int {
	total := 0
	prev := r.node(p, start)
	for _, v := range seq {
		total += p.Distance(prev, v)
		prev = v
	}
	return total + p.Distance(prev, r.node(p, resume))
}

// insert places u between extended positions pos and pos+1.
func (r *Route) insert(p *Problem, pos, u int) {
	r.Visits = append(r.Visits, 0)
	copy(r.Visits[pos+1:], r.Visits[pos:])
	r.Visits[pos] = u
	r.refresh(p)
}

// Replay walks a visit sequence from scratch through both dimensions and
// returns cumulative loads and arrivals at every extended position. It fails
// on the first violated constraint. It shares no state with Route, so it is
// the reference check for assignments built incrementally.
func Replay(p *Problem, visits []int) (loads, arrivals []int, err error) {
	n := len(visits) + 2
	loads = make([]int, n)
	arrivals = make([]int, n)
	depot := p.Stops[p.Depot]
	arrivals[0] = depot.Window.Earliest
	prev := p.Depot
	for k := 1; k < n; k++ {
		cur := p.Depot
		if k <= len(visits) {
			cur = visits[k-1]
		}
		s := p.Stops[cur]
		loads[k] = loads[k-1] + s.Demand
		if loads[k] > p.Capacity {
			return loads, arrivals, fmt.Errorf("load %d exceeds capacity %d at position %d (stop %d)", loads[k], p.Capacity, k, cur)
		}
		arrivals[k] = max(s.Window.Earliest, arrivals[k-1]+p.Transit(prev, cur))
		if arrivals[k] > s.Window.Latest {
			return loads, arrivals, fmt.Errorf("arrival %d after window end %d at position %d (stop %d)", arrivals[k], s.Window.Latest, k, cur)
		}
		prev = cur
	}
	return loads, arrivals, nil
}
