package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Solves counts finished solves by outcome and construction strategy
	Solves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "solves_total", Help: "Solves by status and strategy."},
		[]string{"status", "strategy"},
	)
	// SolveDuration tracks solve phases in seconds
	SolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "solve_phase_duration_seconds", Help: "Solve phase duration in seconds.", Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30}},
		[]string{"phase"},
	)
	// SearchIterations records local search scans per solve
	SearchIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "search_iterations", Help: "Local search iterations per solve.", Buckets: prometheus.ExponentialBuckets(1, 4, 8)},
	)
	// SearchMoves counts applied moves by neighborhood
	SearchMoves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "search_moves_total", Help: "Applied local search moves by kind."},
		[]string{"kind"},
	)
	// SearchStops counts why local search ended
	SearchStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "search_stops_total", Help: "Local search stop reasons."},
		[]string{"reason"},
	)
	// CacheLookups counts result cache hits and misses
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "result_cache_lookups_total", Help: "Result cache lookups by outcome."},
		[]string{"outcome"},
	)
	// RateLimited counts requests rejected by the limiter
	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "rate_limited_total", Help: "Requests rejected by rate limiting."},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(Solves)
		Registry.MustRegister(SolveDuration)
		Registry.MustRegister(SearchIterations)
		Registry.MustRegister(SearchMoves)
		Registry.MustRegister(SearchStops)
		Registry.MustRegister(CacheLookups)
		Registry.MustRegister(RateLimited)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
