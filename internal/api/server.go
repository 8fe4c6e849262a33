// Package api implements the HTTP surface of the route solver.
package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"routeopt/internal/auth"
	"routeopt/internal/cache"
	"routeopt/internal/config"
	"routeopt/internal/metrics"
	"routeopt/internal/opt"
	"routeopt/internal/store"
)

type Server struct {
	Store    store.Store
	Cache    cache.ResultCache
	Broker   EventBroker
	Auth     *auth.Verifier
	Config   config.Config
	Defaults opt.Options

	limMu    sync.Mutex
	limiters map[string]*tenantLimiter
	limSwept time.Time
	clock    func() time.Time
}

// NewServer wires backends from cfg: Postgres or SQLite when configured
// (else memory) for solver configs, Redis when REDIS_URL is set (else
// memory) for the result cache and the progress broker.
func NewServer(ctx context.Context, cfg config.Config) (*Server, error) {
	defaults, err := cfg.SolverOptions()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.DatabaseURL, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	s := &Server{
		Store:    st,
		Cache:    cache.NewMemory(1024),
		Broker:   NewBroker(),
		Auth:     auth.NewVerifierFromEnv(),
		Config:   cfg,
		Defaults: defaults,
		limiters: map[string]*tenantLimiter{},
	}
	if cfg.RedisURL != "" {
		if rc, err := cache.NewRedis(cfg.RedisURL); err == nil {
			s.Cache = rc
		} else {
			log.Printf("redis cache disabled: %v", err)
		}
		if rb, err := NewRedisBroker(cfg.RedisURL); err == nil {
			s.Broker = rb
		} else {
			log.Printf("redis broker disabled: %v", err)
		}
	}
	metrics.RegisterDefault()
	return s, nil
}

// Routes returns the full handler tree with logging and metrics middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Solving
	mux.Handle("/v1/solve", s.rateLimit(http.HandlerFunc(s.SolveHandler)))
	mux.Handle("/v1/solve/ws", s.rateLimit(http.HandlerFunc(s.SolveWSHandler)))
	mux.HandleFunc("/v1/solves/", s.SolveEventsHandler) // /v1/solves/{id}/events

	// Solver configuration
	mux.HandleFunc("/v1/solver/config", s.SolverConfigHandler)
	mux.HandleFunc("/v1/admin/solver/config", s.AdminSolverConfigHandler)

	// Health, metrics, debug, docs
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/v1/debug", s.DebugJSON)
	mux.HandleFunc("/openapi.yaml", s.OpenAPIHandler)
	mux.HandleFunc("/docs", s.DocsHandler)

	return logMiddleware(metricsMiddleware(mux))
}

// Close releases the store and any Redis connections.
func (s *Server) Close() error {
	if c, ok := s.Cache.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	if c, ok := s.Broker.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	return s.Store.Close()
}

func (s *Server) withTenant(r *http.Request) (context.Context, string) {
	tenant := s.getPrincipal(r).Tenant
	ctx := context.WithValue(r.Context(), ctxKeyTenant{}, tenant)
	return ctx, tenant
}

type ctxKeyTenant struct{}

// tenantOptions overlays the tenant's stored overrides on the server
// defaults. A store failure is logged and the defaults are used.
func (s *Server) tenantOptions(ctx context.Context, tenant string) opt.Options {
	sc, err := s.Store.GetSolverConfig(ctx, tenant)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("solver config lookup tenant=%s err=%v", tenant, err)
		}
		return s.Defaults
	}
	o, err := s.Defaults.With(&sc.Options)
	if err != nil {
		log.Printf("solver config invalid tenant=%s err=%v", tenant, err)
		return s.Defaults
	}
	return o
}
