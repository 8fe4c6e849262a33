package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"routeopt/internal/cache"
	"routeopt/internal/metrics"
	"routeopt/internal/model"
	"routeopt/internal/obs"
	"routeopt/internal/opt"
	"routeopt/internal/store"
)

// progressInterval throttles search progress events per solve.
const progressInterval = 100 * time.Millisecond

// SolveHandler handles POST /v1/solve. Every solver outcome is a 200 whose
// body carries the status; only undecodable bodies and bad options are 400.
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/solve" {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx, tenant := s.withTenant(r)
	if s.Config.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.Config.MaxBodyBytes)
	}
	var req model.SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	base := s.tenantOptions(ctx, tenant)
	if _, err := base.With(req.Options); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid options", err.Error(), r.URL.Path)
		return
	}
	id := r.Header.Get("X-Solve-Id")
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set("X-Solve-Id", id)

	resp, hit := s.runSolve(ctx, solveJob{
		tenant:  tenant,
		id:      id,
		idemKey: r.Header.Get("Idempotency-Key"),
		req:     req,
		base:    base,
	})
	if hit {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	writeJSON(w, http.StatusOK, resp)
}

type solveJob struct {
	tenant  string
	id      string
	idemKey string
	req     model.SolveRequest
	base    opt.Options
	// onProgress also receives every published progress event.
	onProgress func(model.ProgressEvent)
}

// runSolve serves a solve from the result cache or runs it, publishing
// progress on the broker under the solve id. Cache failures are logged and
// never fail the solve.
func (s *Server) runSolve(ctx context.Context, job solveJob) (resp model.SolveResponse, hit bool) {
	ctx = obs.WithSolve(ctx, job.tenant, job.id)
	key := s.cacheKey(job)
	if key != "" {
		done := obs.Time(ctx, "cache_lookup")
		cached, err := s.Cache.Get(ctx, key)
		switch {
		case err == nil:
			done("hit", nil)
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			s.Broker.Publish(job.id, newEvent(EventCompleted, cached))
			return cached, true
		case errors.Is(err, cache.ErrMiss):
			done("miss", nil)
			metrics.CacheLookups.WithLabelValues("miss").Inc()
		default:
			done("error", err)
			metrics.CacheLookups.WithLabelValues("error").Inc()
		}
	}

	done := obs.Time(ctx, "solve")
	opts := job.base
	opts.Observer = s.progressObserver(job)
	resp, m := opt.SolveRequest(ctx, job.req, opts)
	var err error
	if resp.Status == model.StatusError {
		err = errors.New(resp.Msg)
	}
	done(resp.Status, err)
	recordSolve(m)
	log.Printf("[solve] tenant=%s id=%s status=%s stops=%d vehicles=%d strategy=%s construct_cost=%d final_cost=%d iterations=%d stop=%s",
		job.tenant, job.id, m.Status, m.Stops, m.Vehicles, m.Strategy, m.ConstructionCost, m.FinalCost, m.Search.Iterations, m.Search.Stop)

	s.Broker.Publish(job.id, newEvent(EventCompleted, resp))
	if key != "" && resp.Status != model.StatusError && ctx.Err() == nil {
		if err := s.Cache.Set(ctx, key, resp, s.Config.ResultCacheTTL); err != nil {
			log.Printf("cache set solve=%s err=%v", job.id, err)
		}
	}
	return resp, false
}

func (s *Server) cacheKey(job solveJob) string {
	if s.Cache == nil || s.Config.ResultCacheTTL <= 0 {
		return ""
	}
	if job.idemKey != "" {
		return "idem:" + job.tenant + ":" + job.idemKey
	}
	key, err := cache.Fingerprint(job.tenant, job.req)
	if err != nil {
		return ""
	}
	return key
}

// progressObserver converts solver progress into broker events. Search
// events are throttled; the construction event always goes out.
func (s *Server) progressObserver(job solveJob) opt.Observer {
	var (
		mu   sync.Mutex
		last time.Time
	)
	return func(p opt.Progress) {
		mu.Lock()
		defer mu.Unlock()
		now := time.Now()
		if p.Phase == opt.PhaseSearch && now.Sub(last) < progressInterval {
			return
		}
		last = now
		evt := model.ProgressEvent{
			SolveID:   job.id,
			Phase:     p.Phase,
			Iteration: p.Iteration,
			Cost:      p.Cost,
			ElapsedMs: p.Elapsed.Milliseconds(),
		}
		if p.Phase == opt.PhaseSearch {
			evt.Move = p.Move.Kind.String()
			evt.Delta = p.Move.Delta
		}
		s.Broker.Publish(job.id, newEvent(EventProgress, evt))
		if job.onProgress != nil {
			job.onProgress(evt)
		}
	}
}

func recordSolve(m opt.Metrics) {
	metrics.Solves.WithLabelValues(m.Status, string(m.Strategy)).Inc()
	if m.MatrixTime > 0 {
		metrics.SolveDuration.WithLabelValues("matrix").Observe(m.MatrixTime.Seconds())
	}
	if m.ConstructTime > 0 {
		metrics.SolveDuration.WithLabelValues("construct").Observe(m.ConstructTime.Seconds())
	}
	if m.Search.Stop == "" {
		return
	}
	metrics.SolveDuration.WithLabelValues("search").Observe(m.SearchTime.Seconds())
	metrics.SearchIterations.Observe(float64(m.Search.Iterations))
	metrics.SearchStops.WithLabelValues(string(m.Search.Stop)).Inc()
	for kind, n := range m.Search.Moves {
		metrics.SearchMoves.WithLabelValues(kind).Add(float64(n))
	}
}

// SolverConfigHandler returns the effective solver defaults for the caller's
// tenant.
func (s *Server) SolverConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/solver/config" || r.Method != http.MethodGet {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	ctx, tenant := s.withTenant(r)
	writeJSON(w, 200, map[string]any{"tenantId": tenant, "defaults": s.tenantOptions(ctx, tenant).Wire()})
}

// AdminSolverConfigHandler reads, replaces or clears the tenant's solver
// overrides. PUT honors If-Match against the stored revision.
func (s *Server) AdminSolverConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/solver/config" {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodGet:
		sc, err := s.Store.GetSolverConfig(r.Context(), p.Tenant)
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, 404, "Not Found", "no solver config for tenant", r.URL.Path)
			return
		}
		if err != nil {
			writeProblem(w, 500, "Get solver config failed", err.Error(), r.URL.Path)
			return
		}
		w.Header().Set("ETag", sc.Revision)
		writeJSON(w, 200, sc)
	case http.MethodPut:
		var so model.SolveOptions
		if err := json.NewDecoder(r.Body).Decode(&so); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if _, err := s.Defaults.With(&so); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid options", err.Error(), r.URL.Path)
			return
		}
		sc, err := s.Store.SaveSolverConfig(r.Context(), p.Tenant, so, r.Header.Get("If-Match"))
		if errors.Is(err, store.ErrConflict) {
			writeProblem(w, http.StatusPreconditionFailed, "Precondition Failed", err.Error(), r.URL.Path)
			return
		}
		if err != nil {
			writeProblem(w, 500, "Save solver config failed", err.Error(), r.URL.Path)
			return
		}
		w.Header().Set("ETag", sc.Revision)
		writeJSON(w, 200, sc)
	case http.MethodDelete:
		if err := s.Store.DeleteSolverConfig(r.Context(), p.Tenant); err != nil && !errors.Is(err, store.ErrNotFound) {
			writeProblem(w, 500, "Delete solver config failed", err.Error(), r.URL.Path)
			return
		}
		w.WriteHeader(204)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

// ReadyHandler pings every backend that can be pinged.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	for name, dep := range map[string]any{"store": s.Store, "cache": s.Cache, "broker": s.Broker} {
		pg, ok := dep.(store.Pinger)
		if !ok {
			continue
		}
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		err := pg.Ping(ctx)
		cancel()
		if err != nil {
			writeProblem(w, 503, "Not Ready", name+": "+err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, 200, map[string]string{"status": "ready"})
}
