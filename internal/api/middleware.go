package api

import (
	"bufio"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"routeopt/internal/metrics"
)

// statusWriter captures the final HTTP status code and number of bytes written.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Record implicit 200 responses when handlers write without calling WriteHeader.
func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Flush and Hijack keep SSE and WebSocket handlers working behind the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	if w.status == 0 {
		w.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

func (w *statusWriter) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := asStatusWriter(w)
		next.ServeHTTP(sw, r)
		log.Printf(
			"method=%s path=%s status=%d bytes=%d dur=%dms",
			r.Method, r.URL.Path, sw.code(), sw.bytes, time.Since(start).Milliseconds(),
		)
	})
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := asStatusWriter(w)
		next.ServeHTTP(sw, r)
		status := strconv.Itoa(sw.code())
		path := routeLabel(r.URL.Path)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

func asStatusWriter(w http.ResponseWriter) *statusWriter {
	if sw, ok := w.(*statusWriter); ok {
		return sw
	}
	return &statusWriter{ResponseWriter: w}
}

// routeLabel collapses solve ids so the path label stays bounded.
func routeLabel(path string) string {
	if strings.HasPrefix(path, "/v1/solves/") {
		return "/v1/solves/{id}/events"
	}
	return path
}

// rateLimit applies a token bucket per tenant.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, tenant := s.withTenant(r)
		now := s.now()
		if !s.limiter(tenant, now).AllowN(now, 1) {
			metrics.RateLimited.Inc()
			w.Header().Set("Retry-After", "1")
			writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded for tenant "+tenant, r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Tenant buckets idle for limiterIdle are pruned once they have refilled,
// and the map never holds more than maxLimiters buckets.
var (
	limiterIdle = 10 * time.Minute
	maxLimiters = 10_000
)

type tenantLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

func (s *Server) now() time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return time.Now()
}

func (s *Server) limiter(tenant string, now time.Time) *rate.Limiter {
	s.limMu.Lock()
	defer s.limMu.Unlock()
	if s.limiters == nil {
		s.limiters = map[string]*tenantLimiter{}
	}
	if tl, ok := s.limiters[tenant]; ok {
		tl.seen = now
		return tl.lim
	}
	if len(s.limiters) >= maxLimiters || now.Sub(s.limSwept) >= limiterIdle {
		s.pruneLimiters(now)
	}
	limit := rate.Limit(s.Config.RateRPS)
	if s.Config.RateRPS <= 0 {
		limit = rate.Inf
	}
	tl := &tenantLimiter{lim: rate.NewLimiter(limit, max(s.Config.RateBurst, 1)), seen: now}
	s.limiters[tenant] = tl
	return tl.lim
}

// pruneLimiters drops idle buckets that are full again, so forgetting them
// changes nothing. If the map is still at capacity the least recently seen
// bucket goes regardless. Callers hold limMu.
func (s *Server) pruneLimiters(now time.Time) {
	s.limSwept = now
	var (
		oldest     string
		oldestSeen time.Time
	)
	for tenant, tl := range s.limiters {
		if now.Sub(tl.seen) >= limiterIdle && tl.lim.TokensAt(now) >= float64(tl.lim.Burst()) {
			delete(s.limiters, tenant)
			continue
		}
		if oldest == "" || tl.seen.Before(oldestSeen) {
			oldest, oldestSeen = tenant, tl.seen
		}
	}
	if len(s.limiters) >= maxLimiters && oldest != "" {
		delete(s.limiters, oldest)
	}
}
