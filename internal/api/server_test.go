package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"routeopt/internal/config"
	"routeopt/internal/model"
)

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *Server {
	t.Helper()
	t.Setenv("AUTH_MODE", "dev")
	cfg := config.Default()
	cfg.RateRPS = 0
	for _, m := range mutate {
		m(&cfg)
	}
	s, err := NewServer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func do(t *testing.T, h http.Handler, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeSolve(t *testing.T, rr *httptest.ResponseRecorder) model.SolveResponse {
	t.Helper()
	var resp model.SolveResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return resp
}

func ptr[T any](v T) *T { return &v }

// twoStops is a small feasible instance that still exercises the search.
func twoStops() model.SolveRequest {
	return model.SolveRequest{
		Locations: []model.Location{
			{Lat: 40.70, Lng: -74.00},
			{Lat: 40.72, Lng: -74.01, Demand: 2},
			{Lat: 40.69, Lng: -73.98, Demand: 3, Window: []int{0, 600}},
		},
		NumVehicles:     ptr(2),
		VehicleCapacity: ptr(10),
		Options:         &model.SolveOptions{TimeLimitSeconds: ptr(1.0)},
	}
}
