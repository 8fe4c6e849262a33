package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routeopt/internal/opt"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingOptionalFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(t.TempDir(), "nope.yaml"), true)
	require.Error(t, err)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
port: "9090"
rate_rps: 2.5
result_cache_ttl: 30s
solver:
  time_limit_seconds: 3
  first_solution_strategy: savings
  service_minutes: 15
  escape:
    max_worsening: 100
    max_escapes: 4
`)
	t.Setenv("PORT", "7070")
	t.Setenv("RATE_BURST", "3")

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port, "env wins")
	assert.Equal(t, 2.5, cfg.RateRPS)
	assert.Equal(t, 3, cfg.RateBurst)
	assert.Equal(t, 30*time.Second, cfg.ResultCacheTTL)

	o, err := cfg.SolverOptions()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, o.TimeLimit)
	assert.Equal(t, opt.StrategySavings, o.Strategy)
	assert.Equal(t, 15, *o.TimeModel.ServiceMinutes)
	require.NotNil(t, o.Escape)
	assert.Equal(t, 4, o.Escape.MaxEscapes)
}

func TestLoad_SolveEnvOverrides(t *testing.T) {
	t.Setenv("SOLVE_TIME_LIMIT", "1500ms")
	t.Setenv("SOLVE_STRATEGY", "nearest_neighbor")
	cfg, err := Load("", false)
	require.NoError(t, err)
	o, err := cfg.SolverOptions()
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, o.TimeLimit)
	assert.Equal(t, opt.StrategyNearestNeighbor, o.Strategy)
}

func TestLoad_Limits(t *testing.T) {
	t.Setenv("SOLVE_MAX_LOCATIONS", "300")
	cfg, err := Load(writeFile(t, "limits:\n  max_vehicles: 50\n  max_time_limit: 20s\n"), true)
	require.NoError(t, err)

	o, err := cfg.SolverOptions()
	require.NoError(t, err)
	assert.Equal(t, opt.Limits{MaxVehicles: 50, MaxLocations: 300, MaxTimeLimit: 20 * time.Second}, o.Limits)

	_, err = Load(writeFile(t, "limits:\n  max_time_limit: 5s\nsolver:\n  time_limit_seconds: 30\n"), true)
	require.ErrorIs(t, err, opt.ErrInvalidInstance)

	t.Setenv("SOLVE_MAX_VEHICLES", "many")
	_, err = Load("", false)
	require.ErrorContains(t, err, "SOLVE_MAX_VEHICLES")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(writeFile(t, "port: [\n"), true)
	require.ErrorContains(t, err, "parse")

	_, err = Load(writeFile(t, "solver:\n  first_solution_strategy: annealing\n"), true)
	require.ErrorIs(t, err, opt.ErrInvalidInstance)

	t.Setenv("RATE_RPS", "fast")
	_, err = Load("", false)
	require.ErrorContains(t, err, "RATE_RPS")
}

func TestFromEnv_DefaultPathOptional(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", "")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
}
