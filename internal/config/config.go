// Package config loads service settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"routeopt/internal/model"
	"routeopt/internal/opt"
)

type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"database_url"`
	DBPath      string `yaml:"db_path"`
	RedisURL    string `yaml:"redis_url"`

	RateRPS   float64 `yaml:"rate_rps"`
	RateBurst int     `yaml:"rate_burst"`

	ResultCacheTTL time.Duration `yaml:"result_cache_ttl"`
	// MaxBodyBytes caps solve request bodies.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	Solver model.SolveOptions `yaml:"solver"`
	Limits Limits             `yaml:"limits"`
}

// Limits bound what a single request may ask of the solver. Zero values
// take the engine defaults.
type Limits struct {
	MaxVehicles  int           `yaml:"max_vehicles"`
	MaxLocations int           `yaml:"max_locations"`
	MaxTimeLimit time.Duration `yaml:"max_time_limit"`
}

// Default is the configuration used when neither file nor environment say
// otherwise.
func Default() Config {
	return Config{
		Port:           "8080",
		RateRPS:        10,
		RateBurst:      20,
		ResultCacheTTL: 10 * time.Minute,
		MaxBodyBytes:   4 << 20,
	}
}

// Load reads path (a missing file is fine unless required) and then applies
// environment overrides.
func Load(path string, required bool) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist) && !required:
		case err != nil:
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if _, err := cfg.SolverOptions(); err != nil {
		return cfg, fmt.Errorf("config: solver: %w", err)
	}
	return cfg, nil
}

// FromEnv loads CONFIG_PATH (default config.yaml, optional).
func FromEnv() (Config, error) {
	path, required := os.Getenv("CONFIG_PATH"), true
	if path == "" {
		path, required = "config.yaml", false
	}
	return Load(path, required)
}

func applyEnv(cfg *Config) error {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)

	if v := os.Getenv("RATE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: RATE_RPS: %w", err)
		}
		cfg.RateRPS = f
	}
	if v := os.Getenv("RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: RATE_BURST: %w", err)
		}
		cfg.RateBurst = n
	}
	if v := os.Getenv("RESULT_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: RESULT_CACHE_TTL: %w", err)
		}
		cfg.ResultCacheTTL = d
	}
	if v := os.Getenv("SOLVE_TIME_LIMIT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: SOLVE_TIME_LIMIT: %w", err)
		}
		secs := d.Seconds()
		cfg.Solver.TimeLimitSeconds = &secs
	}
	if v := os.Getenv("SOLVE_STRATEGY"); v != "" {
		cfg.Solver.FirstSolutionStrategy = strings.TrimSpace(v)
	}
	for key, dst := range map[string]*int{
		"SOLVE_MAX_VEHICLES":  &cfg.Limits.MaxVehicles,
		"SOLVE_MAX_LOCATIONS": &cfg.Limits.MaxLocations,
	} {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("config: %s: %w", key, err)
			}
			*dst = n
		}
	}
	if v := os.Getenv("SOLVE_MAX_TIME_LIMIT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: SOLVE_MAX_TIME_LIMIT: %w", err)
		}
		cfg.Limits.MaxTimeLimit = d
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// SolverOptions turns the solver and limits sections into engine defaults.
func (c Config) SolverOptions() (opt.Options, error) {
	o := opt.DefaultOptions()
	o.Limits = opt.Limits{
		MaxVehicles:  c.Limits.MaxVehicles,
		MaxLocations: c.Limits.MaxLocations,
		MaxTimeLimit: c.Limits.MaxTimeLimit,
	}
	return o.With(&c.Solver)
}

// Public returns the non-secret settings for the debug endpoint.
func (c Config) Public() map[string]any {
	return map[string]any{
		"PORT":             c.Port,
		"RATE_RPS":         c.RateRPS,
		"RATE_BURST":       c.RateBurst,
		"RESULT_CACHE_TTL": c.ResultCacheTTL.String(),
		"HAS_DATABASE_URL": c.DatabaseURL != "",
		"HAS_DB_PATH":      c.DBPath != "",
		"HAS_REDIS_URL":    c.RedisURL != "",
		"solver":           c.Solver,
		"limits":           c.Limits,
	}
}
