// Package store persists per-tenant solver configuration overrides.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"routeopt/internal/model"
)

var (
	ErrNotFound = errors.New("solver config not found")
	// ErrConflict is returned when a save names a revision that is no longer
	// current.
	ErrConflict = errors.New("solver config revision conflict")
)

// SolverConfig is one tenant's override of the server solver defaults.
type SolverConfig struct {
	TenantID  string             `json:"tenantId"`
	Options   model.SolveOptions `json:"options"`
	Revision  string             `json:"revision"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Store abstracts persistence for solver configuration.
type Store interface {
	GetSolverConfig(ctx context.Context, tenantID string) (SolverConfig, error)
	// SaveSolverConfig replaces the tenant's options. A non-empty
	// ifRevision must match the stored revision ("" matches nothing stored).
	SaveSolverConfig(ctx context.Context, tenantID string, opts model.SolveOptions, ifRevision string) (SolverConfig, error)
	DeleteSolverConfig(ctx context.Context, tenantID string) error
	Close() error
}

// Pinger is implemented by stores backed by a remote database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Open picks a backend: Postgres when databaseURL is set, else SQLite when
// dbPath is set, else memory.
func Open(ctx context.Context, databaseURL, dbPath string) (Store, error) {
	switch {
	case strings.TrimSpace(databaseURL) != "":
		return NewPostgres(ctx, databaseURL)
	case strings.TrimSpace(dbPath) != "":
		return NewSQLite(ctx, dbPath)
	}
	return NewMemory(), nil
}
