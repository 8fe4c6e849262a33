package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"routeopt/internal/model"
)

// Memory is a simple in-memory store used when no database is configured.
type Memory struct {
	mu   sync.Mutex
	cfgs map[string]SolverConfig // tenant -> config
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{cfgs: map[string]SolverConfig{}, now: time.Now}
}

func (m *Memory) GetSolverConfig(_ context.Context, tenantID string) (SolverConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cfgs[tenantID]
	if !ok {
		return SolverConfig{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) SaveSolverConfig(_ context.Context, tenantID string, opts model.SolveOptions, ifRevision string) (SolverConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ifRevision != "" && m.cfgs[tenantID].Revision != ifRevision {
		return SolverConfig{}, ErrConflict
	}
	c := SolverConfig{
		TenantID:  tenantID,
		Options:   opts,
		Revision:  uuid.NewString(),
		UpdatedAt: m.now().UTC().Truncate(time.Millisecond),
	}
	m.cfgs[tenantID] = c
	return c, nil
}

func (m *Memory) DeleteSolverConfig(_ context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cfgs[tenantID]; !ok {
		return ErrNotFound
	}
	delete(m.cfgs, tenantID)
	return nil
}

func (m *Memory) Close() error { return nil }
