package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"routeopt/internal/model"
)

// dialect carries the few differences between the SQL backends.
type dialect struct {
	name       string
	schema     string
	positional bool // $1, $2 ... instead of ?
}

// sqlStore implements Store on database/sql.
type sqlStore struct {
	db *sql.DB
	d  dialect
}

func (s *sqlStore) q(query string) string {
	if !s.d.positional {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.d.schema); err != nil {
		return fmt.Errorf("%s: migrate: %w", s.d.name, err)
	}
	return nil
}

func (s *sqlStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *sqlStore) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConfig(row rowScanner, tenantID string) (SolverConfig, error) {
	var (
		js       string
		rev      string
		updated  int64
		settings model.SolveOptions
	)
	if err := row.Scan(&js, &rev, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SolverConfig{}, ErrNotFound
		}
		return SolverConfig{}, err
	}
	if err := json.Unmarshal([]byte(js), &settings); err != nil {
		return SolverConfig{}, fmt.Errorf("decode solver config: %w", err)
	}
	return SolverConfig{
		TenantID:  tenantID,
		Options:   settings,
		Revision:  rev,
		UpdatedAt: time.UnixMilli(updated).UTC(),
	}, nil
}

func (s *sqlStore) GetSolverConfig(ctx context.Context, tenantID string) (SolverConfig, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT config, revision, updated_at FROM solver_config WHERE tenant_id=?`), tenantID)
	return scanConfig(row, tenantID)
}

func (s *sqlStore) SaveSolverConfig(ctx context.Context, tenantID string, opts model.SolveOptions, ifRevision string) (SolverConfig, error) {
	js, err := json.Marshal(opts)
	if err != nil {
		return SolverConfig{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SolverConfig{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if ifRevision != "" {
		var cur string
		err := tx.QueryRowContext(ctx, s.q(`SELECT revision FROM solver_config WHERE tenant_id=?`), tenantID).Scan(&cur)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && cur != ifRevision) {
			return SolverConfig{}, ErrConflict
		}
		if err != nil {
			return SolverConfig{}, err
		}
	}

	c := SolverConfig{
		TenantID:  tenantID,
		Options:   opts,
		Revision:  uuid.NewString(),
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	_, err = tx.ExecContext(ctx, s.q(`INSERT INTO solver_config (tenant_id, config, revision, updated_at) VALUES (?, ?, ?, ?)
        ON CONFLICT (tenant_id) DO UPDATE SET config=excluded.config, revision=excluded.revision, updated_at=excluded.updated_at`),
		tenantID, string(js), c.Revision, c.UpdatedAt.UnixMilli())
	if err != nil {
		return SolverConfig{}, err
	}
	if err := tx.Commit(); err != nil {
		return SolverConfig{}, err
	}
	return c, nil
}

func (s *sqlStore) DeleteSolverConfig(ctx context.Context, tenantID string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM solver_config WHERE tenant_id=?`), tenantID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
