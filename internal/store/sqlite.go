package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS solver_config (
    tenant_id  TEXT PRIMARY KEY,
    config     TEXT NOT NULL,
    revision   TEXT NOT NULL,
    updated_at INTEGER NOT NULL
)`

// SQLite is the single-node store, selected with DB_PATH.
type SQLite struct {
	sqlStore
}

func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: verify connection to %q: %w", path, err)
	}
	s := &SQLite{sqlStore{db: db, d: dialect{name: "sqlite", schema: sqliteSchema}}}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
