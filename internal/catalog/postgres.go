package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"citypaper/internal/models"
)

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS cities (
		name         TEXT NOT NULL,
		country      TEXT NOT NULL,
		admin_info   JSONB NOT NULL,
		maps         JSONB NOT NULL,
		status       TEXT NOT NULL,
		last_updated TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (name, country)
	)`

const upsertSQL = `
	INSERT INTO cities (name, country, admin_info, maps, status, last_updated)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (name, country) DO UPDATE
	SET admin_info = EXCLUDED.admin_info, maps = EXCLUDED.maps,
	    status = EXCLUDED.status, last_updated = EXCLUDED.last_updated`

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Mirror copies catalog entries into a Postgres table.
type Mirror struct {
	db   execer
	pool *pgxpool.Pool
}

// NewMirror connects to dsn and creates the cities table if needed.
func NewMirror(ctx context.Context, dsn string) (*Mirror, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	m := &Mirror{db: pool, pool: pool}
	if err := m.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return m, nil
}

func (m *Mirror) EnsureSchema(ctx context.Context) error {
	if _, err := m.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create cities table: %w", err)
	}
	return nil
}

// Upsert writes entry, replacing the row with the same (name, country).
func (m *Mirror) Upsert(ctx context.Context, entry models.CatalogEntry) error {
	admin, err := json.Marshal(entry.AdminInfo)
	if err != nil {
		return fmt.Errorf("encode admin_info: %w", err)
	}
	maps, err := json.Marshal(entry.Maps)
	if err != nil {
		return fmt.Errorf("encode maps: %w", err)
	}
	updated, err := models.ParseTimestamp(entry.LastUpdated)
	if err != nil {
		return fmt.Errorf("parse last_updated: %w", err)
	}
	_, err = m.db.Exec(ctx, upsertSQL, entry.Name, entry.Country, admin, maps, entry.Status, updated)
	return err
}

// Close releases the pool.
func (m *Mirror) Close() {
	if m.pool != nil {
		m.pool.Close()
	}
}
