package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/use-agent/phoneprice/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS phone_records (
	id         BIGSERIAL   PRIMARY KEY,
	model      TEXT        NOT NULL,
	model_key  TEXT        NOT NULL UNIQUE,
	data       JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_phone_records_updated_at ON phone_records (updated_at);`

// Postgres stores records in a PostgreSQL table with a JSONB data column.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn and applies the schema.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: create schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) FindByModel(ctx context.Context, model string) (*models.PhoneRecord, error) {
	var (
		rec     models.PhoneRecord
		rawData []byte
	)
	err := p.pool.QueryRow(ctx,
		`SELECT id, model, data, updated_at FROM phone_records WHERE model_key = $1`,
		models.ModelKey(model),
	).Scan(&rec.ID, &rec.Model, &rawData, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find %q: %w", model, err)
	}
	if err := json.Unmarshal(rawData, &rec.Data); err != nil {
		return nil, fmt.Errorf("postgres: decode data for %q: %w", model, err)
	}
	return &rec, nil
}

func (p *Postgres) Upsert(ctx context.Context, model string, data models.Document, updatedAt time.Time) (*models.PhoneRecord, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("postgres: encode data for %q: %w", model, err)
	}

	rec := &models.PhoneRecord{Model: model, Data: data}
	err = p.pool.QueryRow(ctx, `
	INSERT INTO phone_records (model, model_key, data, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (model_key) DO UPDATE SET
		model = EXCLUDED.model,
		data = EXCLUDED.data,
		updated_at = EXCLUDED.updated_at
	RETURNING id, updated_at`,
		model, models.ModelKey(model), raw, updatedAt,
	).Scan(&rec.ID, &rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("postgres: upsert %q: %w", model, err)
	}
	return rec, nil
}

func (p *Postgres) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	query := `SELECT model FROM phone_records WHERE updated_at < $1 ORDER BY updated_at ASC`
	args := []any{olderThan}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list stale: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: list stale: %w", err)
	}
	return names, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
