package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/use-agent/phoneprice/models"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS phone_records (
	id         INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
	model      TEXT    NOT NULL,
	model_key  TEXT    NOT NULL UNIQUE,
	data       TEXT    NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_phone_records_updated_at ON phone_records (updated_at);`

// SQLite stores records in a single sqlite file. updated_at is kept as
// unix nanoseconds so staleness queries compare integers.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at path and applies
// the schema.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", path+sep+"_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// One writer at a time; sqlite serialises writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) FindByModel(ctx context.Context, model string) (*models.PhoneRecord, error) {
	var (
		rec     models.PhoneRecord
		rawData string
		updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, model, data, updated_at FROM phone_records WHERE model_key = ?`,
		models.ModelKey(model),
	).Scan(&rec.ID, &rec.Model, &rawData, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: find %q: %w", model, err)
	}
	if err := json.Unmarshal([]byte(rawData), &rec.Data); err != nil {
		return nil, fmt.Errorf("sqlite: decode data for %q: %w", model, err)
	}
	rec.UpdatedAt = time.Unix(0, updated).UTC()
	return &rec, nil
}

func (s *SQLite) Upsert(ctx context.Context, model string, data models.Document, updatedAt time.Time) (*models.PhoneRecord, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encode data for %q: %w", model, err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
	INSERT INTO phone_records (model, model_key, data, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(model_key) DO UPDATE SET
		model=excluded.model,
		data=excluded.data,
		updated_at=excluded.updated_at
	RETURNING id`,
		model, models.ModelKey(model), string(raw), updatedAt.UnixNano(),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: upsert %q: %w", model, err)
	}

	return &models.PhoneRecord{
		ID:        id,
		Model:     model,
		Data:      data,
		UpdatedAt: time.Unix(0, updatedAt.UnixNano()).UTC(),
	}, nil
}

func (s *SQLite) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT model FROM phone_records WHERE updated_at < ? ORDER BY updated_at ASC LIMIT ?`,
		olderThan.UnixNano(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list stale: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite: list stale: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
