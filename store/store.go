// Package store persists PhoneRecords, one per case-insensitive model name.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/use-agent/phoneprice/config"
	"github.com/use-agent/phoneprice/models"
)

// ErrNotFound is returned by FindByModel when no record matches.
var ErrNotFound = errors.New("store: record not found")

// Store is the persistence contract used by the orchestrator.
// Implementations must be safe for concurrent use.
type Store interface {
	// FindByModel returns the record whose name equals model ignoring case.
	FindByModel(ctx context.Context, model string) (*models.PhoneRecord, error)

	// Upsert creates the record for model or overwrites the existing one
	// (matched ignoring case), storing model as the new display name.
	Upsert(ctx context.Context, model string, data models.Document, updatedAt time.Time) (*models.PhoneRecord, error)

	// ListStale returns up to limit model names last updated before
	// olderThan, oldest first.
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]string, error)

	Close() error
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(ctx, cfg.DSN)
	case "postgres":
		return NewPostgres(ctx, cfg.DSN)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q (want sqlite, postgres or memory)", cfg.Driver)
	}
}
