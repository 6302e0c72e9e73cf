// Package orchestrator implements the cache-or-fetch batch operation.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/phoneprice/models"
	"github.com/use-agent/phoneprice/store"
)

// Parser produces fresh data for one model. scraper.Pipeline implements it.
type Parser interface {
	Parse(ctx context.Context, model string) (*models.ParsedPhoneData, error)
}

// Service decides, per model, whether the stored record can be served or
// the marketplace must be fetched again.
type Service struct {
	store      store.Store
	parser     Parser
	staleAfter time.Duration
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service. A record is served from the store while its age
// does not exceed staleAfter.
func New(st store.Store, parser Parser, staleAfter time.Duration, opts ...Option) *Service {
	s := &Service{
		store:      st,
		parser:     parser,
		staleAfter: staleAfter,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process returns one entry per name, in input order. Names are handled
// one after another; a failure for one name never stops the others. The
// only error is a validation error for an empty list.
func (s *Service) Process(ctx context.Context, names []string) ([]models.BatchResultEntry, error) {
	if len(names) == 0 {
		return nil, models.NewError(models.ErrCodeInvalidInput, "No phone models provided", nil)
	}

	start := s.now()
	entries := make([]models.BatchResultEntry, 0, len(names))
	counts := make(map[string]int, 4)
	for _, name := range names {
		entry := s.processOne(ctx, name)
		counts[entry.Status]++
		entries = append(entries, entry)
	}

	slog.Info("batch processed",
		"models", len(names),
		models.StatusFoundInDB, counts[models.StatusFoundInDB],
		models.StatusParsedSuccessfully, counts[models.StatusParsedSuccessfully],
		models.StatusNotFound, counts[models.StatusNotFound],
		models.StatusParseFailed, counts[models.StatusParseFailed],
		"duration", s.now().Sub(start),
	)
	return entries, nil
}

func (s *Service) processOne(ctx context.Context, name string) models.BatchResultEntry {
	rec, err := s.store.FindByModel(ctx, name)
	switch {
	case err == nil:
		if s.isFresh(rec) {
			slog.Debug("serving stored record", "model", name, "updated_at", rec.UpdatedAt)
			return models.BatchResultEntry{
				Model:  name,
				Status: models.StatusFoundInDB,
				Data:   rec.Data,
				Code:   http.StatusOK,
			}
		}
		slog.Debug("stored record is stale", "model", name, "updated_at", rec.UpdatedAt)
	case errors.Is(err, store.ErrNotFound):
	default:
		slog.Error("store lookup failed", "model", name, "error", err)
		return models.FailedEntry(name, models.NewError(models.ErrCodeStorage, "failed to read stored record", err))
	}

	data, err := s.parser.Parse(ctx, name)
	if err != nil {
		slog.Warn("parse failed", "model", name, "error", err)
		return models.FailedEntry(name, err)
	}

	doc, err := data.ToDocument()
	if err != nil {
		return models.FailedEntry(name, models.NewError(models.ErrCodeInternal, "failed to encode parsed data", err))
	}

	if _, err := s.store.Upsert(ctx, name, doc, s.now()); err != nil {
		slog.Error("store upsert failed", "model", name, "error", err)
		return models.FailedEntry(name, models.NewError(models.ErrCodeStorage, "failed to save parsed data", err))
	}

	return models.BatchResultEntry{
		Model:  name,
		Status: models.StatusParsedSuccessfully,
		Data:   doc,
		Code:   http.StatusOK,
	}
}

// isFresh reports whether rec may be served without refetching.
func (s *Service) isFresh(rec *models.PhoneRecord) bool {
	return s.now().Sub(rec.UpdatedAt) <= s.staleAfter
}

// Lookup returns the stored record for name regardless of its age.
func (s *Service) Lookup(ctx context.Context, name string) (*models.PhoneRecord, error) {
	rec, err := s.store.FindByModel(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, models.NewError(models.ErrCodeNotFound, "no stored record for "+name, nil)
	}
	if err != nil {
		return nil, models.NewError(models.ErrCodeStorage, "failed to read stored record", err)
	}
	return rec, nil
}

// RefreshStale re-processes up to limit records older than the staleness
// window and returns how many were refreshed successfully.
func (s *Service) RefreshStale(ctx context.Context, limit int) (int, error) {
	names, err := s.store.ListStale(ctx, s.now().Add(-s.staleAfter), limit)
	if err != nil {
		return 0, models.NewError(models.ErrCodeStorage, "failed to list stale records", err)
	}
	if len(names) == 0 {
		return 0, nil
	}

	entries, err := s.Process(ctx, names)
	if err != nil {
		return 0, err
	}
	refreshed := 0
	for _, e := range entries {
		if e.Status == models.StatusParsedSuccessfully {
			refreshed++
		}
	}
	return refreshed, nil
}
