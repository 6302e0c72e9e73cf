package store

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/use-agent/phoneprice/models"
)

// Memory is an in-process Store. Records live until the process exits.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*models.PhoneRecord // keyed by models.ModelKey
	nextID  int64
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]*models.PhoneRecord)}
}

func (m *Memory) FindByModel(_ context.Context, model string) (*models.PhoneRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[models.ModelKey(model)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *Memory) Upsert(_ context.Context, model string, data models.Document, updatedAt time.Time) (*models.PhoneRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := models.ModelKey(model)
	rec, ok := m.records[key]
	if !ok {
		m.nextID++
		rec = &models.PhoneRecord{ID: m.nextID}
		m.records[key] = rec
	}
	rec.Model = model
	rec.Data = maps.Clone(data)
	rec.UpdatedAt = updatedAt
	return cloneRecord(rec), nil
}

func (m *Memory) ListStale(_ context.Context, olderThan time.Time, limit int) ([]string, error) {
	type staleEntry struct {
		model     string
		updatedAt time.Time
	}

	m.mu.RLock()
	var stale []staleEntry
	for _, rec := range m.records {
		if rec.UpdatedAt.Before(olderThan) {
			stale = append(stale, staleEntry{model: rec.Model, updatedAt: rec.UpdatedAt})
		}
	}
	m.mu.RUnlock()

	sort.Slice(stale, func(i, j int) bool {
		return stale[i].updatedAt.Before(stale[j].updatedAt)
	})
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	names := make([]string, len(stale))
	for i, e := range stale {
		names[i] = e.model
	}
	return names, nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *Memory) Close() error { return nil }

// cloneRecord copies rec so callers cannot mutate stored state.
func cloneRecord(rec *models.PhoneRecord) *models.PhoneRecord {
	c := *rec
	c.Data = maps.Clone(rec.Data)
	return &c
}
