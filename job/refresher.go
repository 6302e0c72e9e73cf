// Package job runs background maintenance on a cron schedule.
package job

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RefreshFunc re-fetches up to limit stale records and reports how many
// were refreshed.
type RefreshFunc func(ctx context.Context, limit int) (int, error)

// Refresher periodically re-fetches stale records.
type Refresher struct {
	spec    string
	limit   int
	refresh RefreshFunc

	mu      sync.Mutex
	running bool
	cron    *cron.Cron

	// watcherDone is closed when the goroutine tied to the parent context exits.
	watcherDone chan struct{}
}

// NewRefresher returns nil when spec is empty, which disables the job.
func NewRefresher(spec string, limit int, refresh RefreshFunc) *Refresher {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil
	}
	return &Refresher{spec: spec, limit: limit, refresh: refresh}
}

// Start registers the schedule and returns a function that stops it and
// waits for a running refresh to finish. The job also stops when parent is
// done. Start on a nil Refresher is a no-op.
func (r *Refresher) Start(parent context.Context) (stop func(), err error) {
	if r == nil {
		return func() {}, nil
	}

	c := cron.New()
	id, err := c.AddFunc(r.spec, func() { r.RunOnce(parent) })
	if err != nil {
		return nil, err
	}
	r.cron = c
	c.Start()
	slog.Info("refresh job scheduled", "cron", r.spec, "limit", r.limit, "next", c.Entry(id).Next)

	stopped := make(chan struct{})
	var once sync.Once
	stop = func() {
		once.Do(func() {
			close(stopped)
			<-c.Stop().Done()
			slog.Info("refresh job stopped")
		})
	}
	r.watcherDone = make(chan struct{})
	go func() {
		defer close(r.watcherDone)
		select {
		case <-parent.Done():
			stop()
		case <-stopped:
		}
	}()
	return stop, nil
}

// RunOnce performs one refresh pass. Overlapping runs are skipped.
func (r *Refresher) RunOnce(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		slog.Warn("previous refresh still running, skip current schedule")
		return
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	if ctx.Err() != nil {
		slog.Info("refresh skipped, context done")
		return
	}

	start := time.Now()
	n, err := r.refresh(ctx, r.limit)
	if err != nil {
		slog.Error("scheduled refresh failed", "duration", time.Since(start), "error", err)
		return
	}
	slog.Info("scheduled refresh completed", "refreshed", n, "duration", time.Since(start))
}
