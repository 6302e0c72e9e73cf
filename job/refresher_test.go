package job

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewRefresher_EmptySpecDisables(t *testing.T) {
	r := NewRefresher("  ", 10, nil)
	if r != nil {
		t.Fatal("expected nil refresher for empty spec")
	}
	stop, err := r.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	stop()
}

func TestStart_InvalidSpec(t *testing.T) {
	r := NewRefresher("not a cron", 10, func(context.Context, int) (int, error) { return 0, nil })
	if _, err := r.Start(context.Background()); err == nil {
		t.Error("expected error for invalid cron spec")
	}
}

func TestRunOnce_PassesLimit(t *testing.T) {
	var gotLimit int
	r := NewRefresher("@hourly", 25, func(_ context.Context, limit int) (int, error) {
		gotLimit = limit
		return limit, nil
	})
	r.RunOnce(context.Background())
	if gotLimit != 25 {
		t.Errorf("limit = %d; want 25", gotLimit)
	}
}

func TestRunOnce_SkipsOverlap(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})
	r := NewRefresher("@hourly", 1, func(context.Context, int) (int, error) {
		calls.Add(1)
		close(started)
		<-release
		return 0, nil
	})

	done := make(chan struct{})
	go func() {
		r.RunOnce(context.Background())
		close(done)
	}()
	<-started
	r.RunOnce(context.Background())
	close(release)
	<-done

	if calls.Load() != 1 {
		t.Errorf("calls = %d; want 1", calls.Load())
	}
}

func TestRunOnce_CancelledContext(t *testing.T) {
	called := false
	r := NewRefresher("@hourly", 1, func(context.Context, int) (int, error) {
		called = true
		return 0, errors.New("should not run")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.RunOnce(ctx)
	if called {
		t.Error("refresh ran after context was cancelled")
	}
}

func TestStart_StopsWithParent(t *testing.T) {
	r := NewRefresher("@every 1h", 1, func(context.Context, int) (int, error) { return 0, nil })
	ctx, cancel := context.WithCancel(context.Background())
	stop, err := r.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	finished := make(chan struct{})
	go func() {
		stop()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not return")
	}
}

func TestStart_StopReleasesWatcher(t *testing.T) {
	r := NewRefresher("@every 1h", 1, func(context.Context, int) (int, error) { return 0, nil })
	stop, err := r.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	stop()
	stop()

	select {
	case <-r.watcherDone:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher goroutine still waiting on a parent that never finishes")
	}
}
