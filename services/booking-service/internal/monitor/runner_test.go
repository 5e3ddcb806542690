package monitor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func TestTickIsExclusiveAcrossRunners(t *testing.T) {
	locker := NewMemoryLocker()
	logger := slog.New(slog.DiscardHandler)

	started := make(chan struct{})
	unblock := make(chan struct{})
	var runs atomic.Int32
	job := Job{Name: "sweep", Every: time.Minute, TTL: time.Minute, Run: func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			close(started)
			<-unblock
		}
		return nil
	}}

	first := NewRunner(locker, logger, job)
	second := NewRunner(locker, logger, job)

	done := make(chan bool)
	go func() {
		ran, _ := first.Tick(context.Background(), first.jobs[0])
		done <- ran
	}()
	<-started

	ran, err := second.Tick(context.Background(), second.jobs[0])
	if err != nil || ran {
		t.Fatalf("second runner must not run while the lease is held, ran=%v err=%v", ran, err)
	}
	close(unblock)
	if !<-done {
		t.Fatalf("first runner should have run")
	}

	ran, err = second.Tick(context.Background(), second.jobs[0])
	if err != nil || !ran {
		t.Fatalf("lease should be free after release, ran=%v err=%v", ran, err)
	}
	if got := runs.Load(); got != 2 {
		t.Fatalf("expected 2 runs, got %d", got)
	}
}

func TestExpiredLeaseIsReacquirable(t *testing.T) {
	locker := NewMemoryLocker()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return now }

	if _, ok, _ := locker.TryAcquire(context.Background(), "sweep", 30*time.Second); !ok {
		t.Fatalf("first acquire should succeed")
	}
	if _, ok, _ := locker.TryAcquire(context.Background(), "sweep", 30*time.Second); ok {
		t.Fatalf("live lease must not be re-acquired")
	}
	now = now.Add(31 * time.Second)
	if _, ok, _ := locker.TryAcquire(context.Background(), "sweep", 30*time.Second); !ok {
		t.Fatalf("abandoned lease should be re-acquirable")
	}
}

func TestStaleHolderCannotReleaseNewLease(t *testing.T) {
	locker := NewMemoryLocker()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return now }

	old, _, _ := locker.TryAcquire(context.Background(), "sweep", time.Second)
	now = now.Add(2 * time.Second)
	if _, ok, _ := locker.TryAcquire(context.Background(), "sweep", time.Minute); !ok {
		t.Fatalf("expected takeover of the expired lease")
	}
	_ = old.Release(context.Background())
	if _, ok, _ := locker.TryAcquire(context.Background(), "sweep", time.Minute); ok {
		t.Fatalf("old holder released the new lease")
	}
}

func TestTickBoundsRunByTTL(t *testing.T) {
	r := NewRunner(NewMemoryLocker(), slog.New(slog.DiscardHandler))
	job := Job{Name: "slow", TTL: 20 * time.Millisecond, Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	start := time.Now()
	ran, err := r.Tick(context.Background(), job)
	if !ran || err == nil {
		t.Fatalf("expected a run that times out, ran=%v err=%v", ran, err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("run not bounded by its TTL")
	}
}
