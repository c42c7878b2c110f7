package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestAfterRunsTask(t *testing.T) {
	t.Parallel()

	s := New()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	done := make(chan struct{})
	s.After(10*time.Millisecond, func(ctx context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("task did not run")
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestCancelPreventsRun(t *testing.T) {
	t.Parallel()

	s := New()
	var ran atomic.Bool
	handle := s.After(50*time.Millisecond, func(ctx context.Context) { ran.Store(true) })

	if !s.Cancel(handle) {
		t.Fatalf("expected pending task to be cancelled")
	}
	if s.Cancel(handle) {
		t.Fatalf("second cancel should report false")
	}
	time.Sleep(100 * time.Millisecond)
	if ran.Load() {
		t.Fatalf("cancelled task ran")
	}
}

func TestStopDropsPendingTasks(t *testing.T) {
	t.Parallel()

	s := New()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		s.After(time.Hour, func(ctx context.Context) { ran.Add(1) })
	}
	if s.Pending() != 5 {
		t.Fatalf("expected 5 pending tasks, got %d", s.Pending())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if ran.Load() != 0 {
		t.Fatalf("pending tasks ran on stop")
	}
	if s.Pending() != 0 {
		t.Fatalf("pending tasks left after stop: %d", s.Pending())
	}
}

func TestTaskPanicIsContained(t *testing.T) {
	t.Parallel()

	s := New()
	done := make(chan struct{})
	s.After(time.Millisecond, func(ctx context.Context) { panic("boom") })
	s.After(5*time.Millisecond, func(ctx context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler stopped after panic")
	}
}

func TestAfterStopDropsTask(t *testing.T) {
	t.Parallel()

	s := New()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	var ran atomic.Int32
	if handle := s.After(time.Millisecond, func(ctx context.Context) { ran.Add(1) }); handle != "" {
		t.Fatalf("expected empty handle after stop, got %q", handle)
	}
	if s.Pending() != 0 {
		t.Fatalf("task registered after stop")
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	done := make(chan struct{})
	if handle := s.After(time.Millisecond, func(ctx context.Context) { close(done) }); handle == "" {
		t.Fatalf("restarted scheduler refused a task")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("task did not run after restart")
	}
	_ = s.Stop(context.Background())
	if ran.Load() != 0 {
		t.Fatalf("dropped task ran")
	}
}
