package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type countingDispatcher struct {
	ticks atomic.Int64
}

func (d *countingDispatcher) StartDue(ctx context.Context, now time.Time) (int, error) {
	d.ticks.Add(1)
	return 0, nil
}

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New(0, &countingDispatcher{}, discard()); err == nil {
		t.Fatalf("expected error for zero interval")
	}
	if _, err := New(time.Second, nil, discard()); err == nil {
		t.Fatalf("expected error for nil dispatcher")
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	d := &countingDispatcher{}
	s, err := New(time.Hour, d, discard())
	if err != nil {
		t.Fatal(err)
	}

	if !s.Start() {
		t.Fatalf("first Start() must succeed")
	}
	if s.Start() {
		t.Fatalf("second Start() must be a no-op")
	}
	if !s.IsRunning() {
		t.Fatalf("expected running")
	}

	// The immediate tick fires on start.
	deadline := time.Now().Add(2 * time.Second)
	for d.ticks.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("no tick observed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if !s.Stop() {
		t.Fatalf("Stop() must succeed while running")
	}
	if s.Stop() {
		t.Fatalf("second Stop() must be a no-op")
	}
	if s.IsRunning() {
		t.Fatalf("expected stopped")
	}
}

func TestRestartAfterStop(t *testing.T) {
	t.Parallel()

	d := &countingDispatcher{}
	s, err := New(time.Hour, d, discard())
	if err != nil {
		t.Fatal(err)
	}

	s.Start()
	s.Stop()
	if !s.Start() {
		t.Fatalf("scheduler must be restartable")
	}
	t.Cleanup(func() { s.Stop() })
}

type panickyDispatcher struct {
	calls atomic.Int64
}

func (d *panickyDispatcher) StartDue(ctx context.Context, now time.Time) (int, error) {
	d.calls.Add(1)
	panic("boom")
}

func TestTickPanicIsRecovered(t *testing.T) {
	t.Parallel()

	d := &panickyDispatcher{}
	s, err := New(time.Hour, d, discard())
	if err != nil {
		t.Fatal(err)
	}

	s.Start()
	deadline := time.Now().Add(2 * time.Second)
	for d.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("tick never ran")
		}
		time.Sleep(5 * time.Millisecond)
	}
	// The loop survived the panic.
	if !s.Stop() {
		t.Fatalf("scheduler died on a panicking tick")
	}
}
