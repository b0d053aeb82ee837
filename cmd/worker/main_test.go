package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/291e/bogofit-shop-sub001/internal/infra"
)

type recordingRuns struct {
	mu      sync.Mutex
	cutoffs []time.Time
	reasons []string
	err     error
}

func (r *recordingRuns) FailStale(_ context.Context, olderThan time.Time, reason string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cutoffs = append(r.cutoffs, olderThan)
	r.reasons = append(r.reasons, reason)
	if r.err != nil {
		return 0, r.err
	}
	return 2, nil
}

func (r *recordingRuns) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cutoffs)
}

func TestSweepUsesThreshold(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	runs := &recordingRuns{}
	w := &sweeper{runs: runs, logger: *infra.DiscardLogger(), interval: time.Second, threshold: 15 * time.Minute, now: func() time.Time { return now }}

	if n := w.sweep(context.Background()); n != 2 {
		t.Fatalf("expected 2 swept runs, got %d", n)
	}
	if want := now.Add(-15 * time.Minute); !runs.cutoffs[0].Equal(want) {
		t.Fatalf("expected cutoff %v, got %v", want, runs.cutoffs[0])
	}
	if runs.reasons[0] != abandonedReason {
		t.Fatalf("unexpected reason %q", runs.reasons[0])
	}

	runs.err = errors.New("db down")
	if n := w.sweep(context.Background()); n != 0 {
		t.Fatalf("expected 0 on failure, got %d", n)
	}
}

func TestRunSweepsUntilCancelled(t *testing.T) {
	runs := &recordingRuns{}
	w := &sweeper{runs: runs, logger: *infra.DiscardLogger(), interval: 5 * time.Millisecond, threshold: time.Minute, now: time.Now}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for runs.calls() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("sweeper did not tick")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunRejectsZeroInterval(t *testing.T) {
	w := &sweeper{runs: &recordingRuns{}, logger: *infra.DiscardLogger()}
	if err := w.Run(context.Background()); err == nil {
		t.Fatalf("expected error for zero interval")
	}
}
