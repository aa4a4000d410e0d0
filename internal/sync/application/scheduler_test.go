package application

import (
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	cycle "trainsync/internal/sync/domain"
)

type countingRunner struct {
	runs    atomic.Int32
	active  atomic.Int32
	overlap atomic.Bool
	delay   time.Duration
	err     error
}

func (r *countingRunner) RunCycle(ctx context.Context) (*cycle.CycleReport, error) {
	if r.active.Add(1) > 1 {
		r.overlap.Store(true)
	}
	defer r.active.Add(-1)
	r.runs.Add(1)
	time.Sleep(r.delay)
	return &cycle.CycleReport{}, r.err
}

func TestSchedulerRunsImmediatelyAndRepeats(t *testing.T) {
	runner := &countingRunner{err: errors.New("station list unavailable")}
	s, err := NewScheduler(runner, 10*time.Millisecond, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	if runner.runs.Load() < 2 {
		t.Fatalf("expected repeated runs, got %d", runner.runs.Load())
	}
}

func TestSchedulerNeverOverlaps(t *testing.T) {
	runner := &countingRunner{delay: 25 * time.Millisecond}
	s, _ := NewScheduler(runner, 5*time.Millisecond, log.New(io.Discard, "", 0))
	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	if runner.overlap.Load() {
		t.Fatalf("cycles overlapped")
	}
	if runner.runs.Load() > 5 {
		t.Fatalf("expected slow cycles to defer ticks, got %d runs", runner.runs.Load())
	}
}

func TestSchedulerRejectsBadArgs(t *testing.T) {
	if _, err := NewScheduler(nil, time.Second, nil); err == nil {
		t.Fatalf("expected error for nil runner")
	}
	if _, err := NewScheduler(&countingRunner{}, 0, nil); err == nil {
		t.Fatalf("expected error for zero interval")
	}
}

func TestSchedulerTracksLastSuccess(t *testing.T) {
	failing := &countingRunner{err: errors.New("station list unavailable")}
	s, _ := NewScheduler(failing, time.Hour, log.New(io.Discard, "", 0))
	s.runOnce(context.Background())
	if _, ok := s.LastSuccess(); ok {
		t.Fatalf("expected no success after failed cycle")
	}

	s.runner = &countingRunner{}
	before := time.Now().UTC()
	s.runOnce(context.Background())
	last, ok := s.LastSuccess()
	if !ok {
		t.Fatalf("expected success to be recorded")
	}
	if last.Before(before.Add(-time.Second)) {
		t.Fatalf("unexpected last success %v", last)
	}
}
