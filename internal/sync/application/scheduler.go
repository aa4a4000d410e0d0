package application

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	cycle "trainsync/internal/sync/domain"
)

// CycleRunner runs one sync cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*cycle.CycleReport, error)
}

// Scheduler runs a cycle immediately and then once per interval. Cycles
// never overlap: a tick that arrives while a cycle is running is dropped
// and the next cycle starts on the following tick.
type Scheduler struct {
	runner   CycleRunner
	interval time.Duration
	logger   *log.Logger

	lastSuccess atomic.Int64
}

// NewScheduler constructs a Scheduler.
func NewScheduler(runner CycleRunner, interval time.Duration, logger *log.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("scheduler: nil runner")
	}
	if interval <= 0 {
		return nil, errors.New("scheduler: interval must be positive")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{runner: runner, interval: interval, logger: logger}, nil
}

// Start blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := s.runner.RunCycle(ctx)
	if err != nil {
		s.logger.Printf("sync schedule error: %v", err)
		return
	}
	finished := time.Now().UTC()
	if report != nil && !report.FinishedAt.IsZero() {
		finished = report.FinishedAt
	}
	s.lastSuccess.Store(finished.UnixNano())
}

// LastSuccess returns when the last cycle completed without a fatal error.
// ok is false until one has.
func (s *Scheduler) LastSuccess() (time.Time, bool) {
	ns := s.lastSuccess.Load()
	if ns == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, ns).UTC(), true
}
