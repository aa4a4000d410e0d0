package cycle

import "time"

// TripStatus is the outcome of one trip within a cycle.
type TripStatus string

const (
	// TripSynced means every write for the trip succeeded.
	TripSynced TripStatus = "synced"
	// TripPartial means the train exists but a child write failed.
	TripPartial TripStatus = "partial"
	// TripFailed means the trip was abandoned before its train was stored.
	TripFailed TripStatus = "failed"
)

// TripOutcome records what happened to one trip.
type TripOutcome struct {
	TripID      string
	LineName    string
	Status      TripStatus
	Stage       string
	ErrorKind   string
	Error       string
	TrainID     int64
	Cancelled   bool
	Created     int
	Updated     int
	Composition string
	Duration    time.Duration
}

// CycleReport summarizes one sync cycle.
type CycleReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Stations   int
	Trips      int
	Outcomes   []TripOutcome
	// Fatal is set when the cycle was aborted.
	Fatal string
}

// Duration is the wall time of the cycle.
func (r *CycleReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Count returns how many trips ended with status.
func (r *CycleReport) Count(status TripStatus) int {
	n := 0
	for _, outcome := range r.Outcomes {
		if outcome.Status == status {
			n++
		}
	}
	return n
}

// Created sums entity creations across trips.
func (r *CycleReport) Created() int {
	n := 0
	for _, outcome := range r.Outcomes {
		n += outcome.Created
	}
	return n
}

// Updated sums entity updates across trips.
func (r *CycleReport) Updated() int {
	n := 0
	for _, outcome := range r.Outcomes {
		n += outcome.Updated
	}
	return n
}
