package timetable

import (
	"context"
	"errors"
	"log"

	"trainsync/internal/hafas"
)

// Boards is the board-fetching side of the realtime client.
type Boards interface {
	Departures(ctx context.Context, stationID string) ([]hafas.BoardEntry, error)
	Arrivals(ctx context.Context, stationID string) ([]hafas.BoardEntry, error)
}

// StationRef names one station to scan.
type StationRef struct {
	EvaNumber string
	Name      string
}

// TripRef is the part of a board entry needed to load the full trip.
type TripRef struct {
	TripID    string
	LineName  string
	FahrtNr   string
	StationID string
}

// Aggregator collects board entries across stations.
type Aggregator struct {
	boards Boards
	logger *log.Logger
}

// NewAggregator constructs an aggregator.
func NewAggregator(boards Boards, logger *log.Logger) (*Aggregator, error) {
	if boards == nil {
		return nil, errors.New("timetable: nil boards")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Aggregator{boards: boards, logger: logger}, nil
}

// TimeTable returns the departures followed by the arrivals of a station.
// Entries are not deduplicated. A failing board contributes nothing and
// the failure is logged.
func (a *Aggregator) TimeTable(ctx context.Context, stationID string) []hafas.BoardEntry {
	departures, err := a.boards.Departures(ctx, stationID)
	if err != nil {
		a.logger.Printf("timetable: departures station=%s: %v", stationID, err)
	}
	arrivals, err := a.boards.Arrivals(ctx, stationID)
	if err != nil {
		a.logger.Printf("timetable: arrivals station=%s: %v", stationID, err)
	}
	out := make([]hafas.BoardEntry, 0, len(departures)+len(arrivals))
	out = append(out, departures...)
	return append(out, arrivals...)
}

// Collect scans every station and returns each distinct trip once, in
// first-seen order. Entries without a trip id are dropped.
func (a *Aggregator) Collect(ctx context.Context, stations []StationRef) ([]TripRef, error) {
	seen := NewTripSet()
	refs := make([]TripRef, 0)
	total := len(stations)
	for idx, station := range stations {
		if err := ctx.Err(); err != nil {
			return refs, err
		}
		a.logger.Printf("timetable: %d / %d (%s)", idx+1, total, station.Name)
		for _, entry := range a.TimeTable(ctx, station.EvaNumber) {
			if entry.TripID == "" || !seen.Add(entry.TripID) {
				continue
			}
			ref := TripRef{TripID: entry.TripID, StationID: station.EvaNumber}
			if entry.Line != nil {
				ref.LineName = entry.Line.Name
				ref.FahrtNr = entry.Line.FahrtNr
			}
			refs = append(refs, ref)
		}
	}
	return refs, nil
}
