package railway

import (
	"context"
	"errors"
	"time"
)

// ErrStationList marks a failure to assemble the station list. It aborts
// the whole cycle.
var ErrStationList = errors.New("railway: station list unavailable")

// TrainPatch carries the mutable fields of a train.
type TrainPatch struct {
	Cancelled *bool
}

// StationPatch carries the correctable fields of a station.
type StationPatch struct {
	Latitude  *float64
	Longitude *float64
}

// StopoverPatch carries the realtime fields of a stopover.
type StopoverPatch struct {
	Arrival        *time.Time
	ArrivalDelay   *int
	Departure      *time.Time
	DepartureDelay *int
	Platform       *string
	Cancelled      *bool
}

// Empty reports whether the patch changes nothing.
func (p StopoverPatch) Empty() bool {
	return p.Arrival == nil && p.ArrivalDelay == nil && p.Departure == nil &&
		p.DepartureDelay == nil && p.Platform == nil && p.Cancelled == nil
}

// Store is the backing store of railway entities. Find methods return
// (nil, nil) when nothing matches the natural key.
type Store interface {
	ListStations(ctx context.Context, usage string) ([]Station, error)

	FindOperator(ctx context.Context, name string) (*Operator, error)
	CreateOperator(ctx context.Context, operator Operator) (*Operator, error)

	FindLine(ctx context.Context, operatorID int64, product, number string) (*Line, error)
	CreateLine(ctx context.Context, line Line) (*Line, error)

	FindStation(ctx context.Context, evaNumber int64) (*Station, error)
	CreateStation(ctx context.Context, station Station) (*Station, error)
	UpdateStation(ctx context.Context, id int64, patch StationPatch) (*Station, error)

	FindTrain(ctx context.Context, lineID int64, journeyID, serviceDate string) (*Train, error)
	CreateTrain(ctx context.Context, train Train) (*Train, error)
	UpdateTrain(ctx context.Context, id int64, patch TrainPatch) (*Train, error)

	ListStopovers(ctx context.Context, trainID int64) ([]Stopover, error)
	CreateStopover(ctx context.Context, stopover Stopover) (*Stopover, error)
	UpdateStopover(ctx context.Context, id int64, patch StopoverPatch) (*Stopover, error)

	ListRemarks(ctx context.Context, trainID int64) ([]Remark, error)
	CreateRemark(ctx context.Context, remark Remark) (*Remark, error)

	FindComposition(ctx context.Context, trainID int64) (*Composition, error)
	CreateComposition(ctx context.Context, composition Composition) (*Composition, error)
}
