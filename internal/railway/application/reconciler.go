package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"trainsync/internal/coachsequence"
	"trainsync/internal/hafas"
	railway "trainsync/internal/railway/domain"
)

// CompositionSource loads coach compositions.
type CompositionSource interface {
	Composition(ctx context.Context, trainNumber, evaNumber string, departure, initialDeparture time.Time) ([]coachsequence.CoachGroup, bool, error)
}

// CompositionState tells what happened to a trip's composition.
type CompositionState string

const (
	CompositionStored    CompositionState = "stored"
	CompositionExists    CompositionState = "exists"
	CompositionAbsent    CompositionState = "absent"
	CompositionCancelled CompositionState = "cancelled"
	CompositionSkipped   CompositionState = "skipped"
)

// Result summarizes the writes of one trip.
type Result struct {
	TrainID     int64
	Cancelled   bool
	Created     int
	Updated     int
	Composition CompositionState
}

// Reconciler maps one realtime trip onto backing-store entities with
// get-or-create semantics. Writes follow operator, line, stations, train,
// then the train's children.
type Reconciler struct {
	store                  railway.Store
	coaches                CompositionSource
	location               *time.Location
	updateStopovers        bool
	updateStationPositions bool
	logger                 *log.Logger
}

// Option configures the reconciler.
type Option func(*Reconciler)

// WithCompositionSource enables composition capture.
func WithCompositionSource(source CompositionSource) Option {
	return func(r *Reconciler) {
		r.coaches = source
	}
}

// WithLocation sets the zone used to derive service dates.
func WithLocation(loc *time.Location) Option {
	return func(r *Reconciler) {
		if loc != nil {
			r.location = loc
		}
	}
}

// WithStopoverUpdates patches realtime fields of stored stopovers.
func WithStopoverUpdates(enabled bool) Option {
	return func(r *Reconciler) {
		r.updateStopovers = enabled
	}
}

// WithStationCoordinateUpdates lets later sightings correct coordinates.
func WithStationCoordinateUpdates(enabled bool) Option {
	return func(r *Reconciler) {
		r.updateStationPositions = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReconciler constructs a reconciler.
func NewReconciler(store railway.Store, opts ...Option) (*Reconciler, error) {
	if store == nil {
		return nil, errors.New("reconciler: nil store")
	}
	r := &Reconciler{store: store, location: time.UTC, logger: log.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

type tripContext struct {
	result   *Result
	stations map[int64]railway.Station
}

// ReconcileTrip writes everything the trip implies. A failure before the
// train exists stops the trip. After that, stopovers, remarks and the
// composition are attempted independently and their errors joined.
func (r *Reconciler) ReconcileTrip(ctx context.Context, trip *hafas.Trip) (Result, error) {
	result := Result{Composition: CompositionSkipped}
	if trip == nil || trip.Line == nil {
		return result, stageErr(StageLine, errNoLine)
	}
	tc := &tripContext{result: &result, stations: make(map[int64]railway.Station)}

	operator, err := r.operator(ctx, tc, trip.Line)
	if err != nil {
		return result, stageErr(StageOperator, err)
	}
	line, err := r.line(ctx, tc, operator, trip.Line)
	if err != nil {
		return result, stageErr(StageLine, err)
	}
	origin, destination, err := r.stations(ctx, tc, trip)
	if err != nil {
		return result, stageErr(StageStations, err)
	}
	train, err := r.train(ctx, tc, line, origin, destination, trip)
	if err != nil {
		return result, stageErr(StageTrain, err)
	}
	result.TrainID = train.ID
	result.Cancelled = train.Cancelled

	var errs []error
	errs = append(errs, stageErr(StageStopovers, r.stopovers(ctx, tc, train, trip)))
	errs = append(errs, stageErr(StageRemarks, r.remarks(ctx, tc, train, trip)))
	if train.Cancelled {
		result.Composition = CompositionCancelled
	} else {
		errs = append(errs, stageErr(StageComposition, r.composition(ctx, tc, train, origin, trip)))
	}
	return result, errors.Join(errs...)
}

func (r *Reconciler) operator(ctx context.Context, tc *tripContext, line *hafas.Line) (*railway.Operator, error) {
	if line.Operator == nil || line.Operator.Name == "" {
		return nil, errNoOperator
	}
	found, err := r.store.FindOperator(ctx, line.Operator.Name)
	if err != nil || found != nil {
		return found, err
	}
	candidate := railway.Operator{Name: line.Operator.Name}
	if err := candidate.Validate(); err != nil {
		return nil, err
	}
	created, err := r.store.CreateOperator(ctx, candidate)
	if err != nil {
		return nil, err
	}
	tc.result.Created++
	return created, nil
}

func (r *Reconciler) line(ctx context.Context, tc *tripContext, operator *railway.Operator, line *hafas.Line) (*railway.Line, error) {
	candidate := railway.Line{
		OperatorID: operator.ID,
		Product:    firstNonEmpty(line.ProductName, line.Product),
		Number:     firstNonEmpty(line.FahrtNr, line.ID),
		Name:       line.Name,
	}
	if err := candidate.Validate(); err != nil {
		return nil, err
	}
	found, err := r.store.FindLine(ctx, candidate.OperatorID, candidate.Product, candidate.Number)
	if err != nil || found != nil {
		return found, err
	}
	created, err := r.store.CreateLine(ctx, candidate)
	if err != nil {
		return nil, err
	}
	tc.result.Created++
	return created, nil
}

// stations resolves origin, destination and every stopover station.
func (r *Reconciler) stations(ctx context.Context, tc *tripContext, trip *hafas.Trip) (railway.Station, railway.Station, error) {
	originStop, destinationStop := trip.Origin, trip.Destination
	if n := len(trip.Stopovers); n > 0 {
		if originStop == nil {
			originStop = trip.Stopovers[0].Stop
		}
		if destinationStop == nil {
			destinationStop = trip.Stopovers[n-1].Stop
		}
	}
	if originStop == nil || destinationStop == nil {
		return railway.Station{}, railway.Station{}, errNoEndpoints
	}
	origin, err := r.station(ctx, tc, originStop)
	if err != nil {
		return railway.Station{}, railway.Station{}, err
	}
	destination, err := r.station(ctx, tc, destinationStop)
	if err != nil {
		return railway.Station{}, railway.Station{}, err
	}
	for _, stopover := range trip.Stopovers {
		if stopover.Stop == nil {
			continue
		}
		if _, err := r.station(ctx, tc, stopover.Stop); err != nil {
			return railway.Station{}, railway.Station{}, err
		}
	}
	return origin, destination, nil
}

func (r *Reconciler) station(ctx context.Context, tc *tripContext, stop *hafas.Stop) (railway.Station, error) {
	eva, err := evaNumber(stop)
	if err != nil {
		return railway.Station{}, err
	}
	if known, ok := tc.stations[eva]; ok {
		return known, nil
	}
	candidate := railway.Station{EvaNumber: eva, Name: stop.Name}
	if stop.Location != nil {
		lat, lon := stop.Location.Latitude, stop.Location.Longitude
		candidate.Latitude, candidate.Longitude = &lat, &lon
	}
	if err := candidate.Validate(); err != nil {
		return railway.Station{}, err
	}

	found, err := r.store.FindStation(ctx, eva)
	if err != nil {
		return railway.Station{}, err
	}
	if found == nil {
		created, err := r.store.CreateStation(ctx, candidate)
		if err != nil {
			return railway.Station{}, err
		}
		tc.result.Created++
		found = created
	} else if r.updateStationPositions && coordinatesDiffer(*found, candidate) {
		updated, err := r.store.UpdateStation(ctx, found.ID, railway.StationPatch{Latitude: candidate.Latitude, Longitude: candidate.Longitude})
		if err != nil {
			return railway.Station{}, err
		}
		tc.result.Updated++
		found = updated
	}
	tc.stations[eva] = *found
	return *found, nil
}

func (r *Reconciler) train(ctx context.Context, tc *tripContext, line *railway.Line, origin, destination railway.Station, trip *hafas.Trip) (*railway.Train, error) {
	planned := plannedStart(trip)
	if planned == nil {
		return nil, errNoServiceDate
	}
	candidate := railway.Train{
		LineID:        line.ID,
		JourneyID:     trip.ID,
		ServiceDate:   railway.ServiceDate(*planned, r.location),
		Cancelled:     trip.Cancelled,
		OriginID:      origin.ID,
		DestinationID: destination.ID,
	}
	if err := candidate.Validate(); err != nil {
		return nil, err
	}
	found, err := r.store.FindTrain(ctx, candidate.LineID, candidate.JourneyID, candidate.ServiceDate)
	if err != nil {
		return nil, err
	}
	if found == nil {
		created, err := r.store.CreateTrain(ctx, candidate)
		if err != nil {
			return nil, err
		}
		tc.result.Created++
		return created, nil
	}
	if found.Cancelled == candidate.Cancelled {
		return found, nil
	}
	cancelled := candidate.Cancelled
	updated, err := r.store.UpdateTrain(ctx, found.ID, railway.TrainPatch{Cancelled: &cancelled})
	if err != nil {
		return nil, err
	}
	tc.result.Updated++
	r.logger.Printf("reconcile: train %d cancelled=%t", updated.ID, updated.Cancelled)
	return updated, nil
}

func (r *Reconciler) stopovers(ctx context.Context, tc *tripContext, train *railway.Train, trip *hafas.Trip) error {
	stored, err := r.store.ListStopovers(ctx, train.ID)
	if err != nil {
		return err
	}
	byIndex := make(map[int]railway.Stopover, len(stored))
	for _, stopover := range stored {
		byIndex[stopover.Index] = stopover
	}

	var errs []error
	for idx, source := range trip.Stopovers {
		if source.Stop == nil {
			continue
		}
		eva, err := evaNumber(source.Stop)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		station, ok := tc.stations[eva]
		if !ok {
			errs = append(errs, fmt.Errorf("stopover %d: station %d unresolved", idx, eva))
			continue
		}
		candidate := stopoverFromTrip(train.ID, idx, station.ID, source)
		existing, ok := byIndex[idx]
		if !ok {
			if err := candidate.Validate(); err != nil {
				errs = append(errs, err)
				continue
			}
			if _, err := r.store.CreateStopover(ctx, candidate); err != nil {
				errs = append(errs, err)
				continue
			}
			tc.result.Created++
			continue
		}
		if !r.updateStopovers {
			continue
		}
		patch := stopoverPatch(existing, candidate)
		if patch.Empty() {
			continue
		}
		if _, err := r.store.UpdateStopover(ctx, existing.ID, patch); err != nil {
			errs = append(errs, err)
			continue
		}
		tc.result.Updated++
	}
	return errors.Join(errs...)
}

func (r *Reconciler) remarks(ctx context.Context, tc *tripContext, train *railway.Train, trip *hafas.Trip) error {
	stored, err := r.store.ListRemarks(ctx, train.ID)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(stored))
	for _, remark := range stored {
		seen[remark.Text] = struct{}{}
	}

	sources := append([]hafas.Remark{}, trip.Remarks...)
	for _, stopover := range trip.Stopovers {
		sources = append(sources, stopover.Remarks...)
	}

	var errs []error
	for _, source := range sources {
		if source.Text == "" {
			continue
		}
		if _, ok := seen[source.Text]; ok {
			continue
		}
		seen[source.Text] = struct{}{}
		remark := railway.Remark{TrainID: train.ID, Text: source.Text, Type: source.Type, Code: source.Code, Summary: source.Summary}
		if _, err := r.store.CreateRemark(ctx, remark); err != nil {
			errs = append(errs, err)
			continue
		}
		tc.result.Created++
	}
	return errors.Join(errs...)
}

func (r *Reconciler) composition(ctx context.Context, tc *tripContext, train *railway.Train, origin railway.Station, trip *hafas.Trip) error {
	if r.coaches == nil {
		return nil
	}
	existing, err := r.store.FindComposition(ctx, train.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		tc.result.Composition = CompositionExists
		return nil
	}
	departure := plannedStart(trip)
	if departure == nil {
		return errNoServiceDate
	}
	trainNumber := firstNonEmpty(trip.Line.FahrtNr, trip.Line.ID)
	groups, found, err := r.coaches.Composition(ctx, trainNumber, strconv.FormatInt(origin.EvaNumber, 10), *departure, *departure)
	if err != nil {
		return err
	}
	if !found {
		tc.result.Composition = CompositionAbsent
		return nil
	}
	candidate := railway.Composition{
		TrainID:   train.ID,
		StationID: origin.ID,
		Departure: *departure,
		Groups:    coachGroups(groups),
	}
	if err := candidate.Validate(); err != nil {
		return err
	}
	if _, err := r.store.CreateComposition(ctx, candidate); err != nil {
		return err
	}
	tc.result.Created++
	tc.result.Composition = CompositionStored
	return nil
}
