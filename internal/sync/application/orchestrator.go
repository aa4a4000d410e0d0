package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"trainsync/internal/hafas"
	"trainsync/internal/observability/metrics"
	railapp "trainsync/internal/railway/application"
	railway "trainsync/internal/railway/domain"
	cycle "trainsync/internal/sync/domain"
	"trainsync/internal/sync/notify"
	"trainsync/internal/timetable"
	"trainsync/internal/transport"
)

const (
	defaultDetailAttempts = 2
	stageDetail           = "detail"
)

// StationLister supplies the stations to scan.
type StationLister interface {
	ListStations(ctx context.Context, usage string) ([]railway.Station, error)
}

// TripCollector turns stations into distinct trip references.
type TripCollector interface {
	Collect(ctx context.Context, stations []timetable.StationRef) ([]timetable.TripRef, error)
}

// TripSource loads trip details.
type TripSource interface {
	Trip(ctx context.Context, lineName, tripID string) (*hafas.Trip, error)
}

// TripReconciler writes one trip to the backing store.
type TripReconciler interface {
	ReconcileTrip(ctx context.Context, trip *hafas.Trip) (railapp.Result, error)
}

// ReportSink receives finished cycle reports.
type ReportSink interface {
	Write(ctx context.Context, report *cycle.CycleReport) (string, error)
}

// Orchestrator runs one sync cycle at a time: stations, timetables, trip
// details, reconciliation. Trips are processed sequentially.
type Orchestrator struct {
	stations   StationLister
	collector  TripCollector
	trips      TripSource
	reconciler TripReconciler
	usage      string

	attempts   int
	newBackOff func() backoff.BackOff
	sink       ReportSink
	notifier   notify.Notifier
	now        func() time.Time
	logger     *log.Logger
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithDetailAttempts sets how often a transient trip-detail failure is tried.
func WithDetailAttempts(attempts int) Option {
	return func(o *Orchestrator) {
		if attempts > 0 {
			o.attempts = attempts
		}
	}
}

// WithBackOff overrides the delay policy between detail attempts.
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(o *Orchestrator) {
		if factory != nil {
			o.newBackOff = factory
		}
	}
}

// WithReportSink stores every cycle report.
func WithReportSink(sink ReportSink) Option {
	return func(o *Orchestrator) {
		o.sink = sink
	}
}

// WithNotifier alerts when a cycle is aborted.
func WithNotifier(notifier notify.Notifier) Option {
	return func(o *Orchestrator) {
		o.notifier = notifier
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOrchestrator constructs an orchestrator.
func NewOrchestrator(stations StationLister, collector TripCollector, trips TripSource, reconciler TripReconciler, usage string, opts ...Option) (*Orchestrator, error) {
	if stations == nil {
		return nil, errors.New("orchestrator: nil station lister")
	}
	if collector == nil {
		return nil, errors.New("orchestrator: nil collector")
	}
	if trips == nil {
		return nil, errors.New("orchestrator: nil trip source")
	}
	if reconciler == nil {
		return nil, errors.New("orchestrator: nil reconciler")
	}
	o := &Orchestrator{
		stations:   stations,
		collector:  collector,
		trips:      trips,
		reconciler: reconciler,
		usage:      usage,
		attempts:   defaultDetailAttempts,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 10 * time.Second
			return b
		},
		now:    time.Now,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// RunCycle performs one full cycle. The returned error is non-nil only
// when the cycle was aborted; per-trip failures are recorded in the report.
func (o *Orchestrator) RunCycle(ctx context.Context) (*cycle.CycleReport, error) {
	report := &cycle.CycleReport{RunID: uuid.NewString(), StartedAt: o.now()}
	o.logger.Printf("sync: started run=%s", report.RunID)

	err := o.run(ctx, report)
	report.FinishedAt = o.now()
	if err != nil {
		report.Fatal = err.Error()
	}
	metrics.ObserveCycle(err, report.Duration(), report.FinishedAt)
	o.logger.Printf("sync: finished run=%s duration=%s stations=%d trips=%d synced=%d partial=%d failed=%d",
		report.RunID, report.Duration(), report.Stations, report.Trips,
		report.Count(cycle.TripSynced), report.Count(cycle.TripPartial), report.Count(cycle.TripFailed))

	reportPath := ""
	if o.sink != nil {
		path, sinkErr := o.sink.Write(ctx, report)
		if sinkErr != nil {
			o.logger.Printf("sync: report run=%s: %v", report.RunID, sinkErr)
		}
		reportPath = path
	}
	if err != nil {
		o.logger.Printf("sync: aborted run=%s: %v", report.RunID, err)
		o.alert(ctx, report, reportPath)
	}
	return report, err
}

func (o *Orchestrator) run(ctx context.Context, report *cycle.CycleReport) error {
	stations, err := o.stations.ListStations(ctx, o.usage)
	if err != nil {
		return fmt.Errorf("%w: %v", railway.ErrStationList, err)
	}
	if len(stations) == 0 {
		return fmt.Errorf("%w: no stations for usage %q", railway.ErrStationList, o.usage)
	}
	report.Stations = len(stations)

	refs := make([]timetable.StationRef, 0, len(stations))
	for _, station := range stations {
		refs = append(refs, timetable.StationRef{EvaNumber: strconv.FormatInt(station.EvaNumber, 10), Name: station.Name})
	}
	trips, err := o.collector.Collect(ctx, refs)
	if err != nil {
		return err
	}
	report.Trips = len(trips)

	total := len(trips)
	for idx, ref := range trips {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.logger.Printf("sync: %d / %d (%s)", idx+1, total, ref.LineName)
		outcome := o.syncTrip(ctx, ref)
		metrics.IncTripOutcome(string(outcome.Status))
		report.Outcomes = append(report.Outcomes, outcome)
	}
	return nil
}

// syncTrip never returns an error: every failure is folded into the outcome.
func (o *Orchestrator) syncTrip(ctx context.Context, ref timetable.TripRef) (outcome cycle.TripOutcome) {
	started := o.now()
	outcome = cycle.TripOutcome{TripID: ref.TripID, LineName: ref.LineName}
	defer func() {
		outcome.Duration = o.now().Sub(started)
	}()

	trip, err := o.fetchTrip(ctx, ref)
	if err != nil {
		outcome.Status = cycle.TripFailed
		outcome.Stage = stageDetail
		outcome.ErrorKind = string(transport.KindOf(err))
		outcome.Error = err.Error()
		o.logger.Printf("sync: trip=%s detail failed: %v", ref.TripID, err)
		return outcome
	}

	result, err := o.reconciler.ReconcileTrip(ctx, trip)
	outcome.TrainID = result.TrainID
	outcome.Cancelled = result.Cancelled
	outcome.Created = result.Created
	outcome.Updated = result.Updated
	outcome.Composition = string(result.Composition)
	if err == nil {
		outcome.Status = cycle.TripSynced
		return outcome
	}
	outcome.Status = cycle.TripFailed
	if result.TrainID != 0 {
		outcome.Status = cycle.TripPartial
	}
	outcome.Stage = string(railapp.StageOf(err))
	outcome.ErrorKind = string(transport.KindOf(err))
	outcome.Error = err.Error()
	o.logger.Printf("sync: trip=%s %s at %s: %v", ref.TripID, outcome.Status, outcome.Stage, err)
	return outcome
}

func (o *Orchestrator) fetchTrip(ctx context.Context, ref timetable.TripRef) (*hafas.Trip, error) {
	attempt := func() (*hafas.Trip, error) {
		trip, err := o.trips.Trip(ctx, ref.LineName, ref.TripID)
		if err != nil && !transport.IsTransient(err) {
			return nil, backoff.Permanent(err)
		}
		return trip, err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(o.newBackOff(), uint64(o.attempts-1)), ctx)
	onRetry := func(err error, wait time.Duration) {
		o.logger.Printf("sync: retrying trip=%s in %s: %v", ref.TripID, wait, err)
	}
	return backoff.RetryNotifyWithData(attempt, policy, onRetry)
}

func (o *Orchestrator) alert(ctx context.Context, report *cycle.CycleReport, reportPath string) {
	if o.notifier == nil {
		return
	}
	msg := notify.AlertMessage{
		RunID:     report.RunID,
		Reason:    report.Fatal,
		Stations:  report.Stations,
		Trips:     report.Trips,
		Failed:    report.Count(cycle.TripFailed),
		Duration:  report.Duration().String(),
		ReportURL: reportPath,
		Meta:      map[string]string{"usage": o.usage},
	}
	if err := o.notifier.Notify(ctx, msg); err != nil {
		o.logger.Printf("sync: notify run=%s: %v", report.RunID, err)
	}
}
