package application

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"trainsync/internal/hafas"
	railapp "trainsync/internal/railway/application"
	railway "trainsync/internal/railway/domain"
	"trainsync/internal/railway/infrastructure/memory"
	cycle "trainsync/internal/sync/domain"
	"trainsync/internal/sync/notify"
	"trainsync/internal/timetable"
	"trainsync/internal/transport"
)

type stubBoards struct {
	boards map[string][]hafas.BoardEntry
}

func (s *stubBoards) Departures(ctx context.Context, stationID string) ([]hafas.BoardEntry, error) {
	return s.boards[stationID], nil
}

func (s *stubBoards) Arrivals(ctx context.Context, stationID string) ([]hafas.BoardEntry, error) {
	return []hafas.BoardEntry{}, nil
}

type stubTrips struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
}

func (s *stubTrips) Trip(ctx context.Context, lineName, tripID string) (*hafas.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[tripID]++
	if err := s.fail[tripID]; err != nil {
		return nil, err
	}
	return tripFixture(tripID, lineName), nil
}

type stubNotifier struct {
	messages []notify.AlertMessage
}

func (s *stubNotifier) Notify(ctx context.Context, msg notify.AlertMessage) error {
	s.messages = append(s.messages, msg)
	return nil
}

type stubSink struct {
	reports []*cycle.CycleReport
}

func (s *stubSink) Write(ctx context.Context, report *cycle.CycleReport) (string, error) {
	s.reports = append(s.reports, report)
	return "/tmp/report.xlsx", nil
}

func tripFixture(tripID, lineName string) *hafas.Trip {
	dep := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	origin := &hafas.Stop{ID: "8000105", Name: "Frankfurt(Main)Hbf"}
	destination := &hafas.Stop{ID: "8011160", Name: "Berlin Hbf"}
	return &hafas.Trip{
		ID:               tripID,
		Origin:           origin,
		Destination:      destination,
		PlannedDeparture: &dep,
		Line: &hafas.Line{
			FahrtNr: tripID, Name: lineName, ProductName: "ICE",
			Operator: &hafas.Operator{Name: "DB Fernverkehr AG"},
		},
		Stopovers: []hafas.Stopover{{Stop: origin, PlannedDeparture: &dep}, {Stop: destination}},
	}
}

func board(ids ...string) []hafas.BoardEntry {
	out := make([]hafas.BoardEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, hafas.BoardEntry{TripID: id, Line: &hafas.Line{Name: "ICE " + id}})
	}
	return out
}

type fixture struct {
	store    *memory.Store
	trips    *stubTrips
	notifier *stubNotifier
	sink     *stubSink
	orch     *Orchestrator
}

func newFixture(t *testing.T, boards map[string][]hafas.BoardEntry) *fixture {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	store := memory.NewStore()
	store.SeedStation("FV", railway.Station{EvaNumber: 8000105, Name: "Frankfurt(Main)Hbf"})
	store.SeedStation("FV", railway.Station{EvaNumber: 8011160, Name: "Berlin Hbf"})

	agg, err := timetable.NewAggregator(&stubBoards{boards: boards}, logger)
	if err != nil {
		t.Fatalf("aggregator: %v", err)
	}
	reconciler, err := railapp.NewReconciler(store, railapp.WithLogger(logger))
	if err != nil {
		t.Fatalf("reconciler: %v", err)
	}
	f := &fixture{store: store, trips: &stubTrips{}, notifier: &stubNotifier{}, sink: &stubSink{}}
	f.orch, err = NewOrchestrator(store, agg, f.trips, reconciler, "FV",
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
		WithNotifier(f.notifier),
		WithReportSink(f.sink),
		WithLogger(logger))
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	return f
}

func TestRunCycleFetchesEachTripOnce(t *testing.T) {
	f := newFixture(t, map[string][]hafas.BoardEntry{
		"8000105": board("100", "200"),
		"8011160": board("200", "300"),
	})

	report, err := f.orch.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Stations != 2 || report.Trips != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
	for _, id := range []string{"100", "200", "300"} {
		if f.trips.calls[id] != 1 {
			t.Fatalf("trip %s fetched %d times", id, f.trips.calls[id])
		}
	}
	if f.store.Count("train") != 3 {
		t.Fatalf("expected 3 trains, got %d", f.store.Count("train"))
	}
	if report.Count(cycle.TripSynced) != 3 {
		t.Fatalf("expected 3 synced trips, got %+v", report.Outcomes)
	}
	if len(f.sink.reports) != 1 || report.RunID == "" {
		t.Fatalf("expected report written with run id")
	}
}

func TestRunCycleContainsTripFailure(t *testing.T) {
	f := newFixture(t, map[string][]hafas.BoardEntry{"8000105": board("1", "2", "3")})
	f.trips.fail = map[string]error{
		"2": &transport.FetchError{Kind: transport.KindTimeout, Op: "hafas.trip"},
	}

	report, err := f.orch.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(report.Outcomes))
	}
	if report.Outcomes[0].Status != cycle.TripSynced || report.Outcomes[2].Status != cycle.TripSynced {
		t.Fatalf("trips 1 and 3 should sync: %+v", report.Outcomes)
	}
	failed := report.Outcomes[1]
	if failed.Status != cycle.TripFailed || failed.Stage != stageDetail || failed.ErrorKind != string(transport.KindTimeout) {
		t.Fatalf("unexpected failed outcome %+v", failed)
	}
	if f.trips.calls["2"] != 2 {
		t.Fatalf("expected transient failure tried twice, got %d", f.trips.calls["2"])
	}
	if f.store.Count("train") != 2 {
		t.Fatalf("expected 2 trains, got %d", f.store.Count("train"))
	}
	if len(f.notifier.messages) != 0 {
		t.Fatalf("trip failures must not alert")
	}
}

func TestRunCycleDoesNotRetryRejectedDetail(t *testing.T) {
	f := newFixture(t, map[string][]hafas.BoardEntry{"8000105": board("1")})
	f.trips.fail = map[string]error{
		"1": &transport.FetchError{Kind: transport.KindRejected, Op: "hafas.trip", Status: 404},
	}
	report, err := f.orch.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if f.trips.calls["1"] != 1 {
		t.Fatalf("expected a single attempt, got %d", f.trips.calls["1"])
	}
	if report.Count(cycle.TripFailed) != 1 {
		t.Fatalf("expected failed trip")
	}
}

func TestRunCycleMarksPartialTrip(t *testing.T) {
	f := newFixture(t, map[string][]hafas.BoardEntry{"8000105": board("1")})
	f.store.FailWrite("create", "stopover", errors.New("http 400"))

	report, err := f.orch.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	outcome := report.Outcomes[0]
	if outcome.Status != cycle.TripPartial || outcome.Stage != string(railapp.StageStopovers) {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
}

func TestRunCycleAbortsWithoutStations(t *testing.T) {
	f := newFixture(t, nil)
	f.store.FailList(errors.New("http 503"))

	report, err := f.orch.RunCycle(context.Background())
	if !errors.Is(err, railway.ErrStationList) {
		t.Fatalf("expected station list error, got %v", err)
	}
	if report.Fatal == "" || len(report.Outcomes) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(f.notifier.messages) != 1 || f.notifier.messages[0].ReportURL != "/tmp/report.xlsx" {
		t.Fatalf("expected one alert with report path, got %+v", f.notifier.messages)
	}
}

func TestRunCycleTwiceIsIdempotent(t *testing.T) {
	f := newFixture(t, map[string][]hafas.BoardEntry{"8000105": board("1", "2")})
	if _, err := f.orch.RunCycle(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	f.store.ResetWrites()
	report, err := f.orch.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if writes := f.store.Writes(); len(writes) != 0 {
		t.Fatalf("expected no writes, got %v", writes)
	}
	if report.Created() != 0 {
		t.Fatalf("expected zero creates, got %d", report.Created())
	}
}
