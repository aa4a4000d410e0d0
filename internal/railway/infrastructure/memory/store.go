package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	railway "trainsync/internal/railway/domain"
)

// Store is an in-memory backing store for dry runs and tests. It enforces
// the same natural keys and references as the REST API and records every
// write in order.
type Store struct {
	mu     sync.RWMutex
	nextID int64

	operators    map[int64]railway.Operator
	lines        map[int64]railway.Line
	stations     map[int64]railway.Station
	usage        map[int64]string
	trains       map[int64]railway.Train
	stopovers    map[int64]railway.Stopover
	remarks      map[int64]railway.Remark
	compositions map[int64]railway.Composition

	writes  []string
	fail    map[string]error
	listErr error
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		operators:    make(map[int64]railway.Operator),
		lines:        make(map[int64]railway.Line),
		stations:     make(map[int64]railway.Station),
		usage:        make(map[int64]string),
		trains:       make(map[int64]railway.Train),
		stopovers:    make(map[int64]railway.Stopover),
		remarks:      make(map[int64]railway.Remark),
		compositions: make(map[int64]railway.Composition),
		fail:         make(map[string]error),
	}
}

var _ railway.Store = (*Store)(nil)

// ErrConflict is returned when a create violates a natural key.
var ErrConflict = errors.New("memory store: natural key conflict")

// ErrMissingReference is returned when a write refers to an unknown id.
var ErrMissingReference = errors.New("memory store: missing reference")

// SeedStation registers a station under a usage without recording a write.
func (s *Store) SeedStation(usage string, station railway.Station) railway.Station {
	s.mu.Lock()
	defer s.mu.Unlock()
	station.ID = s.id()
	s.stations[station.ID] = station
	s.usage[station.ID] = usage
	return station
}

// FailWrite makes the next writes of "<action> <entity>" fail with err.
// A nil err clears the failure.
func (s *Store) FailWrite(action, entity string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := action + " " + entity
	if err == nil {
		delete(s.fail, key)
		return
	}
	s.fail[key] = err
}

// FailList makes ListStations fail with err.
func (s *Store) FailList(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErr = err
}

// Writes returns the recorded writes, e.g. "create train".
func (s *Store) Writes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.writes))
	copy(out, s.writes)
	return out
}

// ResetWrites clears the write log.
func (s *Store) ResetWrites() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = nil
}

// Count returns the number of stored entities of a kind.
func (s *Store) Count(entity string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch entity {
	case "operator":
		return len(s.operators)
	case "line":
		return len(s.lines)
	case "station":
		return len(s.stations)
	case "train":
		return len(s.trains)
	case "stopover":
		return len(s.stopovers)
	case "remark":
		return len(s.remarks)
	case "composition":
		return len(s.compositions)
	}
	return 0
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// record must be called with the write lock held.
func (s *Store) record(action, entity string) error {
	key := action + " " + entity
	s.writes = append(s.writes, key)
	if err := s.fail[key]; err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func (s *Store) ListStations(ctx context.Context, usage string) ([]railway.Station, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]railway.Station, 0, len(s.stations))
	for id, station := range s.stations {
		if usage != "" && s.usage[id] != usage {
			continue
		}
		out = append(out, station)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindOperator(ctx context.Context, name string) (*railway.Operator, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, op := range s.operators {
		if op.Name == name {
			found := op
			return &found, nil
		}
	}
	return nil, nil
}

func (s *Store) CreateOperator(ctx context.Context, operator railway.Operator) (*railway.Operator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("create", "operator"); err != nil {
		return nil, err
	}
	for _, existing := range s.operators {
		if existing.Name == operator.Name {
			return nil, ErrConflict
		}
	}
	operator.ID = s.id()
	s.operators[operator.ID] = operator
	return &operator, nil
}

func (s *Store) FindLine(ctx context.Context, operatorID int64, product, number string) (*railway.Line, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, line := range s.lines {
		if line.OperatorID == operatorID && line.Product == product && line.Number == number {
			found := line
			return &found, nil
		}
	}
	return nil, nil
}

func (s *Store) CreateLine(ctx context.Context, line railway.Line) (*railway.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("create", "line"); err != nil {
		return nil, err
	}
	if _, ok := s.operators[line.OperatorID]; !ok {
		return nil, ErrMissingReference
	}
	for _, existing := range s.lines {
		if existing.OperatorID == line.OperatorID && existing.Product == line.Product && existing.Number == line.Number {
			return nil, ErrConflict
		}
	}
	line.ID = s.id()
	s.lines[line.ID] = line
	return &line, nil
}

func (s *Store) FindStation(ctx context.Context, evaNumber int64) (*railway.Station, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, station := range s.stations {
		if station.EvaNumber == evaNumber {
			found := station
			return &found, nil
		}
	}
	return nil, nil
}

func (s *Store) CreateStation(ctx context.Context, station railway.Station) (*railway.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("create", "station"); err != nil {
		return nil, err
	}
	for _, existing := range s.stations {
		if existing.EvaNumber == station.EvaNumber {
			return nil, ErrConflict
		}
	}
	station.ID = s.id()
	s.stations[station.ID] = station
	return &station, nil
}

func (s *Store) UpdateStation(ctx context.Context, id int64, patch railway.StationPatch) (*railway.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("update", "station"); err != nil {
		return nil, err
	}
	station, ok := s.stations[id]
	if !ok {
		return nil, ErrMissingReference
	}
	if patch.Latitude != nil {
		station.Latitude = patch.Latitude
	}
	if patch.Longitude != nil {
		station.Longitude = patch.Longitude
	}
	s.stations[id] = station
	return &station, nil
}

func (s *Store) FindTrain(ctx context.Context, lineID int64, journeyID, serviceDate string) (*railway.Train, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, train := range s.trains {
		if train.LineID == lineID && train.JourneyID == journeyID && train.ServiceDate == serviceDate {
			found := train
			return &found, nil
		}
	}
	return nil, nil
}

func (s *Store) CreateTrain(ctx context.Context, train railway.Train) (*railway.Train, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("create", "train"); err != nil {
		return nil, err
	}
	if _, ok := s.lines[train.LineID]; !ok {
		return nil, ErrMissingReference
	}
	if _, ok := s.stations[train.OriginID]; !ok {
		return nil, ErrMissingReference
	}
	if _, ok := s.stations[train.DestinationID]; !ok {
		return nil, ErrMissingReference
	}
	for _, existing := range s.trains {
		if existing.LineID == train.LineID && existing.JourneyID == train.JourneyID && existing.ServiceDate == train.ServiceDate {
			return nil, ErrConflict
		}
	}
	train.ID = s.id()
	s.trains[train.ID] = train
	return &train, nil
}

func (s *Store) UpdateTrain(ctx context.Context, id int64, patch railway.TrainPatch) (*railway.Train, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("update", "train"); err != nil {
		return nil, err
	}
	train, ok := s.trains[id]
	if !ok {
		return nil, ErrMissingReference
	}
	if patch.Cancelled != nil {
		train.Cancelled = *patch.Cancelled
	}
	s.trains[id] = train
	return &train, nil
}

func (s *Store) ListStopovers(ctx context.Context, trainID int64) ([]railway.Stopover, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]railway.Stopover, 0)
	for _, stopover := range s.stopovers {
		if stopover.TrainID == trainID {
			out = append(out, stopover)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (s *Store) CreateStopover(ctx context.Context, stopover railway.Stopover) (*railway.Stopover, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("create", "stopover"); err != nil {
		return nil, err
	}
	if _, ok := s.trains[stopover.TrainID]; !ok {
		return nil, ErrMissingReference
	}
	if _, ok := s.stations[stopover.StationID]; !ok {
		return nil, ErrMissingReference
	}
	for _, existing := range s.stopovers {
		if existing.TrainID == stopover.TrainID && existing.Index == stopover.Index {
			return nil, ErrConflict
		}
	}
	stopover.ID = s.id()
	s.stopovers[stopover.ID] = stopover
	return &stopover, nil
}

func (s *Store) UpdateStopover(ctx context.Context, id int64, patch railway.StopoverPatch) (*railway.Stopover, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("update", "stopover"); err != nil {
		return nil, err
	}
	stopover, ok := s.stopovers[id]
	if !ok {
		return nil, ErrMissingReference
	}
	if patch.Arrival != nil {
		stopover.Arrival = patch.Arrival
	}
	if patch.ArrivalDelay != nil {
		stopover.ArrivalDelay = patch.ArrivalDelay
	}
	if patch.Departure != nil {
		stopover.Departure = patch.Departure
	}
	if patch.DepartureDelay != nil {
		stopover.DepartureDelay = patch.DepartureDelay
	}
	if patch.Platform != nil {
		stopover.Platform = *patch.Platform
	}
	if patch.Cancelled != nil {
		stopover.Cancelled = *patch.Cancelled
	}
	s.stopovers[id] = stopover
	return &stopover, nil
}

func (s *Store) ListRemarks(ctx context.Context, trainID int64) ([]railway.Remark, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]railway.Remark, 0)
	for _, remark := range s.remarks {
		if remark.TrainID == trainID {
			out = append(out, remark)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateRemark(ctx context.Context, remark railway.Remark) (*railway.Remark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("create", "remark"); err != nil {
		return nil, err
	}
	if _, ok := s.trains[remark.TrainID]; !ok {
		return nil, ErrMissingReference
	}
	for _, existing := range s.remarks {
		if existing.TrainID == remark.TrainID && existing.Text == remark.Text {
			return nil, ErrConflict
		}
	}
	remark.ID = s.id()
	s.remarks[remark.ID] = remark
	return &remark, nil
}

func (s *Store) FindComposition(ctx context.Context, trainID int64) (*railway.Composition, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, composition := range s.compositions {
		if composition.TrainID == trainID {
			found := composition
			return &found, nil
		}
	}
	return nil, nil
}

func (s *Store) CreateComposition(ctx context.Context, composition railway.Composition) (*railway.Composition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("create", "composition"); err != nil {
		return nil, err
	}
	if _, ok := s.trains[composition.TrainID]; !ok {
		return nil, ErrMissingReference
	}
	for _, existing := range s.compositions {
		if existing.TrainID == composition.TrainID {
			return nil, ErrConflict
		}
	}
	composition.ID = s.id()
	s.compositions[composition.ID] = composition
	return &composition, nil
}
