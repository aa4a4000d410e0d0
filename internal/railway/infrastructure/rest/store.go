package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"trainsync/internal/auth"
	"trainsync/internal/observability/metrics"
	railway "trainsync/internal/railway/domain"
	"trainsync/internal/transport"
)

const maxPages = 1000

// Store is the backing store reached over its paginated REST API.
type Store struct {
	doer    transport.Doer
	baseURL string
	creds   auth.Credentials
	logger  *log.Logger
}

// Option configures the store.
type Option func(*Store)

// WithCredentials authenticates every request.
func WithCredentials(creds auth.Credentials) Option {
	return func(s *Store) {
		s.creds = creds
	}
}

// WithLogger sets the logger for write outcomes.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore constructs a REST store.
func NewStore(doer transport.Doer, baseURL string, opts ...Option) (*Store, error) {
	if doer == nil {
		return nil, errors.New("rest: nil doer")
	}
	if baseURL == "" {
		return nil, errors.New("rest: empty base url")
	}
	s := &Store{doer: doer, baseURL: strings.TrimRight(baseURL, "/"), logger: log.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

var _ railway.Store = (*Store)(nil)

// ListStations follows every next link and returns all stations of a usage.
func (s *Store) ListStations(ctx context.Context, usage string) ([]railway.Station, error) {
	params := url.Values{}
	if usage != "" {
		params.Set("usage", usage)
	}
	items, err := list[stationDTO](ctx, s, "stations", params)
	if err != nil {
		return nil, err
	}
	out := make([]railway.Station, 0, len(items))
	for _, item := range items {
		out = append(out, *item.domain())
	}
	return out, nil
}

func (s *Store) FindOperator(ctx context.Context, name string) (*railway.Operator, error) {
	item, ok, err := first[operatorDTO](ctx, s, "operators", url.Values{"name": {name}})
	if err != nil || !ok {
		return nil, err
	}
	return item.domain(), nil
}

func (s *Store) CreateOperator(ctx context.Context, operator railway.Operator) (*railway.Operator, error) {
	created, err := create(ctx, s, "operator", "operators", operatorDTO{Name: operator.Name})
	if err != nil {
		return nil, err
	}
	return created.domain(), nil
}

func (s *Store) FindLine(ctx context.Context, operatorID int64, product, number string) (*railway.Line, error) {
	params := url.Values{
		"operator": {strconv.FormatInt(operatorID, 10)},
		"product":  {product},
		"number":   {number},
	}
	item, ok, err := first[lineDTO](ctx, s, "lines", params)
	if err != nil || !ok {
		return nil, err
	}
	return item.domain(), nil
}

func (s *Store) CreateLine(ctx context.Context, line railway.Line) (*railway.Line, error) {
	body := lineDTO{Operator: line.OperatorID, Product: line.Product, Number: line.Number, Name: line.Name}
	created, err := create(ctx, s, "line", "lines", body)
	if err != nil {
		return nil, err
	}
	return created.domain(), nil
}

func (s *Store) FindStation(ctx context.Context, evaNumber int64) (*railway.Station, error) {
	item, ok, err := first[stationDTO](ctx, s, "stations", url.Values{"eva_number": {strconv.FormatInt(evaNumber, 10)}})
	if err != nil || !ok {
		return nil, err
	}
	return item.domain(), nil
}

func (s *Store) CreateStation(ctx context.Context, station railway.Station) (*railway.Station, error) {
	body := stationDTO{EvaNumber: station.EvaNumber, Name: station.Name, Latitude: station.Latitude, Longitude: station.Longitude}
	created, err := create(ctx, s, "station", "stations", body)
	if err != nil {
		return nil, err
	}
	return created.domain(), nil
}

func (s *Store) UpdateStation(ctx context.Context, id int64, patch railway.StationPatch) (*railway.Station, error) {
	body := map[string]any{}
	if patch.Latitude != nil {
		body["latitude"] = *patch.Latitude
	}
	if patch.Longitude != nil {
		body["longitude"] = *patch.Longitude
	}
	updated, err := update[stationDTO](ctx, s, "station", "stations", id, body)
	if err != nil {
		return nil, err
	}
	return updated.domain(), nil
}

func (s *Store) FindTrain(ctx context.Context, lineID int64, journeyID, serviceDate string) (*railway.Train, error) {
	params := url.Values{
		"line":         {strconv.FormatInt(lineID, 10)},
		"journey_id":   {journeyID},
		"service_date": {serviceDate},
	}
	item, ok, err := first[trainDTO](ctx, s, "trains", params)
	if err != nil || !ok {
		return nil, err
	}
	return item.domain(), nil
}

func (s *Store) CreateTrain(ctx context.Context, train railway.Train) (*railway.Train, error) {
	body := trainDTO{
		Line:        train.LineID,
		JourneyID:   train.JourneyID,
		ServiceDate: train.ServiceDate,
		Cancelled:   train.Cancelled,
		Origin:      train.OriginID,
		Destination: train.DestinationID,
	}
	created, err := create(ctx, s, "train", "trains", body)
	if err != nil {
		return nil, err
	}
	return created.domain(), nil
}

func (s *Store) UpdateTrain(ctx context.Context, id int64, patch railway.TrainPatch) (*railway.Train, error) {
	body := map[string]any{}
	if patch.Cancelled != nil {
		body["cancelled"] = *patch.Cancelled
	}
	updated, err := update[trainDTO](ctx, s, "train", "trains", id, body)
	if err != nil {
		return nil, err
	}
	return updated.domain(), nil
}

func (s *Store) ListStopovers(ctx context.Context, trainID int64) ([]railway.Stopover, error) {
	items, err := list[stopoverDTO](ctx, s, "stopovers", url.Values{"train": {strconv.FormatInt(trainID, 10)}})
	if err != nil {
		return nil, err
	}
	out := make([]railway.Stopover, 0, len(items))
	for _, item := range items {
		out = append(out, *item.domain())
	}
	return out, nil
}

func (s *Store) CreateStopover(ctx context.Context, stopover railway.Stopover) (*railway.Stopover, error) {
	created, err := create(ctx, s, "stopover", "stopovers", stopoverFromDomain(stopover))
	if err != nil {
		return nil, err
	}
	return created.domain(), nil
}

func (s *Store) UpdateStopover(ctx context.Context, id int64, patch railway.StopoverPatch) (*railway.Stopover, error) {
	body := map[string]any{}
	if patch.Arrival != nil {
		body["arrival"] = *patch.Arrival
	}
	if patch.ArrivalDelay != nil {
		body["arrival_delay"] = *patch.ArrivalDelay
	}
	if patch.Departure != nil {
		body["departure"] = *patch.Departure
	}
	if patch.DepartureDelay != nil {
		body["departure_delay"] = *patch.DepartureDelay
	}
	if patch.Platform != nil {
		body["platform"] = *patch.Platform
	}
	if patch.Cancelled != nil {
		body["cancelled"] = *patch.Cancelled
	}
	updated, err := update[stopoverDTO](ctx, s, "stopover", "stopovers", id, body)
	if err != nil {
		return nil, err
	}
	return updated.domain(), nil
}

func (s *Store) ListRemarks(ctx context.Context, trainID int64) ([]railway.Remark, error) {
	items, err := list[remarkDTO](ctx, s, "remarks", url.Values{"train": {strconv.FormatInt(trainID, 10)}})
	if err != nil {
		return nil, err
	}
	out := make([]railway.Remark, 0, len(items))
	for _, item := range items {
		out = append(out, *item.domain())
	}
	return out, nil
}

func (s *Store) CreateRemark(ctx context.Context, remark railway.Remark) (*railway.Remark, error) {
	body := remarkDTO{Train: remark.TrainID, Text: remark.Text, Type: remark.Type, Code: remark.Code, Summary: remark.Summary}
	created, err := create(ctx, s, "remark", "remarks", body)
	if err != nil {
		return nil, err
	}
	return created.domain(), nil
}

func (s *Store) FindComposition(ctx context.Context, trainID int64) (*railway.Composition, error) {
	item, ok, err := first[compositionDTO](ctx, s, "compositions", url.Values{"train": {strconv.FormatInt(trainID, 10)}})
	if err != nil || !ok {
		return nil, err
	}
	return item.domain(), nil
}

func (s *Store) CreateComposition(ctx context.Context, composition railway.Composition) (*railway.Composition, error) {
	body := compositionDTO{
		Train:     composition.TrainID,
		Station:   composition.StationID,
		Departure: composition.Departure.UTC(),
		Groups:    composition.Groups,
	}
	created, err := create(ctx, s, "composition", "compositions", body)
	if err != nil {
		return nil, err
	}
	return created.domain(), nil
}

func (s *Store) collectionURL(collection string) string {
	return fmt.Sprintf("%s/%s/", s.baseURL, collection)
}

func (s *Store) itemURL(collection string, id int64) string {
	return fmt.Sprintf("%s/%s/%d/", s.baseURL, collection, id)
}

// list follows next links until exhausted. Links already visited end the walk.
func list[T any](ctx context.Context, s *Store, collection string, params url.Values) ([]T, error) {
	op := "store.list_" + collection
	req := transport.Request{URL: s.collectionURL(collection), Params: params}
	visited := map[string]bool{}
	var out []T
	for i := 0; i < maxPages; i++ {
		var resp page[T]
		if err := s.doJSON(ctx, op, req, &resp); err != nil {
			return nil, err
		}
		out = append(out, resp.Results...)
		if resp.Next == nil || *resp.Next == "" || visited[*resp.Next] {
			return out, nil
		}
		visited[*resp.Next] = true
		// next already carries the filter and page parameters.
		req = transport.Request{URL: *resp.Next}
	}
	return nil, fmt.Errorf("rest: %s exceeded %d pages", collection, maxPages)
}

func first[T any](ctx context.Context, s *Store, collection string, params url.Values) (T, bool, error) {
	var zero T
	var resp page[T]
	req := transport.Request{URL: s.collectionURL(collection), Params: params}
	if err := s.doJSON(ctx, "store.find_"+collection, req, &resp); err != nil {
		return zero, false, err
	}
	if len(resp.Results) == 0 {
		return zero, false, nil
	}
	return resp.Results[0], true, nil
}

func create[T any](ctx context.Context, s *Store, entity, collection string, body T) (T, error) {
	var out T
	err := s.write(ctx, entity, metrics.ActionCreate, http.MethodPost, s.collectionURL(collection), body, &out)
	return out, err
}

func update[T any](ctx context.Context, s *Store, entity, collection string, id int64, body map[string]any) (T, error) {
	var out T
	if id == 0 {
		return out, fmt.Errorf("rest: update %s without id", entity)
	}
	err := s.write(ctx, entity, metrics.ActionUpdate, http.MethodPatch, s.itemURL(collection, id), body, &out)
	return out, err
}

func (s *Store) write(ctx context.Context, entity, action, method, target string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	op := fmt.Sprintf("store.%s_%s", action, entity)
	err = s.doJSON(ctx, op, transport.Request{Method: method, URL: target, Body: payload}, out)
	metrics.IncStoreWrite(entity, action, err)
	if err != nil {
		s.logger.Printf("store: %s %s failed: %v", action, entity, err)
		return err
	}
	s.logger.Printf("store: %s %s ok", action, entity)
	return nil
}

func (s *Store) doJSON(ctx context.Context, op string, req transport.Request, out any) error {
	req.Header = http.Header{}
	if s.creds != nil {
		if err := s.creds.Apply(req.Header); err != nil {
			return err
		}
	}
	resp, err := s.doer.Do(ctx, req)
	if err != nil {
		return transport.Classify(op, req.URL, err)
	}
	if !resp.OK() {
		return transport.Rejected(op, resp)
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return transport.Shape(op, resp.URL, err)
	}
	return nil
}
