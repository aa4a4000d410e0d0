package rest

import (
	"time"

	railway "trainsync/internal/railway/domain"
)

type page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

type operatorDTO struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
}

type lineDTO struct {
	ID       int64  `json:"id,omitempty"`
	Operator int64  `json:"operator"`
	Product  string `json:"product"`
	Number   string `json:"number"`
	Name     string `json:"name"`
}

type stationDTO struct {
	ID        int64    `json:"id,omitempty"`
	EvaNumber int64    `json:"eva_number"`
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type trainDTO struct {
	ID          int64  `json:"id,omitempty"`
	Line        int64  `json:"line"`
	JourneyID   string `json:"journey_id"`
	ServiceDate string `json:"service_date"`
	Cancelled   bool   `json:"cancelled"`
	Origin      int64  `json:"origin"`
	Destination int64  `json:"destination"`
}

type stopoverDTO struct {
	ID               int64      `json:"id,omitempty"`
	Train            int64      `json:"train"`
	Index            int        `json:"index"`
	Station          int64      `json:"station"`
	PlannedArrival   *time.Time `json:"planned_arrival"`
	Arrival          *time.Time `json:"arrival"`
	ArrivalDelay     *int       `json:"arrival_delay"`
	PlannedDeparture *time.Time `json:"planned_departure"`
	Departure        *time.Time `json:"departure"`
	DepartureDelay   *int       `json:"departure_delay"`
	Platform         string     `json:"platform"`
	PlannedPlatform  string     `json:"planned_platform"`
	Cancelled        bool       `json:"cancelled"`
}

type remarkDTO struct {
	ID      int64  `json:"id,omitempty"`
	Train   int64  `json:"train"`
	Text    string `json:"text"`
	Type    string `json:"type"`
	Code    string `json:"code"`
	Summary string `json:"summary"`
}

type compositionDTO struct {
	ID        int64                `json:"id,omitempty"`
	Train     int64                `json:"train"`
	Station   int64                `json:"station"`
	Departure time.Time            `json:"departure"`
	Groups    []railway.CoachGroup `json:"groups"`
}

func (d operatorDTO) domain() *railway.Operator {
	return &railway.Operator{ID: d.ID, Name: d.Name}
}

func (d lineDTO) domain() *railway.Line {
	return &railway.Line{ID: d.ID, OperatorID: d.Operator, Product: d.Product, Number: d.Number, Name: d.Name}
}

func (d stationDTO) domain() *railway.Station {
	return &railway.Station{ID: d.ID, EvaNumber: d.EvaNumber, Name: d.Name, Latitude: d.Latitude, Longitude: d.Longitude}
}

func (d trainDTO) domain() *railway.Train {
	return &railway.Train{
		ID:            d.ID,
		LineID:        d.Line,
		JourneyID:     d.JourneyID,
		ServiceDate:   d.ServiceDate,
		Cancelled:     d.Cancelled,
		OriginID:      d.Origin,
		DestinationID: d.Destination,
	}
}

func (d stopoverDTO) domain() *railway.Stopover {
	return &railway.Stopover{
		ID:               d.ID,
		TrainID:          d.Train,
		Index:            d.Index,
		StationID:        d.Station,
		PlannedArrival:   d.PlannedArrival,
		Arrival:          d.Arrival,
		ArrivalDelay:     d.ArrivalDelay,
		PlannedDeparture: d.PlannedDeparture,
		Departure:        d.Departure,
		DepartureDelay:   d.DepartureDelay,
		Platform:         d.Platform,
		PlannedPlatform:  d.PlannedPlatform,
		Cancelled:        d.Cancelled,
	}
}

func (d remarkDTO) domain() *railway.Remark {
	return &railway.Remark{ID: d.ID, TrainID: d.Train, Text: d.Text, Type: d.Type, Code: d.Code, Summary: d.Summary}
}

func (d compositionDTO) domain() *railway.Composition {
	return &railway.Composition{ID: d.ID, TrainID: d.Train, StationID: d.Station, Departure: d.Departure, Groups: d.Groups}
}

func stopoverFromDomain(s railway.Stopover) stopoverDTO {
	return stopoverDTO{
		Train:            s.TrainID,
		Index:            s.Index,
		Station:          s.StationID,
		PlannedArrival:   s.PlannedArrival,
		Arrival:          s.Arrival,
		ArrivalDelay:     s.ArrivalDelay,
		PlannedDeparture: s.PlannedDeparture,
		Departure:        s.Departure,
		DepartureDelay:   s.DepartureDelay,
		Platform:         s.Platform,
		PlannedPlatform:  s.PlannedPlatform,
		Cancelled:        s.Cancelled,
	}
}
