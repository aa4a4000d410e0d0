package hafas

import "time"

// Location is a WGS84 coordinate.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Stop is a station or stop as reported by the realtime service.
type Stop struct {
	Type     string    `json:"type"`
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Location *Location `json:"location"`
}

// Operator runs a line.
type Operator struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Line describes the service a trip belongs to.
type Line struct {
	Type        string    `json:"type"`
	ID          string    `json:"id"`
	FahrtNr     string    `json:"fahrtNr"`
	Name        string    `json:"name"`
	Public      bool      `json:"public"`
	AdminCode   string    `json:"adminCode"`
	ProductName string    `json:"productName"`
	Mode        string    `json:"mode"`
	Product     string    `json:"product"`
	Operator    *Operator `json:"operator"`
}

// Remark is a free-text hint or warning attached to a trip or stop.
type Remark struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Text    string `json:"text"`
	Summary string `json:"summary"`
}

// BoardEntry is one departure or arrival at a station.
type BoardEntry struct {
	TripID          string     `json:"tripId"`
	Stop            *Stop      `json:"stop"`
	When            *time.Time `json:"when"`
	PlannedWhen     *time.Time `json:"plannedWhen"`
	Delay           *int       `json:"delay"`
	Platform        string     `json:"platform"`
	PlannedPlatform string     `json:"plannedPlatform"`
	Direction       string     `json:"direction"`
	Line            *Line      `json:"line"`
	Remarks         []Remark   `json:"remarks"`
	Cancelled       bool       `json:"cancelled"`
}

// Stopover is one call of a trip at a stop.
type Stopover struct {
	Stop                     *Stop      `json:"stop"`
	Arrival                  *time.Time `json:"arrival"`
	PlannedArrival           *time.Time `json:"plannedArrival"`
	ArrivalDelay             *int       `json:"arrivalDelay"`
	ArrivalPlatform          string     `json:"arrivalPlatform"`
	PlannedArrivalPlatform   string     `json:"plannedArrivalPlatform"`
	Departure                *time.Time `json:"departure"`
	PlannedDeparture         *time.Time `json:"plannedDeparture"`
	DepartureDelay           *int       `json:"departureDelay"`
	DeparturePlatform        string     `json:"departurePlatform"`
	PlannedDeparturePlatform string     `json:"plannedDeparturePlatform"`
	Cancelled                bool       `json:"cancelled"`
	Remarks                  []Remark   `json:"remarks"`
}

// Trip is the full structure of one scheduled run.
type Trip struct {
	ID               string     `json:"id"`
	Origin           *Stop      `json:"origin"`
	Destination      *Stop      `json:"destination"`
	Departure        *time.Time `json:"departure"`
	PlannedDeparture *time.Time `json:"plannedDeparture"`
	Arrival          *time.Time `json:"arrival"`
	PlannedArrival   *time.Time `json:"plannedArrival"`
	Line             *Line      `json:"line"`
	Direction        string     `json:"direction"`
	Cancelled        bool       `json:"cancelled"`
	Stopovers        []Stopover `json:"stopovers"`
	Remarks          []Remark   `json:"remarks"`
}

// Platform returns the best known platform of a stopover.
func (s Stopover) Platform() string {
	if s.DeparturePlatform != "" {
		return s.DeparturePlatform
	}
	return s.ArrivalPlatform
}

// PlannedPlatform returns the best known planned platform of a stopover.
func (s Stopover) PlannedPlatform() string {
	if s.PlannedDeparturePlatform != "" {
		return s.PlannedDeparturePlatform
	}
	return s.PlannedArrivalPlatform
}
