package railway

import (
	"errors"
	"time"
)

// ServiceDateLayout is the wire format of Train.ServiceDate.
const ServiceDateLayout = "2006-01-02"

// Operator runs lines. Name is unique.
type Operator struct {
	ID   int64
	Name string
}

// Validate checks operator invariants.
func (o Operator) Validate() error {
	if o.Name == "" {
		return errors.New("operator: empty name")
	}
	return nil
}

// Line is unique by (operator, product, number).
type Line struct {
	ID         int64
	OperatorID int64
	Product    string
	Number     string
	Name       string
}

// Validate checks line invariants.
func (l Line) Validate() error {
	if l.OperatorID == 0 {
		return errors.New("line: missing operator")
	}
	if l.Product == "" {
		return errors.New("line: empty product")
	}
	if l.Number == "" {
		return errors.New("line: empty number")
	}
	return nil
}

// Station is unique by EvaNumber.
type Station struct {
	ID        int64
	EvaNumber int64
	Name      string
	Latitude  *float64
	Longitude *float64
}

// Validate checks station invariants.
func (s Station) Validate() error {
	if s.EvaNumber <= 0 {
		return errors.New("station: invalid eva number")
	}
	if s.Name == "" {
		return errors.New("station: empty name")
	}
	return nil
}

// Train is one scheduled run, unique by (line, journey id, service date).
type Train struct {
	ID            int64
	LineID        int64
	JourneyID     string
	ServiceDate   string
	Cancelled     bool
	OriginID      int64
	DestinationID int64
}

// Validate checks train invariants.
func (t Train) Validate() error {
	if t.LineID == 0 {
		return errors.New("train: missing line")
	}
	if t.JourneyID == "" {
		return errors.New("train: empty journey id")
	}
	if _, err := time.Parse(ServiceDateLayout, t.ServiceDate); err != nil {
		return errors.New("train: invalid service date")
	}
	if t.OriginID == 0 || t.DestinationID == 0 {
		return errors.New("train: missing origin or destination")
	}
	return nil
}

// Stopover is unique by (train, index).
type Stopover struct {
	ID               int64
	TrainID          int64
	Index            int
	StationID        int64
	PlannedArrival   *time.Time
	Arrival          *time.Time
	ArrivalDelay     *int
	PlannedDeparture *time.Time
	Departure        *time.Time
	DepartureDelay   *int
	Platform         string
	PlannedPlatform  string
	Cancelled        bool
}

// Validate checks stopover invariants.
func (s Stopover) Validate() error {
	if s.TrainID == 0 {
		return errors.New("stopover: missing train")
	}
	if s.StationID == 0 {
		return errors.New("stopover: missing station")
	}
	if s.Index < 0 {
		return errors.New("stopover: negative index")
	}
	return nil
}

// Remark is unique by (train, text).
type Remark struct {
	ID      int64
	TrainID int64
	Text    string
	Type    string
	Code    string
	Summary string
}

// Validate checks remark invariants.
func (r Remark) Validate() error {
	if r.TrainID == 0 {
		return errors.New("remark: missing train")
	}
	if r.Text == "" {
		return errors.New("remark: empty text")
	}
	return nil
}

// Coach is one vehicle of a coach group.
type Coach struct {
	IdentificationNumber string `json:"identification_number"`
	UIC                  string `json:"uic"`
	Type                 string `json:"type"`
	Category             string `json:"category"`
	Class                int    `json:"class"`
	Closed               bool   `json:"closed"`
}

// CoachGroup is a coupled unit of coaches.
type CoachGroup struct {
	Name            string  `json:"name"`
	Number          string  `json:"number"`
	OriginName      string  `json:"origin_name"`
	DestinationName string  `json:"destination_name"`
	TrainName       string  `json:"train_name"`
	Coaches         []Coach `json:"coaches"`
}

// Composition is the coach sequence of a train, one per train and never
// updated.
type Composition struct {
	ID        int64
	TrainID   int64
	StationID int64
	Departure time.Time
	Groups    []CoachGroup
}

// Validate checks composition invariants.
func (c Composition) Validate() error {
	if c.TrainID == 0 {
		return errors.New("composition: missing train")
	}
	if len(c.Groups) == 0 {
		return errors.New("composition: no groups")
	}
	return nil
}

// ServiceDate returns the calendar day of t in loc.
func ServiceDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(ServiceDateLayout)
}
