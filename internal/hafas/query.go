package hafas

import (
	"net/url"
	"strconv"
)

// BoardQuery holds the fixed parameters of every board request.
type BoardQuery struct {
	When            string
	Duration        int
	Language        string
	Bus             bool
	Ferry           bool
	Subway          bool
	Tram            bool
	Taxi            bool
	Suburban        bool
	Regional        bool
	RegionalExp     bool
	National        bool
	NationalExpress bool
	Stopovers       bool
	Pretty          bool
	Remarks         bool
	Polyline        bool
}

// Values encodes the query for a departures or arrivals request.
func (q BoardQuery) Values() url.Values {
	v := url.Values{}
	if q.When != "" {
		v.Set("when", q.When)
	}
	if q.Duration > 0 {
		v.Set("duration", strconv.Itoa(q.Duration))
	}
	if q.Language != "" {
		v.Set("language", q.Language)
	}
	v.Set("bus", strconv.FormatBool(q.Bus))
	v.Set("ferry", strconv.FormatBool(q.Ferry))
	v.Set("subway", strconv.FormatBool(q.Subway))
	v.Set("tram", strconv.FormatBool(q.Tram))
	v.Set("taxi", strconv.FormatBool(q.Taxi))
	v.Set("suburban", strconv.FormatBool(q.Suburban))
	v.Set("regional", strconv.FormatBool(q.Regional))
	v.Set("regionalExp", strconv.FormatBool(q.RegionalExp))
	v.Set("national", strconv.FormatBool(q.National))
	v.Set("nationalExpress", strconv.FormatBool(q.NationalExpress))
	v.Set("stopovers", strconv.FormatBool(q.Stopovers))
	v.Set("pretty", strconv.FormatBool(q.Pretty))
	v.Set("remarks", strconv.FormatBool(q.Remarks))
	v.Set("polyline", strconv.FormatBool(q.Polyline))
	return v
}

func (q BoardQuery) tripValues(lineName string) url.Values {
	v := url.Values{}
	if lineName != "" {
		v.Set("lineName", lineName)
	}
	// stopovers and remarks are always needed for reconciliation
	v.Set("stopovers", "true")
	v.Set("remarks", "true")
	v.Set("polyline", strconv.FormatBool(q.Polyline))
	if q.Language != "" {
		v.Set("language", q.Language)
	}
	return v
}
