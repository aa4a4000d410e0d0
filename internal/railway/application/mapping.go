package application

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"trainsync/internal/coachsequence"
	"trainsync/internal/hafas"
	railway "trainsync/internal/railway/domain"
)

func evaNumber(stop *hafas.Stop) (int64, error) {
	eva, err := strconv.ParseInt(strings.TrimSpace(stop.ID), 10, 64)
	if err != nil || eva <= 0 {
		return 0, fmt.Errorf("stop %q has no eva number", stop.ID)
	}
	return eva, nil
}

// plannedStart is the planned departure at the origin.
func plannedStart(trip *hafas.Trip) *time.Time {
	if trip.PlannedDeparture != nil {
		return trip.PlannedDeparture
	}
	for _, stopover := range trip.Stopovers {
		if stopover.PlannedDeparture != nil {
			return stopover.PlannedDeparture
		}
	}
	return trip.Departure
}

func stopoverFromTrip(trainID int64, index int, stationID int64, source hafas.Stopover) railway.Stopover {
	return railway.Stopover{
		TrainID:          trainID,
		Index:            index,
		StationID:        stationID,
		PlannedArrival:   source.PlannedArrival,
		Arrival:          source.Arrival,
		ArrivalDelay:     source.ArrivalDelay,
		PlannedDeparture: source.PlannedDeparture,
		Departure:        source.Departure,
		DepartureDelay:   source.DepartureDelay,
		Platform:         source.Platform(),
		PlannedPlatform:  source.PlannedPlatform(),
		Cancelled:        source.Cancelled,
	}
}

// stopoverPatch holds the realtime fields that changed. A value that
// disappeared upstream is kept as stored.
func stopoverPatch(stored, fresh railway.Stopover) railway.StopoverPatch {
	var patch railway.StopoverPatch
	if fresh.Arrival != nil && !sameTime(stored.Arrival, fresh.Arrival) {
		patch.Arrival = fresh.Arrival
	}
	if fresh.ArrivalDelay != nil && !sameInt(stored.ArrivalDelay, fresh.ArrivalDelay) {
		patch.ArrivalDelay = fresh.ArrivalDelay
	}
	if fresh.Departure != nil && !sameTime(stored.Departure, fresh.Departure) {
		patch.Departure = fresh.Departure
	}
	if fresh.DepartureDelay != nil && !sameInt(stored.DepartureDelay, fresh.DepartureDelay) {
		patch.DepartureDelay = fresh.DepartureDelay
	}
	if fresh.Platform != "" && fresh.Platform != stored.Platform {
		platform := fresh.Platform
		patch.Platform = &platform
	}
	if fresh.Cancelled != stored.Cancelled {
		cancelled := fresh.Cancelled
		patch.Cancelled = &cancelled
	}
	return patch
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func coordinatesDiffer(stored, fresh railway.Station) bool {
	if fresh.Latitude == nil || fresh.Longitude == nil {
		return false
	}
	if stored.Latitude == nil || stored.Longitude == nil {
		return true
	}
	return *stored.Latitude != *fresh.Latitude || *stored.Longitude != *fresh.Longitude
}

func coachGroups(groups []coachsequence.CoachGroup) []railway.CoachGroup {
	out := make([]railway.CoachGroup, 0, len(groups))
	for _, group := range groups {
		coaches := make([]railway.Coach, 0, len(group.Coaches))
		for _, coach := range group.Coaches {
			coaches = append(coaches, railway.Coach{
				IdentificationNumber: coach.IdentificationNumber,
				UIC:                  coach.UIC,
				Type:                 coach.Type,
				Category:             coach.Category,
				Class:                coach.Class,
				Closed:               coach.Closed,
			})
		}
		out = append(out, railway.CoachGroup{
			Name:            group.Name,
			Number:          group.Number,
			OriginName:      group.OriginName,
			DestinationName: group.DestinationName,
			TrainName:       group.TrainName,
			Coaches:         coaches,
		})
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
