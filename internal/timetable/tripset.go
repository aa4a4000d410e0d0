package timetable

// TripSet holds the trip ids already seen in one cycle.
type TripSet map[string]struct{}

// NewTripSet returns an empty set.
func NewTripSet() TripSet {
	return make(TripSet)
}

// Add inserts id and reports whether it was new.
func (s TripSet) Add(id string) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Has reports whether id was seen.
func (s TripSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of distinct ids.
func (s TripSet) Len() int {
	return len(s)
}
