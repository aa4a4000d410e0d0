package timetable

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"

	"trainsync/internal/hafas"
)

type stubBoards struct {
	departures map[string][]hafas.BoardEntry
	arrivals   map[string][]hafas.BoardEntry
	failArr    map[string]bool
}

func (s *stubBoards) Departures(ctx context.Context, stationID string) ([]hafas.BoardEntry, error) {
	return s.departures[stationID], nil
}

func (s *stubBoards) Arrivals(ctx context.Context, stationID string) ([]hafas.BoardEntry, error) {
	if s.failArr[stationID] {
		return []hafas.BoardEntry{}, errors.New("boom")
	}
	return s.arrivals[stationID], nil
}

func entry(tripID, line string) hafas.BoardEntry {
	return hafas.BoardEntry{TripID: tripID, Line: &hafas.Line{Name: line}}
}

func TestTimeTableConcatenatesWithoutDedup(t *testing.T) {
	boards := &stubBoards{
		departures: map[string][]hafas.BoardEntry{"1": {entry("a", "ICE 1"), entry("b", "IC 2")}},
		arrivals:   map[string][]hafas.BoardEntry{"1": {entry("a", "ICE 1")}},
	}
	agg, _ := NewAggregator(boards, log.New(&bytes.Buffer{}, "", 0))
	got := agg.TimeTable(context.Background(), "1")
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].TripID != "a" || got[2].TripID != "a" {
		t.Fatalf("unexpected order %+v", got)
	}
}

func TestTimeTableKeepsDeparturesWhenArrivalsFail(t *testing.T) {
	var buf bytes.Buffer
	boards := &stubBoards{
		departures: map[string][]hafas.BoardEntry{"1": {entry("a", "ICE 1")}},
		failArr:    map[string]bool{"1": true},
	}
	agg, _ := NewAggregator(boards, log.New(&buf, "", 0))
	got := agg.TimeTable(context.Background(), "1")
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if !strings.Contains(buf.String(), "arrivals station=1") {
		t.Fatalf("expected failure logged, got %q", buf.String())
	}
}

func TestCollectDeduplicatesAcrossStations(t *testing.T) {
	boards := &stubBoards{
		departures: map[string][]hafas.BoardEntry{
			"1": {entry("a", "ICE 1"), entry("", "bus")},
			"2": {entry("b", "IC 2"), entry("a", "ICE 1")},
		},
		arrivals: map[string][]hafas.BoardEntry{
			"2": {entry("a", "ICE 1"), entry("c", "EC 3")},
		},
	}
	agg, _ := NewAggregator(boards, log.New(&bytes.Buffer{}, "", 0))
	refs, err := agg.Collect(context.Background(), []StationRef{{EvaNumber: "1", Name: "A"}, {EvaNumber: "2", Name: "B"}})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(refs) != len(want) {
		t.Fatalf("expected %d refs, got %+v", len(want), refs)
	}
	for i, id := range want {
		if refs[i].TripID != id {
			t.Fatalf("ref %d: expected %s, got %s", i, id, refs[i].TripID)
		}
	}
	if refs[0].StationID != "1" || refs[0].LineName != "ICE 1" {
		t.Fatalf("unexpected first ref %+v", refs[0])
	}
}

func TestTripSet(t *testing.T) {
	set := NewTripSet()
	if !set.Add("x") || set.Add("x") {
		t.Fatalf("unexpected add result")
	}
	if !set.Has("x") || set.Has("y") || set.Len() != 1 {
		t.Fatalf("unexpected set state")
	}
}
