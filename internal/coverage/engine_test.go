package coverage

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/saviobatista/logbook-coverage/internal/catalog"
	"github.com/saviobatista/logbook-coverage/internal/matcher"
	"github.com/saviobatista/logbook-coverage/internal/parser"
	"github.com/saviobatista/logbook-coverage/internal/testutils"
	"github.com/saviobatista/logbook-coverage/internal/types"
)

func newTestEngine(t *testing.T, cfg EngineConfig) *Engine {
	t.Helper()
	return NewEngine(catalog.New(catalog.ParseFacilityCatalog(testutils.SampleCatalogCSV), nil), cfg)
}

func sampleFlights(t *testing.T) []types.FlightRow {
	t.Helper()
	flights, err := parser.ParseLogbook(testutils.SampleLogbookCSV)
	if err != nil {
		t.Fatalf("ParseLogbook() failed: %v", err)
	}
	return flights
}

func TestEngine_BuildReport(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})

	report, err := e.BuildReport(Request{
		PilotID: "pilot-1",
		Flights: sampleFlights(t),
		Scope:   catalog.ScopePublic,
		Options: matcher.DefaultOptions(),
	})
	if err != nil {
		t.Fatalf("BuildReport() failed: %v", err)
	}

	if report.ID == "" || report.PilotID != "pilot-1" || report.Scope != "public" {
		t.Errorf("Unexpected report header: %+v", report)
	}
	if report.FlightCount != 2 {
		t.Errorf("Expected 2 flights, got %d", report.FlightCount)
	}
	if want := (types.ScopeCoverage{Visited: 2, Total: 8, Ratio: 0.25}); report.Coverage != want {
		t.Errorf("Coverage = %+v, want %+v", report.Coverage, want)
	}
	if !reflect.DeepEqual(report.Visited, []string{"LAX", "SFO"}) {
		t.Errorf("Visited = %v", report.Visited)
	}
	if report.MostFrequent != "SFO" {
		t.Errorf("MostFrequent = %q, want SFO", report.MostFrequent)
	}
	if report.MostVisitedState != "CA" {
		t.Errorf("MostVisitedState = %q, want CA", report.MostVisitedState)
	}
	if len(report.Frequency) != 2 || report.Frequency[0].ID != "SFO" || report.Frequency[0].Total != 4 {
		t.Errorf("Frequency = %+v", report.Frequency)
	}
	jan5 := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	if !report.FirstVisits["SFO"].Equal(jan5) || !report.FirstVisits["LAX"].Equal(jan5) {
		t.Errorf("FirstVisits = %v", report.FirstVisits)
	}
	if len(report.States) != 2 || report.States[0].State != "CA" || report.States[0].Visited != 2 {
		t.Errorf("States = %+v", report.States)
	}
	if report.Trips != nil {
		t.Errorf("Expected no trips without a trip request, got %d", len(report.Trips))
	}
}

func TestEngine_Located(t *testing.T) {
	if got := newTestEngine(t, EngineConfig{}).Located(); got != 8 {
		t.Errorf("Located() = %d, want 8", got)
	}

	primary := catalog.ParseFacilityCatalog(testutils.SampleCatalogCSV)
	primary = append(primary, types.Facility{ID: "1CA2", State: "CA", Type: "heliport"})
	secondary := []types.Facility{testutils.Facility("W55", "WA", 47.6, -122.3)}
	e := NewEngine(catalog.New(primary, secondary), EngineConfig{})
	if got := e.Located(); got != 9 {
		t.Errorf("Located() with an unlocated and a contributed facility = %d, want 9", got)
	}
}

func TestEngine_ExcludeHubs(t *testing.T) {
	flights := sampleFlights(t)

	report, err := newTestEngine(t, EngineConfig{}).BuildReport(Request{
		Flights:     flights,
		Scope:       catalog.ScopePublic,
		Options:     matcher.DefaultOptions(),
		ExcludeHubs: true,
	})
	if err != nil {
		t.Fatalf("BuildReport() failed: %v", err)
	}
	if report.Coverage.Total != 5 || report.Coverage.Visited != 0 {
		t.Errorf("Coverage = %+v, want 0 of 5", report.Coverage)
	}

	custom, err := newTestEngine(t, EngineConfig{HubIDs: []string{"KLAX"}}).BuildReport(Request{
		Flights:     flights,
		Scope:       catalog.ScopePublic,
		Options:     matcher.DefaultOptions(),
		ExcludeHubs: true,
	})
	if err != nil {
		t.Fatalf("BuildReport() failed: %v", err)
	}
	if !reflect.DeepEqual(custom.Visited, []string{"SFO"}) {
		t.Errorf("Visited with custom hubs = %v, want [SFO]", custom.Visited)
	}
}

func TestEngine_Trips(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	flights := sampleFlights(t)

	trips, err := e.Trips(Request{
		Flights: flights,
		Scope:   catalog.ScopePublic,
		Options: matcher.DefaultOptions(),
		Trips:   &TripRequest{Home: "KPAO", Filter: TripFilter{MaxDistanceNM: 60}},
	})
	if err != nil {
		t.Fatalf("Trips() failed: %v", err)
	}
	if got := tripIDs(trips); !reflect.DeepEqual(got, []string{"HAF", "O69"}) {
		t.Errorf("Trips() = %v, want [HAF O69]", got)
	}

	_, err = e.Trips(Request{Scope: catalog.ScopePublic, Trips: &TripRequest{Home: "ZZZZ"}})
	if !errors.Is(err, ErrUnknownHome) {
		t.Errorf("Expected ErrUnknownHome, got %v", err)
	}
	if _, err := e.Trips(Request{Scope: catalog.ScopePublic}); !errors.Is(err, ErrUnknownHome) {
		t.Errorf("Expected ErrUnknownHome without a trip request, got %v", err)
	}
}

func TestEngine_ConfiguredRunwayFraction(t *testing.T) {
	e := newTestEngine(t, EngineConfig{UsableRunwayFraction: 0.5})

	trips, err := e.Trips(Request{
		Scope: catalog.ScopePublic,
		Trips: &TripRequest{Home: "PAO", Filter: TripFilter{MaxDistanceNM: 20}},
	})
	if err != nil {
		t.Fatalf("Trips() failed: %v", err)
	}
	for _, tc := range trips {
		if tc.Facility.ID == "HAF" && (tc.UsableRunwayFt == nil || *tc.UsableRunwayFt != 2500) {
			t.Errorf("Expected HAF usable runway 2500, got %v", tc.UsableRunwayFt)
		}
	}
}

func TestRequestFromSettings(t *testing.T) {
	s := types.DefaultPilotSettings()
	req, err := RequestFromSettings("pilot-1", nil, s)
	if err != nil {
		t.Fatalf("RequestFromSettings() failed: %v", err)
	}
	if req.Scope != catalog.ScopePublic || req.Options != matcher.DefaultOptions() || req.Trips != nil {
		t.Errorf("Unexpected request: %+v", req)
	}

	s.HomeBase = "KPAO"
	s.Surfaces = []string{"paved"}
	req, err = RequestFromSettings("pilot-1", nil, s)
	if err != nil {
		t.Fatalf("RequestFromSettings() failed: %v", err)
	}
	if req.Trips == nil || req.Trips.Home != "KPAO" || req.Trips.Filter.MaxDistanceNM != DefaultMaxTripNM {
		t.Errorf("Unexpected trip request: %+v", req.Trips)
	}

	s.Scope = "military"
	if _, err := RequestFromSettings("pilot-1", nil, s); err == nil {
		t.Error("Expected error for an unknown scope")
	}
}
