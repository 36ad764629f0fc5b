package main

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/saviobatista/logbook-coverage/internal/catalog"
	"github.com/saviobatista/logbook-coverage/internal/coverage"
	"github.com/saviobatista/logbook-coverage/internal/parser"
	"github.com/saviobatista/logbook-coverage/internal/testutils"
	"github.com/saviobatista/logbook-coverage/internal/types"
)

type mockDBClient struct {
	imports       map[string]int
	reports       map[string]*types.CoverageReport
	storeImpError error
	storeRepError error
}

func newMockDBClient() *mockDBClient {
	return &mockDBClient{
		imports: make(map[string]int),
		reports: make(map[string]*types.CoverageReport),
	}
}

func (m *mockDBClient) StoreImport(imp *types.LogbookImport, flightCount int) error {
	if m.storeImpError != nil {
		return m.storeImpError
	}
	m.imports[imp.ID] = flightCount
	return nil
}

func (m *mockDBClient) StoreReport(importID string, report *types.CoverageReport) error {
	if m.storeRepError != nil {
		return m.storeRepError
	}
	m.reports[importID] = report
	return nil
}

func (m *mockDBClient) Close() error { return nil }

type mockSessionClient struct {
	logbooks    map[string][]types.FlightRow
	settings    map[string]*types.PilotSettings
	reports     map[string]*types.CoverageReport
	deleted     []string
	storeError  error
	getSetError error
}

func newMockSessionClient() *mockSessionClient {
	return &mockSessionClient{
		logbooks: make(map[string][]types.FlightRow),
		settings: make(map[string]*types.PilotSettings),
		reports:  make(map[string]*types.CoverageReport),
	}
}

func (m *mockSessionClient) StoreLogbook(_ context.Context, pilotID string, flights []types.FlightRow) error {
	if m.storeError != nil {
		return m.storeError
	}
	m.logbooks[pilotID] = flights
	return nil
}

func (m *mockSessionClient) GetSettings(_ context.Context, pilotID string) (*types.PilotSettings, error) {
	if m.getSetError != nil {
		return nil, m.getSetError
	}
	return m.settings[pilotID], nil
}

func (m *mockSessionClient) StoreReport(_ context.Context, report *types.CoverageReport) error {
	if m.storeError != nil {
		return m.storeError
	}
	m.reports[report.PilotID+":"+report.Scope] = report
	return nil
}

func (m *mockSessionClient) DeleteReports(_ context.Context, pilotID string, scopes ...string) error {
	m.deleted = append(m.deleted, scopes...)
	return nil
}

func (m *mockSessionClient) Close() error { return nil }

type mockPublisher struct {
	published []*types.CoverageReport
	err       error
}

func (m *mockPublisher) PublishReport(report *types.CoverageReport) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, report)
	return nil
}

func newTestWorker(t *testing.T) (*Worker, *mockDBClient, *mockSessionClient, *mockPublisher) {
	t.Helper()
	cat := catalog.New(catalog.ParseFacilityCatalog(testutils.SampleCatalogCSV), nil)
	engine := coverage.NewEngine(cat, coverage.EngineConfig{})
	db := newMockDBClient()
	sessions := newMockSessionClient()
	pub := &mockPublisher{}
	return NewWorker(engine, db, sessions, pub), db, sessions, pub
}

func TestWorker_ProcessImport(t *testing.T) {
	worker, db, sessions, pub := newTestWorker(t)
	imp := testutils.MockLogbookImport("pilot-1")

	report, err := worker.ProcessImport(context.Background(), imp)
	if err != nil {
		t.Fatalf("ProcessImport() failed: %v", err)
	}

	if !reflect.DeepEqual(report.Visited, []string{"LAX", "SFO"}) {
		t.Errorf("Visited = %v, want [LAX SFO]", report.Visited)
	}
	if report.PilotID != "pilot-1" || report.Scope != "public" {
		t.Errorf("Unexpected report header: %+v", report)
	}
	if db.imports[imp.ID] != 2 {
		t.Errorf("Expected import stored with 2 flights, got %d", db.imports[imp.ID])
	}
	if db.reports[imp.ID] != report {
		t.Error("Expected report stored under the import id")
	}
	if len(sessions.logbooks["pilot-1"]) != 2 {
		t.Errorf("Expected logbook cached, got %v", sessions.logbooks["pilot-1"])
	}
	if sessions.reports["pilot-1:public"] != report {
		t.Error("Expected report cached for the public scope")
	}
	if len(sessions.deleted) != len(catalog.Scopes) {
		t.Errorf("Expected every scope invalidated, got %v", sessions.deleted)
	}
	if len(pub.published) != 1 || pub.published[0] != report {
		t.Errorf("Expected report published once, got %d", len(pub.published))
	}

	stats := worker.stats.GetStats()
	if stats["imports_received"] != uint64(1) || stats["imports_parsed"] != uint64(1) ||
		stats["flights_parsed"] != uint64(2) || stats["reports_stored"] != uint64(1) ||
		stats["facilities_matched"] != uint64(2) {
		t.Errorf("Unexpected stats: %v", stats)
	}
}

func TestWorker_ProcessImport_ParseFailure(t *testing.T) {
	worker, db, _, pub := newTestWorker(t)
	imp := testutils.MockLogbookImport("pilot-1")
	imp.CSV = "Aircraft Table\nAircraftID\nN1\n"

	_, err := worker.ProcessImport(context.Background(), imp)
	if !errors.Is(err, parser.ErrNoFlightsTable) {
		t.Fatalf("Expected ErrNoFlightsTable, got %v", err)
	}
	if count, ok := db.imports[imp.ID]; !ok || count != 0 {
		t.Errorf("Expected failed import recorded with 0 flights, got %d (%v)", count, ok)
	}
	if len(db.reports) != 0 || len(pub.published) != 0 {
		t.Error("No report should be stored or published for a failed import")
	}
	if worker.stats.GetStats()["imports_failed"] != uint64(1) {
		t.Error("Expected imports_failed to be 1")
	}
}

func TestWorker_ProcessImport_Settings(t *testing.T) {
	tests := []struct {
		name      string
		settings  types.PilotSettings
		wantTotal int
		wantTrips []string
	}{
		{
			name:      "hubs excluded with home base",
			settings:  types.PilotSettings{Scope: "public", IncludeNotes: true, UseEndpoints: true, ExcludeHubs: true, HomeBase: "KPAO", MaxTripNM: 60},
			wantTotal: 5,
			wantTrips: []string{"HAF", "O69"},
		},
		{
			name:      "unknown home base drops trips",
			settings:  types.PilotSettings{Scope: "public", IncludeNotes: true, UseEndpoints: true, HomeBase: "ZZZZ"},
			wantTotal: 8,
		},
		{
			name:      "invalid scope falls back to defaults",
			settings:  types.PilotSettings{Scope: "moon", HomeBase: "KPAO"},
			wantTotal: 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			worker, _, sessions, _ := newTestWorker(t)
			settings := tt.settings
			sessions.settings["pilot-1"] = &settings

			report, err := worker.ProcessImport(context.Background(), testutils.MockLogbookImport("pilot-1"))
			if err != nil {
				t.Fatalf("ProcessImport() failed: %v", err)
			}
			if report.Coverage.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", report.Coverage.Total, tt.wantTotal)
			}
			var trips []string
			for _, tc := range report.Trips {
				trips = append(trips, tc.Facility.ID)
			}
			if !reflect.DeepEqual(trips, tt.wantTrips) {
				t.Errorf("Trips = %v, want %v", trips, tt.wantTrips)
			}
		})
	}
}

func TestWorker_ProcessImport_Errors(t *testing.T) {
	t.Run("store report fails", func(t *testing.T) {
		worker, db, _, pub := newTestWorker(t)
		db.storeRepError = errors.New("db down")

		if _, err := worker.ProcessImport(context.Background(), testutils.MockLogbookImport("p")); err == nil {
			t.Fatal("Expected error, got none")
		}
		if len(pub.published) != 0 {
			t.Error("Report should not be published when it was not stored")
		}
	})

	t.Run("store import fails", func(t *testing.T) {
		worker, db, _, _ := newTestWorker(t)
		db.storeImpError = errors.New("db down")

		if _, err := worker.ProcessImport(context.Background(), testutils.MockLogbookImport("p")); err == nil {
			t.Fatal("Expected error, got none")
		}
	})

	t.Run("session and publish failures are warnings", func(t *testing.T) {
		worker, db, sessions, pub := newTestWorker(t)
		sessions.storeError = errors.New("redis down")
		sessions.getSetError = errors.New("redis down")
		pub.err = errors.New("nats down")

		imp := testutils.MockLogbookImport("p")
		if _, err := worker.ProcessImport(context.Background(), imp); err != nil {
			t.Fatalf("Expected success despite cache failures, got %v", err)
		}
		if db.reports[imp.ID] == nil {
			t.Error("Report should still be stored")
		}
	})
}

func TestWorker_NilPublisher(t *testing.T) {
	cat := catalog.New(catalog.ParseFacilityCatalog(testutils.SampleCatalogCSV), nil)
	worker := NewWorker(coverage.NewEngine(cat, coverage.EngineConfig{}), newMockDBClient(), newMockSessionClient(), nil)

	if _, err := worker.ProcessImport(context.Background(), testutils.MockLogbookImport("p")); err != nil {
		t.Fatalf("ProcessImport() failed: %v", err)
	}
}
