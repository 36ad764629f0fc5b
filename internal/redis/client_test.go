package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/saviobatista/logbook-coverage/internal/testutils"
	"github.com/saviobatista/logbook-coverage/internal/types"
)

type mockRedis struct {
	data   map[string]string
	ttl    map[string]time.Duration
	getErr error
	setErr error
	closed bool
}

func newMockRedis() *mockRedis {
	return &mockRedis{data: make(map[string]string), ttl: make(map[string]time.Duration)}
}

func (m *mockRedis) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if m.setErr != nil {
		return redis.NewStatusResult("", m.setErr)
	}
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	default:
		m.data[key] = fmt.Sprint(v)
	}
	m.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *mockRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if m.getErr != nil {
		return redis.NewStringResult("", m.getErr)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (m *mockRedis) Close() error {
	m.closed = true
	return nil
}

func TestClient_Close(t *testing.T) {
	mock := newMockRedis()
	client := NewWithClient(mock)
	if err := client.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if !mock.closed {
		t.Error("Close() should close the underlying client")
	}
}

func TestClient_Logbook(t *testing.T) {
	mock := newMockRedis()
	client := NewWithClient(mock)
	ctx := context.Background()

	flights := []types.FlightRow{
		testutils.Flight("2024-01-05", "KSFO", "KLAX", "Departed SFO"),
		testutils.Flight("2024-01-07", "KLAX", "KSFO"),
	}
	if err := client.StoreLogbook(ctx, "pilot-1", flights); err != nil {
		t.Fatalf("StoreLogbook() failed: %v", err)
	}
	if mock.ttl["logbook:pilot-1"] != LogbookTTL {
		t.Errorf("Expected TTL %v, got %v", LogbookTTL, mock.ttl["logbook:pilot-1"])
	}

	got, err := client.GetLogbook(ctx, "pilot-1")
	if err != nil {
		t.Fatalf("GetLogbook() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 flights, got %d", len(got))
	}
	if got[0].From != "KSFO" || got[0].To != "KLAX" || got[0].TextFields[0] != "Departed SFO" {
		t.Errorf("Unexpected first flight: %+v", got[0])
	}

	if err := client.DeleteLogbook(ctx, "pilot-1"); err != nil {
		t.Fatalf("DeleteLogbook() failed: %v", err)
	}
	got, err = client.GetLogbook(ctx, "pilot-1")
	if err != nil {
		t.Fatalf("GetLogbook() after delete failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil logbook after delete, got %v", got)
	}
}

func TestClient_EmptyLogbook(t *testing.T) {
	client := NewWithClient(newMockRedis())
	ctx := context.Background()

	if err := client.StoreLogbook(ctx, "pilot-2", []types.FlightRow{}); err != nil {
		t.Fatalf("StoreLogbook() failed: %v", err)
	}
	got, err := client.GetLogbook(ctx, "pilot-2")
	if err != nil {
		t.Fatalf("GetLogbook() failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Expected empty non-nil logbook, got %v", got)
	}
}

func TestClient_Settings(t *testing.T) {
	mock := newMockRedis()
	client := NewWithClient(mock)
	ctx := context.Background()

	got, err := client.GetSettings(ctx, "pilot-1")
	if err != nil || got != nil {
		t.Fatalf("Expected nil settings before store, got %v, %v", got, err)
	}

	settings := types.DefaultPilotSettings()
	settings.HomeBase = "KPAO"
	settings.MaxTripNM = 50
	if err := client.StoreSettings(ctx, "pilot-1", settings); err != nil {
		t.Fatalf("StoreSettings() failed: %v", err)
	}
	if mock.ttl["settings:pilot-1"] != 0 {
		t.Errorf("Settings should not expire, got TTL %v", mock.ttl["settings:pilot-1"])
	}

	got, err = client.GetSettings(ctx, "pilot-1")
	if err != nil {
		t.Fatalf("GetSettings() failed: %v", err)
	}
	if got.HomeBase != "KPAO" || got.MaxTripNM != 50 || got.Scope != "public" || !got.IncludeNotes {
		t.Errorf("Unexpected settings: %+v", got)
	}
}

func TestClient_Report(t *testing.T) {
	mock := newMockRedis()
	client := NewWithClient(mock)
	ctx := context.Background()

	report := &types.CoverageReport{
		ID:       "r1",
		PilotID:  "pilot-1",
		Scope:    "public",
		Coverage: types.ScopeCoverage{Visited: 2, Total: 8, Ratio: 0.25},
		Visited:  []string{"LAX", "SFO"},
	}
	if err := client.StoreReport(ctx, report); err != nil {
		t.Fatalf("StoreReport() failed: %v", err)
	}
	if mock.ttl["report:pilot-1:public"] != ReportTTL {
		t.Errorf("Expected TTL %v, got %v", ReportTTL, mock.ttl["report:pilot-1:public"])
	}

	got, err := client.GetReport(ctx, "pilot-1", "public")
	if err != nil {
		t.Fatalf("GetReport() failed: %v", err)
	}
	if got.ID != "r1" || got.Coverage.Ratio != 0.25 || len(got.Visited) != 2 {
		t.Errorf("Unexpected report: %+v", got)
	}

	got, err = client.GetReport(ctx, "pilot-1", "private")
	if err != nil || got != nil {
		t.Errorf("Expected nil report for another scope, got %v, %v", got, err)
	}
}

func TestClient_Errors(t *testing.T) {
	mock := newMockRedis()
	client := NewWithClient(mock)
	ctx := context.Background()

	mock.setErr = errors.New("write failed")
	if err := client.StoreSettings(ctx, "p", types.DefaultPilotSettings()); err == nil {
		t.Error("StoreSettings() should return the set error")
	}

	mock.getErr = errors.New("read failed")
	if _, err := client.GetLogbook(ctx, "p"); err == nil {
		t.Error("GetLogbook() should return the get error")
	}
	if _, err := client.GetReport(ctx, "p", "public"); err == nil {
		t.Error("GetReport() should return the get error")
	}

	mock.getErr = nil
	mock.data["settings:bad"] = "{not json"
	if _, err := client.GetSettings(ctx, "bad"); err == nil {
		t.Error("GetSettings() should fail on malformed data")
	}
	mock.data["logbook:bad"] = "\xc1"
	if _, err := client.GetLogbook(ctx, "bad"); err == nil {
		t.Error("GetLogbook() should fail on malformed data")
	}
}

func TestNew_InvalidAddress(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping connection test in short mode")
	}
	client, err := New("invalid:address:12345")
	if err == nil {
		client.Close()
		t.Fatal("New() should fail with invalid address")
	}
	if client != nil {
		t.Error("New() should return nil client on error")
	}
}

func TestClient_DeleteReports(t *testing.T) {
	mock := newMockRedis()
	client := NewWithClient(mock)
	ctx := context.Background()

	for _, scope := range []string{"public", "private"} {
		if err := client.StoreReport(ctx, &types.CoverageReport{ID: scope, PilotID: "p", Scope: scope}); err != nil {
			t.Fatalf("StoreReport() failed: %v", err)
		}
	}
	if err := client.StoreReport(ctx, &types.CoverageReport{ID: "other", PilotID: "q", Scope: "public"}); err != nil {
		t.Fatalf("StoreReport() failed: %v", err)
	}

	if err := client.DeleteReports(ctx, "p", "public", "private", "all"); err != nil {
		t.Fatalf("DeleteReports() failed: %v", err)
	}
	if len(mock.data) != 1 {
		t.Errorf("Expected only the other pilot's report to remain, got %v", mock.data)
	}
	if err := client.DeleteReports(ctx, "p"); err != nil {
		t.Errorf("DeleteReports() with no scopes should be a no-op, got %v", err)
	}
}
