package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yegors/skyfence/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json"})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return log
}

func TestFetchRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"drones": [
			{"id": "D1", "latitude": 40.64, "longitude": -73.78, "altitude": 120, "velocity": 45},
			{"id": "D2", "latitude": 34.05, "longitude": -118.24, "altitude": 300, "velocity": 80}
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second, testLogger(t))
	records, err := client.FetchRecords(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "D1" || records[1].ID != "D2" {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestFetchRecords_MissingDronesKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second, testLogger(t))
	records, err := client.FetchRecords(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", records)
	}
}

func TestFetchRecords_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second, testLogger(t))
	if _, err := client.FetchRecords(context.Background()); err == nil {
		t.Error("expected error on 500 response")
	}
}

func TestFetchRecords_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second, testLogger(t))
	if _, err := client.FetchRecords(context.Background()); err == nil {
		t.Error("expected error on malformed body")
	}
}

func TestFetchZones(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"restricted_zones": [
			{"name": "JFK Airport", "latitude": 40.6413, "longitude": -73.7781, "radius_km": 10},
			{"name": "Legacy", "latitude": 33.0, "longitude": -97.0, "radius": 5},
			{"name": "Broken", "latitude": 0, "longitude": 0, "radius_km": 0}
		]}`))
	}))
	defer server.Close()

	client := NewClient("", server.URL, 5*time.Second, testLogger(t))
	zones, err := client.FetchZones(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(zones) != 2 {
		t.Fatalf("expected 2 zones after dropping non-positive radius, got %d", len(zones))
	}
	if zones[0].RadiusKm != 10 {
		t.Errorf("expected radius 10, got %f", zones[0].RadiusKm)
	}
	if zones[1].Name != "Legacy" || zones[1].RadiusKm != 5 {
		t.Errorf("legacy radius key not honored: %+v", zones[1])
	}
}

func TestFetchZones_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("", server.URL, 5*time.Second, testLogger(t))
	if _, err := client.FetchZones(ctx); err == nil {
		t.Error("expected error on cancelled context")
	}
}
