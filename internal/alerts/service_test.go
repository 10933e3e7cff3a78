package alerts

import (
	"testing"

	"github.com/yegors/skyfence/internal/storage/sqlite"
	"github.com/yegors/skyfence/internal/telemetry"
	"github.com/yegors/skyfence/pkg/logger"
)

func testService(t *testing.T) *Service {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json"})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}

	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	storage, err := sqlite.NewAlertStorage(db, log)
	if err != nil {
		t.Fatalf("failed to create alert storage: %v", err)
	}
	return NewService(storage, nil, log)
}

func snapshotWith(records ...telemetry.Record) *telemetry.Snapshot {
	return &telemetry.Snapshot{Records: records}
}

func violation(id string) telemetry.Record {
	return telemetry.Record{
		ID:         id,
		Latitude:   37.3,
		Longitude:  -115.8,
		Status:     telemetry.StatusUnauthorized,
		Reason:     "Restricted Zone: Area51",
		Provenance: telemetry.ProvenanceLive,
	}
}

func authorized(id string) telemetry.Record {
	return telemetry.Record{ID: id, Status: telemetry.StatusAuthorized, Provenance: telemetry.ProvenanceLive}
}

func alertCount(t *testing.T, svc *Service) int {
	t.Helper()
	records, err := svc.RecentAlerts(100)
	if err != nil {
		t.Fatalf("failed to load alerts: %v", err)
	}
	return len(records)
}

func TestOnSnapshot_NewViolationAlerts(t *testing.T) {
	svc := testService(t)

	svc.OnSnapshot(snapshotWith(violation("D1"), authorized("D2")))

	records, err := svc.RecentAlerts(10)
	if err != nil {
		t.Fatalf("failed to load alerts: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(records))
	}
	if records[0].DroneID != "D1" || records[0].Reason != "Restricted Zone: Area51" {
		t.Errorf("unexpected alert: %+v", records[0])
	}
}

func TestOnSnapshot_NoDuplicateWhileViolating(t *testing.T) {
	svc := testService(t)

	// The same drone violating across consecutive snapshots alerts once.
	svc.OnSnapshot(snapshotWith(violation("D1")))
	svc.OnSnapshot(snapshotWith(violation("D1")))
	svc.OnSnapshot(snapshotWith(violation("D1")))

	if got := alertCount(t, svc); got != 1 {
		t.Errorf("expected 1 alert for a continuous violation, got %d", got)
	}
}

func TestOnSnapshot_RealertsAfterClearing(t *testing.T) {
	svc := testService(t)

	svc.OnSnapshot(snapshotWith(violation("D1")))
	svc.OnSnapshot(snapshotWith(authorized("D1")))
	svc.OnSnapshot(snapshotWith(violation("D1")))

	if got := alertCount(t, svc); got != 2 {
		t.Errorf("expected 2 alerts across two violation episodes, got %d", got)
	}
}

func TestOnSnapshot_DisappearanceClearsEpisode(t *testing.T) {
	svc := testService(t)

	svc.OnSnapshot(snapshotWith(violation("D1")))
	svc.OnSnapshot(snapshotWith(authorized("D2"))) // D1 gone entirely
	svc.OnSnapshot(snapshotWith(violation("D1")))

	if got := alertCount(t, svc); got != 2 {
		t.Errorf("expected disappearance to end the episode, got %d alerts", got)
	}
}

func TestOnSnapshot_MultipleViolations(t *testing.T) {
	svc := testService(t)

	svc.OnSnapshot(snapshotWith(violation("D1"), violation("D2"), authorized("D3")))

	if got := alertCount(t, svc); got != 2 {
		t.Errorf("expected 2 alerts, got %d", got)
	}
}

func TestAlertsByDrone(t *testing.T) {
	svc := testService(t)

	svc.OnSnapshot(snapshotWith(violation("D1"), violation("D2")))

	records, err := svc.AlertsByDrone("D2", 10)
	if err != nil {
		t.Fatalf("failed to load alerts: %v", err)
	}
	if len(records) != 1 || records[0].DroneID != "D2" {
		t.Errorf("unexpected alerts for D2: %+v", records)
	}
}
