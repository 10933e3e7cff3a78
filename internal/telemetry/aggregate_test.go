package telemetry

import (
	"math"
	"testing"
	"time"
)

func TestValidate_EmptySet(t *testing.T) {
	result := Validate(nil)
	if result.TotalDrones != 0 {
		t.Errorf("expected 0 total, got %d", result.TotalDrones)
	}
	if !result.ValidationPassed {
		t.Error("empty set must validate vacuously")
	}
}

func TestValidate_Counts(t *testing.T) {
	records := []Record{
		{ID: "D1", Status: StatusAuthorized},
		{ID: "D2", Status: StatusAuthorized},
		{ID: "D3", Status: StatusUnauthorized, Reason: "Restricted Zone: Pentagon"},
		{ID: "D4", Status: StatusUnknown},
		{ID: "SIM-1", Status: StatusUnauthorized, Reason: ReasonForcedSimulated},
	}

	result := Validate(records)
	if result.TotalDrones != 5 || result.Authorized != 2 || result.Unauthorized != 2 || result.Unknown != 1 {
		t.Errorf("unexpected counts: %+v", result)
	}
	if !result.ValidationPassed {
		t.Error("counts cover every record, validation must pass")
	}
}

func TestSummarize_Averages(t *testing.T) {
	snap := &Snapshot{
		Records: []Record{
			{ID: "D1", VelocityKmh: 100, AltitudeM: 1000, Status: StatusAuthorized},
			{ID: "D2", VelocityKmh: 200, AltitudeM: 3000, Status: StatusAuthorized},
		},
		LastUpdated: time.Unix(1700000000, 0),
	}

	stats := Summarize(snap)
	if stats.TotalDrones != 2 {
		t.Errorf("expected 2 drones, got %d", stats.TotalDrones)
	}
	if math.Abs(stats.AvgVelocityKmh-150) > 1e-9 {
		t.Errorf("expected avg velocity 150, got %f", stats.AvgVelocityKmh)
	}
	if math.Abs(stats.AvgAltitudeM-2000) > 1e-9 {
		t.Errorf("expected avg altitude 2000, got %f", stats.AvgAltitudeM)
	}
	if !stats.LastUpdated.Equal(snap.LastUpdated) {
		t.Error("stats must carry the snapshot publish time")
	}
}

func TestSummarize_EmptySnapshot(t *testing.T) {
	stats := Summarize(&Snapshot{})
	if stats.AvgVelocityKmh != 0 || stats.AvgAltitudeM != 0 {
		t.Errorf("averages over an empty set must be zero, got %+v", stats)
	}
}

func TestSummarize_SeparatesViolationKinds(t *testing.T) {
	snap := &Snapshot{
		Records: []Record{
			{ID: "D1", Status: StatusUnauthorized, Reason: ZoneReasonPrefix + "Area51"},
			{ID: "SIM-1", Status: StatusUnauthorized, Reason: ReasonForcedSimulated},
			{ID: "SIM-2", Status: StatusUnauthorized, Reason: ReasonSimulated},
			{ID: "D2", Status: StatusAuthorized},
		},
	}

	stats := Summarize(snap)
	if stats.UnauthorizedDrones != 3 {
		t.Errorf("expected 3 unauthorized, got %d", stats.UnauthorizedDrones)
	}
	if stats.RestrictedZoneViolations != 1 {
		t.Errorf("expected 1 zone violation, got %d", stats.RestrictedZoneViolations)
	}
	if stats.SimulatedViolations != 2 {
		t.Errorf("expected 2 simulated violations, got %d", stats.SimulatedViolations)
	}
}

func TestNormalizeTimestampMillis(t *testing.T) {
	tests := []struct {
		name string
		in   int64
		want int64
	}{
		{"epoch seconds", 1700000000, 1700000000000},
		{"epoch millis", 1700000000000, 1700000000000},
		{"zero", 0, 0},
		{"threshold boundary", 9_999_999_999, 9_999_999_999_000},
		{"at threshold", 10_000_000_000, 10_000_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeTimestampMillis(tt.in); got != tt.want {
				t.Errorf("NormalizeTimestampMillis(%d) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
