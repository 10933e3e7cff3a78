package telemetry

import "time"

// Provenance identifies where a telemetry record came from
type Provenance string

const (
	// ProvenanceLive marks records ingested from the upstream feed
	ProvenanceLive Provenance = "live"
	// ProvenanceSynthetic marks records produced by the generator
	ProvenanceSynthetic Provenance = "synthetic"
)

// AuthorizationStatus is the classification outcome for a record
type AuthorizationStatus string

const (
	// StatusAuthorized means no restricted zone matched the record
	StatusAuthorized AuthorizationStatus = "authorized"
	// StatusUnauthorized means the record violates a restricted zone,
	// or was synthesized as a forced violation
	StatusUnauthorized AuthorizationStatus = "unauthorized"
	// StatusUnknown means the record could not be classified, e.g. its
	// coordinates were missing or out of range at ingestion
	StatusUnknown AuthorizationStatus = "unknown"
)

// Record represents one observed vehicle state
type Record struct {
	ID              string              `json:"id"`
	Latitude        float64             `json:"latitude"`
	Longitude       float64             `json:"longitude"`
	AltitudeM       float64             `json:"altitude"`
	VelocityKmh     float64             `json:"velocity"`
	Country         string              `json:"country,omitempty"`
	TimestampMillis int64               `json:"timestamp_ms"`
	Provenance      Provenance          `json:"provenance"`
	Status          AuthorizationStatus `json:"status"`
	Reason          string              `json:"reason,omitempty"`
}

// Unauthorized reports whether the record is classified as a violation
func (r Record) Unauthorized() bool {
	return r.Status == StatusUnauthorized
}

// Zone represents a circular restricted-zone geofence
type Zone struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	RadiusKm  float64 `json:"radius_km"`
}

// Snapshot is the complete published state: the current record set, the
// zone set it was classified against, and the publish time. Snapshots are
// immutable once published; the synchronizer replaces them wholesale.
type Snapshot struct {
	Records     []Record  `json:"drones"`
	Zones       []Zone    `json:"restricted_zones"`
	LastUpdated time.Time `json:"last_updated"`
}

// ValidationResult holds the self-consistency counts for a record set
type ValidationResult struct {
	TotalDrones      int  `json:"total_drones"`
	Authorized       int  `json:"authorized"`
	Unauthorized     int  `json:"unauthorized"`
	Unknown          int  `json:"unknown"`
	ValidationPassed bool `json:"validation_passed"`
}

// Stats holds derived metrics over a record set. Zone violations and
// simulated violations are counted separately; UnauthorizedDrones is
// their total.
type Stats struct {
	TotalDrones              int       `json:"total_drones"`
	UnauthorizedDrones       int       `json:"unauthorized_drones"`
	AvgVelocityKmh           float64   `json:"avg_velocity_kmh"`
	AvgAltitudeM             float64   `json:"avg_altitude_m"`
	RestrictedZoneViolations int       `json:"restricted_zone_violations"`
	SimulatedViolations      int       `json:"simulated_violations"`
	LastUpdated              time.Time `json:"last_updated"`
}

// Feeds that report epoch seconds instead of epoch millis produce values
// below this threshold (10,000,000,000 seconds is year 2286).
const epochMillisThreshold = 10_000_000_000

// NormalizeTimestampMillis converts an epoch timestamp to milliseconds.
// Values below the threshold are treated as epoch seconds.
func NormalizeTimestampMillis(v int64) int64 {
	if v > 0 && v < epochMillisThreshold {
		return v * 1000
	}
	return v
}
