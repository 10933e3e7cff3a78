package telemetry

import "strings"

// Validate computes the summary counts and the pass/fail consistency
// check over a record set. O(n), no side effects. An empty set validates
// vacuously.
func Validate(records []Record) ValidationResult {
	result := ValidationResult{TotalDrones: len(records)}

	for _, rec := range records {
		switch rec.Status {
		case StatusUnauthorized:
			result.Unauthorized++
		case StatusUnknown:
			result.Unknown++
		default:
			result.Authorized++
		}
	}

	result.ValidationPassed = result.Authorized+result.Unauthorized+result.Unknown == result.TotalDrones
	return result
}

// Summarize computes derived metrics over a snapshot. Averages are over
// all records and zero when the set is empty. Geometry-based violations
// and forced-synthetic violations are counted separately.
func Summarize(snapshot *Snapshot) Stats {
	stats := Stats{
		TotalDrones: len(snapshot.Records),
		LastUpdated: snapshot.LastUpdated,
	}

	var velocitySum, altitudeSum float64
	for _, rec := range snapshot.Records {
		velocitySum += rec.VelocityKmh
		altitudeSum += rec.AltitudeM

		if !rec.Unauthorized() {
			continue
		}
		stats.UnauthorizedDrones++
		if strings.HasPrefix(rec.Reason, ZoneReasonPrefix) {
			stats.RestrictedZoneViolations++
		} else {
			stats.SimulatedViolations++
		}
	}

	if stats.TotalDrones > 0 {
		stats.AvgVelocityKmh = velocitySum / float64(stats.TotalDrones)
		stats.AvgAltitudeM = altitudeSum / float64(stats.TotalDrones)
	}

	return stats
}
