package telemetry

import (
	"github.com/yegors/skyfence/internal/geo"
)

// ZoneReasonPrefix prefixes the reason string of every geometry-based
// violation. The zone name follows the prefix.
const ZoneReasonPrefix = "Restricted Zone: "

// Classify tests the record against the zone set in order and returns it
// annotated as unauthorized for the first zone containing it. If no zone
// matches, the record is returned unchanged: classification never clears
// an unauthorized state set by other means (forced synthetic records).
//
// First-match wins. The zone iteration order is the slice order, so a
// record inside two overlapping zones always reports the earlier one.
// Applying Classify twice with the same zone set yields the same record.
func Classify(rec Record, zones []Zone) Record {
	if !geo.ValidCoordinates(rec.Latitude, rec.Longitude) {
		// Not classifiable; status was set to unknown at ingestion.
		return rec
	}

	for _, zone := range zones {
		if geo.DistanceKm(rec.Latitude, rec.Longitude, zone.Latitude, zone.Longitude) <= zone.RadiusKm {
			rec.Status = StatusUnauthorized
			rec.Reason = ZoneReasonPrefix + zone.Name
			return rec
		}
	}

	return rec
}

// ClassifyAll classifies every record in the batch against the zone set
// and returns a new slice; the input slice is not modified.
func ClassifyAll(records []Record, zones []Zone) []Record {
	out := make([]Record, len(records))
	for i, rec := range records {
		out[i] = Classify(rec, zones)
	}
	return out
}
