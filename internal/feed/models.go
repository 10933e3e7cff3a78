package feed

import (
	"encoding/json"
	"fmt"

	"github.com/yegors/skyfence/internal/geo"
	"github.com/yegors/skyfence/internal/telemetry"
)

// wireRecord is the upstream representation of one telemetry record.
// Older feed versions report the identifier as "callsign" and the
// timestamp in epoch seconds; both are accepted.
type wireRecord struct {
	ID        string   `json:"id"`
	Callsign  string   `json:"callsign"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Altitude  float64  `json:"altitude"`
	Velocity  float64  `json:"velocity"`
	Country   string   `json:"country"`
	Timestamp int64    `json:"timestamp"`
}

// wireZone is the upstream representation of a restricted zone. The
// radius has appeared under both "radius_km" and the legacy "radius"
// key (kilometres in both cases).
type wireZone struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	RadiusKm  float64 `json:"radius_km"`
	Radius    float64 `json:"radius"`
}

// snapshotResponse is the body of the snapshot-fetch endpoint. A missing
// drones key decodes to nil and is treated as an empty list.
type snapshotResponse struct {
	Drones []wireRecord `json:"drones"`
}

// zonesResponse is the body of the zones endpoint
type zonesResponse struct {
	Zones []wireZone `json:"restricted_zones"`
}

// toRecord converts a wire record into a domain record. Records with
// missing or out-of-range coordinates are kept but marked unknown so
// the validation counts stay exact.
func (w wireRecord) toRecord() telemetry.Record {
	rec := telemetry.Record{
		ID:          w.ID,
		AltitudeM:   w.Altitude,
		VelocityKmh: w.Velocity,
		Country:     w.Country,
		Provenance:  telemetry.ProvenanceLive,
		Status:      telemetry.StatusAuthorized,
	}
	if rec.ID == "" {
		rec.ID = w.Callsign
	}
	rec.TimestampMillis = telemetry.NormalizeTimestampMillis(w.Timestamp)

	if w.Latitude == nil || w.Longitude == nil {
		rec.Status = telemetry.StatusUnknown
		return rec
	}
	rec.Latitude = *w.Latitude
	rec.Longitude = *w.Longitude
	if !geo.ValidCoordinates(rec.Latitude, rec.Longitude) {
		rec.Status = telemetry.StatusUnknown
	}
	return rec
}

func (w wireZone) toZone() telemetry.Zone {
	radius := w.RadiusKm
	if radius == 0 {
		radius = w.Radius
	}
	return telemetry.Zone{
		Name:      w.Name,
		Latitude:  w.Latitude,
		Longitude: w.Longitude,
		RadiusKm:  radius,
	}
}

func convertRecords(wires []wireRecord) []telemetry.Record {
	records := make([]telemetry.Record, 0, len(wires))
	for _, w := range wires {
		records = append(records, w.toRecord())
	}
	return records
}

// decodePushMessage parses one message from the push channel. Accepted
// shapes are {"drones": [...]} and a bare record array (legacy). Any
// other shape is an error; the caller logs and discards it.
func decodePushMessage(data []byte) ([]telemetry.Record, error) {
	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(data, &keyed); err == nil {
		raw, ok := keyed["drones"]
		if !ok {
			return nil, fmt.Errorf("push message has no drones key")
		}
		var wires []wireRecord
		if err := json.Unmarshal(raw, &wires); err != nil {
			return nil, fmt.Errorf("failed to parse drones array: %w", err)
		}
		return convertRecords(wires), nil
	}

	var wires []wireRecord
	if err := json.Unmarshal(data, &wires); err != nil {
		return nil, fmt.Errorf("unrecognized push message shape: %w", err)
	}
	return convertRecords(wires), nil
}
