package sqlite

import "time"

// AlertRecord represents one stored unauthorized-activity alert
type AlertRecord struct {
	ID         int64     `json:"id"`
	DroneID    string    `json:"drone_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Reason     string    `json:"reason"`
	Provenance string    `json:"provenance"`
	Timestamp  time.Time `json:"timestamp"`
	CreatedAt  time.Time `json:"created_at"`
}
