package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/yegors/skyfence/pkg/logger"
)

// AlertStorage handles storage of unauthorized-activity alerts
type AlertStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewAlertStorage creates a new SQLite alert storage
func NewAlertStorage(db *sql.DB, logger *logger.Logger) (*AlertStorage, error) {
	storage := &AlertStorage{
		db:     db,
		logger: logger.Named("sqlite-alerts"),
	}

	if err := storage.initDB(); err != nil {
		return nil, fmt.Errorf("failed to initialize alert storage: %w", err)
	}
	return storage, nil
}

// initDB initializes the database tables
func (s *AlertStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			drone_id TEXT NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			reason TEXT NOT NULL,
			provenance TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create alerts table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_alerts_drone_id ON alerts(drone_id)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alerts(timestamp)`,
	}
	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create alert index: %w", err)
		}
	}

	return nil
}

// StoreAlert stores an alert record and returns its ID
func (s *AlertStorage) StoreAlert(record *AlertRecord) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO alerts
		(drone_id, latitude, longitude, reason, provenance, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.DroneID,
		record.Latitude,
		record.Longitude,
		record.Reason,
		record.Provenance,
		record.Timestamp.Format(time.RFC3339),
		record.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

// GetRecentAlerts returns the most recent alerts across all drones
func (s *AlertStorage) GetRecentAlerts(limit int) ([]*AlertRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, drone_id, latitude, longitude, reason, provenance, timestamp, created_at
		FROM alerts
		ORDER BY timestamp DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent alerts: %w", err)
	}
	defer rows.Close()

	return s.scanAlertRows(rows)
}

// GetAlertsByDrone returns alerts for a specific drone ID
func (s *AlertStorage) GetAlertsByDrone(droneID string, limit int) ([]*AlertRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, drone_id, latitude, longitude, reason, provenance, timestamp, created_at
		FROM alerts
		WHERE drone_id = ?
		ORDER BY timestamp DESC
		LIMIT ?`,
		droneID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts by drone: %w", err)
	}
	defer rows.Close()

	return s.scanAlertRows(rows)
}

// scanAlertRows scans database rows into AlertRecord structs
func (s *AlertStorage) scanAlertRows(rows *sql.Rows) ([]*AlertRecord, error) {
	var records []*AlertRecord
	for rows.Next() {
		var record AlertRecord
		var timestamp, createdAt string

		if err := rows.Scan(
			&record.ID,
			&record.DroneID,
			&record.Latitude,
			&record.Longitude,
			&record.Reason,
			&record.Provenance,
			&timestamp,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}

		var err error
		record.Timestamp, err = time.Parse(time.RFC3339, timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp: %w", err)
		}
		record.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		records = append(records, &record)
	}

	return records, rows.Err()
}
