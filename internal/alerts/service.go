package alerts

import (
	"sync"
	"time"

	"github.com/yegors/skyfence/internal/storage/sqlite"
	"github.com/yegors/skyfence/internal/telemetry"
	"github.com/yegors/skyfence/pkg/logger"
)

// Service turns newly unauthorized records into alerts. It subscribes to
// published snapshots, diffs each one against the previous set of
// violating drone IDs, records every new violation and optionally emails
// it. A drone alerts once per violation episode: the ID must leave the
// unauthorized set before it can alert again.
type Service struct {
	storage *sqlite.AlertStorage
	mailer  *Mailer
	logger  *logger.Logger

	mu       sync.Mutex
	previous map[string]bool
}

// NewService creates a new alert service. mailer may be nil when email
// alerting is disabled.
func NewService(storage *sqlite.AlertStorage, mailer *Mailer, logger *logger.Logger) *Service {
	return &Service{
		storage:  storage,
		mailer:   mailer,
		previous: make(map[string]bool),
		logger:   logger.Named("alerts"),
	}
}

// OnSnapshot processes one published snapshot. It is registered as a
// feed subscriber and must stay cheap; email delivery runs detached.
func (s *Service) OnSnapshot(snap *telemetry.Snapshot) {
	current := make(map[string]bool)
	var fresh []telemetry.Record

	s.mu.Lock()
	for _, rec := range snap.Records {
		if !rec.Unauthorized() {
			continue
		}
		current[rec.ID] = true
		if !s.previous[rec.ID] {
			fresh = append(fresh, rec)
		}
	}
	s.previous = current
	s.mu.Unlock()

	for _, rec := range fresh {
		s.raise(rec)
	}
}

// RecentAlerts returns the most recent stored alerts
func (s *Service) RecentAlerts(limit int) ([]*sqlite.AlertRecord, error) {
	return s.storage.GetRecentAlerts(limit)
}

// AlertsByDrone returns the stored alerts for one drone ID
func (s *Service) AlertsByDrone(droneID string, limit int) ([]*sqlite.AlertRecord, error) {
	return s.storage.GetAlertsByDrone(droneID, limit)
}

func (s *Service) raise(rec telemetry.Record) {
	record := &sqlite.AlertRecord{
		DroneID:    rec.ID,
		Latitude:   rec.Latitude,
		Longitude:  rec.Longitude,
		Reason:     rec.Reason,
		Provenance: string(rec.Provenance),
		Timestamp:  time.UnixMilli(rec.TimestampMillis).UTC(),
		CreatedAt:  time.Now().UTC(),
	}

	if _, err := s.storage.StoreAlert(record); err != nil {
		s.logger.Error("Failed to store alert",
			logger.String("drone_id", rec.ID),
			logger.Error(err),
		)
	}

	s.logger.Warn("Unauthorized activity detected",
		logger.String("drone_id", rec.ID),
		logger.String("reason", rec.Reason),
		logger.Float64("latitude", rec.Latitude),
		logger.Float64("longitude", rec.Longitude),
	)

	if s.mailer != nil {
		go func(rec telemetry.Record) {
			if err := s.mailer.SendViolationAlert(rec); err != nil {
				s.logger.Error("Failed to send alert email",
					logger.String("drone_id", rec.ID),
					logger.Error(err),
				)
			}
		}(rec)
	}
}
