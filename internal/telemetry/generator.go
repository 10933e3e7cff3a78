package telemetry

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/yegors/skyfence/internal/config"
	"github.com/yegors/skyfence/pkg/logger"
)

// Reason strings attached to synthetic violations
const (
	// ReasonForcedSimulated marks records synthesized with the
	// force-unauthorized flag (top-up and bootstrap padding)
	ReasonForcedSimulated = "Simulated: Restricted Zone"
	// ReasonSimulated marks records that drew unauthorized in the
	// random generation pass
	ReasonSimulated = "Simulated"
)

// Generator produces plausible filler telemetry within configured bands.
// Its output is never source-of-truth data; every record it emits carries
// ProvenanceSynthetic so downstream consumers can tell it apart.
type Generator struct {
	cfg    config.SyntheticConfig
	logger *logger.Logger

	// mu guards rng and seq; the synchronizer may generate from both
	// its bootstrap path and its ingest path
	mu  sync.Mutex
	rng *rand.Rand
	seq int
}

// NewGenerator creates a new synthetic telemetry generator. The rand
// source is injected so tests can seed it deterministically; pass nil to
// use a time-seeded source.
func NewGenerator(cfg config.SyntheticConfig, rng *rand.Rand, logger *logger.Logger) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{
		cfg:    cfg,
		rng:    rng,
		logger: logger.Named("synthetic"),
	}
}

// Generate produces count records with uniformly distributed position,
// altitude and velocity. When forceUnauthorized is set every record is a
// violation with ReasonForcedSimulated; otherwise each record draws
// unauthorized independently with the configured probability. IDs are
// sequential across calls so a snapshot built from more than one batch
// never contains duplicates.
func (g *Generator) Generate(count int, forceUnauthorized bool) []Record {
	g.mu.Lock()
	defer g.mu.Unlock()

	records := make([]Record, 0, count)
	now := time.Now().UnixMilli()

	for i := 0; i < count; i++ {
		g.seq++
		rec := Record{
			ID:              fmt.Sprintf("SIM-%d", g.seq),
			Latitude:        g.uniform(g.cfg.LatMin, g.cfg.LatMax),
			Longitude:       g.uniform(g.cfg.LonMin, g.cfg.LonMax),
			AltitudeM:       g.uniform(g.cfg.AltMinMeters, g.cfg.AltMaxMeters),
			VelocityKmh:     g.uniform(g.cfg.VelMinKmh, g.cfg.VelMaxKmh),
			TimestampMillis: now,
			Provenance:      ProvenanceSynthetic,
			Status:          StatusAuthorized,
		}

		if forceUnauthorized {
			rec.Status = StatusUnauthorized
			rec.Reason = ReasonForcedSimulated
		} else if g.rng.Float64() < g.cfg.UnauthorizedProbability {
			rec.Status = StatusUnauthorized
			rec.Reason = ReasonSimulated
		}

		records = append(records, rec)
	}

	g.logger.Debug("Generated synthetic telemetry",
		logger.Int("count", count),
		logger.Bool("force_unauthorized", forceUnauthorized),
	)

	return records
}

func (g *Generator) uniform(min, max float64) float64 {
	return min + g.rng.Float64()*(max-min)
}
