package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/yegors/skyfence/internal/config"
	"github.com/yegors/skyfence/internal/telemetry"
	"github.com/yegors/skyfence/pkg/logger"
)

// ConnState is the state of the push-channel connection
type ConnState int32

const (
	// StateDisconnected means no connection exists and none is pending
	StateDisconnected ConnState = iota
	// StateConnecting means a connection attempt is in flight
	StateConnecting
	// StateConnected means the push channel is open
	StateConnected
	// StateReconnectWait means the channel closed and one reconnect
	// attempt is scheduled
	StateReconnectWait
)

// String returns a human-readable state name
func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnectWait:
		return "reconnect_wait"
	default:
		return "disconnected"
	}
}

// Subscriber receives every published snapshot. Callbacks run on the
// synchronizer's goroutine and must not block.
type Subscriber func(*telemetry.Snapshot)

// Synchronizer owns the connection lifecycle to the upstream feed and
// keeps the published snapshot current. It is the only writer of the
// snapshot and the zone set; consumers observe immutable snapshots
// through Snapshot or a subscription.
type Synchronizer struct {
	client    *Client
	generator *telemetry.Generator
	cfg       config.FeedConfig
	synthCfg  config.SyntheticConfig
	clock     Clock
	dialer    *websocket.Dialer
	logger    *logger.Logger

	// mu serializes snapshot publication and guards zones, conn,
	// state and lifecycle flags
	mu      sync.Mutex
	zones   []telemetry.Zone
	conn    *websocket.Conn
	state   ConnState
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	snapMu   sync.RWMutex
	snapshot *telemetry.Snapshot

	subMu       sync.RWMutex
	subscribers []Subscriber
}

// NewSynchronizer creates a new feed synchronizer. staticZones seeds the
// zone set until (and unless) an upstream zone fetch replaces it.
func NewSynchronizer(
	client *Client,
	generator *telemetry.Generator,
	cfg config.FeedConfig,
	synthCfg config.SyntheticConfig,
	staticZones []telemetry.Zone,
	clock Clock,
	logger *logger.Logger,
) *Synchronizer {
	if clock == nil {
		clock = SystemClock{}
	}
	zones := make([]telemetry.Zone, len(staticZones))
	copy(zones, staticZones)

	return &Synchronizer{
		client:    client,
		generator: generator,
		cfg:       cfg,
		synthCfg:  synthCfg,
		clock:     clock,
		dialer:    websocket.DefaultDialer,
		zones:     zones,
		done:      make(chan struct{}),
		snapshot: &telemetry.Snapshot{
			Records: []telemetry.Record{},
			Zones:   zones,
		},
		logger: logger.Named("feed-sync"),
	}
}

// Start bootstraps the snapshot and opens the push channel. The initial
// fetch happens synchronously so a snapshot is published before Start
// returns; streaming and reconnection continue in the background until
// ctx is cancelled or Stop is called.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("synchronizer already started")
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.bootstrap(ctx)

	if s.cfg.StreamURL == "" {
		s.logger.Warn("No stream URL configured, push updates disabled")
		close(s.done)
		return nil
	}

	go s.streamLoop(ctx)
	return nil
}

// Stop closes the push channel, cancels any pending reconnect and waits
// for the stream loop to exit. No reconnect attempt survives Stop.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.closeConn()
	<-s.done

	s.setState(StateDisconnected)
	s.logger.Info("Feed synchronizer stopped")
}

// Snapshot returns the current published snapshot. The returned value is
// immutable; a later publish swaps the reference, never the contents.
func (s *Synchronizer) Snapshot() *telemetry.Snapshot {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snapshot
}

// Validation returns the consistency counts for the current snapshot
func (s *Synchronizer) Validation() telemetry.ValidationResult {
	return telemetry.Validate(s.Snapshot().Records)
}

// Stats returns derived metrics for the current snapshot
func (s *Synchronizer) Stats() telemetry.Stats {
	return telemetry.Summarize(s.Snapshot())
}

// Zones returns a copy of the current restricted-zone set
func (s *Synchronizer) Zones() []telemetry.Zone {
	s.mu.Lock()
	defer s.mu.Unlock()
	zones := make([]telemetry.Zone, len(s.zones))
	copy(zones, s.zones)
	return zones
}

// State returns the current push-channel connection state
func (s *Synchronizer) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers a callback invoked with every published snapshot
func (s *Synchronizer) Subscribe(fn Subscriber) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// RefreshZones re-fetches the restricted-zone set and re-classifies the
// current record set against it
func (s *Synchronizer) RefreshZones(ctx context.Context) error {
	if s.cfg.ZonesURL == "" {
		return fmt.Errorf("no zones endpoint configured")
	}
	zones, err := s.client.FetchZones(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh zones: %w", err)
	}
	s.SetZones(zones)
	return nil
}

// SetZones atomically replaces the zone set, re-classifies the entire
// current record set against it and republishes the snapshot. A zone
// driven re-evaluation never runs the top-up rule; only ingestion of new
// record batches does, otherwise repeated zone updates would grow the
// synthetic record count without bound.
func (s *Synchronizer) SetZones(zones []telemetry.Zone) {
	s.mu.Lock()
	s.zones = make([]telemetry.Zone, len(zones))
	copy(s.zones, zones)

	current := s.Snapshot().Records
	reclassified := telemetry.ClassifyAll(current, s.zones)
	snap := s.swapSnapshotLocked(reclassified)
	s.mu.Unlock()

	s.logger.Info("Zone set replaced, record set re-classified",
		logger.Int("zone_count", len(zones)),
		logger.Int("record_count", len(reclassified)),
	)
	s.notify(snap)
}

// bootstrap performs the initial zone and record fetches. Zone-fetch
// failure keeps the statically configured zones and never blocks record
// ingestion; record-fetch failure substitutes synthetic records so the
// snapshot is never left empty.
func (s *Synchronizer) bootstrap(ctx context.Context) {
	if s.cfg.ZonesURL != "" {
		zones, err := s.client.FetchZones(ctx)
		if err != nil {
			s.logger.Warn("Zone fetch failed, keeping configured zones",
				logger.Error(err),
				logger.Int("zone_count", len(s.Zones())),
			)
		} else {
			s.mu.Lock()
			s.zones = zones
			s.mu.Unlock()
		}
	}

	var records []telemetry.Record
	var err error
	if s.cfg.SnapshotURL != "" {
		records, err = s.client.FetchRecords(ctx)
	} else {
		err = fmt.Errorf("no snapshot URL configured")
	}
	if err != nil {
		s.logger.Warn("Snapshot fetch failed, substituting synthetic records",
			logger.Error(err),
			logger.Int("fallback_count", s.cfg.BootstrapFallbackDrones),
		)
		records = s.generator.Generate(s.cfg.BootstrapFallbackDrones, false)
	}

	s.ingest(records)
}

// ingest classifies a new record batch, applies the top-up rule and
// publishes the result as the new snapshot
func (s *Synchronizer) ingest(records []telemetry.Record) {
	s.mu.Lock()
	classified := telemetry.ClassifyAll(records, s.zones)

	if s.synthCfg.TopUpEnabled && countUnauthorized(classified) == 0 {
		// An all-clear batch is treated as insufficiently informative
		// and padded with forced violations. Top-up records bypass the
		// classifier so their reason survives as-is.
		topUp := s.generator.Generate(s.synthCfg.TopUpCount, true)
		classified = append(classified, topUp...)
		s.logger.Debug("No violations in batch, appended synthetic violations",
			logger.Int("top_up_count", len(topUp)),
		)
	}

	snap := s.swapSnapshotLocked(classified)
	s.mu.Unlock()

	s.logger.Info("Published snapshot",
		logger.Int("record_count", len(snap.Records)),
		logger.Int("unauthorized", countUnauthorized(snap.Records)),
	)
	s.notify(snap)
}

// swapSnapshotLocked builds an immutable snapshot from the given records
// and the current zone set, and swaps it in. Callers hold s.mu.
func (s *Synchronizer) swapSnapshotLocked(records []telemetry.Record) *telemetry.Snapshot {
	zones := make([]telemetry.Zone, len(s.zones))
	copy(zones, s.zones)

	snap := &telemetry.Snapshot{
		Records:     records,
		Zones:       zones,
		LastUpdated: s.clock.Now(),
	}

	s.snapMu.Lock()
	s.snapshot = snap
	s.snapMu.Unlock()
	return snap
}

func (s *Synchronizer) notify(snap *telemetry.Snapshot) {
	s.subMu.RLock()
	subscribers := s.subscribers
	s.subMu.RUnlock()

	for _, fn := range subscribers {
		fn(snap)
	}
}

// streamLoop owns the push channel for the lifetime of the synchronizer.
// It is the only goroutine that dials, reads and closes the connection,
// so a channel close schedules exactly one reconnect attempt and two
// connections are never open at once.
func (s *Synchronizer) streamLoop(ctx context.Context) {
	defer close(s.done)

	for {
		if ctx.Err() != nil {
			return
		}

		// Any previous channel handle must be closed before a new
		// attempt to avoid duplicate subscriptions.
		s.closeConn()
		s.setState(StateConnecting)

		conn, resp, err := s.dialer.DialContext(ctx, s.cfg.StreamURL, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			s.logger.Warn("Stream connection failed",
				logger.String("url", s.cfg.StreamURL),
				logger.Error(err),
			)
		} else if !s.adoptConn(ctx, conn) {
			// Stop raced the dial: its conn sweep already ran, so the
			// new handle would leak unclosed and unread.
			conn.Close()
			return
		} else {
			s.setState(StateConnected)
			s.logger.Info("Stream connected", logger.String("url", s.cfg.StreamURL))

			s.readLoop(ctx, conn)
			s.closeConn()
		}

		if ctx.Err() != nil {
			return
		}

		s.setState(StateReconnectWait)
		s.logger.Info("Stream closed, scheduling reconnect",
			logger.Duration("delay", s.cfg.ReconnectDelay()),
		)

		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(s.cfg.ReconnectDelay()):
		}
	}
}

// readLoop consumes push messages until the connection fails. Malformed
// payloads are logged and discarded; the last good snapshot stays
// published.
func (s *Synchronizer) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("Stream read failed", logger.Error(err))
			}
			return
		}

		records, err := decodePushMessage(data)
		if err != nil {
			s.logger.Warn("Discarding malformed push message",
				logger.Error(err),
				logger.Int("bytes", len(data)),
			)
			continue
		}

		s.ingest(records)
	}
}

func (s *Synchronizer) setState(state ConnState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// adoptConn stores a freshly dialed connection unless the context was
// cancelled in the dial window. Checking under s.mu orders the store
// against Stop's conn sweep: either cancellation is observed here, or
// the sweep runs after the store and closes the connection.
func (s *Synchronizer) adoptConn(ctx context.Context, conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	s.conn = conn
	return true
}

func (s *Synchronizer) closeConn() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func countUnauthorized(records []telemetry.Record) int {
	count := 0
	for _, rec := range records {
		if rec.Unauthorized() {
			count++
		}
	}
	return count
}
