package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yegors/skyfence/internal/alerts"
	"github.com/yegors/skyfence/internal/config"
	"github.com/yegors/skyfence/internal/feed"
	"github.com/yegors/skyfence/internal/geo"
	"github.com/yegors/skyfence/internal/telemetry"
	"github.com/yegors/skyfence/internal/websocket"
	"github.com/yegors/skyfence/pkg/logger"
)

const defaultAlertLimit = 50

// Handler handles API requests
type Handler struct {
	sync     *feed.Synchronizer
	alerts   *alerts.Service
	wsServer *websocket.Server
	config   *config.Config
	logger   *logger.Logger
}

// NewHandler creates a new API handler. The alert service may be nil
// when alerting is disabled.
func NewHandler(sync *feed.Synchronizer, alertService *alerts.Service, wsServer *websocket.Server, config *config.Config, logger *logger.Logger) *Handler {
	return &Handler{
		sync:     sync,
		alerts:   alertService,
		wsServer: wsServer,
		config:   config,
		logger:   logger.Named("api-handler"),
	}
}

// GetSnapshot returns the current published snapshot
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.sync.Snapshot())
}

// GetDroneByID returns a single record from the current snapshot
func (h *Handler) GetDroneByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, rec := range h.sync.Snapshot().Records {
		if rec.ID == id {
			h.respondJSON(w, http.StatusOK, rec)
			return
		}
	}
	h.respondError(w, http.StatusNotFound, "drone not found")
}

// GetZones returns the current restricted-zone set
func (h *Handler) GetZones(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"restricted_zones": h.sync.Zones(),
	})
}

// RefreshZones triggers a zone re-fetch and re-classification
func (h *Handler) RefreshZones(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.RefreshZones(r.Context()); err != nil {
		h.logger.Warn("Zone refresh failed", logger.Error(err))
		h.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"restricted_zones": h.sync.Zones(),
	})
}

// GetValidation returns the consistency counts for the current snapshot
func (h *Handler) GetValidation(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.sync.Validation())
}

// GetStats returns derived metrics for the current snapshot
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.sync.Stats())
}

// GetAlerts returns recent stored alerts
func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	if h.alerts == nil {
		h.respondError(w, http.StatusNotFound, "alerting disabled")
		return
	}

	limit := defaultAlertLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			h.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	records, err := h.alerts.RecentAlerts(limit)
	if err != nil {
		h.logger.Error("Failed to load alerts", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to load alerts")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(records),
		"alerts": records,
	})
}

// Probe classifies a caller-supplied position against the current zone
// set without ingesting it
func (h *Handler) Probe(w http.ResponseWriter, r *http.Request) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("latitude"), 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid latitude")
		return
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("longitude"), 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid longitude")
		return
	}
	if !geo.ValidCoordinates(lat, lon) {
		h.respondError(w, http.StatusBadRequest, "coordinates out of range")
		return
	}

	probe := telemetry.Record{
		ID:              "TEST-DRONE",
		Latitude:        lat,
		Longitude:       lon,
		TimestampMillis: time.Now().UnixMilli(),
		Provenance:      telemetry.ProvenanceSynthetic,
		Status:          telemetry.StatusAuthorized,
	}
	h.respondJSON(w, http.StatusOK, telemetry.Classify(probe, h.sync.Zones()))
}

// GetHealth returns service liveness and feed connection state
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.sync.Snapshot()
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"feed_state":   h.sync.State().String(),
		"record_count": len(snap.Records),
		"last_updated": snap.LastUpdated,
	})
}

// GetConfig returns the non-sensitive parts of the running configuration
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"feed":      h.config.Feed,
		"synthetic": h.config.Synthetic,
		"zones":     h.config.Zones,
	})
}

// HandleWebSocket upgrades the request to the snapshot broadcast channel
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsServer.HandleConnection(w, r)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", logger.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
