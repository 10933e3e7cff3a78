package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/yegors/skyfence/internal/alerts"
	"github.com/yegors/skyfence/internal/config"
	"github.com/yegors/skyfence/internal/feed"
	"github.com/yegors/skyfence/internal/websocket"
	"github.com/yegors/skyfence/pkg/logger"
)

// Router is the API router
type Router struct {
	handler    *Handler
	middleware *Middleware
	config     *config.Config
	logger     *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(sync *feed.Synchronizer, alertService *alerts.Service, wsServer *websocket.Server, config *config.Config, logger *logger.Logger) *Router {
	return &Router{
		handler:    NewHandler(sync, alertService, wsServer, config, logger),
		middleware: NewMiddleware(logger),
		config:     config,
		logger:     logger.Named("api-router"),
	}
}

// Routes returns the API routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(r.middleware.RequestID)
	router.Use(r.middleware.Logger)
	router.Use(r.middleware.Recoverer)
	router.Use(r.middleware.CORS(r.config.Server.CORSAllowedOrigins))

	// API routes
	router.Route("/api/v1", func(router chi.Router) {
		// Snapshot routes
		router.Get("/drones", r.handler.GetSnapshot)
		router.Get("/drones/{id}", r.handler.GetDroneByID)

		// Zone routes
		router.Get("/zones", r.handler.GetZones)
		router.Post("/zones/refresh", r.handler.RefreshZones)

		// Derived views
		router.Get("/validation", r.handler.GetValidation)
		router.Get("/stats", r.handler.GetStats)

		// Alert routes
		router.Get("/alerts", r.handler.GetAlerts)

		// Ad-hoc position check
		router.Post("/probe", r.handler.Probe)

		// WebSocket route
		router.Get("/ws", r.handler.HandleWebSocket)

		// Health check
		router.Get("/health", r.handler.GetHealth)

		// Configuration
		router.Get("/config", r.handler.GetConfig)
	})

	return router
}
