package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yegors/skyfence/internal/alerts"
	"github.com/yegors/skyfence/internal/api"
	"github.com/yegors/skyfence/internal/config"
	"github.com/yegors/skyfence/internal/feed"
	"github.com/yegors/skyfence/internal/storage/sqlite"
	"github.com/yegors/skyfence/internal/telemetry"
	"github.com/yegors/skyfence/internal/websocket"
	"github.com/yegors/skyfence/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting skyfence",
		logger.String("config", *configPath),
		logger.Int("static_zones", len(cfg.Zones)),
	)

	// Alerting (optional)
	var alertService *alerts.Service
	if cfg.Alerts.Enabled {
		db, err := sqlite.Open(cfg.Alerts.DBPath)
		if err != nil {
			log.Error("Failed to open alert database", logger.Error(err))
			os.Exit(1)
		}
		defer db.Close()

		storage, err := sqlite.NewAlertStorage(db, log)
		if err != nil {
			log.Error("Failed to initialize alert storage", logger.Error(err))
			os.Exit(1)
		}

		var mailer *alerts.Mailer
		if cfg.Alerts.EmailEnabled {
			if cfg.Alerts.SMTPUsername == "" || cfg.Alerts.SMTPPassword == "" {
				log.Warn("Email alerting enabled but SMTP credentials missing, email disabled")
			} else {
				mailer = alerts.NewMailer(
					cfg.Alerts.SMTPHost,
					cfg.Alerts.SMTPPort,
					cfg.Alerts.SMTPUsername,
					cfg.Alerts.SMTPPassword,
					cfg.Alerts.Recipient,
					log,
				)
			}
		}

		alertService = alerts.NewService(storage, mailer, log)
	}

	// Feed pipeline
	generator := telemetry.NewGenerator(cfg.Synthetic, nil, log)
	client := feed.NewClient(cfg.Feed.SnapshotURL, cfg.Feed.ZonesURL, cfg.Feed.FetchTimeout(), log)
	feedSync := feed.NewSynchronizer(client, generator, cfg.Feed, cfg.Synthetic, staticZones(cfg), feed.SystemClock{}, log)

	// Consumers
	wsServer := websocket.NewServer(cfg.Server.CORSAllowedOrigins, log)
	feedSync.Subscribe(func(snap *telemetry.Snapshot) {
		wsServer.Broadcast(snap)
	})
	if alertService != nil {
		feedSync.Subscribe(func(snap *telemetry.Snapshot) {
			alertService.OnSnapshot(snap)
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := feedSync.Start(ctx); err != nil {
		log.Error("Failed to start feed synchronizer", logger.Error(err))
		os.Exit(1)
	}

	// HTTP server
	router := api.NewRouter(feedSync, alertService, wsServer, cfg, log)
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router.Routes(),
	}

	go func() {
		log.Info("HTTP server listening", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", logger.Error(err))
			cancel()
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("Shutting down", logger.String("signal", sig.String()))
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown failed", logger.Error(err))
	}

	feedSync.Stop()
	wsServer.Close()
	log.Info("Shutdown complete")
}

func staticZones(cfg *config.Config) []telemetry.Zone {
	zones := make([]telemetry.Zone, 0, len(cfg.Zones))
	for _, z := range cfg.Zones {
		zones = append(zones, telemetry.Zone{
			Name:      z.Name,
			Latitude:  z.Latitude,
			Longitude: z.Longitude,
			RadiusKm:  z.RadiusKm,
		})
	}
	return zones
}
