package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config is the top-level application configuration
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Feed      FeedConfig      `toml:"feed"`
	Synthetic SyntheticConfig `toml:"synthetic"`
	Alerts    AlertsConfig    `toml:"alerts"`
	Logging   LoggingConfig   `toml:"logging"`
	Zones     []ZoneConfig    `toml:"zones"`
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Host               string   `toml:"host"`
	Port               int      `toml:"port"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
}

// FeedConfig represents the upstream telemetry feed configuration
type FeedConfig struct {
	SnapshotURL             string `toml:"snapshot_url"`
	ZonesURL                string `toml:"zones_url"`
	StreamURL               string `toml:"stream_url"`
	FetchTimeoutSeconds     int    `toml:"fetch_timeout_seconds"`
	ReconnectDelaySeconds   int    `toml:"reconnect_delay_seconds"`
	BootstrapFallbackDrones int    `toml:"bootstrap_fallback_drones"`
}

// SyntheticConfig represents the synthetic telemetry generator configuration
type SyntheticConfig struct {
	LatMin                  float64 `toml:"lat_min"`
	LatMax                  float64 `toml:"lat_max"`
	LonMin                  float64 `toml:"lon_min"`
	LonMax                  float64 `toml:"lon_max"`
	AltMinMeters            float64 `toml:"alt_min_meters"`
	AltMaxMeters            float64 `toml:"alt_max_meters"`
	VelMinKmh               float64 `toml:"vel_min_kmh"`
	VelMaxKmh               float64 `toml:"vel_max_kmh"`
	UnauthorizedProbability float64 `toml:"unauthorized_probability"`
	TopUpEnabled            bool    `toml:"top_up_enabled"`
	TopUpCount              int     `toml:"top_up_count"`
}

// AlertsConfig represents the violation alerting configuration
type AlertsConfig struct {
	Enabled      bool   `toml:"enabled"`
	DBPath       string `toml:"db_path"`
	EmailEnabled bool   `toml:"email_enabled"`
	SMTPHost     string `toml:"smtp_host"`
	SMTPPort     int    `toml:"smtp_port"`
	Recipient    string `toml:"recipient"`

	// Credentials are read from the environment (.env), never from TOML
	SMTPUsername string `toml:"-"`
	SMTPPassword string `toml:"-"`
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ZoneConfig represents a statically configured restricted zone
type ZoneConfig struct {
	Name      string  `toml:"name"`
	Latitude  float64 `toml:"latitude"`
	Longitude float64 `toml:"longitude"`
	RadiusKm  float64 `toml:"radius_km"`
}

// Load reads the configuration from the given TOML file and overlays
// SMTP credentials from the environment. A missing .env file is not an
// error; credentials may be set directly in the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	_ = godotenv.Load()
	cfg.Alerts.SMTPUsername = os.Getenv("SKYFENCE_SMTP_USERNAME")
	cfg.Alerts.SMTPPassword = os.Getenv("SKYFENCE_SMTP_PASSWORD")

	return cfg, nil
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Feed: FeedConfig{
			FetchTimeoutSeconds:     10,
			ReconnectDelaySeconds:   10,
			BootstrapFallbackDrones: 10,
		},
		Synthetic: SyntheticConfig{
			LatMin:                  25,
			LatMax:                  49,
			LonMin:                  -125,
			LonMax:                  -67,
			AltMinMeters:            100,
			AltMaxMeters:            3000,
			VelMinKmh:               30,
			VelMaxKmh:               200,
			UnauthorizedProbability: 0.4,
			TopUpEnabled:            true,
			TopUpCount:              5,
		},
		Alerts: AlertsConfig{
			Enabled:  true,
			DBPath:   "skyfence.db",
			SMTPPort: 465,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the configuration for values that cannot work
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Feed.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("feed fetch timeout must be positive")
	}
	if c.Feed.ReconnectDelaySeconds <= 0 {
		return fmt.Errorf("feed reconnect delay must be positive")
	}
	if c.Synthetic.LatMin >= c.Synthetic.LatMax {
		return fmt.Errorf("synthetic latitude band is empty")
	}
	if c.Synthetic.LonMin >= c.Synthetic.LonMax {
		return fmt.Errorf("synthetic longitude band is empty")
	}
	if c.Synthetic.AltMinMeters > c.Synthetic.AltMaxMeters {
		return fmt.Errorf("synthetic altitude band is inverted")
	}
	if c.Synthetic.VelMinKmh > c.Synthetic.VelMaxKmh {
		return fmt.Errorf("synthetic velocity band is inverted")
	}
	if c.Synthetic.UnauthorizedProbability < 0 || c.Synthetic.UnauthorizedProbability > 1 {
		return fmt.Errorf("unauthorized probability must be in [0,1]")
	}
	for _, z := range c.Zones {
		if z.RadiusKm <= 0 {
			return fmt.Errorf("zone %q has non-positive radius", z.Name)
		}
	}
	return nil
}

// FetchTimeout returns the feed fetch timeout as a duration
func (c *FeedConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// ReconnectDelay returns the stream reconnect delay as a duration
func (c *FeedConfig) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelaySeconds) * time.Second
}
