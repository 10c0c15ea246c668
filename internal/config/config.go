package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/tournevent/shippo-platforms/pkg/shippo"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"80"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Shippo
	ShippoAPIURL         string        `envconfig:"SHIPPO_API_URL" default:"https://api.goshippo.com"`
	ShippoAPIKey         string        `envconfig:"SHIPPO_API_KEY"`
	ShippoMode           string        `envconfig:"SHIPPO_MODE" default:"test"`
	ShippoEnableLog      bool          `envconfig:"SHIPPO_ENABLE_LOG" default:"false"`
	ShippoTrackingStatus string        `envconfig:"SHIPPO_TRACKING_STATUS" default:"SHIPPO_TRANSIT"`
	ShippoTrackingNumber string        `envconfig:"SHIPPO_TRACKING_NUMBER"`
	ShippoUseMock        bool          `envconfig:"SHIPPO_USE_MOCK" default:"false"`
	ShippoTimeout        time.Duration `envconfig:"SHIPPO_TIMEOUT" default:"30s"`

	// Outbound protection
	ShippoRateLimit       float64       `envconfig:"SHIPPO_RATE_LIMIT" default:"0"`
	ShippoRateBurst       int           `envconfig:"SHIPPO_RATE_BURST" default:"1"`
	ShippoBreakerEnabled  bool          `envconfig:"SHIPPO_BREAKER_ENABLED" default:"false"`
	ShippoBreakerFailures uint32        `envconfig:"SHIPPO_BREAKER_FAILURES" default:"5"`
	ShippoBreakerTimeout  time.Duration `envconfig:"SHIPPO_BREAKER_TIMEOUT" default:"30s"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"shippo-platforms"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables. If envFile is set, it must
// exist and is loaded first; variables already present in the environment win.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.ShippoMode != "" && !shippo.Mode(cfg.ShippoMode).IsTest() && cfg.ShippoMode != string(shippo.ModeLive) {
		return nil, fmt.Errorf("loading config: SHIPPO_MODE must be %q or %q, got %q",
			shippo.ModeTest, shippo.ModeLive, cfg.ShippoMode)
	}
	if shippo.Mode(cfg.ShippoMode).IsTest() && cfg.ShippoTrackingStatus != "" &&
		!shippo.ValidTestTrackingStatus(cfg.ShippoTrackingStatus) {
		return nil, fmt.Errorf("loading config: unknown SHIPPO_TRACKING_STATUS %q", cfg.ShippoTrackingStatus)
	}
	return &cfg, nil
}

// Settings implements shippo.SettingsProvider.
func (c *Config) Settings() shippo.Settings {
	return shippo.Settings{
		APIURL:         c.ShippoAPIURL,
		APIKey:         c.ShippoAPIKey,
		Mode:           shippo.Mode(c.ShippoMode),
		EnableLog:      c.ShippoEnableLog,
		TrackingStatus: c.ShippoTrackingStatus,
		TrackingNumber: c.ShippoTrackingNumber,
	}
}

// ClientConfig returns the transport configuration for shippo.New.
func (c *Config) ClientConfig() shippo.Config {
	cfg := shippo.Config{
		Timeout:   c.ShippoTimeout,
		RateLimit: c.ShippoRateLimit,
		RateBurst: c.ShippoRateBurst,
		UseMock:   c.ShippoUseMock,
	}
	if c.ShippoBreakerEnabled {
		cfg.BreakerFailures = c.ShippoBreakerFailures
		cfg.BreakerTimeout = c.ShippoBreakerTimeout
	}
	return cfg
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.String("shippo.mode", c.ShippoMode),
		attribute.Bool("shippo.mock", c.ShippoUseMock),
		attribute.Bool("shippo.breaker", c.ShippoBreakerEnabled),
	}
}
