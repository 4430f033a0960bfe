package config

import (
	"errors"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds process settings read from the environment.
type Config struct {
	Port string `envconfig:"PORT" default:"5001"`
	// DB_DSN selects Postgres; empty keeps messages in memory
	DatabaseDSN string `envconfig:"DB_DSN"`
	JWTSecret   string `envconfig:"JWT_SECRET"`

	AMQPURL         string `envconfig:"AMQP_URL"`
	AMQPExchange    string `envconfig:"AMQP_EXCHANGE" default:"chat.events"`
	AuditRoutingKey string `envconfig:"AUDIT_ROUTING_KEY" default:"audit.chat"`

	// OTEL_EXPORTER_OTLP_ENDPOINT empty disables trace export
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"chat-backend"`
	Environment  string `envconfig:"ENVIRONMENT" default:"local"`

	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`
	WSSendBuffer   int      `envconfig:"WS_SEND_BUFFER" default:"64"`
	GroupFeedLimit int      `envconfig:"GROUP_FEED_LIMIT" default:"0"`
	DebugRoutes    bool     `envconfig:"DEBUG_ROUTES" default:"false"`
}

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	if cfg.WSSendBuffer <= 0 {
		return Config{}, errors.New("WS_SEND_BUFFER must be positive")
	}
	if cfg.GroupFeedLimit < 0 {
		return Config{}, errors.New("GROUP_FEED_LIMIT must not be negative")
	}
	return cfg, nil
}

// StoreMode names the message store selected by the config.
func (c Config) StoreMode() string {
	if c.DatabaseDSN == "" {
		return "memory"
	}
	return "postgres"
}
