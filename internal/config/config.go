// Package config loads runtime settings from .env and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/linuxmatters/mediactl/internal/engine/daemon"
	"github.com/linuxmatters/mediactl/internal/engine/natsengine"
	"github.com/linuxmatters/mediactl/internal/slots"
	"github.com/linuxmatters/mediactl/internal/store"
)

type Config struct {
	Engine  EngineConfig
	Control ControlConfig
	Storage StorageConfig
	App     AppConfig
	Otel    OtelConfig
}

type EngineConfig struct {
	Transport   string        `validate:"oneof=sim daemon nats"`
	Socket      string        `validate:"required_if=Transport daemon"`
	NatsURL     string        `validate:"required_if=Transport nats"`
	NatsPrefix  string        `validate:"required"`
	CallTimeout time.Duration `validate:"gt=0"`
}

type ControlConfig struct {
	QuietWindow time.Duration `validate:"gt=0"`
	Codec       string
	BitrateKbps int `validate:"gte=0"`
	SampleRate  int `validate:"gte=0"`
}

type StorageConfig struct {
	DBPath   string `validate:"required"`
	Slots    string `validate:"oneof=memory redis"`
	RedisURL string `validate:"required_if=Slots redis"`
	SlotTTL  time.Duration
}

type AppConfig struct {
	Addr       string `validate:"required,hostname_port"`
	LogFile    string
	Production bool
	Strict     bool
	Debug      bool
}

type OtelConfig struct {
	Enabled  bool
	Endpoint string `validate:"required_if=Enabled true"`
}

// Load reads .env if present and builds a validated Config from MEDIACTL_*
// variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from the environment without validating it.
func FromEnv() *Config {
	return &Config{
		Engine: EngineConfig{
			Transport:   getEnv("MEDIACTL_ENGINE", "sim"),
			Socket:      getEnv("MEDIACTL_SOCKET", daemon.SocketPath()),
			NatsURL:     getEnv("MEDIACTL_NATS_URL", "nats://localhost:4222"),
			NatsPrefix:  getEnv("MEDIACTL_NATS_PREFIX", natsengine.DefaultPrefix),
			CallTimeout: getEnvAsDuration("MEDIACTL_CALL_TIMEOUT", 6*time.Second),
		},
		Control: ControlConfig{
			QuietWindow: getEnvAsDuration("MEDIACTL_QUIET_WINDOW", 100*time.Millisecond),
			Codec:       getEnv("MEDIACTL_EXPORT_CODEC", "aac"),
			BitrateKbps: getEnvAsInt("MEDIACTL_EXPORT_BITRATE", 192),
			SampleRate:  getEnvAsInt("MEDIACTL_EXPORT_SAMPLE_RATE", 48000),
		},
		Storage: StorageConfig{
			DBPath:   getEnv("MEDIACTL_DB", store.DefaultDBPath()),
			Slots:    getEnv("MEDIACTL_SLOTS", "memory"),
			RedisURL: getEnv("MEDIACTL_REDIS_URL", ""),
			SlotTTL:  getEnvAsDuration("MEDIACTL_SLOT_TTL", slots.DefaultTTL),
		},
		App: AppConfig{
			Addr:       getEnv("MEDIACTL_ADDR", "127.0.0.1:7480"),
			LogFile:    getEnv("MEDIACTL_LOG_FILE", ""),
			Production: getEnv("MEDIACTL_ENV", "development") == "production",
			Strict:     getEnvAsBool("MEDIACTL_STRICT", false),
			Debug:      getEnvAsBool("MEDIACTL_DEBUG", false),
		},
		Otel: OtelConfig{
			Enabled:  getEnvAsBool("MEDIACTL_OTEL_ENABLED", false),
			Endpoint: getEnv("MEDIACTL_OTEL_ENDPOINT", "localhost:4318"),
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints. Call it again after flag overrides.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s (%s=%v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}
