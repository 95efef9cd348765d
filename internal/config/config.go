// Package config loads process configuration from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Store backends understood by storage.Open.
const (
	BackendMongo  = "mongo"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

type Store struct {
	Backend    string        `env:"STORE_BACKEND,default=mongo"`
	MongoURL   string        `env:"MONGODB_URL,default=mongodb://localhost:27017"`
	Database   string        `env:"MONGODB_DATABASE,default=SynapseOS"`
	Collection string        `env:"MONGODB_COLLECTION,default=POC-OMI"`
	Timeout    time.Duration `env:"MONGODB_TIMEOUT,default=10s"`
	BadgerPath string        `env:"BADGER_PATH,default=./data/badger"`
	DataDir    string        `env:"DATA_DIR,default=./data"`
}

type Config struct {
	Store Store

	Host            string `env:"HOST,default=0.0.0.0"`
	Port            int    `env:"PORT,default=8000"`
	LogMode         string `env:"LOG_MODE,default=development"`
	LogLevel        string `env:"LOG_LEVEL"`
	CORSOrigins     string `env:"CORS_ORIGINS,default=*"`
	RepairBatchSize int    `env:"REPAIR_BATCH_SIZE,default=1000"`
	TLSSelfSigned   bool   `env:"TLS_SELF_SIGNED,default=false"`

	OTelEnabled     bool   `env:"OTEL_ENABLED,default=false"`
	OTelExporter    string `env:"OTEL_EXPORTER,default=stdout"`
	OTelServiceName string `env:"OTEL_SERVICE_NAME,default=celerix-messages"`
}

// Load reads .env (when present) into the process environment, then unmarshals it.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if _, err := env.UnmarshalFromEnviron(&cfg.Store); err != nil {
		return Config{}, fmt.Errorf("store config error: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks values the environment parser cannot.
func (c Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if c.RepairBatchSize <= 0 {
		return fmt.Errorf("REPAIR_BATCH_SIZE must be positive, got %d", c.RepairBatchSize)
	}
	switch c.OTelExporter {
	case "stdout", "otlp":
	default:
		return fmt.Errorf("OTEL_EXPORTER must be stdout or otlp, got %q", c.OTelExporter)
	}
	return nil
}

func (s Store) Validate() error {
	switch s.Backend {
	case BackendMongo, BackendBadger, BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be one of mongo, badger, memory; got %q", s.Backend)
	}
	if strings.TrimSpace(s.Collection) == "" {
		return fmt.Errorf("MONGODB_COLLECTION must not be empty")
	}
	return nil
}

// Address is the listen address of the HTTP server.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
