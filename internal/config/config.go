package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"marketplace"`
	Env         string `envconfig:"ENV" default:"dev"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile     string `envconfig:"LOG_FILE"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`

	Storage         string `envconfig:"STORAGE" default:"memory"`
	DatabaseURL     string `envconfig:"DATABASE_URL"`
	CatalogSeedFile string `envconfig:"CATALOG_SEED_FILE"`

	MongoURI      string `envconfig:"MONGO_URI"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"marketplace"`

	RedisAddr    string        `envconfig:"REDIS_ADDR"`
	CartCacheTTL time.Duration `envconfig:"CART_CACHE_TTL" default:"15m"`

	KafkaBrokers string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string `envconfig:"KAFKA_TOPIC" default:"marketplace.orders"`

	DeliveryFee         decimal.Decimal `envconfig:"DELIVERY_FEE" default:"50"`
	TaxRate             decimal.Decimal `envconfig:"TAX_RATE" default:"0.13"`
	OrderNumberAttempts int             `envconfig:"ORDER_NUMBER_ATTEMPTS" default:"5"`

	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("config: unknown STORAGE %q", c.Storage)
	}
	if c.DeliveryFee.IsNegative() {
		return errors.New("config: DELIVERY_FEE must not be negative")
	}
	if c.TaxRate.IsNegative() {
		return errors.New("config: TAX_RATE must not be negative")
	}
	if c.OrderNumberAttempts < 1 {
		return errors.New("config: ORDER_NUMBER_ATTEMPTS must be at least 1")
	}
	return nil
}

// Brokers splits KAFKA_BROKERS; an empty result disables the event relay.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
