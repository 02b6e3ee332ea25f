package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"golang.org/x/text/currency"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	ServiceName    string `env:"SERVICE_NAME" env-default:"minishop-fulfillment"`
	ServiceVersion string `env:"SERVICE_VERSION" env-default:"dev"`
	Env            string `env:"ENV" env-default:"local"`
	LogLevel       string `env:"LOG_LEVEL" env-default:"info"`

	HTTP     HTTP
	Storage  string `env:"STORAGE" env-default:"memory"`
	Postgres Postgres
	Redis    Redis
	Kafka    Kafka
	OTel     OTel
	Payment  Payment
}

type HTTP struct {
	Addr            string        `env:"HTTP_ADDR" env-default:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"5s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type Postgres struct {
	URL      string `env:"DATABASE_URL"`
	MaxConns int32  `env:"DATABASE_MAX_CONNS" env-default:"10"`
	Migrate  bool   `env:"DATABASE_MIGRATE" env-default:"true"`
}

type Redis struct {
	Addr           string        `env:"REDIS_ADDR"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" env-default:"24h"`
	ProductTTL     time.Duration `env:"PRODUCT_CACHE_TTL" env-default:"10m"`
}

type Kafka struct {
	Brokers []string `env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `env:"KAFKA_TOPIC" env-default:"minishop.events"`
}

type OTel struct {
	Endpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" env-default:"true"`
}

type Payment struct {
	Currency           string        `env:"STORE_CURRENCY" env-default:"USD"`
	FailureProbability float64       `env:"PAYMENT_FAILURE_PROBABILITY" env-default:"0.3"`
	Latency            time.Duration `env:"PAYMENT_LATENCY" env-default:"100ms"`
	MaxAttempts        int           `env:"PAYMENT_MAX_ATTEMPTS" env-default:"3"`
	BaseDelay          time.Duration `env:"PAYMENT_BASE_DELAY" env-default:"100ms"`
	AutoPayment        bool          `env:"AUTO_PAYMENT" env-default:"false"`
	Breaker            bool          `env:"PAYMENT_CIRCUIT_BREAKER" env-default:"true"`
}

// Load reads .env files when present, then the process environment.
func Load(dotenv ...string) (Config, error) {
	if err := godotenv.Load(dotenv...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load dotenv: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORAGE=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE must be %q or %q, got %q", StorageMemory, StoragePostgres, c.Storage))
	}
	if _, err := c.Currency(); err != nil {
		errs = append(errs, err)
	}
	if c.Payment.FailureProbability < 0 || c.Payment.FailureProbability > 1 {
		errs = append(errs, fmt.Errorf("PAYMENT_FAILURE_PROBABILITY must be within [0,1], got %v", c.Payment.FailureProbability))
	}
	if c.Payment.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("PAYMENT_MAX_ATTEMPTS must be positive, got %d", c.Payment.MaxAttempts))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func (c Config) Currency() (currency.Unit, error) {
	unit, err := currency.ParseISO(c.Payment.Currency)
	if err != nil {
		return currency.Unit{}, fmt.Errorf("STORE_CURRENCY %q: %w", c.Payment.Currency, err)
	}
	return unit, nil
}
