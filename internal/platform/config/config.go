package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/SscSPs/currency_exchanger/internal/core/domain"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Supported values of DB_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds application configuration.
type Config struct {
	Port          string
	IsProduction  bool
	DBDriver      string
	DatabaseURL   string
	SQLitePath    string
	EnableDBCheck bool

	// Spread policy
	BaseCurrency    string
	DefaultSpread   decimal.Decimal
	CurrencySpreads map[string]decimal.Decimal

	// Rates provider and ingestion
	RatesAPIBaseURL     string
	RatesAPIKey         string
	RatesAPITimeout     time.Duration
	FetchMaxAttempts    int
	FetchInitialBackoff time.Duration
	RefreshSchedule     string
	SchedulerEnabled    bool
	IngestionRunTimeout time.Duration

	// HTTP server
	RateLimit          string
	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration
	MetricsEnabled     bool
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("PORT", "8080")
	v.SetDefault("IS_PRODUCTION", false)
	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("PGSQL_URL", "")
	v.SetDefault("SQLITE_PATH", "exchanger.db")
	v.SetDefault("ENABLE_DB_CHECK", false)
	v.SetDefault("BASE_CURRENCY", "EUR")
	v.SetDefault("DEFAULT_SPREAD", "6.0")
	v.SetDefault("CURRENCY_SPREADS", "")
	v.SetDefault("RATES_API_BASE_URL", "http://api.exchangeratesapi.io/v1")
	v.SetDefault("RATES_API_KEY", "")
	v.SetDefault("RATES_API_TIMEOUT", "10s")
	v.SetDefault("RATES_FETCH_MAX_ATTEMPTS", 3)
	v.SetDefault("RATES_FETCH_INITIAL_BACKOFF", "1s")
	v.SetDefault("RATES_FETCH_SCHEDULE", "0 5 0 * * *")
	v.SetDefault("SCHEDULER_ENABLED", true)
	v.SetDefault("INGESTION_RUN_TIMEOUT", "2m")
	v.SetDefault("RATE_LIMIT", "100-M")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("METRICS_ENABLED", true)

	v.AutomaticEnv()

	cfg := &Config{
		Port:               v.GetString("PORT"),
		IsProduction:       v.GetBool("IS_PRODUCTION"),
		DBDriver:           strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseURL:        v.GetString("PGSQL_URL"),
		SQLitePath:         v.GetString("SQLITE_PATH"),
		EnableDBCheck:      v.GetBool("ENABLE_DB_CHECK"),
		BaseCurrency:       strings.ToUpper(strings.TrimSpace(v.GetString("BASE_CURRENCY"))),
		RatesAPIBaseURL:    strings.TrimRight(v.GetString("RATES_API_BASE_URL"), "/"),
		RatesAPIKey:        v.GetString("RATES_API_KEY"),
		FetchMaxAttempts:   v.GetInt("RATES_FETCH_MAX_ATTEMPTS"),
		RefreshSchedule:    v.GetString("RATES_FETCH_SCHEDULE"),
		SchedulerEnabled:   v.GetBool("SCHEDULER_ENABLED"),
		RateLimit:          v.GetString("RATE_LIMIT"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		MetricsEnabled:     v.GetBool("METRICS_ENABLED"),
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
		log.Printf("Warning: PORT environment variable not set. Defaulting to %s\n", cfg.Port)
	}

	switch cfg.DBDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			log.Println("Warning: PGSQL_URL environment variable not set.")
		}
	case DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	if len(cfg.BaseCurrency) != 3 {
		return nil, fmt.Errorf("invalid BASE_CURRENCY %q: must be a 3 letter currency code", cfg.BaseCurrency)
	}

	var err error
	if cfg.DefaultSpread, err = parseSpread(v.GetString("DEFAULT_SPREAD")); err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_SPREAD: %w", err)
	}
	if cfg.CurrencySpreads, err = parseCurrencySpreads(v.GetString("CURRENCY_SPREADS")); err != nil {
		return nil, fmt.Errorf("invalid CURRENCY_SPREADS: %w", err)
	}

	cfg.RatesAPITimeout = durationOr(v, "RATES_API_TIMEOUT", 10*time.Second)
	cfg.FetchInitialBackoff = durationOr(v, "RATES_FETCH_INITIAL_BACKOFF", time.Second)
	cfg.IngestionRunTimeout = durationOr(v, "INGESTION_RUN_TIMEOUT", 2*time.Minute)
	cfg.ShutdownTimeout = durationOr(v, "SHUTDOWN_TIMEOUT", 10*time.Second)

	if cfg.FetchMaxAttempts < 1 {
		log.Printf("Warning: Invalid value for RATES_FETCH_MAX_ATTEMPTS (%d). Defaulting to 3.\n", cfg.FetchMaxAttempts)
		cfg.FetchMaxAttempts = 3
	}
	if cfg.RatesAPIKey == "" {
		log.Println("Warning: RATES_API_KEY not set. Rate ingestion will likely be rejected by the provider.")
	}

	return cfg, nil
}

// SpreadPolicy builds the immutable spread policy described by the configuration.
func (c *Config) SpreadPolicy() domain.SpreadPolicy {
	return domain.NewSpreadPolicy(c.BaseCurrency, c.DefaultSpread, c.CurrencySpreads)
}

// parseCurrencySpreads parses "USD:2.0,PLN:5.0".
func parseCurrencySpreads(raw string) (map[string]decimal.Decimal, error) {
	spreads := make(map[string]decimal.Decimal)
	for _, item := range splitList(raw) {
		code, value, ok := strings.Cut(item, ":")
		if !ok {
			return nil, fmt.Errorf("entry %q must look like CODE:PERCENT", item)
		}
		code = strings.ToUpper(strings.TrimSpace(code))
		if len(code) != 3 {
			return nil, fmt.Errorf("entry %q: currency code must be 3 letters", item)
		}
		spread, err := parseSpread(value)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", item, err)
		}
		spreads[code] = spread
	}
	return spreads, nil
}

// parseSpread accepts a percentage in [0, 100).
func parseSpread(raw string) (decimal.Decimal, error) {
	spread, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not a decimal number", raw)
	}
	if spread.IsNegative() || spread.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("spread %s must be between 0 and 100", spread)
	}
	return spread, nil
}

func durationOr(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		if raw != "" {
			log.Printf("Warning: Invalid value for %s ('%s'). Defaulting to %s.\n", key, raw, fallback)
		}
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
