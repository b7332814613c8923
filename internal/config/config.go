package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultHTTPAddr           = ":8080"
	defaultDatabaseURL        = "hotel.db"
	defaultJWTSecret          = "change-me-jwt-secret"
	defaultJWTIssuer          = "hotelpms"
	defaultHotelTimezone      = "UTC"
	defaultTaxFallbackName    = "Tax"
	defaultTaxFallbackRate    = "18"
	defaultTaxCacheTTL        = "60s"
	defaultEventsExchange     = "hotel.events"
	defaultJobsEnabled        = "true"
	defaultPromoRetryInterval = "1m"
	defaultReconcileInterval  = "15m"
	defaultSnowflakeNode      = "1"
	defaultRetryAfter         = "2s"
)

type Config struct {
	AppEnv             string
	HTTPAddr           string
	DatabaseURL        string
	JWTSecret          string
	JWTIssuer          string
	HotelLocation      *time.Location
	TaxFallbackName    string
	TaxFallbackRate    decimal.Decimal
	TaxCacheTTL        time.Duration
	RedisURL           string
	RabbitMQURL        string
	EventsExchange     string
	CORSAllowedOrigins []string
	LogFile            string
	EventLogFile       string
	JobsEnabled        bool
	PromoRetryInterval time.Duration
	ReconcileInterval  time.Duration
	SnowflakeNode      int64
	RetryAfter         time.Duration
	InternalToken      string
	InternalAllowedIPs []string
}

func Load() (*Config, error) {
	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.JWTIssuer = strings.TrimSpace(getEnv("JWT_ISSUER", defaultJWTIssuer))
	cfg.TaxFallbackName = strings.TrimSpace(getEnv("TAX_FALLBACK_NAME", defaultTaxFallbackName))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.RabbitMQURL = strings.TrimSpace(os.Getenv("RABBITMQ_URL"))
	cfg.EventsExchange = strings.TrimSpace(getEnv("EVENTS_EXCHANGE", defaultEventsExchange))
	cfg.CORSAllowedOrigins = parseListEnv("CORS_ALLOWED_ORIGINS")
	cfg.LogFile = strings.TrimSpace(os.Getenv("LOG_FILE"))
	cfg.EventLogFile = strings.TrimSpace(getEnv("EVENT_LOG_FILE", "logs/events.log"))
	cfg.JobsEnabled = parseBoolEnv("JOBS_ENABLED", defaultJobsEnabled)
	cfg.InternalToken = strings.TrimSpace(os.Getenv("INTERNAL_TOKEN"))
	cfg.InternalAllowedIPs = parseListEnv("INTERNAL_ALLOWED_IPS")

	tz := strings.TrimSpace(getEnv("HOTEL_TIMEZONE", defaultHotelTimezone))
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid HOTEL_TIMEZONE value %q: %w", tz, err)
	}
	cfg.HotelLocation = loc

	rate := strings.TrimSpace(getEnv("TAX_FALLBACK_RATE", defaultTaxFallbackRate))
	cfg.TaxFallbackRate, err = decimal.NewFromString(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid TAX_FALLBACK_RATE value %q: %w", rate, err)
	}

	if cfg.TaxCacheTTL, err = parseDurationEnv("TAX_CACHE_TTL", defaultTaxCacheTTL); err != nil {
		return nil, err
	}
	if cfg.PromoRetryInterval, err = parseDurationEnv("PROMO_RETRY_INTERVAL", defaultPromoRetryInterval); err != nil {
		return nil, err
	}
	if cfg.ReconcileInterval, err = parseDurationEnv("RECONCILE_INTERVAL", defaultReconcileInterval); err != nil {
		return nil, err
	}
	if cfg.RetryAfter, err = parseDurationEnv("RETRY_AFTER", defaultRetryAfter); err != nil {
		return nil, err
	}

	node := strings.TrimSpace(getEnv("SNOWFLAKE_NODE", defaultSnowflakeNode))
	cfg.SnowflakeNode, err = strconv.ParseInt(node, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SNOWFLAKE_NODE value %q: %w", node, err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	log.Printf("config loaded: env=%s addr=%s tz=%s redis=%t rabbitmq=%t jobs=%t", cfg.AppEnv, cfg.HTTPAddr, cfg.HotelLocation, cfg.RedisURL != "", cfg.RabbitMQURL != "", cfg.JobsEnabled)

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if cfg.TaxFallbackName == "" {
		return fmt.Errorf("TAX_FALLBACK_NAME must not be empty")
	}
	if cfg.TaxFallbackRate.IsNegative() || cfg.TaxFallbackRate.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("TAX_FALLBACK_RATE must be between 0 and 100")
	}
	if cfg.TaxCacheTTL < 0 {
		return fmt.Errorf("TAX_CACHE_TTL must be >= 0")
	}
	if cfg.PromoRetryInterval <= 0 {
		return fmt.Errorf("PROMO_RETRY_INTERVAL must be > 0")
	}
	if cfg.ReconcileInterval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must be > 0")
	}
	if cfg.SnowflakeNode < 0 || cfg.SnowflakeNode > 1023 {
		return fmt.Errorf("SNOWFLAKE_NODE must be between 0 and 1023")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if !strings.HasPrefix(cfg.DatabaseURL, "postgres://") && !strings.HasPrefix(cfg.DatabaseURL, "postgresql://") {
			return fmt.Errorf("in prod/release DATABASE_URL must point to PostgreSQL")
		}
	}

	return nil
}

func (c *Config) IsProd() bool {
	return isProdLike(c.AppEnv)
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func parseListEnv(name string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(name), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
