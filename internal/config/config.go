package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	// BaseDomain is the platform's shared domain; tenant organizations are
	// addressed as <subdomain>.<BaseDomain>.
	BaseDomain string
	BaseScheme string

	HTTPAddr string

	AuthCookieSecure bool
	SessionTTL       time.Duration

	OTLPEndpoint string

	RedisAddr     string
	RedisPassword string

	// BillingWebhookSecret authenticates billing provider callbacks. An
	// empty value rejects all webhook deliveries.
	BillingWebhookSecret string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

// Module provides Config to the fx graph.
var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewAccessConfigHolder),
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	return Config{
		AppName:              getenv("APP_SERVICE", "lokera"),
		AppVersion:           getenv("APP_VERSION", "0.1.0"),
		Environment:          environment,
		BaseDomain:           strings.ToLower(strings.TrimSpace(getenv("BASE_DOMAIN", "lokera.app"))),
		BaseScheme:           normalizeScheme(getenv("BASE_SCHEME", "https")),
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		AuthCookieSecure:     authCookieSecure,
		SessionTTL:           getenvDuration("SESSION_TTL", 7*24*time.Hour),
		OTLPEndpoint:         getenv("OTLP_ENDPOINT", "localhost:4317"),
		RedisAddr:            strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:        getenv("REDIS_PASSWORD", ""),
		BillingWebhookSecret: getenv("BILLING_WEBHOOK_SECRET", ""),
		DBType:               getenv("DATABASE_TYPE", "postgres"),
		DBHost:               getenv("DATABASE_HOST", "localhost"),
		DBPort:               getenv("DATABASE_PORT", "5432"),
		DBName:               getenv("DATABASE_NAME", "lokera"),
		DBUser:               getenv("DATABASE_USER", "lokera"),
		DBPassword:           getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:            getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:        getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:        getenvInt("DATABASE_MAX_OPEN_CONN", 25),
	}
}

func normalizeScheme(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "http" {
		return "http"
	}
	return "https"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
