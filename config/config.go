package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App   AppConfig
	HTTP  ServerConfig
	GRPC  ServerConfig
	MySQL MySQLConfig
	Redis RedisConfig
	Log   LogConfig
	ERP   ERPConfig
	Plans PlansConfig

	InternalEndpoints InternalEndpointsConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

// MySQLConfig is optional. An empty DSN keeps the bundled fallback plans.
type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig is optional. An empty Addr disables cross-instance invalidation.
type RedisConfig struct {
	Addr                string
	Password            string
	DB                  int
	InvalidationChannel string
}

// InternalEndpointsConfig points at the auth service guarding admin routes.
// An empty AuthGRPCAddr leaves them unauthenticated.
type InternalEndpointsConfig struct {
	AuthGRPCAddr string
}

type LogConfig struct {
	Level string
}

// ERPConfig describes the upstream plans API. An empty BaseURL is valid and
// makes every read serve the fallback plans.
type ERPConfig struct {
	BaseURL       string
	APIKey        string
	PlansPath     string
	Timeout       time.Duration
	WebhookSecret string
}

type PlansConfig struct {
	CacheTTL                 time.Duration
	SplitConcatenatedFeature bool
	RefreshInterval          time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "plans-service"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		MySQL: MySQLConfig{
			DSN:             getEnv("MYSQL_DSN", ""),
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 5),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:                getEnv("REDIS_ADDR", ""),
			Password:            getEnv("REDIS_PASSWORD", ""),
			DB:                  getIntEnv("REDIS_DB", 0),
			InvalidationChannel: getEnv("REDIS_INVALIDATION_CHANNEL", "plans:invalidate"),
		},
		Log: LogConfig{Level: getEnv("LOG_LEVEL", "info")},
		ERP: ERPConfig{
			BaseURL:       strings.TrimRight(getEnv("ERP_API_BASE_URL", ""), "/"),
			APIKey:        getEnv("ERP_API_KEY", ""),
			PlansPath:     getEnv("ERP_PLANS_PATH", "/api/public/plans"),
			Timeout:       getMillisecondsEnv("ERP_TIMEOUT_MS", 30*time.Second),
			WebhookSecret: getEnv("ERP_WEBHOOK_SECRET", ""),
		},
		Plans: PlansConfig{
			CacheTTL:                 getMillisecondsEnv("PLANS_CACHE_TTL_MS", 30*time.Second),
			SplitConcatenatedFeature: getBoolEnv("PLANS_SPLIT_CONCATENATED_FEATURES", true),
			RefreshInterval:          getSecondsEnv("PLANS_REFRESH_INTERVAL_SECONDS", 0),
		},
		InternalEndpoints: InternalEndpointsConfig{
			AuthGRPCAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", ""),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	return getUnitEnv(key, time.Minute, defaultValue)
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	return getUnitEnv(key, time.Second, defaultValue)
}

func getMillisecondsEnv(key string, defaultValue time.Duration) time.Duration {
	return getUnitEnv(key, time.Millisecond, defaultValue)
}

func getUnitEnv(key string, unit time.Duration, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n >= 0 {
			return time.Duration(n) * unit
		}
	}
	return defaultValue
}
