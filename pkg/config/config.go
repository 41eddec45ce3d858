package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aryan0dhankhar/tasktracker/pkg/database"
)

// Storage backends
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds the application configuration
type Config struct {
	Environment            string
	ServerPort             int
	LogLevel               string
	Storage                string
	Database               *database.Config
	MigrateOnStart         bool
	RedisURL               string
	JWTSecret              string
	JWTIssuer              string
	TokenTTL               time.Duration
	BcryptCost             int
	CORSAllowedOrigins     []string
	RateLimitPerMinute     int
	LoginAttemptsPerMinute int
	KafkaBrokers           []string
	KafkaTopic             string
	EventQueueSize         int
	DashboardCacheTTL      time.Duration
}

// IsProduction reports whether the server runs in production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; real environment
// variables win over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := getInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	ttlHours, err := getInt("TOKEN_TTL_HOURS", 168)
	if err != nil {
		return nil, err
	}
	bcryptCost, err := getInt("BCRYPT_COST", 10)
	if err != nil {
		return nil, err
	}
	rateLimit, err := getInt("RATE_LIMIT_PER_MINUTE", 100)
	if err != nil {
		return nil, err
	}
	loginLimit, err := getInt("LOGIN_ATTEMPTS_PER_MINUTE", 10)
	if err != nil {
		return nil, err
	}
	queueSize, err := getInt("EVENT_QUEUE_SIZE", 256)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := getInt("DASHBOARD_CACHE_TTL_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	dbCfg, err := loadDatabase()
	if err != nil {
		return nil, err
	}

	storage := strings.ToLower(getEnv("STORAGE", StoragePostgres))
	if storage != StoragePostgres && storage != StorageMemory {
		return nil, fmt.Errorf("invalid STORAGE %q: want %s or %s", storage, StoragePostgres, StorageMemory)
	}

	cfg := &Config{
		Environment:            getEnv("ENVIRONMENT", "development"),
		ServerPort:             port,
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		Storage:                storage,
		Database:               dbCfg,
		MigrateOnStart:         getBool("MIGRATE_ON_START", true),
		RedisURL:               os.Getenv("REDIS_URL"),
		JWTSecret:              os.Getenv("JWT_SECRET"),
		JWTIssuer:              getEnv("JWT_ISSUER", "tasktracker"),
		TokenTTL:               time.Duration(ttlHours) * time.Hour,
		BcryptCost:             bcryptCost,
		CORSAllowedOrigins:     parseCSVEnv("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		RateLimitPerMinute:     rateLimit,
		LoginAttemptsPerMinute: loginLimit,
		KafkaBrokers:           parseCSVEnv("KAFKA_BROKERS", nil),
		KafkaTopic:             getEnv("KAFKA_TOPIC", "task-events"),
		EventQueueSize:         queueSize,
		DashboardCacheTTL:      time.Duration(cacheTTL) * time.Second,
	}

	if cfg.IsProduction() && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}
	return cfg, nil
}

func loadDatabase() (*database.Config, error) {
	dbCfg := database.DefaultConfig()
	dbCfg.URL = os.Getenv("DATABASE_URL")
	dbCfg.Host = getEnv("DB_HOST", dbCfg.Host)
	dbCfg.User = getEnv("DB_USER", dbCfg.User)
	dbCfg.Password = getEnv("DB_PASSWORD", dbCfg.Password)
	dbCfg.Database = getEnv("DB_NAME", dbCfg.Database)
	dbCfg.SSLMode = getEnv("DB_SSLMODE", dbCfg.SSLMode)

	port, err := getInt("DB_PORT", dbCfg.Port)
	if err != nil {
		return nil, err
	}
	dbCfg.Port = port
	return dbCfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
