package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Port        string
	BindAddress string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string

	ConnectionTokenSecret string
	ConnectionTokenTTL    time.Duration
	AllowedOrigins        []string

	PersistTimeout       time.Duration
	SessionSweepInterval time.Duration
	SessionStaleAfter    time.Duration
	DefaultTimeLimit     int

	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Port:                  getEnv("PORT", "8080"),
		BindAddress:           getEnv("BIND_ADDRESS", "localhost"),
		DBHost:                getEnv("DB_HOST", "localhost"),
		DBPort:                getEnv("DB_PORT", "5432"),
		DBUser:                getEnv("DB_USER", "quiz"),
		DBPassword:            getEnv("DB_PASSWORD", "quiz123"),
		DBName:                getEnv("DB_NAME", "quiz"),
		RedisEnabled:          getEnvAsBool("REDIS_ENABLED", false),
		RedisHost:             getEnv("REDIS_HOST", "localhost"),
		RedisPort:             getEnv("REDIS_PORT", "6379"),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		ConnectionTokenSecret: getEnv("CONNECTION_TOKEN_SECRET", "change-me-in-production"),
		ConnectionTokenTTL:    getEnvAsDuration("CONNECTION_TOKEN_TTL", 24*time.Hour),
		AllowedOrigins:        getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		PersistTimeout:        getEnvAsDuration("PERSIST_TIMEOUT", 5*time.Second),
		SessionSweepInterval:  getEnvAsDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		SessionStaleAfter:     getEnvAsDuration("SESSION_STALE_AFTER", 10*time.Minute),
		DefaultTimeLimit:      getEnvAsInt("DEFAULT_TIME_LIMIT", 60),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "json"),
	}
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%s", c.BindAddress, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Warn().Str("key", key).Str("value", value).Msg("invalid integer in environment, using default")
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		log.Warn().Str("key", key).Str("value", value).Msg("invalid boolean in environment, using default")
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Warn().Str("key", key).Str("value", value).Msg("invalid duration in environment, using default")
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SetupLogger configures the global zerolog logger.
func SetupLogger(cfg *Config, out io.Writer) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

func InitRedis(cfg *Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       0,
	})
}
