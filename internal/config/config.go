package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Console  ConsoleConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host        string `validate:"required"`
	Port        int    `validate:"gt=0,lte=65535"`
	CORSOrigins []string
}

type BackendConfig struct {
	URL     string `validate:"required,url"`
	Token   string
	Timeout time.Duration `validate:"gt=0"`
}

// PostgresConfig is disabled when Name is empty.
type PostgresConfig struct {
	User     string `validate:"required_with=Name"`
	Password string `validate:"required_with=Name"`
	Name     string
	Host     string `validate:"required_with=Name"`
	Port     int    `validate:"gt=0,lte=65535"`
	SSLMode  string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
}

func (c PostgresConfig) Enabled() bool { return c.Name != "" }

// RedisConfig is disabled when Addr is empty.
type RedisConfig struct {
	Addr     string `validate:"omitempty,hostname_port"`
	Password string
	DB       int `validate:"gte=0"`
}

func (c RedisConfig) Enabled() bool { return c.Addr != "" }

type ConsoleConfig struct {
	TimeZone         string
	Location         *time.Location `validate:"-"`
	BusCacheTTL      time.Duration  `validate:"gte=0"`
	BookingRateLimit int            `validate:"gte=0"`
	SessionIdle      time.Duration  `validate:"gt=0"`
}

type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=text json"`
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverPort, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	backendTimeout, err := durationEnv("BACKEND_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	postgresPort, err := intEnv("POSTGRES_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	redisDB, err := intEnv("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	busCacheTTL, err := durationEnv("BUS_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rateLimit, err := intEnv("BOOKING_RATE_LIMIT", 10)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sessionIdle, err := durationEnv("SESSION_IDLE_TIMEOUT", 2*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:        stringEnv("SERVER_HOST", "localhost"),
			Port:        serverPort,
			CORSOrigins: listEnv("SERVER_CORS_ORIGINS", "*"),
		},
		Backend: BackendConfig{
			URL:     strings.TrimRight(os.Getenv("BACKEND_URL"), "/"),
			Token:   os.Getenv("BACKEND_TOKEN"),
			Timeout: backendTimeout,
		},
		Postgres: PostgresConfig{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			Name:     os.Getenv("POSTGRES_DB"),
			Host:     stringEnv("POSTGRES_HOST", "localhost"),
			Port:     postgresPort,
			SSLMode:  stringEnv("POSTGRES_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Console: ConsoleConfig{
			TimeZone:         stringEnv("CONSOLE_TZ", "Local"),
			BusCacheTTL:      busCacheTTL,
			BookingRateLimit: rateLimit,
			SessionIdle:      sessionIdle,
		},
		Log: LogConfig{
			Level:  strings.ToLower(stringEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(stringEnv("LOG_FORMAT", "text")),
		},
	}

	loc, err := time.LoadLocation(cfg.Console.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid CONSOLE_TZ: %w", op, err)
	}
	cfg.Console.Location = loc

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return cfg, nil
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// listEnv splits a comma separated value and drops empty items.
func listEnv(key, def string) []string {
	var out []string
	for _, item := range strings.Split(stringEnv(key, def), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func intEnv(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
