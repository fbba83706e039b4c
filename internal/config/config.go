package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is everything the planner binaries read from the environment
type Config struct {
	// Storage and coordination
	DatabaseURL     string
	RedisURL        string
	ScheduleLockTTL time.Duration

	// HTTP API
	ServerPort      string
	FrontendURL     string
	EnableHSTS      bool
	RateLimit       string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	ServerDebugMode bool

	// Background work
	RabbitMQURL      string
	RabbitMQPrefetch int
	RollbackSchedule string
	WorkerDebugMode  bool

	// Tracing
	OTELEnabled  bool
	OTELEndpoint string

	// Planner is layered: defaults, then PLANNER_CONFIG_FILE, then PLANNER_* variables
	PlannerFile string
	Planner     Planner
}

// ErrRabbitMQRequired is returned by RequireRabbitMQ when no broker is configured
var ErrRabbitMQRequired = errors.New("RABBITMQ_URL is required")

// Load reads the environment and validates the result
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
		ScheduleLockTTL: getEnvDuration("SCHEDULE_LOCK_TTL", 2*time.Minute),

		ServerPort:      getEnv("SERVER_PORT", "8080"),
		FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:      getEnvBool("ENABLE_HSTS", false),
		RateLimit:       getEnv("RATE_LIMIT", "5-S"),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		ServerDebugMode: getEnvBool("SERVER_DEBUG_MODE", false),

		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),
		RollbackSchedule: getEnv("ROLLBACK_SCHEDULE", "@every 15m"),
		WorkerDebugMode:  getEnvBool("WORKER_DEBUG_MODE", false),

		OTELEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		PlannerFile: getEnv("PLANNER_CONFIG_FILE", ""),
		Planner:     DefaultPlanner(),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RabbitMQPrefetch < 1 {
		return nil, fmt.Errorf("RABBITMQ_PREFETCH must be at least 1, got %d", cfg.RabbitMQPrefetch)
	}

	if err := cfg.loadPlanner(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadPlanner() error {
	if c.PlannerFile != "" {
		if err := c.Planner.LoadFile(c.PlannerFile); err != nil {
			return err
		}
	}
	if err := c.Planner.applyEnv(); err != nil {
		return err
	}
	if err := c.Planner.Validate(); err != nil {
		return fmt.Errorf("invalid planner configuration: %w", err)
	}
	return nil
}

// RequireRabbitMQ fails for binaries that cannot run without the task queue
func (c *Config) RequireRabbitMQ() error {
	if c.RabbitMQURL == "" {
		return ErrRabbitMQRequired
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "":
		return defaultValue
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvDuration ignores unparsable and non-positive values
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
