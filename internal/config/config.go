package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Event source connection
	SourceURL        string
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
	MaxMessageSize   int64

	// Aggregation
	WindowCapacity int

	// Telemetry sampling
	FPSWindow      time.Duration
	MemoryInterval time.Duration
	PingInterval   time.Duration

	// Alert thresholds
	MinFPS       int
	MaxMemoryMB  int
	MaxLatencyMs int64

	// Alert journal (empty path disables it)
	AlertJournalPath string

	// Consumer surface
	ListenAddr string

	// Buffers and shutdown
	BufferSize      int
	ShutdownTimeout time.Duration
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg := &Config{
		Environment:      getEnv("ENV", "development"),
		SourceURL:        getEnv("SOURCE_URL", "ws://localhost:9000/metrics"),
		ReconnectDelay:   getDurationEnv("RECONNECT_DELAY", 3*time.Second),
		HandshakeTimeout: getDurationEnv("HANDSHAKE_TIMEOUT", 10*time.Second),
		MaxMessageSize:   getInt64Env("MAX_MESSAGE_SIZE", 512*1024), // 512KB default
		WindowCapacity:   getIntEnv("WINDOW_CAPACITY", 200),
		FPSWindow:        getDurationEnv("FPS_WINDOW", time.Second),
		MemoryInterval:   getDurationEnv("MEMORY_INTERVAL", 3*time.Second),
		PingInterval:     getDurationEnv("PING_INTERVAL", 5*time.Second),
		MinFPS:           getIntEnv("MIN_FPS", 30),
		MaxMemoryMB:      getIntEnv("MAX_MEMORY_MB", 400),
		MaxLatencyMs:     getInt64Env("MAX_LATENCY_MS", 200),
		AlertJournalPath: getEnv("ALERT_JOURNAL_PATH", ""),
		ListenAddr:       getEnv("LISTEN_ADDR", ":8080"),
		BufferSize:       getIntEnv("BUFFER_SIZE", 256),
		ShutdownTimeout:  getDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.SourceURL == "" {
		return fmt.Errorf("SOURCE_URL must not be empty")
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("RECONNECT_DELAY must be positive")
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("MAX_MESSAGE_SIZE must be positive, got %d", c.MaxMessageSize)
	}
	if c.WindowCapacity <= 0 {
		return fmt.Errorf("WINDOW_CAPACITY must be positive, got %d", c.WindowCapacity)
	}
	if c.FPSWindow <= 0 {
		return fmt.Errorf("FPS_WINDOW must be positive")
	}
	if c.MemoryInterval <= 0 {
		return fmt.Errorf("MEMORY_INTERVAL must be positive")
	}
	if c.PingInterval <= 0 {
		return fmt.Errorf("PING_INTERVAL must be positive")
	}
	if c.MinFPS < 0 {
		return fmt.Errorf("MIN_FPS must not be negative, got %d", c.MinFPS)
	}
	if c.MaxMemoryMB <= 0 {
		return fmt.Errorf("MAX_MEMORY_MB must be positive, got %d", c.MaxMemoryMB)
	}
	if c.MaxLatencyMs <= 0 {
		return fmt.Errorf("MAX_LATENCY_MS must be positive, got %d", c.MaxLatencyMs)
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("BUFFER_SIZE must be positive, got %d", c.BufferSize)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
