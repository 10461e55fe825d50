// Package config handles environment variable loading for ports, database
// strings, and every tunable named by the external interfaces surface.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the controller and worker
// binaries, loaded from environment variables.
type Config struct {
	// Shared
	DatabaseURL       string
	RedisAddr         string
	RedisPassword     string
	OTELCollectorAddr string
	LogLevel          string

	// Controller (cmd/api)
	HTTPPort int

	// Worker (cmd/worker)
	WorkspaceRoot           string
	RuntimeBinary           string
	ContainerNamePrefix     string
	MaxConcurrentContainers int
	ContainerMemoryMB       int
	TotalMemoryMB           int
	MemoryThreshold         float64
	MaxRetries              int
	RetryDelays             []time.Duration
	TimeoutCapMS            int
	MinWorkers              int
	MaxWorkers              int
	ScaleInterval           time.Duration
	JobsPerWorker           int
}

// Load reads configuration from environment variables, applying the same
// defaults as the packages that consume each value.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		DatabaseURL:       dbURL,
		RedisAddr:         getenvDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		OTELCollectorAddr: getenvDefault("OTEL_COLLECTOR_ADDR", "localhost:4317"),
		LogLevel:          getenvDefault("LOG_LEVEL", "info"),

		WorkspaceRoot:       getenvDefault("WORKSPACE_ROOT", "/var/lib/forgerun/workspaces"),
		RuntimeBinary:       getenvDefault("RUNTIME_BINARY", "docker"),
		ContainerNamePrefix: getenvDefault("CONTAINER_NAME_PREFIX", "forgerun"),
	}

	var err error
	if cfg.HTTPPort, err = getenvInt("HTTP_PORT", 6161); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrentContainers, err = getenvInt("MAX_CONCURRENT_CONTAINERS", 10); err != nil {
		return nil, err
	}
	if cfg.ContainerMemoryMB, err = getenvInt("CONTAINER_MEMORY_MB", 512); err != nil {
		return nil, err
	}
	if cfg.TotalMemoryMB, err = getenvInt("TOTAL_MEMORY_MB", 8192); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = getenvInt("MAX_RETRIES", 5); err != nil {
		return nil, err
	}
	if cfg.TimeoutCapMS, err = getenvInt("TIMEOUT_CAP_MS", 300000); err != nil {
		return nil, err
	}
	if cfg.MinWorkers, err = getenvInt("MIN_WORKERS", 1); err != nil {
		return nil, err
	}
	if cfg.MaxWorkers, err = getenvInt("MAX_WORKERS", 20); err != nil {
		return nil, err
	}
	if cfg.JobsPerWorker, err = getenvInt("JOBS_PER_WORKER", 5); err != nil {
		return nil, err
	}

	if cfg.MemoryThreshold, err = getenvFloat("MEMORY_THRESHOLD", 0.9); err != nil {
		return nil, err
	}

	if cfg.ScaleInterval, err = getenvDuration("SCALE_INTERVAL_MS", 10*time.Second); err != nil {
		return nil, err
	}

	cfg.RetryDelays, err = getenvDurationList("RETRY_DELAYS", []time.Duration{
		1 * time.Second, 5 * time.Second, 15 * time.Second, 60 * time.Second, 300 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

// getenvDuration reads a millisecond integer from key.
func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// getenvDurationList reads a comma-separated list of millisecond integers,
// e.g. "1000,5000,15000,60000,300000".
func getenvDurationList(key string, fallback []time.Duration) ([]time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parts := strings.Split(v, ",")
	delays := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		ms, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		delays = append(delays, time.Duration(ms)*time.Millisecond)
	}
	return delays, nil
}
