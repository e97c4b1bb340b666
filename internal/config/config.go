// Package config reads the environment-variable options recognised by the
// bridge: plain structs populated from os.Getenv with defaults, no binding
// framework.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable the bridge recognises, read under the bare
// environment variable names (no prefix) since this is the only
// implementation of the contract.
type Config struct {
	HostPath         string
	HostCache        string
	MemoryBudgetMB   int
	HandshakeTimeout time.Duration
	RequestTimeout   time.Duration
	Retries          int
	LogLevel         string
	TelemetryFile    string
	Strict           bool
}

const (
	defaultMemoryBudgetMB   = 512
	defaultHandshakeTimeout = 5 * time.Second
	defaultRequestTimeout   = 8 * time.Second
	defaultRetries          = 2
)

// FromEnv builds a Config from the process environment, applying the
// documented default for every variable left unset.
func FromEnv() Config {
	return Config{
		HostPath:         os.Getenv("HOST_PATH"),
		HostCache:        os.Getenv("HOST_CACHE"),
		MemoryBudgetMB:   envInt("HOST_MEMORY_BUDGET_MB", defaultMemoryBudgetMB),
		HandshakeTimeout: envDurationMs("HANDSHAKE_TIMEOUT_MS", defaultHandshakeTimeout),
		RequestTimeout:   envDurationMs("REQUEST_TIMEOUT_MS", defaultRequestTimeout),
		Retries:          maxInt(envInt("HOST_RETRIES", defaultRetries), 1),
		LogLevel:         envOr("LOG_LEVEL", "warn"),
		TelemetryFile:    os.Getenv("TELEMETRY_FILE"),
		Strict:           os.Getenv("STRICT_HOST") == "1",
	}
}

func envOr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDurationMs(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return time.Duration(n) * time.Millisecond
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
