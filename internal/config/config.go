// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend names accepted by VQE_BACKEND.
const (
	BackendStatevector = "statevector"
	BackendSampling    = "sampling"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the runs database (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	// Oracle backend
	Backend string
	Shots   int     // 0 = exact expectation values
	Seed    *uint64 // nil = nondeterministic

	// Optimizer defaults used when a request leaves them out
	Method          string
	MaxIterations   int
	Tolerance       float64
	Timeout         time.Duration // 0 = no wall-clock budget
	Strategies      []string      // Candidates for the adaptive driver
	GradientWorkers int

	ExactQubitLimit   int    // Ceiling for dense diagonalization
	BenchmarkSchedule string // Cron expression for the reference benchmark, empty disables
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("VQE_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:           absDataDir,
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Port:              getEnvAsInt("VQE_PORT", 8080),
		DevMode:           getEnvAsBool("DEV_MODE", false),
		Backend:           strings.ToLower(getEnv("VQE_BACKEND", BackendStatevector)),
		Shots:             getEnvAsInt("VQE_SHOTS", 0),
		Seed:              getEnvAsSeed("VQE_SEED"),
		Method:            getEnv("VQE_METHOD", "cobyla"),
		MaxIterations:     getEnvAsInt("VQE_MAX_ITERATIONS", 100),
		Tolerance:         getEnvAsFloat("VQE_TOLERANCE", 1e-6),
		Timeout:           getEnvAsDuration("VQE_TIMEOUT", 0),
		Strategies:        getEnvAsList("VQE_STRATEGIES", []string{"cobyla", "nelder-mead"}),
		GradientWorkers:   getEnvAsInt("VQE_GRADIENT_WORKERS", 4),
		ExactQubitLimit:   getEnvAsInt("VQE_EXACT_QUBIT_LIMIT", 12),
		BenchmarkSchedule: getEnv("VQE_BENCHMARK_SCHEDULE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	switch c.Backend {
	case BackendStatevector:
	case BackendSampling:
		if c.Shots <= 0 {
			return fmt.Errorf("backend %q requires VQE_SHOTS > 0", c.Backend)
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	if c.Shots < 0 {
		return fmt.Errorf("shots must be non-negative, got %d", c.Shots)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive, got %d", c.MaxIterations)
	}
	if c.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %g", c.Tolerance)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative, got %s", c.Timeout)
	}
	if c.GradientWorkers <= 0 {
		return fmt.Errorf("gradient workers must be positive, got %d", c.GradientWorkers)
	}
	if c.ExactQubitLimit <= 0 {
		return fmt.Errorf("exact qubit limit must be positive, got %d", c.ExactQubitLimit)
	}
	if len(c.Strategies) == 0 {
		return fmt.Errorf("at least one adaptive strategy is required")
	}

	return nil
}

// DatabasePath returns the location of the runs database
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "runs.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsSeed(key string) *uint64 {
	if value := os.Getenv(key); value != "" {
		if seed, err := strconv.ParseUint(value, 10, 64); err == nil {
			return &seed
		}
	}
	return nil
}

// getEnvAsList splits a comma separated value, dropping empty entries
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
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
