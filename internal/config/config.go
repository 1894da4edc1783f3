package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Version is reported by the CLI and the health check
const Version = "0.1.0"

const (
	// DefaultOutputMarker is inserted before the extension of output files
	DefaultOutputMarker = "worse"

	FailurePolicyAbort = "abort"
	FailurePolicySkip  = "skip"
)

type Config struct {
	// HTTP API
	Host               string
	Port               string
	RequestTimeout     time.Duration
	MaxRequestBodySize int64

	// Image loading
	FetchTimeout time.Duration
	MaxImageSize int64

	// Processing
	Seed          uint64 // 0 seeds from the clock
	Workers       int    // 0 uses one worker per CPU
	OutputMarker  string
	JPEGQuality   int
	FailurePolicy string

	// Azure Blob Storage
	AzureAccountName string
	AzureAccountKey  string
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

func LoadFromEnv() (*Config, error) {
	// Set defaults
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 32*1024*1024), // 32MB
		FetchTimeout:       parseDurationOrDefault("FETCH_TIMEOUT", 30*time.Second),
		MaxImageSize:       parseIntOrDefault("MAX_IMAGE_SIZE", 256*1024*1024), // 256MB
		Seed:               parseUintOrDefault("WORSEN_SEED", 0),
		Workers:            int(parseIntOrDefault("WORSEN_WORKERS", 0)),
		OutputMarker:       getEnvOrDefault("WORSEN_MARKER", DefaultOutputMarker),
		JPEGQuality:        int(parseIntOrDefault("JPEG_QUALITY", 75)),
		FailurePolicy:      getEnvOrDefault("FAILURE_POLICY", FailurePolicyAbort),
		AzureAccountName:   os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureAccountKey:    os.Getenv("AZURE_STORAGE_KEY"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that may also have been overridden by CLI flags
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.FetchTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s)", c.RequestTimeout, c.FetchTimeout)
	}
	if c.Workers < 0 {
		return fmt.Errorf("WORSEN_WORKERS must be >= 0 (got %d)", c.Workers)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("JPEG_QUALITY must be between 1 and 100 (got %d)", c.JPEGQuality)
	}
	marker := strings.TrimSpace(c.OutputMarker)
	if marker == "" || strings.ContainsAny(marker, `/\`) {
		return fmt.Errorf("invalid output marker: %q", c.OutputMarker)
	}
	switch c.FailurePolicy {
	case FailurePolicyAbort, FailurePolicySkip:
	default:
		return fmt.Errorf("FAILURE_POLICY must be %q or %q (got %q)", FailurePolicyAbort, FailurePolicySkip, c.FailurePolicy)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseUintOrDefault(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if uintValue, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64); err == nil {
			return uintValue
		}
	}
	return defaultValue
}
