package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds every externally supplied option the service recognizes.
// Values come from the environment; Load never fails, Validate reports what
// is missing or malformed.
type Config struct {
	// HTTP server
	Port string

	// Google Cloud
	ProjectID string
	Bucket    string

	// Transaction log
	Dataset string
	Table   string

	// Ingestion identity and defaults
	DefaultUser     string
	DefaultCurrency string

	// Extraction models, highest priority first.
	Models []string

	LogLevel string
}

// Load reads configuration from the environment, applying defaults.
func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),

		ProjectID: getEnv("GOOGLE_CLOUD_PROJECT", ""),
		Bucket:    getEnv("GCS_BUCKET", ""),

		Dataset: getEnv("BQ_DATASET", "expenses"),
		Table:   getEnv("BQ_TABLE", "transactions"),

		DefaultUser:     getEnv("DEFAULT_USER", "demo"),
		DefaultCurrency: getEnv("DEFAULT_CURRENCY", "CAD"),

		Models: splitList(getEnv("GEMINI_MODELS", "gemini-2.5-flash,gemini-2.0-flash")),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks the loaded configuration and returns a single error
// listing every problem found.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port %q: must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.Bucket == "" {
		problems = append(problems, "GCS_BUCKET is required for receipt ingestion")
	}
	if c.Dataset == "" {
		problems = append(problems, "BQ_DATASET must not be empty")
	}
	if c.Table == "" {
		problems = append(problems, "BQ_TABLE must not be empty")
	}
	if len(c.Models) == 0 {
		problems = append(problems, "GEMINI_MODELS must name at least one model")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitList(value string) []string {
	var result []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}
