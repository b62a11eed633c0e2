// Package config provides configuration loading from environment variables and plan files.
package config

import (
	"log/slog"
	"strings"
	"time"

	"slopectl/internal/apperrors"
)

// DefaultAPIURL is the public Slope API base URL.
const DefaultAPIURL = "https://api.slopesoftware.com/api/v1"

// ClientConfig holds configuration for the Slope API client.
type ClientConfig struct {
	APIURL          string
	APIKey          string
	APISecret       string
	HTTPTimeout     time.Duration // Per-request timeout for authenticated API calls
	TransferTimeout time.Duration // Per-request timeout for storage PUT/GET
	RateLimit       float64       // Client-side requests per second (0 disables)

	RunPollInterval    time.Duration
	RunTimeout         time.Duration // 0 waits until the projection stops running
	ReportPollInterval time.Duration
	ReportTimeout      time.Duration
	LenientProbe       bool // Treat a failing running probe as "not running"
	LoadParallel       int  // Default number of tables loaded at once

	MetricsAddr string
	LogLevel    slog.Level
}

// LoadClientConfig loads client configuration from environment variables.
func LoadClientConfig() *ClientConfig {
	return &ClientConfig{
		APIURL:          strings.TrimRight(GetEnv("SLOPE_API_URL", DefaultAPIURL), "/"),
		APIKey:          GetSecret("SLOPE_API_KEY"),
		APISecret:       GetSecret("SLOPE_API_SECRET"),
		HTTPTimeout:     GetDurationEnv("SLOPE_HTTP_TIMEOUT", 60*time.Second),
		TransferTimeout: GetDurationEnv("SLOPE_TRANSFER_TIMEOUT", 30*time.Minute),
		RateLimit:       GetFloatEnv("SLOPE_RATE_LIMIT", 0),

		RunPollInterval:    GetDurationEnv("SLOPE_RUN_POLL_INTERVAL", 15*time.Second),
		RunTimeout:         GetDurationEnv("SLOPE_RUN_TIMEOUT", 0),
		ReportPollInterval: GetDurationEnv("SLOPE_REPORT_POLL_INTERVAL", 5*time.Second),
		ReportTimeout:      GetDurationEnv("SLOPE_REPORT_TIMEOUT", 15*time.Minute),
		LenientProbe:       GetBoolEnv("SLOPE_LENIENT_RUNNING_PROBE", false),
		LoadParallel:       GetIntEnv("SLOPE_LOAD_PARALLEL", 1),

		MetricsAddr: GetEnv("METRICS_ADDR", ""),
		LogLevel:    ParseLogLevel(GetEnv("LOG_LEVEL", "info")),
	}
}

// Validate checks the settings needed to talk to the API.
func (c *ClientConfig) Validate() error {
	if c.APIURL == "" {
		return apperrors.Validation("apiUrl", "API URL is required")
	}
	if c.APIKey == "" {
		return apperrors.Validation("apiKey", "API key is required (SLOPE_API_KEY or SLOPE_API_KEY_FILE)")
	}
	if c.APISecret == "" {
		return apperrors.Validation("apiSecret", "API secret is required (SLOPE_API_SECRET or SLOPE_API_SECRET_FILE)")
	}
	if c.RunPollInterval <= 0 {
		return apperrors.Validation("runPollInterval", "run poll interval must be positive")
	}
	if c.ReportPollInterval <= 0 {
		return apperrors.Validation("reportPollInterval", "report poll interval must be positive")
	}
	if c.RunTimeout < 0 || c.ReportTimeout < 0 {
		return apperrors.Validation("timeout", "timeouts cannot be negative")
	}
	if c.RateLimit < 0 {
		return apperrors.Validation("rateLimit", "rate limit cannot be negative")
	}
	return nil
}

// ParseLogLevel maps a level name to a slog level, defaulting to info.
func ParseLogLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
