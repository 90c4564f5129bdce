// Package config provides configuration management for the twin bridge.
// It loads configuration from environment variables with sensible defaults and
// validates it so the process fails at startup, not per request, when a
// required value is missing.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - REQUEST_TIMEOUT: Wall-clock budget per webhook invocation (default: 30s)
//   - TLS_CERT / TLS_KEY: Optional TLS certificate and key paths
//
// Webhook Authentication:
//   - DT_SIGNATURE_SECRET: Shared secret the sender signs requests with (required)
//   - DT_SIGNATURE_HEADER: Header carrying the signature (default: X-Dt-Signature)
//   - DT_SIGNATURE_LEEWAY: Accepted clock skew for signature timestamps (default: 5m)
//
// Service Account (OAuth2 JWT-bearer grant):
//   - SERVICE_ACCOUNT_EMAIL: Service account email (required)
//   - SERVICE_ACCOUNT_KEY_ID: Service account key id (required)
//   - SERVICE_ACCOUNT_SECRET: Service account secret (required)
//   - AUTH_ENDPOINT: Identity endpoint for the token exchange (required)
//
// Platform API:
//   - API_URL_BASE: REST API base URL (required)
//   - EMU_URL_BASE: Emulator API base URL, used for twin devices (required)
//
// Outbound Retry:
//   - RETRY_MAX_ATTEMPTS: Attempts per outbound call including the first (default: 3)
//   - RETRY_INITIAL_DELAY: Delay before the first retry (default: 500ms)
//
// Rate Limiting:
//   - RATE_LIMIT_ENABLED: Enable inbound rate limiting (default: true)
//   - RATE_LIMIT_MAX: Requests allowed per window per sender (default: 100)
//   - RATE_LIMIT_WINDOW: Rate limiting time window (default: 60s)
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the twin bridge. All fields
// correspond to environment variables that can be set to override defaults.
type Config struct {
	// Application settings
	Port           string        // Server port number
	LogLevel       string        // Logging level (debug, info, warn, error)
	RequestTimeout time.Duration // Per-invocation wall-clock budget
	TLSCert        string        // Optional TLS certificate path
	TLSKey         string        // Optional TLS key path

	// Webhook signature verification
	SignatureSecret string        // Shared secret used by the sender
	SignatureHeader string        // Header carrying the signature
	SignatureLeeway time.Duration // Accepted clock skew on signed timestamps

	// Service account credentials for the identity endpoint
	ServiceAccountEmail  string
	ServiceAccountKeyID  string
	ServiceAccountSecret string
	AuthEndpoint         string

	// Platform API endpoints
	APIBaseURL      string // REST API base
	EmulatorBaseURL string // Emulator API base (twin devices)

	// Outbound retry policy
	RetryMaxAttempts  int
	RetryInitialDelay time.Duration

	// Inbound rate limiting
	RateLimitEnabled bool
	RateLimitMax     int
	RateLimitWindow  time.Duration
}

// Load creates a new Config instance with values loaded from environment
// variables. It does not validate; call Validate() before use.
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RequestTimeout: getDurationEnv("REQUEST_TIMEOUT", 30*time.Second),
		TLSCert:        getEnv("TLS_CERT", ""),
		TLSKey:         getEnv("TLS_KEY", ""),

		SignatureSecret: getEnv("DT_SIGNATURE_SECRET", ""),
		SignatureHeader: getEnv("DT_SIGNATURE_HEADER", "X-Dt-Signature"),
		SignatureLeeway: getDurationEnv("DT_SIGNATURE_LEEWAY", 5*time.Minute),

		ServiceAccountEmail:  getEnv("SERVICE_ACCOUNT_EMAIL", ""),
		ServiceAccountKeyID:  getEnv("SERVICE_ACCOUNT_KEY_ID", ""),
		ServiceAccountSecret: getEnv("SERVICE_ACCOUNT_SECRET", ""),
		AuthEndpoint:         getEnv("AUTH_ENDPOINT", ""),

		APIBaseURL:      getEnv("API_URL_BASE", ""),
		EmulatorBaseURL: getEnv("EMU_URL_BASE", ""),

		RetryMaxAttempts:  getIntEnv("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialDelay: getDurationEnv("RETRY_INITIAL_DELAY", 500*time.Millisecond),

		RateLimitEnabled: getBoolEnv("RATE_LIMIT_ENABLED", true),
		RateLimitMax:     getIntEnv("RATE_LIMIT_MAX", 100),
		RateLimitWindow:  getDurationEnv("RATE_LIMIT_WINDOW", 60*time.Second),
	}
}

// Validate checks that all required configuration values are present and
// well-formed. A missing required value is a startup-fatal error.
func (c *Config) Validate() error {
	var missing []string

	required := []struct {
		name  string
		value string
	}{
		{"DT_SIGNATURE_SECRET", c.SignatureSecret},
		{"SERVICE_ACCOUNT_EMAIL", c.ServiceAccountEmail},
		{"SERVICE_ACCOUNT_KEY_ID", c.ServiceAccountKeyID},
		{"SERVICE_ACCOUNT_SECRET", c.ServiceAccountSecret},
		{"AUTH_ENDPOINT", c.AuthEndpoint},
		{"API_URL_BASE", c.APIBaseURL},
		{"EMU_URL_BASE", c.EmulatorBaseURL},
	}

	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %v", c.RequestTimeout)
	}

	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.RetryMaxAttempts)
	}

	if c.RateLimitEnabled && c.RateLimitMax < 1 {
		return fmt.Errorf("RATE_LIMIT_MAX must be at least 1, got %d", c.RateLimitMax)
	}

	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("TLS_CERT and TLS_KEY must be set together")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
