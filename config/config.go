// Package config collects the environment-driven settings of the client
// synchronization runtime, grounded on client.py's and websocket_client.py's
// os.getenv(...)-with-defaults pattern.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

// Config holds the five environment variables spec.md §6 names; WebSocketURL
// and HTTPURL derive the endpoint URLs from them.
type Config struct {
	WSBaseURL   string `validate:"required,url"`
	WSPort      string `validate:"required,numeric"`
	HTTPBaseURL string `validate:"required,url"`
	HTTPPort    string `validate:"required,numeric"`

	// KeyringService names the OS keyring service under which the API key
	// is stored, default "tellurio".
	KeyringService string `validate:"required"`
}

const (
	envWSBaseURL      = "TELLURIO_BACKEND_WS_BASE_URL"
	envWSPort         = "TELLURIO_BACKEND_WS_PORT"
	envHTTPBaseURL    = "TELLURIO_BACKEND_HTTP_BASE_URL"
	envHTTPPort       = "TELLURIO_BACKEND_HTTP_PORT"
	envKeyringService = "KEYRING_SERVICE_NAME"

	defaultWSBaseURL      = "ws://localhost"
	defaultWSPort         = "8001"
	defaultHTTPBaseURL    = "http://localhost"
	defaultHTTPPort       = "8000"
	defaultKeyringService = "tellurio"
)

// Load reads Config from the environment, applying the same defaults the
// Python client falls back to when a variable is unset.
func Load() (*Config, error) {
	cfg := &Config{
		WSBaseURL:      getenv(envWSBaseURL, defaultWSBaseURL),
		WSPort:         getenv(envWSPort, defaultWSPort),
		HTTPBaseURL:    getenv(envHTTPBaseURL, defaultHTTPBaseURL),
		HTTPPort:       getenv(envHTTPPort, defaultHTTPPort),
		KeyringService: getenv(envKeyringService, defaultKeyringService),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// WebSocketURL returns the full `/ws/v0/rpc/` endpoint URL.
func (c *Config) WebSocketURL() string {
	return fmt.Sprintf("%s:%s/ws/v0/rpc/", c.WSBaseURL, c.WSPort)
}

// HTTPURL returns the base REST URL, e.g. for building
// `/api/v0/verify-api-key/`.
func (c *Config) HTTPURL() string {
	return fmt.Sprintf("%s:%s", c.HTTPBaseURL, c.HTTPPort)
}
