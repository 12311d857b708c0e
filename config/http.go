package config

import (
	"fmt"
	"time"
)

// HTTPConfig defines the API server settings.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// Token enables bearer authentication on /api routes when set.
	Token string `json:"token"`
	// AllowedOrigin is echoed in CORS headers for browser clients.
	AllowedOrigin          string `json:"allowed_origin"`
	ReadTimeoutSeconds     int    `json:"read_timeout_seconds"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadTimeoutSeconds == 0 {
		c.ReadTimeoutSeconds = 10
	}
	if c.ShutdownTimeoutSeconds == 0 {
		c.ShutdownTimeoutSeconds = 5
	}
}

// Validate checks mandatory fields.
func (c HTTPConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if c.ReadTimeoutSeconds < 0 || c.ShutdownTimeoutSeconds < 0 {
		return fmt.Errorf("http timeouts must not be negative")
	}
	return nil
}

func (c HTTPConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

func (c HTTPConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}
