// Package config holds the runtime configuration of the telemetry client:
// collector endpoint, concurrency and timeout knobs, the active
// attestation scheme and the streaming matrix. Configuration is a plain
// struct loaded from JSON with environment overrides on top.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the full client configuration.
type Config struct {
	// ServerURL is the base URL of the verifying collector.
	ServerURL string `json:"server_url"`

	// Algorithm selects the active attestation scheme:
	// hmac, ed25519, bulletproofs, ckks.
	Algorithm string `json:"algorithm"`

	// MaxConcurrent caps in-flight requests per run.
	MaxConcurrent int `json:"max_concurrent"`

	// RequestTimeoutS is the per-request HTTP timeout in seconds.
	RequestTimeoutS int `json:"request_timeout_s"`

	// BitLength is the range-proof bit length. Fixed at 32 for this
	// deployment; configurable for bring-up against other provers.
	BitLength int `json:"bit_length"`

	// GeneratorFile names a proof-generator JSON dump (the format of
	// crypto.GeneratorSet.Dump). It is decoded and kept but not read:
	// the attestors always derive their generators from BitLength.
	GeneratorFile string `json:"generator_file,omitempty"`

	// HMACSecret seeds the HMAC key derivation when the scheme is hmac.
	HMACSecret string `json:"hmac_secret,omitempty"`

	// DevelopmentMode is accepted for compatibility with older peers and
	// always treated as false: verification is never relaxed.
	DevelopmentMode bool `json:"development_mode,omitempty"`

	// LogLevel controls log verbosity (debug, info, warn, error).
	LogLevel string `json:"log_level"`

	// Metrics enables the metrics collector.
	Metrics bool `json:"metrics"`

	// Stream describes the default streaming run.
	Stream StreamConfig `json:"stream"`
}

// StreamConfig describes one streaming condition.
type StreamConfig struct {
	SensorCount int `json:"sensor_count"`
	FrequencyHz int `json:"frequency_hz"`
	DurationS   int `json:"duration_s"`
	TargetCount int `json:"target_count,omitempty"`
}

// Default returns the configuration used when nothing else is specified.
func Default() *Config {
	return &Config{
		ServerURL:       "http://localhost:8084",
		Algorithm:       "hmac",
		MaxConcurrent:   50,
		RequestTimeoutS: 10,
		BitLength:       32,
		LogLevel:        "info",
		Metrics:         true,
		Stream: StreamConfig{
			SensorCount: 10,
			FrequencyHz: 1,
			DurationS:   10,
		},
	}
}

// LoadFile reads a JSON configuration file over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from ICSATTEST_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("ICSATTEST_SERVER_URL"); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv("ICSATTEST_ALGORITHM"); v != "" {
		c.Algorithm = v
	}
	if v := os.Getenv("ICSATTEST_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxConcurrent = n
		}
	}
	if v := os.Getenv("ICSATTEST_REQUEST_TIMEOUT_S"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RequestTimeoutS = n
		}
	}
	if v := os.Getenv("ICSATTEST_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("ICSATTEST_HMAC_SECRET"); v != "" {
		c.HMACSecret = v
	}
}

// Validate checks field ranges and normalizes the compatibility shims.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("config: server_url is required")
	}
	if !strings.HasPrefix(c.ServerURL, "http://") && !strings.HasPrefix(c.ServerURL, "https://") {
		return fmt.Errorf("config: server_url %q must be http or https", c.ServerURL)
	}
	switch c.Algorithm {
	case "hmac", "ed25519", "bulletproofs", "ckks":
	default:
		return fmt.Errorf("config: unknown algorithm %q", c.Algorithm)
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("config: max_concurrent must be positive, got %d", c.MaxConcurrent)
	}
	if c.RequestTimeoutS <= 0 {
		return fmt.Errorf("config: request_timeout_s must be positive, got %d", c.RequestTimeoutS)
	}
	if c.BitLength < 2 || c.BitLength&(c.BitLength-1) != 0 {
		return fmt.Errorf("config: bit_length %d is not a power of two", c.BitLength)
	}
	if c.Stream.SensorCount <= 0 || c.Stream.FrequencyHz <= 0 {
		return errors.New("config: stream needs positive sensor_count and frequency_hz")
	}
	if c.Stream.DurationS <= 0 && c.Stream.TargetCount <= 0 {
		return errors.New("config: stream needs duration_s or target_count")
	}
	// Relaxed verification was removed; the flag survives only so old
	// config files still parse.
	c.DevelopmentMode = false
	return nil
}
