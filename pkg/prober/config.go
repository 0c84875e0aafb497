package prober

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/PentesterFlow/PanelProbe/internal/provider"
	"github.com/PentesterFlow/PanelProbe/internal/transport"
	"gopkg.in/yaml.v3"
)

// Config holds all engine configuration.
type Config struct {
	// Deadline for credential-bearing calls
	AuthTimeout time.Duration `json:"auth_timeout" yaml:"auth_timeout"`

	// Deadline for discovery, verification and connectivity calls
	DiscoveryTimeout time.Duration `json:"discovery_timeout" yaml:"discovery_timeout"`

	UserAgent     string `json:"user_agent" yaml:"user_agent"`
	MaxBodyBytes  int64  `json:"max_body_bytes" yaml:"max_body_bytes"`
	SnippetLength int    `json:"snippet_length" yaml:"snippet_length"`
	SkipTLSVerify bool   `json:"skip_tls_verify" yaml:"skip_tls_verify"`
	Proxy         string `json:"proxy" yaml:"proxy"`

	// Per-probe pacing
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`

	// Extra catalog entries, merged over the built-in providers
	Providers    []provider.Provider `json:"providers" yaml:"providers"`
	ProviderFile string              `json:"provider_file" yaml:"provider_file"`
}

// RateLimitConfig paces the calls of one probe. Zero disables pacing.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `json:"burst" yaml:"burst"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		AuthTimeout:      15 * time.Second,
		DiscoveryTimeout: 10 * time.Second,
		UserAgent:        transport.DefaultUserAgent,
		MaxBodyBytes:     2 * 1024 * 1024,
		SnippetLength:    500,
		SkipTLSVerify:    true,
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             3,
		},
	}
}

// LoadConfig loads configuration from a file (YAML or JSON).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.AuthTimeout <= 0 {
		return fmt.Errorf("auth timeout must be positive")
	}
	if c.DiscoveryTimeout <= 0 {
		return fmt.Errorf("discovery timeout must be positive")
	}
	if c.SnippetLength < 1 {
		return fmt.Errorf("snippet length must be at least 1")
	}
	if c.MaxBodyBytes < 1 {
		return fmt.Errorf("max body bytes must be at least 1")
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	for i := range c.Providers {
		if err := c.Providers[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) transportConfig() transport.Config {
	cfg := transport.DefaultConfig()
	cfg.UserAgent = c.UserAgent
	cfg.MaxBodyBytes = c.MaxBodyBytes
	cfg.SkipTLSVerify = c.SkipTLSVerify
	cfg.Proxy = c.Proxy
	return cfg
}
