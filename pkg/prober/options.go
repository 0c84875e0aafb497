package prober

import (
	"time"

	"github.com/PentesterFlow/PanelProbe/internal/logger"
	"github.com/PentesterFlow/PanelProbe/internal/metrics"
	"github.com/PentesterFlow/PanelProbe/internal/provider"
)

// Option is a functional option for configuring the Prober.
type Option func(*Prober) error

// WithConfig replaces the whole configuration.
func WithConfig(cfg *Config) Option {
	return func(p *Prober) error {
		if cfg != nil {
			p.config = cfg
		}
		return nil
	}
}

// WithTimeouts sets the auth and discovery deadlines.
func WithTimeouts(auth, discovery time.Duration) Option {
	return func(p *Prober) error {
		p.config.AuthTimeout = auth
		p.config.DiscoveryTimeout = discovery
		return nil
	}
}

// WithUserAgent sets the User-Agent sent to panels.
func WithUserAgent(ua string) Option {
	return func(p *Prober) error {
		p.config.UserAgent = ua
		return nil
	}
}

// WithRateLimit sets per-probe pacing. A zero rate disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(p *Prober) error {
		p.config.RateLimit.RequestsPerSecond = rps
		p.config.RateLimit.Burst = burst
		return nil
	}
}

// WithProxy routes all calls through a proxy.
func WithProxy(proxyURL string) Option {
	return func(p *Prober) error {
		p.config.Proxy = proxyURL
		return nil
	}
}

// WithProviders adds catalog entries.
func WithProviders(providers ...provider.Provider) Option {
	return func(p *Prober) error {
		p.config.Providers = append(p.config.Providers, providers...)
		return nil
	}
}

// WithRegistry replaces the provider registry.
func WithRegistry(r *provider.Registry) Option {
	return func(p *Prober) error {
		p.registry = r
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *Prober) error {
		p.logger = l
		return nil
	}
}

// WithMetrics sets a custom metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(p *Prober) error {
		p.metrics = m
		return nil
	}
}
