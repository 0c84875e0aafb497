// Package prober determines whether a username/password pair authenticates
// against a reseller panel whose login dialect is unknown.
package prober

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/PentesterFlow/PanelProbe/internal/errors"
	"github.com/PentesterFlow/PanelProbe/internal/logger"
	"github.com/PentesterFlow/PanelProbe/internal/metrics"
	"github.com/PentesterFlow/PanelProbe/internal/parser"
	"github.com/PentesterFlow/PanelProbe/internal/provider"
	"github.com/PentesterFlow/PanelProbe/internal/ratelimit"
	"github.com/PentesterFlow/PanelProbe/internal/transport"
)

// Prober runs probes. It holds only immutable configuration and shared
// observers, so one Prober serves concurrent probes.
type Prober struct {
	config   *Config
	client   *transport.Client
	registry *provider.Registry
	logger   *logger.Logger
	metrics  *metrics.Collector
}

// New creates a new prober with the given options.
func New(opts ...Option) (*Prober, error) {
	p := &Prober{
		config: DefaultConfig(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := p.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if p.logger == nil {
		p.logger = logger.Global().WithComponent("prober")
	}
	if p.metrics == nil {
		p.metrics = metrics.New()
	}
	if p.registry == nil {
		p.registry = provider.NewRegistry()
	}

	if p.config.ProviderFile != "" {
		extra, err := provider.LoadFile(p.config.ProviderFile)
		if err != nil {
			return nil, err
		}
		if err := p.registry.Merge(extra); err != nil {
			return nil, fmt.Errorf("invalid provider catalog: %w", err)
		}
	}
	if err := p.registry.Merge(p.config.Providers); err != nil {
		return nil, fmt.Errorf("invalid provider: %w", err)
	}

	client, err := transport.NewClient(p.config.transportConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}
	p.client = client

	return p, nil
}

// Close releases idle connections.
func (p *Prober) Close() {
	p.client.Close()
}

// Config returns the active configuration.
func (p *Prober) Config() *Config {
	return p.config
}

// Registry returns the provider registry.
func (p *Prober) Registry() *provider.Registry {
	return p.registry
}

// Metrics returns the metrics collector.
func (p *Prober) Metrics() *metrics.Collector {
	return p.metrics
}

// Probe runs every eligible strategy until one accepts the credentials.
// It always returns exactly one Result and never returns nil.
func (p *Prober) Probe(ctx context.Context, req Request) *Result {
	return p.run(ctx, req, nil)
}

// Stream is Probe with observe called after every recorded attempt.
func (p *Prober) Stream(ctx context.Context, req Request, observe func(Attempt)) *Result {
	return p.run(ctx, req, observe)
}

func (p *Prober) run(ctx context.Context, req Request, observe func(Attempt)) (res *Result) {
	start := time.Now()
	id := uuid.NewString()

	if err := req.Validate(); err != nil {
		p.metrics.ProbeRejected()
		p.logger.WithField("probe_id", id).WithError(err).Debug("Rejected probe")
		return validationFailure(id, err)
	}

	req = req.normalized()
	r := p.newRun(id, req, observe)

	p.metrics.ProbeStarted()
	defer func() {
		if rec := recover(); rec != nil {
			perr := errors.NewInternalError("probe", rec)
			r.log.WithError(perr).Error("Probe aborted")
			res = r.failure("internal error: " + perr.Short())
		}
		res.DurationMS = time.Since(start).Milliseconds()
		p.metrics.ProbeFinished(res.Success, res.Type)
		r.log.ProbeEvent(req.BaseURL, res.Success, res.Type, len(res.Logs), time.Since(start))
		if n := r.limiter.Throttled(); n > 0 {
			r.log.Event(logger.WarnLevel).
				Int("throttled", n).
				Float64("rate", r.limiter.CurrentRate()).
				Msg("Panel signalled overload, pacing reduced")
		}
	}()

	for _, s := range r.plan() {
		if ctx.Err() != nil {
			r.log.Warn("Probe cancelled before all strategies ran")
			break
		}
		r.log.Debugf("Running %s strategy", s.name)
		if result := s.run(ctx); result != nil {
			return result
		}
	}

	return r.exhausted()
}

// run holds the state of one probe. It is owned by a single goroutine.
type run struct {
	p         *Prober
	id        string
	req       Request
	provider  *provider.Provider
	log       *logger.Logger
	limiter   *ratelimit.Limiter
	observe   func(Attempt)
	attempts  []Attempt
	discovery *parser.Hints
	fallback  string
}

func (p *Prober) newRun(id string, req Request, observe func(Attempt)) *run {
	r := &run{
		p:        p,
		id:       id,
		req:      req,
		log:      p.logger.WithProbe(id, req.BaseURL),
		limiter:  ratelimit.NewLimiter(p.config.RateLimit.RequestsPerSecond, p.config.RateLimit.Burst),
		observe:  observe,
		attempts: make([]Attempt, 0, 16),
	}
	if prov, ok := p.registry.Lookup(req.ProviderID); ok {
		r.provider = prov
	} else if req.ProviderID != "" {
		r.log.Infof("Unknown provider %q, trying all strategies", req.ProviderID)
	}
	return r
}

type strategy struct {
	name string
	run  func(ctx context.Context) *Result
}

// plan orders the strategies for the resolved provider dialect.
func (r *run) plan() []strategy {
	discovery := strategy{StrategyDiscovery, r.discover}
	xtream := strategy{StrategyXtream, r.xtream}
	form := strategy{StrategyForm, r.formLogin}
	jsonPost := strategy{StrategyJSON, r.jsonPost}
	connectivity := strategy{StrategyConnectivity, r.connectivity}

	if r.provider == nil {
		return []strategy{discovery, xtream, form, jsonPost}
	}

	switch r.provider.Dialect {
	case provider.DialectXtream:
		return []strategy{xtream, form, jsonPost}
	case provider.DialectForm:
		return []strategy{form, jsonPost}
	case provider.DialectJSON:
		return []strategy{jsonPost}
	case provider.DialectConnectivity:
		return []strategy{connectivity}
	default:
		return []strategy{discovery, xtream, form, jsonPost}
	}
}
