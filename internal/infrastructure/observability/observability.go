package observability

import (
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
)

// Provider hands the tracer, logger and registered instruments to use cases,
// transports and workers. Anything not supplied falls back to a no-op.
type Provider struct {
	tracer     observability.Tracer
	logger     observability.Logger
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
}

type Option func(*Provider)

func WithTracer(t observability.Tracer) Option {
	return func(p *Provider) {
		if t != nil {
			p.tracer = t
		}
	}
}

func WithLogger(l observability.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithInstruments registers instruments by key. Nil entries are skipped and a
// later call overrides keys registered by an earlier one.
func WithInstruments(
	counters map[observability.MetricKey]observability.Counter,
	histograms map[observability.MetricKey]observability.Histogram,
) Option {
	return func(p *Provider) {
		for k, c := range counters {
			if c != nil {
				p.counters[k] = c
			}
		}
		for k, h := range histograms {
			if h != nil {
				p.histograms[k] = h
			}
		}
	}
}

func New(opts ...Option) *Provider {
	p := &Provider{
		tracer:     observability.NopTracer(),
		logger:     observability.NopLogger(),
		counters:   make(map[observability.MetricKey]observability.Counter),
		histograms: make(map[observability.MetricKey]observability.Histogram),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Tracer() observability.Tracer   { return p.tracer }
func (p *Provider) Logger() observability.Logger   { return p.logger }
func (p *Provider) Metrics() observability.Metrics { return p }

// Counter returns the instrument registered under name, or a no-op for
// instruments this process never registered.
func (p *Provider) Counter(name observability.MetricKey) observability.Counter {
	if c, ok := p.counters[name]; ok {
		return c
	}
	return observability.NopCounter()
}

func (p *Provider) Histogram(name observability.MetricKey) observability.Histogram {
	if h, ok := p.histograms[name]; ok {
		return h
	}
	return observability.NopHistogram()
}
