package observability

import (
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
)

type provider struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics observability.Metrics
}

type registeredMetrics struct {
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
}

func (m *registeredMetrics) Counter(name observability.MetricKey) observability.Counter {
	if m == nil || m.counters == nil {
		return observability.NopCounter()
	}
	if c, ok := m.counters[name]; ok && c != nil {
		return c
	}
	return observability.NopCounter()
}

func (m *registeredMetrics) Histogram(name observability.MetricKey) observability.Histogram {
	if m == nil || m.histograms == nil {
		return observability.NopHistogram()
	}
	if h, ok := m.histograms[name]; ok && h != nil {
		return h
	}
	return observability.NopHistogram()
}

// New assembles an Observability provider backed by the supplied tracer, logger, and metric instruments.
func New(
	tracer observability.Tracer,
	logger observability.Logger,
	counters map[observability.MetricKey]observability.Counter,
	histograms map[observability.MetricKey]observability.Histogram,
) observability.Observability {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	var metrics observability.Metrics = observability.NopMetrics()
	if len(counters) > 0 || len(histograms) > 0 {
		m := &registeredMetrics{
			counters:   make(map[observability.MetricKey]observability.Counter, len(counters)),
			histograms: make(map[observability.MetricKey]observability.Histogram, len(histograms)),
		}
		for k, v := range counters {
			if v == nil {
				continue
			}
			m.counters[k] = v
		}
		for k, v := range histograms {
			if v == nil {
				continue
			}
			m.histograms[k] = v
		}
		metrics = m
	}

	return &provider{
		tracer:  tracer,
		logger:  logger,
		metrics: metrics,
	}
}

func (p *provider) Tracer() observability.Tracer {
	return p.tracer
}

func (p *provider) Logger() observability.Logger {
	return p.logger
}

func (p *provider) Metrics() observability.Metrics {
	if p.metrics == nil {
		return observability.NopMetrics()
	}
	return p.metrics
}

var durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Instruments registers every metric the service emits and returns them keyed for New.
func Instruments(reg prometrics.Registry) (map[observability.MetricKey]observability.Counter, map[observability.MetricKey]observability.Histogram) {
	counter := func(k observability.MetricKey, labels ...string) observability.Counter {
		return reg.Counter(k.String(), k.Help(), labels...)
	}
	histogram := func(k observability.MetricKey, buckets []float64, labels ...string) observability.Histogram {
		return reg.Histogram(k.String(), k.Help(), buckets, labels...)
	}
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests:    counter(observability.MUsecaseRequests, "use_case", "outcome"),
		observability.MHTTPRequests:       counter(observability.MHTTPRequests, "method", "route", "status"),
		observability.MExternalRequests:   counter(observability.MExternalRequests, "peer", "endpoint", "outcome"),
		observability.MStockCompensations: counter(observability.MStockCompensations, "use_case", "outcome"),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration:         histogram(observability.MUsecaseDuration, durationBuckets, "use_case"),
		observability.MHTTPRequestDuration:     histogram(observability.MHTTPRequestDuration, prometheus.DefBuckets, "method", "route", "status"),
		observability.MExternalRequestDuration: histogram(observability.MExternalRequestDuration, durationBuckets, "peer", "endpoint"),
	}
	return counters, histograms
}
