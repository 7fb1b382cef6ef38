// Package metrics provides Prometheus instrumentation for the gateway.
//
// Wrap the admission engine to automatically record decision counts and
// check latency, partitioned by algorithm:
//
//	collector := metrics.NewCollector()
//	engine, _ := gatekeep.NewEngine(gatekeep.DefaultLimits())
//	checker := metrics.Wrap(engine, collector)
//
// Authentication outcomes are recorded separately by the auth middleware
// through ObserveAuth.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/krishna-kudari/gatekeep"
)

// Collector holds the Prometheus metric vectors for the gateway.
type Collector struct {
	admissions *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	auth       *prometheus.CounterVec
}

type collectorConfig struct {
	namespace string
	subsystem string
	registry  prometheus.Registerer
	buckets   []float64
}

// CollectorOption configures a Collector.
type CollectorOption func(*collectorConfig)

// WithNamespace sets the Prometheus metric namespace (prefix).
func WithNamespace(ns string) CollectorOption {
	return func(c *collectorConfig) { c.namespace = ns }
}

// WithSubsystem sets the Prometheus metric subsystem.
func WithSubsystem(sub string) CollectorOption {
	return func(c *collectorConfig) { c.subsystem = sub }
}

// WithRegistry registers metrics with the given Registerer instead of
// prometheus.DefaultRegisterer.
func WithRegistry(r prometheus.Registerer) CollectorOption {
	return func(c *collectorConfig) { c.registry = r }
}

// WithBuckets sets custom histogram buckets for check duration.
func WithBuckets(b []float64) CollectorOption {
	return func(c *collectorConfig) { c.buckets = b }
}

var defaultBuckets = []float64{.000001, .00001, .0001, .001, .01, .1}

// NewCollector creates a Collector and registers its metrics.
//
// Metrics registered:
//   - {namespace}_admissions_total            counter   (algorithm, decision)
//   - {namespace}_admission_duration_seconds  histogram (algorithm)
//   - {namespace}_auth_total                  counter   (method, outcome)
//
// Default namespace is "gateway".
func NewCollector(opts ...CollectorOption) *Collector {
	cfg := &collectorConfig{
		namespace: "gateway",
		registry:  prometheus.DefaultRegisterer,
		buckets:   defaultBuckets,
	}
	for _, o := range opts {
		o(cfg)
	}

	admissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.namespace,
		Subsystem: cfg.subsystem,
		Name:      "admissions_total",
		Help:      "Total admission checks partitioned by algorithm and decision.",
	}, []string{"algorithm", "decision"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.namespace,
		Subsystem: cfg.subsystem,
		Name:      "admission_duration_seconds",
		Help:      "Latency of admission checks in seconds.",
		Buckets:   cfg.buckets,
	}, []string{"algorithm"})

	auth := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.namespace,
		Subsystem: cfg.subsystem,
		Name:      "auth_total",
		Help:      "Total authentication attempts partitioned by method and outcome.",
	}, []string{"method", "outcome"})

	cfg.registry.MustRegister(admissions, duration, auth)

	return &Collector{
		admissions: admissions,
		duration:   duration,
		auth:       auth,
	}
}

// ObserveAuth records one authentication attempt. method is "none",
// "totp", or "static"; outcome is "ok" or "rejected". Nil-safe so the
// middleware can run without metrics.
func (c *Collector) ObserveAuth(method, outcome string) {
	if c == nil {
		return
	}
	c.auth.WithLabelValues(method, outcome).Inc()
}

// Wrap returns a Checker that transparently records metrics for every
// Check delegated to inner.
func Wrap(inner gatekeep.Checker, c *Collector) gatekeep.Checker {
	return &instrumentedChecker{inner: inner, collector: c}
}

type instrumentedChecker struct {
	inner     gatekeep.Checker
	collector *Collector
}

func (w *instrumentedChecker) Check(ip, tier string) gatekeep.Decision {
	start := time.Now()
	d := w.inner.Check(ip, tier)
	w.collector.duration.WithLabelValues(d.Algorithm).Observe(time.Since(start).Seconds())

	decision := "denied"
	if d.Allowed {
		decision = "allowed"
	}
	w.collector.admissions.WithLabelValues(d.Algorithm, decision).Inc()
	return d
}
