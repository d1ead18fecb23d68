package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics provides Prometheus metrics for component activation.
type Metrics struct {
	config MetricsConfig

	// Activation metrics
	activations        *prometheus.CounterVec
	activationDuration *prometheus.HistogramVec
	activeActivations  prometheus.Gauge

	// Resolution metrics
	secretResolutions   *prometheus.CounterVec
	sandboxEnforcements *prometheus.CounterVec
	placeholderFailures *prometheus.CounterVec
	policyViolations    *prometheus.CounterVec
	componentsLoaded    prometheus.Gauge

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	registry *prometheus.Registry
	server   *http.Server
}

// NewMetrics creates a new metrics collector with the given configuration.
// A disabled configuration yields a collector whose recorders are no-ops.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		activations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "activations_total",
				Help:      "Total number of component activations by outcome",
			},
			[]string{"type", "status"},
		),
		activationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "activation_duration_seconds",
				Help:      "Duration of component activation in seconds",
				Buckets:   buckets,
			},
			[]string{"type"},
		),
		activeActivations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_activations",
				Help:      "Current number of activations in progress",
			},
		),
		secretResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "secret_resolutions_total",
				Help:      "Total number of secret and environment reference lookups",
			},
			[]string{"source", "result"},
		),
		sandboxEnforcements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sandbox_enforcements_total",
				Help:      "Total number of WASM components forced into strict sandbox mode",
			},
			[]string{"type"},
		),
		placeholderFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "placeholder_failures_total",
				Help:      "Total number of placeholder substitutions that failed",
			},
			[]string{"code"},
		),
		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Total number of admission policy violations",
			},
			[]string{"policy", "severity"},
		),
		componentsLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "components_loaded",
				Help:      "Number of component manifests currently loaded",
			},
		),
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),
	}

	registry.MustRegister(
		m.activations,
		m.activationDuration,
		m.activeActivations,
		m.secretResolutions,
		m.sandboxEnforcements,
		m.placeholderFailures,
		m.policyViolations,
		m.componentsLoaded,
		m.errorsByClass,
		m.errorsByCode,
	)

	return m, nil
}

// Activation Metrics

// ActivationStarted increments the in-progress gauge.
func (m *Metrics) ActivationStarted() {
	if m.activeActivations == nil {
		return
	}
	m.activeActivations.Inc()
}

// RecordActivation records a finished activation with its outcome and duration.
func (m *Metrics) RecordActivation(componentType, status string, duration time.Duration) {
	if m.activations == nil {
		return
	}
	m.activations.WithLabelValues(componentType, status).Inc()
	m.activationDuration.WithLabelValues(componentType).Observe(duration.Seconds())
	m.activeActivations.Dec()
}

// Resolution Metrics

// RecordSecretResolution records a reference lookup. source is "secretKeyRef" or "envRef".
func (m *Metrics) RecordSecretResolution(source string, err error) {
	if m.secretResolutions == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.secretResolutions.WithLabelValues(source, result).Inc()
}

// RecordSandboxEnforcement records a WASM component forced into strict sandbox mode.
func (m *Metrics) RecordSandboxEnforcement(componentType string) {
	if m.sandboxEnforcements == nil {
		return
	}
	m.sandboxEnforcements.WithLabelValues(componentType).Inc()
}

// RecordPlaceholderFailure records a failed placeholder substitution.
func (m *Metrics) RecordPlaceholderFailure(code string) {
	if m.placeholderFailures == nil {
		return
	}
	m.placeholderFailures.WithLabelValues(code).Inc()
}

// RecordPolicyViolation records a violation reported by an admission policy.
func (m *Metrics) RecordPolicyViolation(policy, severity string) {
	if m.policyViolations == nil {
		return
	}
	m.policyViolations.WithLabelValues(policy, severity).Inc()
}

// SetComponentsLoaded sets the number of loaded component manifests.
func (m *Metrics) SetComponentsLoaded(count int) {
	if m.componentsLoaded == nil {
		return
	}
	m.componentsLoaded.Set(float64(count))
}

// Error Metrics

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// Registry returns the underlying registry, nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics. Serve errors are logged.
func (m *Metrics) StartMetricsServer(logger zerolog.Logger) error {
	if !m.config.Enabled {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	m.server = &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("address", m.config.ListenAddress).Msg("metrics server error")
		}
	}()

	return nil
}

// Shutdown stops the metrics server if it was started.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}
