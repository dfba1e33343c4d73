package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the runtime engine. The zero value
// and a nil receiver are both valid no-op collectors, so callers never have
// to guard their recording sites.
type Metrics struct {
	config MetricsConfig

	// Framework metrics
	frameworksDiscovered prometheus.Gauge
	backendsCreated      *prometheus.CounterVec

	// Package metrics
	packagesRegistered *prometheus.CounterVec
	packageChanges     *prometheus.CounterVec

	// Initialization metrics
	initDuration prometheus.Histogram

	// Execution metrics
	assembliesExecuted *prometheus.CounterVec
	launchDuration     prometheus.Histogram

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	// Create a new registry
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		frameworksDiscovered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "frameworks_discovered",
				Help:      "Number of frameworks in the deduplicated framework set",
			},
		),
		backendsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backends_created_total",
				Help:      "Total number of framework backends created",
			},
			[]string{"supported"},
		),

		packagesRegistered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "packages_registered_total",
				Help:      "Total number of package registrations",
			},
			[]string{"source"},
		),
		packageChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "package_changes_total",
				Help:      "Total number of external package change notifications",
			},
			[]string{"type"},
		),

		initDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "initialization_duration_seconds",
				Help:      "Duration of runtime initialization in seconds",
				Buckets:   buckets,
			},
		),

		assembliesExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "assemblies_executed_total",
				Help:      "Total number of assembly execution requests",
			},
			[]string{"status"},
		),
		launchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "launch_duration_seconds",
				Help:      "Time from execution request to process start in seconds",
				Buckets:   buckets,
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.frameworksDiscovered,
		m.backendsCreated,
		m.packagesRegistered,
		m.packageChanges,
		m.initDuration,
		m.assembliesExecuted,
		m.launchDuration,
	)

	return m, nil
}

// FrameworksDiscovered records the size of the framework set after
// deduplication.
func (m *Metrics) FrameworksDiscovered(count int) {
	if m == nil || m.frameworksDiscovered == nil {
		return
	}
	m.frameworksDiscovered.Set(float64(count))
}

// BackendCreated records the creation of a framework backend.
func (m *Metrics) BackendCreated(supported bool) {
	if m == nil || m.backendsCreated == nil {
		return
	}
	m.backendsCreated.WithLabelValues(fmt.Sprintf("%t", supported)).Inc()
}

// PackageRegistered records one package registration, labeled by its origin.
func (m *Metrics) PackageRegistered(framework, internal bool) {
	if m == nil || m.packagesRegistered == nil {
		return
	}
	source := "discovered"
	switch {
	case framework:
		source = "framework"
	case internal:
		source = "internal"
	}
	m.packagesRegistered.WithLabelValues(source).Inc()
}

// PackageChange records an external package change notification.
func (m *Metrics) PackageChange(changeType string) {
	if m == nil || m.packageChanges == nil {
		return
	}
	m.packageChanges.WithLabelValues(changeType).Inc()
}

// InitializationCompleted records the duration of a full initialization
// sequence.
func (m *Metrics) InitializationCompleted(duration time.Duration) {
	if m == nil || m.initDuration == nil {
		return
	}
	m.initDuration.Observe(duration.Seconds())
}

// AssemblyExecuted records an assembly execution request by outcome.
func (m *Metrics) AssemblyExecuted(status string) {
	if m == nil || m.assembliesExecuted == nil {
		return
	}
	m.assembliesExecuted.WithLabelValues(status).Inc()
}

// LaunchObserved records the latency of one successful process launch.
func (m *Metrics) LaunchObserved(duration time.Duration) {
	if m == nil || m.launchDuration == nil {
		return
	}
	m.launchDuration.Observe(duration.Seconds())
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
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if m == nil || !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
