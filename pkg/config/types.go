package config

import (
	"github.com/koichiyamashita/monodevelop/pkg/telemetry"
)

// EngineConfig is the root engine configuration.
type EngineConfig struct {
	// Runtime configures the runtime instance to construct.
	Runtime RuntimeConfig `json:"runtime" validate:"required"`

	// Telemetry configures logging, metrics and tracing.
	Telemetry TelemetryConfig `json:"telemetry"`
}

// RuntimeConfig describes one runtime instance.
type RuntimeConfig struct {
	// Kind is the runtime kind identifier (e.g. "mono", "net").
	Kind string `json:"kind" validate:"required"`

	// Version is the runtime version.
	Version string `json:"version"`

	// DisplayName overrides the human-readable runtime name.
	DisplayName string `json:"display_name"`

	// FrameworksDir is the root of the framework definition hierarchy.
	FrameworksDir string `json:"frameworks_dir" validate:"required"`

	// PackagesDir is the directory watched for package manifests. Empty
	// disables the package watcher.
	PackagesDir string `json:"packages_dir"`

	// MetadataCachePath is the SQLite file for the assembly metadata
	// cache. Empty disables persistent caching.
	MetadataCachePath string `json:"metadata_cache_path"`

	// ToolPaths are extra directories searched for runtime tools.
	ToolPaths []string `json:"tool_paths"`

	// Environment are extra environment variables applied to every
	// launched process.
	Environment map[string]string `json:"environment"`
}

// TelemetryConfig is the configuration mirror of the telemetry package.
type TelemetryConfig struct {
	// LogLevel sets the minimum log level.
	LogLevel string `json:"log_level" validate:"omitempty,oneof=trace debug info warn error fatal"`

	// LogFormat selects console or json output.
	LogFormat string `json:"log_format" validate:"omitempty,oneof=console json"`

	// MetricsEnabled turns the Prometheus endpoint on.
	MetricsEnabled bool `json:"metrics_enabled"`

	// MetricsListen is the metrics endpoint listen address.
	MetricsListen string `json:"metrics_listen"`

	// TracingEnabled turns OpenTelemetry tracing on.
	TracingEnabled bool `json:"tracing_enabled"`

	// TracingExporter selects the trace exporter (otlp, stdout, none).
	TracingExporter string `json:"tracing_exporter" validate:"omitempty,oneof=otlp stdout none"`

	// TracingEndpoint is the OTLP endpoint.
	TracingEndpoint string `json:"tracing_endpoint"`
}

// Default returns the engine configuration defaults.
func Default() *EngineConfig {
	return &EngineConfig{
		Runtime: RuntimeConfig{
			Kind:          "mono",
			FrameworksDir: "/usr/lib/frameworks",
		},
		Telemetry: TelemetryConfig{
			LogLevel:        "info",
			LogFormat:       "console",
			MetricsListen:   ":9090",
			TracingExporter: "stdout",
		},
	}
}

// ToTelemetryConfig translates the mirror into the telemetry package's
// configuration, starting from its defaults.
func (c *TelemetryConfig) ToTelemetryConfig(serviceVersion string) *telemetry.Config {
	out := telemetry.DefaultConfig()
	out.ServiceVersion = serviceVersion
	if c.LogLevel != "" {
		out.Logging.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		out.Logging.Format = c.LogFormat
	}
	out.Metrics.Enabled = c.MetricsEnabled
	if c.MetricsListen != "" {
		out.Metrics.ListenAddress = c.MetricsListen
	}
	out.Tracing.Enabled = c.TracingEnabled
	if c.TracingExporter != "" {
		out.Tracing.Exporter = c.TracingExporter
	}
	out.Tracing.Endpoint = c.TracingEndpoint
	return out
}
