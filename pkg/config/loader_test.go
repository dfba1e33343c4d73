package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validConfig = `
runtime: {
	kind:           "mono"
	version:        "6.12"
	frameworks_dir: "/usr/lib/mono/frameworks"
	packages_dir:   "/usr/lib/mono/packages"
	tool_paths: ["/usr/lib/mono/bin"]
	environment: {
		MONO_ROOT: "/usr/lib/mono"
	}
}
telemetry: {
	log_level:       "debug"
	metrics_enabled: true
}
`

func TestLoadBytesValid(t *testing.T) {
	cfg, err := NewLoader().LoadBytes([]byte(validConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Runtime.Kind != "mono" {
		t.Errorf("expected kind mono, got %s", cfg.Runtime.Kind)
	}
	if cfg.Runtime.FrameworksDir != "/usr/lib/mono/frameworks" {
		t.Errorf("unexpected frameworks dir: %s", cfg.Runtime.FrameworksDir)
	}
	if cfg.Runtime.Environment["MONO_ROOT"] != "/usr/lib/mono" {
		t.Errorf("unexpected environment: %v", cfg.Runtime.Environment)
	}
	if cfg.Telemetry.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Telemetry.LogLevel)
	}
	if !cfg.Telemetry.MetricsEnabled {
		t.Error("expected metrics to be enabled")
	}
	// Defaults from the schema
	if cfg.Telemetry.LogFormat != "console" {
		t.Errorf("expected default log format console, got %s", cfg.Telemetry.LogFormat)
	}
	if cfg.Telemetry.MetricsListen != ":9090" {
		t.Errorf("expected default metrics listen, got %s", cfg.Telemetry.MetricsListen)
	}
}

func TestLoadBytesRejectsMissingKind(t *testing.T) {
	_, err := NewLoader().LoadBytes([]byte(`
runtime: {
	frameworks_dir: "/frameworks"
}
`))
	if err == nil {
		t.Fatal("expected error for missing runtime kind")
	}
}

func TestLoadBytesRejectsUnknownLogLevel(t *testing.T) {
	_, err := NewLoader().LoadBytes([]byte(`
runtime: {
	kind:           "mono"
	frameworks_dir: "/frameworks"
}
telemetry: {
	log_level: "verbose"
}
`))
	if err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.cue")
	if err := os.WriteFile(path, []byte(validConfig), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := NewLoader().Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Runtime.Version != "6.12" {
		t.Errorf("unexpected version: %s", cfg.Runtime.Version)
	}
}

func TestToTelemetryConfig(t *testing.T) {
	tc := TelemetryConfig{
		LogLevel:        "warn",
		LogFormat:       "json",
		MetricsEnabled:  true,
		TracingEnabled:  true,
		TracingExporter: "otlp",
		TracingEndpoint: "localhost:4317",
	}

	out := tc.ToTelemetryConfig("1.2.3")
	if out.Logging.Level != "warn" || out.Logging.Format != "json" {
		t.Errorf("unexpected logging config: %+v", out.Logging)
	}
	if !out.Metrics.Enabled {
		t.Error("expected metrics enabled")
	}
	if !out.Tracing.Enabled || out.Tracing.Exporter != "otlp" || out.Tracing.Endpoint != "localhost:4317" {
		t.Errorf("unexpected tracing config: %+v", out.Tracing)
	}
	if out.ServiceVersion != "1.2.3" {
		t.Errorf("unexpected service version: %s", out.ServiceVersion)
	}
	if err := out.Validate(); err != nil {
		t.Errorf("translated config failed validation: %v", err)
	}
}
