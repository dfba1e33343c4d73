package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/koichiyamashita/monodevelop/pkg/catalog"
	"github.com/koichiyamashita/monodevelop/pkg/config"
	"github.com/koichiyamashita/monodevelop/pkg/engine"
	"github.com/koichiyamashita/monodevelop/pkg/inspector"
	"github.com/koichiyamashita/monodevelop/pkg/launcher"
	"github.com/koichiyamashita/monodevelop/pkg/notify"
	"github.com/koichiyamashita/monodevelop/pkg/stores"
	"github.com/koichiyamashita/monodevelop/pkg/telemetry"
)

// buildRuntime assembles a fully wired runtime from the configuration and
// starts its initialization. The returned cleanup releases the watcher,
// store and telemetry resources.
func buildRuntime(ctx context.Context, version string) (*engine.Runtime, func(), error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.NewLoader().Load(configPath)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}

	telCfg := cfg.Telemetry.ToTelemetryConfig(version)
	if verbose {
		telCfg.Logging.Level = "debug"
	}
	tel, err := telemetry.NewTelemetry(telCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if err := tel.StartMetricsServer(); err != nil {
		return nil, nil, fmt.Errorf("failed to start metrics server: %w", err)
	}

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		_ = tel.Shutdown(context.Background())
	}

	// Assembly inspection, optionally backed by the persistent cache.
	var insp engine.AssemblyInspector = inspector.NewManifestInspector()
	if cfg.Runtime.MetadataCachePath != "" {
		store, err := stores.NewSQLiteStore(stores.Config{Path: cfg.Runtime.MetadataCachePath})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if err := store.Init(ctx); err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, func() { _ = store.Close() })
		if err := store.Migrate(ctx); err != nil {
			cleanup()
			return nil, nil, err
		}
		insp = inspector.NewCachingInspector(insp, store, tel.Logger)
	}

	var changes engine.PackageChangeSource
	if cfg.Runtime.PackagesDir != "" {
		watcher := notify.NewWatcher(cfg.Runtime.PackagesDir, tel.Logger)
		cleanups = append(cleanups, func() { _ = watcher.Close() })
		changes = watcher
	}

	rt, err := engine.NewRuntime(engine.Options{
		Kind:            cfg.Runtime.Kind,
		Version:         cfg.Runtime.Version,
		DisplayName:     cfg.Runtime.DisplayName,
		FrameworksDir:   cfg.Runtime.FrameworksDir,
		ToolPaths:       cfg.Runtime.ToolPaths,
		Environment:     cfg.Runtime.Environment,
		FrameworkSource: catalog.NewCatalog(cfg.Runtime.FrameworksDir, tel.Logger),
		PackageChanges:  changes,
		Inspector:       insp,
		Launcher:        launcher.NewExecLauncher(tel.Logger),
		Active:          true,
		Logger:          tel.Logger,
		Metrics:         tel.Metrics,
		Tracer:          tel.Tracer,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	rt.StartInitialization(ctx)
	return rt, cleanup, nil
}

// parseFrameworkID parses "identifier/version[/profile]".
func parseFrameworkID(s string) (engine.FrameworkID, error) {
	parts := strings.Split(s, "/")
	switch len(parts) {
	case 2:
		return engine.FrameworkID{Identifier: parts[0], Version: parts[1]}, nil
	case 3:
		return engine.FrameworkID{Identifier: parts[0], Version: parts[1], Profile: parts[2]}, nil
	default:
		return engine.FrameworkID{}, fmt.Errorf("invalid framework id %q (want identifier/version[/profile])", s)
	}
}
