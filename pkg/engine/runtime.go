package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/koichiyamashita/monodevelop/pkg/telemetry"
)

// Options configures a runtime instance. Kind is required; everything else
// has a working default or is optional.
type Options struct {
	// Kind is the runtime kind (e.g. "Mono").
	Kind string

	// Version is the runtime version string. May be empty.
	Version string

	// DisplayName is the human-readable runtime label. Defaults to Kind.
	DisplayName string

	// FrameworksDir is the directory scanned for custom framework
	// definitions and used by the default backend.
	FrameworksDir string

	// ToolPaths are runtime-wide tool search directories appended to each
	// backend's own.
	ToolPaths []string

	// Environment are runtime-wide environment variables merged into each
	// backend's set.
	Environment map[string]string

	// CoreFrameworks is the baseline framework list not tied to any on-disk
	// custom directory.
	CoreFrameworks []*Framework

	// FrameworkSource discovers custom frameworks from FrameworksDir.
	// Optional; nil skips custom discovery.
	FrameworkSource FrameworkSource

	// PackageChanges is the external package-change notification source.
	// Optional; nil skips the dynamic subscription.
	PackageChanges PackageChangeSource

	// Inspector extracts assembly metadata. Used during registration only
	// when Active is true.
	Inspector AssemblyInspector

	// Launcher starts prepared processes. Required for ExecuteAssembly.
	Launcher ProcessLauncher

	// Compatibility decides framework substitution. Defaults to the
	// declared-compatibility rule.
	Compatibility CompatibilityResolver

	// FrameworkLookup determines which framework an assembly wants when
	// ExecuteAssembly is called without one.
	FrameworkLookup FrameworkResolver

	// DefaultBackendFactory builds backends for frameworks that do not
	// supply their own. Defaults to NewLocalBackend.
	DefaultBackendFactory BackendFactory

	// Setup is the runtime-specific one-time initialization hook, invoked
	// after framework packages are registered.
	Setup func(ctx context.Context, rt *Runtime) error

	// Active marks this runtime as the one currently executing. Only the
	// active runtime inspects on-disk binaries to fill in assembly
	// versions.
	Active bool

	// ShuttingDown is the process-wide shutdown accessor.
	ShuttingDown ShutdownCheck

	// Logger, Metrics and Tracer default to no-op instances.
	Logger  *telemetry.Logger
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer
}

// Runtime is the public surface of one installable execution platform: its
// identity, its discovered frameworks, the backend cache and the package
// registry, glued together by the initialization coordinator.
type Runtime struct {
	opts Options

	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer

	cache    *BackendCache
	registry *PackageRegistry
	coord    *InitializationCoordinator

	// frameworks and index are written only by the initialization sequence
	// and read-only once the coordinator reaches Done, so the steady-state
	// read path takes no lock.
	frameworks []*Framework
	index      map[FrameworkID]*Framework
}

// NewRuntime creates a runtime instance. Initialization does not start
// until StartInitialization is called.
func NewRuntime(opts Options) (*Runtime, error) {
	if opts.Kind == "" {
		return nil, fmt.Errorf("runtime kind is required")
	}
	if opts.DisplayName == "" {
		opts.DisplayName = opts.Kind
	}
	if opts.Compatibility == nil {
		opts.Compatibility = DefaultCompatibilityResolver()
	}
	if opts.DefaultBackendFactory == nil {
		opts.DefaultBackendFactory = NewLocalBackend
	}
	if opts.Logger == nil {
		opts.Logger = telemetry.NewNopLogger()
	}
	if opts.Tracer == nil {
		opts.Tracer = telemetry.NewNopTracer()
	}

	rt := &Runtime{
		opts:    opts,
		logger:  opts.Logger.NewComponentLogger("runtime").WithField("runtime", opts.Kind),
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
		index:   make(map[FrameworkID]*Framework),
	}
	rt.cache = NewBackendCache(rt, opts.Logger, opts.Metrics)
	rt.registry = NewPackageRegistry(opts.Logger, opts.Metrics)
	rt.coord = NewInitializationCoordinator(opts.Logger, opts.ShuttingDown)
	return rt, nil
}

// ID is the runtime identifier: kind plus version, version omitted when
// empty.
func (r *Runtime) ID() string {
	if r.opts.Version == "" {
		return r.opts.Kind
	}
	return r.opts.Kind + " " + r.opts.Version
}

// DisplayName is the human-readable runtime label plus version.
func (r *Runtime) DisplayName() string {
	if r.opts.Version == "" {
		return r.opts.DisplayName
	}
	return r.opts.DisplayName + " " + r.opts.Version
}

// Version returns the runtime version string.
func (r *Runtime) Version() string { return r.opts.Version }

// FrameworksDir returns the custom frameworks directory.
func (r *Runtime) FrameworksDir() string { return r.opts.FrameworksDir }

// ToolPaths returns the runtime-wide tool search directories.
func (r *Runtime) ToolPaths() []string { return r.opts.ToolPaths }

// Environment returns the runtime-wide environment variables.
func (r *Runtime) Environment() map[string]string { return r.opts.Environment }

// DefaultBackendFactory returns the fallback backend factory.
func (r *Runtime) DefaultBackendFactory() BackendFactory { return r.opts.DefaultBackendFactory }

// IsActive reports whether this runtime is the one currently executing.
func (r *Runtime) IsActive() bool { return r.opts.Active }

// Packages returns the runtime's package registry.
func (r *Runtime) Packages() *PackageRegistry { return r.registry }

// InitializationState returns the coordinator state.
func (r *Runtime) InitializationState() InitState { return r.coord.State() }

// StartInitialization launches the background initialization sequence and
// returns immediately. Only the first call has an effect.
func (r *Runtime) StartInitialization(ctx context.Context) {
	r.coord.Start(ctx, r.initialize)
}

// WaitUntilInitialized blocks until initialization reaches Done. Callers on
// any goroutine may wait concurrently; all return once Done.
func (r *Runtime) WaitUntilInitialized() {
	r.coord.Wait()
}

// SubscribeInitialized registers a completion listener with
// fire-or-queue semantics (see InitializationCoordinator.Subscribe).
func (r *Runtime) SubscribeInitialized(fn func()) func() {
	id := r.coord.Subscribe(fn)
	return func() { r.coord.Unsubscribe(id) }
}

// initialize is the background sequence. Every step boundary checks the
// process-wide shutdown flag so a runtime in the middle of shutdown never
// blocks exit. Errors inside a step are logged and the sequence continues
// to completion; the coordinator guarantees the Done transition.
func (r *Runtime) initialize(ctx context.Context) error {
	ctx, span := r.tracer.StartInitSpan(ctx, r.ID())
	defer span.End()
	started := time.Now()

	// Step 1: discover custom frameworks (best effort).
	var custom []*Framework
	if !r.coord.ShuttingDown() && r.opts.FrameworkSource != nil {
		var err error
		custom, err = r.opts.FrameworkSource.Discover(ctx)
		if err != nil {
			r.logger.WithError(err).Warn("custom framework discovery failed")
		}
	}

	// Step 2: build the deduplicated set and register packages of every
	// installed framework.
	if !r.coord.ShuttingDown() {
		r.frameworks = BuildFrameworkSet(r.opts.CoreFrameworks, custom)
		for _, fw := range r.frameworks {
			r.index[fw.ID] = fw
		}
		r.metrics.FrameworksDiscovered(len(r.frameworks))

		var inspector AssemblyInspector
		if r.opts.Active {
			inspector = r.opts.Inspector
		}
		for _, fw := range r.frameworks {
			if r.coord.ShuttingDown() {
				break
			}
			backend := r.cache.Get(fw)
			if !backend.Installed() {
				continue
			}
			r.registry.RegisterFrameworkAssemblies(ctx, fw, backend.FrameworkFolders(), inspector)
		}
	}

	// Step 3: runtime-specific one-time setup.
	if !r.coord.ShuttingDown() && r.opts.Setup != nil {
		if err := r.opts.Setup(ctx, r); err != nil {
			return NewInitializationError("runtime setup hook failed", err)
		}
	}

	// Step 4: subscribe to dynamic package-change notifications.
	if !r.coord.ShuttingDown() && r.opts.PackageChanges != nil {
		err := r.opts.PackageChanges.Subscribe(ctx, r.registry.OnExternalPackageChange)
		if err != nil {
			return NewInitializationError("package change subscription failed", err)
		}
	}

	r.metrics.InitializationCompleted(time.Since(started))
	return nil
}

// Frameworks returns the discovered framework set in discovery order. Valid
// once initialization is Done.
func (r *Runtime) Frameworks() []*Framework {
	r.WaitUntilInitialized()
	return r.frameworks
}

// Framework returns the discovered framework with the given identity.
func (r *Runtime) Framework(id FrameworkID) (*Framework, bool) {
	r.WaitUntilInitialized()
	fw, ok := r.index[id]
	return fw, ok
}

// GetBackend returns the cached backend for the framework, creating it on
// first request. Never fails; unsupported frameworks get a backend whose
// Installed is always false.
func (r *Runtime) GetBackend(fw *Framework) Backend {
	return r.cache.Get(fw)
}

// IsInstalled reports whether the framework's backend considers it
// installed.
func (r *Runtime) IsInstalled(fw *Framework) bool {
	return r.GetBackend(fw).Installed()
}

// GetToolPath resolves a named tool against the framework's tool paths.
func (r *Runtime) GetToolPath(fw *Framework, name string) (string, bool) {
	return r.GetBackend(fw).ResolveTool(name)
}

// GetToolsPaths returns the framework's tool search directories.
func (r *Runtime) GetToolsPaths(fw *Framework) []string {
	return r.GetBackend(fw).ToolPaths()
}

// GetExecutionEnvironment resolves the environment used to launch processes
// against the framework. The variable map is a copy; callers may mutate it.
func (r *Runtime) GetExecutionEnvironment(fw *Framework) ExecutionEnvironment {
	backend := r.GetBackend(fw)
	vars := make(map[string]string, len(backend.EnvironmentVariables()))
	for k, v := range backend.EnvironmentVariables() {
		vars[k] = v
	}
	return ExecutionEnvironment{
		Framework: fw.ID,
		Variables: vars,
		ToolPaths: backend.ToolPaths(),
	}
}

// RegisterPackage contributes a package programmatically, outside the
// notification flow. The package is internal and may be unregistered later.
func (r *Runtime) RegisterPackage(info PackageInfo, files []string) *Package {
	return r.registry.RegisterPackage(info, files, true)
}

// ExecuteAssembly launches an assembly against its target framework. When
// fw is nil the framework is resolved by asking the configured framework
// lookup which framework the assembly wants. When the resolved framework is
// not installed, the closest installed compatible framework substitutes for
// it; when none is installed the call fails with a no-compatible-framework
// error naming the assembly and the required identity, and no process is
// started. The resolved environment variables are merged into a copy of cfg
// before delegating to the launcher.
func (r *Runtime) ExecuteAssembly(ctx context.Context, assemblyPath string, fw *Framework, cfg LaunchConfig) (ProcessHandle, error) {
	r.WaitUntilInitialized()

	ctx, span := r.tracer.StartExecuteSpan(ctx, assemblyPath)
	defer span.End()

	if r.opts.Launcher == nil {
		return nil, NewLaunchError("no process launcher configured", nil).
			WithCode(ErrCodeLaunchFailed).WithAssembly(assemblyPath)
	}

	if fw == nil {
		resolved, err := r.resolveFramework(ctx, assemblyPath)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		fw = resolved
	}

	target, err := r.substituteInstalled(assemblyPath, fw)
	if err != nil {
		r.metrics.AssemblyExecuted("no_compatible_framework")
		telemetry.RecordError(span, err)
		return nil, err
	}

	env := r.GetExecutionEnvironment(target)
	merged := cfg.Clone()
	if merged.Path == "" {
		merged.Path = assemblyPath
	}
	if merged.Env == nil {
		merged.Env = make(map[string]string, len(env.Variables))
	}
	for k, v := range env.Variables {
		merged.Env[k] = v
	}

	handle, err := r.opts.Launcher.Launch(ctx, merged)
	if err != nil {
		r.metrics.AssemblyExecuted("launch_failed")
		telemetry.RecordError(span, err)
		return nil, NewLaunchError("process start failed", err).
			WithCode(ErrCodeLaunchFailed).
			WithAssembly(assemblyPath).
			WithFramework(target.ID)
	}

	r.logger.WithAssembly(assemblyPath).
		WithField("framework", target.ID.String()).
		WithField("pid", handle.PID()).
		Info("assembly started")
	r.metrics.AssemblyExecuted("started")
	return handle, nil
}

func (r *Runtime) resolveFramework(ctx context.Context, assemblyPath string) (*Framework, error) {
	if r.opts.FrameworkLookup == nil {
		return nil, NewResolutionError("no framework given and no framework lookup configured", nil).
			WithCode(ErrCodeFrameworkUnknown).WithAssembly(assemblyPath)
	}
	id, err := r.opts.FrameworkLookup.FrameworkForAssembly(ctx, assemblyPath)
	if err != nil {
		return nil, NewResolutionError("framework lookup failed", err).
			WithCode(ErrCodeFrameworkUnknown).WithAssembly(assemblyPath)
	}
	fw, ok := r.index[id]
	if !ok {
		// The assembly wants a framework this runtime never discovered.
		// Treat the bare identity as the requirement; a compatible
		// installed framework may still substitute for it.
		fw = &Framework{ID: id}
	}
	return fw, nil
}

// substituteInstalled returns fw when installed, otherwise the first
// discovered installed framework declared compatible with fw's identity.
func (r *Runtime) substituteInstalled(assemblyPath string, fw *Framework) (*Framework, error) {
	if _, known := r.index[fw.ID]; known && r.IsInstalled(fw) {
		return fw, nil
	}
	for _, candidate := range r.frameworks {
		if candidate.ID == fw.ID {
			continue
		}
		if !r.opts.Compatibility.Compatible(fw.ID, candidate) {
			continue
		}
		if r.IsInstalled(candidate) {
			r.logger.WithAssembly(assemblyPath).
				WithField("required", fw.ID.String()).
				WithField("substitute", candidate.ID.String()).
				Debug("substituting compatible installed framework")
			return candidate, nil
		}
	}
	return nil, NewResolutionError("no installed framework is compatible", nil).
		WithCode(ErrCodeNoCompatibleFramework).
		WithAssembly(assemblyPath).
		WithFramework(fw.ID)
}
