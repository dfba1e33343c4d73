package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSource returns a fixed framework list, or an error.
type fakeSource struct {
	frameworks []*Framework
	err        error
}

func (s *fakeSource) Discover(ctx context.Context) ([]*Framework, error) {
	return s.frameworks, s.err
}

// fakeHandle is a started process that already exited.
type fakeHandle struct {
	exitCode int
}

func (h *fakeHandle) ID() string           { return "test-handle" }
func (h *fakeHandle) PID() int             { return 4242 }
func (h *fakeHandle) Wait() (int, error)   { return h.exitCode, nil }
func (h *fakeHandle) StartedAt() time.Time { return time.Time{} }

// fakeLauncher records the configuration it was asked to launch.
type fakeLauncher struct {
	launched []LaunchConfig
	err      error
}

func (l *fakeLauncher) Launch(ctx context.Context, cfg LaunchConfig) (ProcessHandle, error) {
	l.launched = append(l.launched, cfg)
	if l.err != nil {
		return nil, l.err
	}
	return &fakeHandle{}, nil
}

// fakeChangeSource captures the subscription handler for manual delivery.
type fakeChangeSource struct {
	handler func(PackageChange)
	closed  bool
}

func (s *fakeChangeSource) Subscribe(ctx context.Context, handler func(PackageChange)) error {
	s.handler = handler
	return nil
}

func (s *fakeChangeSource) Close() error {
	s.closed = true
	return nil
}

// fakeFrameworkResolver maps every assembly to one framework identity.
type fakeFrameworkResolver struct {
	id  FrameworkID
	err error
}

func (r *fakeFrameworkResolver) FrameworkForAssembly(ctx context.Context, assemblyPath string) (FrameworkID, error) {
	return r.id, r.err
}

// installedFactory builds fake installed backends carrying the given
// environment.
func installedFactory(env map[string]string) BackendFactory {
	return func(rt *Runtime, fw *Framework) Backend {
		return &fakeBackend{installed: true, folders: []string{"/nonexistent"}, env: env}
	}
}

func notInstalledFactory(rt *Runtime, fw *Framework) Backend {
	return &fakeBackend{}
}

func startRuntime(t *testing.T, opts Options) *Runtime {
	t.Helper()
	if opts.Kind == "" {
		opts.Kind = "mono"
	}
	rt, err := NewRuntime(opts)
	if err != nil {
		t.Fatalf("failed to create runtime: %v", err)
	}
	rt.StartInitialization(context.Background())
	rt.WaitUntilInitialized()
	return rt
}

func TestNewRuntimeRequiresKind(t *testing.T) {
	if _, err := NewRuntime(Options{}); err == nil {
		t.Error("expected an error for a runtime without a kind")
	}
}

func TestRuntimeIdentity(t *testing.T) {
	rt, err := NewRuntime(Options{Kind: "mono", Version: "6.12", DisplayName: "Mono"})
	if err != nil {
		t.Fatal(err)
	}
	if rt.ID() != "mono 6.12" {
		t.Errorf("ID = %q", rt.ID())
	}
	if rt.DisplayName() != "Mono 6.12" {
		t.Errorf("DisplayName = %q", rt.DisplayName())
	}

	bare, _ := NewRuntime(Options{Kind: "mono"})
	if bare.ID() != "mono" || bare.DisplayName() != "mono" {
		t.Errorf("versionless identity = %q / %q", bare.ID(), bare.DisplayName())
	}
}

func TestRuntimeInitializationDeduplicates(t *testing.T) {
	coreNet := &Framework{ID: NewFrameworkID("net", "4.0"), Name: "core"}
	rt := startRuntime(t, Options{
		CoreFrameworks: []*Framework{coreNet},
		FrameworkSource: &fakeSource{frameworks: []*Framework{
			{ID: NewFrameworkID("net", "4.0"), Name: "custom duplicate"},
			{ID: NewFrameworkID("custom", "1.0")},
		}},
		DefaultBackendFactory: notInstalledFactory,
	})

	fws := rt.Frameworks()
	if len(fws) != 2 {
		t.Fatalf("expected 2 frameworks after dedup, got %d", len(fws))
	}
	got, ok := rt.Framework(NewFrameworkID("net", "4.0"))
	if !ok || got != coreNet {
		t.Error("the core definition must win over the custom duplicate")
	}
	if _, ok := rt.Framework(NewFrameworkID("custom", "1.0")); !ok {
		t.Error("the custom framework must be discoverable")
	}
}

func TestRuntimeInitializationToleratesDiscoveryError(t *testing.T) {
	rt := startRuntime(t, Options{
		CoreFrameworks:        []*Framework{{ID: NewFrameworkID("net", "4.0")}},
		FrameworkSource:       &fakeSource{err: errors.New("unreadable directory")},
		DefaultBackendFactory: notInstalledFactory,
	})

	if rt.InitializationState() != InitDone {
		t.Errorf("state = %v, want done", rt.InitializationState())
	}
	if len(rt.Frameworks()) != 1 {
		t.Error("core frameworks must survive a discovery failure")
	}
}

func TestRuntimeInitializationRegistersInstalledFrameworkPackages(t *testing.T) {
	dir := t.TempDir()
	writeAssembly(t, dir, "mscorlib.dll")

	installed := &Framework{
		ID:         NewFrameworkID("net", "4.0"),
		Assemblies: []AssemblyDescriptor{{Name: "mscorlib"}},
	}
	missing := &Framework{
		ID:         NewFrameworkID("net", "4.5"),
		Assemblies: []AssemblyDescriptor{{Name: "mscorlib"}},
	}

	rt := startRuntime(t, Options{
		CoreFrameworks: []*Framework{installed, missing},
		DefaultBackendFactory: func(rt *Runtime, fw *Framework) Backend {
			if fw == installed {
				return &fakeBackend{installed: true, folders: []string{dir}}
			}
			return &fakeBackend{}
		},
	})

	p, ok := rt.Packages().LookupByName("net")
	if !ok {
		t.Fatal("installed framework's package must be registered")
	}
	if !p.IsFrameworkPackage || p.Version() != "4.0" {
		t.Errorf("unexpected package: %+v", p)
	}
	if len(rt.Packages().Packages()) != 1 {
		t.Error("uninstalled frameworks must not contribute packages")
	}
}

func TestRuntimeShutdownSkipsInitializationSteps(t *testing.T) {
	var down atomic.Bool
	down.Store(true)

	setupRan := false
	rt := startRuntime(t, Options{
		CoreFrameworks:        []*Framework{{ID: NewFrameworkID("net", "4.0")}},
		DefaultBackendFactory: notInstalledFactory,
		ShuttingDown:          down.Load,
		Setup: func(ctx context.Context, rt *Runtime) error {
			setupRan = true
			return nil
		},
	})

	if rt.InitializationState() != InitDone {
		t.Errorf("state = %v, shutdown must still complete initialization", rt.InitializationState())
	}
	if len(rt.frameworks) != 0 {
		t.Error("no frameworks must be registered during shutdown")
	}
	if setupRan {
		t.Error("the setup hook must be skipped during shutdown")
	}
}

func TestRuntimeSetupHookRuns(t *testing.T) {
	rt := startRuntime(t, Options{
		DefaultBackendFactory: notInstalledFactory,
		Setup: func(ctx context.Context, r *Runtime) error {
			r.RegisterPackage(PackageInfo{Name: "from-setup", Version: "1.0"}, nil)
			return nil
		},
	})
	if _, ok := rt.Packages().Lookup("from-setup", "1.0"); !ok {
		t.Error("setup hook registrations must be visible after initialization")
	}
}

func TestRuntimeInspectorOnlyWhenActive(t *testing.T) {
	dir := t.TempDir()
	writeAssembly(t, dir, "mscorlib.dll")

	newFramework := func() *Framework {
		return &Framework{
			ID:         NewFrameworkID("net", "4.0"),
			Assemblies: []AssemblyDescriptor{{Name: "mscorlib"}},
		}
	}
	factory := func(rt *Runtime, fw *Framework) Backend {
		return &fakeBackend{installed: true, folders: []string{dir}}
	}

	passive := newFramework()
	insp := &versionInspector{version: "4.0.0.0"}
	startRuntime(t, Options{
		CoreFrameworks:        []*Framework{passive},
		DefaultBackendFactory: factory,
		Inspector:             insp,
	})
	if insp.calls != 0 || passive.Assemblies[0].Version != "" {
		t.Error("inactive runtimes must not inspect binaries")
	}

	active := newFramework()
	startRuntime(t, Options{
		CoreFrameworks:        []*Framework{active},
		DefaultBackendFactory: factory,
		Inspector:             insp,
		Active:                true,
	})
	if active.Assemblies[0].Version != "4.0.0.0" {
		t.Error("the active runtime must fill in assembly versions")
	}
}

func TestRuntimeSubscribesToPackageChanges(t *testing.T) {
	source := &fakeChangeSource{}
	rt := startRuntime(t, Options{
		DefaultBackendFactory: notInstalledFactory,
		PackageChanges:        source,
	})

	if source.handler == nil {
		t.Fatal("initialization must subscribe to the change source")
	}
	source.handler(PackageChange{
		Type: PackageAdded,
		Info: PackageInfo{Name: "plugin", Version: "1.0"},
	})
	if _, ok := rt.Packages().Lookup("plugin", "1.0"); !ok {
		t.Error("delivered change must reach the registry")
	}
}

func TestRuntimeSubscribeInitialized(t *testing.T) {
	release := make(chan struct{})
	rt, err := NewRuntime(Options{
		Kind:                  "mono",
		DefaultBackendFactory: notInstalledFactory,
		Setup: func(ctx context.Context, rt *Runtime) error {
			<-release
			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	rt.StartInitialization(context.Background())

	var fired, cancelled int32
	rt.SubscribeInitialized(func() { atomic.AddInt32(&fired, 1) })
	cancel := rt.SubscribeInitialized(func() { atomic.AddInt32(&cancelled, 1) })
	cancel()

	close(release)
	rt.WaitUntilInitialized()
	if atomic.LoadInt32(&fired) != 1 {
		t.Error("queued listener must fire at completion")
	}
	if atomic.LoadInt32(&cancelled) != 0 {
		t.Error("cancelled listener must not fire")
	}

	// After completion the listener fires inline.
	inline := false
	rt.SubscribeInitialized(func() { inline = true })
	if !inline {
		t.Error("post-completion subscription must fire synchronously")
	}
}

func TestRuntimeGetExecutionEnvironmentCopies(t *testing.T) {
	fw := &Framework{ID: NewFrameworkID("net", "4.0")}
	rt := startRuntime(t, Options{
		CoreFrameworks:        []*Framework{fw},
		DefaultBackendFactory: installedFactory(map[string]string{"MONO_PATH": "/lib"}),
	})

	env := rt.GetExecutionEnvironment(fw)
	if env.Variables["MONO_PATH"] != "/lib" {
		t.Fatalf("unexpected environment: %v", env.Variables)
	}
	env.Variables["MONO_PATH"] = "tampered"

	if again := rt.GetExecutionEnvironment(fw); again.Variables["MONO_PATH"] != "/lib" {
		t.Error("callers must receive an isolated copy of the variables")
	}
}

func TestExecuteAssemblyLaunchesInstalledFramework(t *testing.T) {
	fw := &Framework{ID: NewFrameworkID("net", "4.0")}
	launcher := &fakeLauncher{}
	rt := startRuntime(t, Options{
		CoreFrameworks:        []*Framework{fw},
		DefaultBackendFactory: installedFactory(map[string]string{"MONO_PATH": "/lib"}),
		Launcher:              launcher,
	})

	cfg := LaunchConfig{
		Args: []string{"--verbose"},
		Env:  map[string]string{"HOME": "/home/user"},
	}
	handle, err := rt.ExecuteAssembly(context.Background(), "/apps/app.exe", fw, cfg)
	if err != nil {
		t.Fatalf("ExecuteAssembly failed: %v", err)
	}
	if handle.PID() != 4242 {
		t.Errorf("unexpected handle: pid %d", handle.PID())
	}

	if len(launcher.launched) != 1 {
		t.Fatalf("launcher invoked %d times", len(launcher.launched))
	}
	got := launcher.launched[0]
	if got.Path != "/apps/app.exe" {
		t.Errorf("path = %q, want the assembly path", got.Path)
	}
	if got.Env["MONO_PATH"] != "/lib" || got.Env["HOME"] != "/home/user" {
		t.Errorf("merged env = %v", got.Env)
	}
	if len(got.Args) != 1 || got.Args[0] != "--verbose" {
		t.Errorf("args = %v", got.Args)
	}

	// The caller's configuration is never mutated.
	if _, leaked := cfg.Env["MONO_PATH"]; leaked {
		t.Error("resolved variables leaked into the caller's config")
	}
}

func TestExecuteAssemblyKeepsExplicitPath(t *testing.T) {
	fw := &Framework{ID: NewFrameworkID("net", "4.0")}
	launcher := &fakeLauncher{}
	rt := startRuntime(t, Options{
		CoreFrameworks:        []*Framework{fw},
		DefaultBackendFactory: installedFactory(nil),
		Launcher:              launcher,
	})

	_, err := rt.ExecuteAssembly(context.Background(), "/apps/app.exe", fw, LaunchConfig{Path: "/usr/bin/mono"})
	if err != nil {
		t.Fatal(err)
	}
	if launcher.launched[0].Path != "/usr/bin/mono" {
		t.Errorf("explicit path overridden: %q", launcher.launched[0].Path)
	}
}

func TestExecuteAssemblySubstitutesCompatibleFramework(t *testing.T) {
	required := &Framework{ID: NewFrameworkID("net", "4.0")}
	substitute := &Framework{
		ID:             NewFrameworkID("net", "4.5"),
		CompatibleWith: []FrameworkID{NewFrameworkID("net", "4.0")},
	}

	launcher := &fakeLauncher{}
	rt := startRuntime(t, Options{
		CoreFrameworks: []*Framework{required, substitute},
		DefaultBackendFactory: func(rt *Runtime, fw *Framework) Backend {
			if fw == substitute {
				return &fakeBackend{installed: true, env: map[string]string{"FW": "4.5"}}
			}
			return &fakeBackend{}
		},
		Launcher: launcher,
	})

	_, err := rt.ExecuteAssembly(context.Background(), "/apps/app.exe", required, LaunchConfig{})
	if err != nil {
		t.Fatalf("expected substitution, got %v", err)
	}
	if launcher.launched[0].Env["FW"] != "4.5" {
		t.Error("the substitute's environment must be used")
	}
}

func TestExecuteAssemblyNoCompatibleFramework(t *testing.T) {
	required := &Framework{ID: NewFrameworkID("net", "4.0")}
	unrelated := &Framework{ID: NewFrameworkID("custom", "1.0")}

	launcher := &fakeLauncher{}
	rt := startRuntime(t, Options{
		CoreFrameworks:        []*Framework{required, unrelated},
		DefaultBackendFactory: notInstalledFactory,
		Launcher:              launcher,
	})

	_, err := rt.ExecuteAssembly(context.Background(), "/apps/app.exe", required, LaunchConfig{})
	if !IsNoCompatibleFramework(err) {
		t.Fatalf("expected a no-compatible-framework error, got %v", err)
	}
	var ee *EngineError
	if !errors.As(err, &ee) {
		t.Fatal("expected an EngineError")
	}
	if ee.Assembly != "/apps/app.exe" || ee.Framework != "net/4.0" {
		t.Errorf("error context = assembly %q, framework %q", ee.Assembly, ee.Framework)
	}
	if len(launcher.launched) != 0 {
		t.Error("no process must start when resolution fails")
	}
}

func TestExecuteAssemblyResolvesFrameworkForAssembly(t *testing.T) {
	fw := &Framework{ID: NewFrameworkID("net", "4.0")}
	launcher := &fakeLauncher{}
	rt := startRuntime(t, Options{
		CoreFrameworks:        []*Framework{fw},
		DefaultBackendFactory: installedFactory(nil),
		Launcher:              launcher,
		FrameworkLookup:       &fakeFrameworkResolver{id: NewFrameworkID("net", "4.0")},
	})

	if _, err := rt.ExecuteAssembly(context.Background(), "/apps/app.exe", nil, LaunchConfig{}); err != nil {
		t.Fatalf("ExecuteAssembly failed: %v", err)
	}
	if len(launcher.launched) != 1 {
		t.Error("the resolved framework must be launched against")
	}
}

func TestExecuteAssemblyUnknownResolvedFrameworkSubstitutes(t *testing.T) {
	// The lookup names a framework the runtime never discovered; a
	// discovered installed framework declared compatible still serves.
	substitute := &Framework{
		ID:             NewFrameworkID("net", "4.5"),
		CompatibleWith: []FrameworkID{NewFrameworkID("net", "2.0")},
	}
	launcher := &fakeLauncher{}
	rt := startRuntime(t, Options{
		CoreFrameworks:        []*Framework{substitute},
		DefaultBackendFactory: installedFactory(nil),
		Launcher:              launcher,
		FrameworkLookup:       &fakeFrameworkResolver{id: NewFrameworkID("net", "2.0")},
	})

	if _, err := rt.ExecuteAssembly(context.Background(), "/apps/legacy.exe", nil, LaunchConfig{}); err != nil {
		t.Fatalf("expected substitution for the unknown framework, got %v", err)
	}
}

func TestExecuteAssemblyWithoutLookupFails(t *testing.T) {
	rt := startRuntime(t, Options{
		DefaultBackendFactory: notInstalledFactory,
		Launcher:              &fakeLauncher{},
	})

	_, err := rt.ExecuteAssembly(context.Background(), "/apps/app.exe", nil, LaunchConfig{})
	var ee *EngineError
	if !errors.As(err, &ee) || ee.Code != ErrCodeFrameworkUnknown {
		t.Errorf("expected a framework-unknown error, got %v", err)
	}
}

func TestExecuteAssemblyWithoutLauncherFails(t *testing.T) {
	fw := &Framework{ID: NewFrameworkID("net", "4.0")}
	rt := startRuntime(t, Options{
		CoreFrameworks:        []*Framework{fw},
		DefaultBackendFactory: installedFactory(nil),
	})

	_, err := rt.ExecuteAssembly(context.Background(), "/apps/app.exe", fw, LaunchConfig{})
	var ee *EngineError
	if !errors.As(err, &ee) || ee.Class != ErrorClassLaunch {
		t.Errorf("expected a launch error, got %v", err)
	}
}

func TestExecuteAssemblyLaunchFailureWrapped(t *testing.T) {
	fw := &Framework{ID: NewFrameworkID("net", "4.0")}
	cause := errors.New("fork failed")
	rt := startRuntime(t, Options{
		CoreFrameworks:        []*Framework{fw},
		DefaultBackendFactory: installedFactory(nil),
		Launcher:              &fakeLauncher{err: cause},
	})

	_, err := rt.ExecuteAssembly(context.Background(), "/apps/app.exe", fw, LaunchConfig{})
	if !errors.Is(err, cause) {
		t.Errorf("launch failure must wrap the launcher error, got %v", err)
	}
	var ee *EngineError
	if !errors.As(err, &ee) || ee.Code != ErrCodeLaunchFailed {
		t.Errorf("expected a launch-failed code, got %v", err)
	}
}

func TestRuntimeRegisterPackageIsInternal(t *testing.T) {
	rt := startRuntime(t, Options{DefaultBackendFactory: notInstalledFactory})

	p := rt.RegisterPackage(PackageInfo{Name: "plugin", Version: "1.0"}, []string{"/lib/plugin.dll"})
	if !p.IsInternalPackage {
		t.Error("programmatic registrations are internal")
	}

	rt.Packages().UnregisterPackage("plugin", "1.0")
	if _, ok := rt.Packages().Lookup("plugin", "1.0"); ok {
		t.Error("internal packages must be unregisterable")
	}
}
