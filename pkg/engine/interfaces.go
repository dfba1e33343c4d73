package engine

import (
	"context"
)

// Backend is the per-(runtime, framework) adapter providing installation
// status, tool paths and environment variables. A backend is created on first
// request for its framework, initialized exactly once before it becomes
// visible to other callers, and never mutated afterwards.
type Backend interface {
	// Initialize prepares the backend for its runtime and framework. It is
	// called exactly once, before the backend is published in the cache.
	Initialize(rt *Runtime, fw *Framework) error

	// Installed reports whether the framework is installed for the runtime.
	Installed() bool

	// FrameworkFolders returns the directories containing the framework's
	// assemblies, in resolution order.
	FrameworkFolders() []string

	// ToolPaths returns the directories searched by ResolveTool.
	ToolPaths() []string

	// EnvironmentVariables returns the name-to-value environment variable
	// set for processes targeting the framework. Callers must not mutate
	// the returned map.
	EnvironmentVariables() map[string]string

	// ResolveTool resolves a named tool to an absolute path.
	ResolveTool(name string) (string, bool)
}

// BackendFactory constructs a backend for a framework. A nil return defers
// to the next factory in the creation order (framework factory, then the
// runtime default, then the not-supported fallback).
type BackendFactory func(rt *Runtime, fw *Framework) Backend

// FrameworkSource yields framework definitions discovered from disk.
// Each Discover call rescans; the source caches nothing.
type FrameworkSource interface {
	// Discover enumerates framework definitions under the source's
	// directory. Per-entry parse failures are logged and skipped by the
	// implementation; the returned error covers only total failures such as
	// an unreadable root directory.
	Discover(ctx context.Context) ([]*Framework, error)
}

// PackageChangeSource asynchronously delivers package add/remove events,
// each carrying package metadata and an assembly list.
type PackageChangeSource interface {
	// Subscribe registers the handler and starts delivery. Delivery stops
	// when ctx is cancelled or the source is closed.
	Subscribe(ctx context.Context, handler func(PackageChange)) error

	// Close stops delivery and releases watcher resources.
	Close() error
}

// AssemblyInspector extracts name and version metadata from an assembly
// file. Inspection failures are tolerated by the engine: the assembly is
// registered without version information.
type AssemblyInspector interface {
	Inspect(ctx context.Context, path string) (AssemblyInfo, error)
}

// ProcessLauncher starts a prepared launch configuration. Launch failures
// propagate to the caller as launch errors, never swallowed.
type ProcessLauncher interface {
	Launch(ctx context.Context, cfg LaunchConfig) (ProcessHandle, error)
}

// CompatibilityResolver decides whether a candidate installed framework is
// an acceptable substitute for a required framework identity.
type CompatibilityResolver interface {
	Compatible(required FrameworkID, candidate *Framework) bool
}

// CompatibilityResolverFunc adapts a function to a CompatibilityResolver.
type CompatibilityResolverFunc func(required FrameworkID, candidate *Framework) bool

// Compatible implements CompatibilityResolver.
func (f CompatibilityResolverFunc) Compatible(required FrameworkID, candidate *Framework) bool {
	return f(required, candidate)
}

// FrameworkResolver determines which framework a target assembly wants.
type FrameworkResolver interface {
	FrameworkForAssembly(ctx context.Context, assemblyPath string) (FrameworkID, error)
}

// declaredCompatibility is the default substitution rule: a candidate is
// acceptable when it is the required framework itself or explicitly lists
// the required identity in its compatibility relation.
func declaredCompatibility(required FrameworkID, candidate *Framework) bool {
	if candidate.ID == required {
		return true
	}
	for _, id := range candidate.CompatibleWith {
		if id == required {
			return true
		}
	}
	return false
}

// DefaultCompatibilityResolver returns the declared-compatibility rule.
func DefaultCompatibilityResolver() CompatibilityResolver {
	return CompatibilityResolverFunc(declaredCompatibility)
}
