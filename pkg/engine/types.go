package engine

import (
	"path"
	"time"
)

// FrameworkID uniquely names a target framework within a runtime.
// Equality and hashing are structural: two IDs with the same identifier,
// version and profile refer to the same framework.
type FrameworkID struct {
	// Identifier is the platform identifier (e.g. "NET").
	Identifier string `json:"identifier"`

	// Version is the framework version (e.g. "4.0").
	Version string `json:"version"`

	// Profile is the optional framework profile (e.g. "Client").
	Profile string `json:"profile,omitempty"`
}

// NewFrameworkID creates a framework identity without a profile.
func NewFrameworkID(identifier, version string) FrameworkID {
	return FrameworkID{Identifier: identifier, Version: version}
}

// String returns the canonical "identifier/version[/profile]" form.
func (id FrameworkID) String() string {
	if id.Profile != "" {
		return path.Join(id.Identifier, id.Version, id.Profile)
	}
	return path.Join(id.Identifier, id.Version)
}

// IsZero reports whether the identity is empty.
func (id FrameworkID) IsZero() bool {
	return id.Identifier == "" && id.Version == "" && id.Profile == ""
}

// AssemblyDescriptor names one assembly shipped by a framework. The version
// may be filled in lazily the first time the assembly is resolved on disk,
// and only when the owning runtime is the one currently executing.
type AssemblyDescriptor struct {
	// Name is the assembly file name (with or without extension).
	Name string `json:"name" yaml:"name" validate:"required"`

	// Version is the assembly version, if known.
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Package is the name of the package the assembly belongs to.
	// Empty means the framework's default package.
	Package string `json:"package,omitempty" yaml:"package,omitempty"`
}

// Framework describes a target API surface a program can be built and run
// against: an identity, the assemblies it ships, and the identities it can
// substitute for when the exact framework is not installed.
type Framework struct {
	// ID is the framework identity.
	ID FrameworkID `json:"id"`

	// Name is the human-readable framework name.
	Name string `json:"name,omitempty"`

	// Assemblies is the ordered list of assemblies the framework provides.
	Assemblies []AssemblyDescriptor `json:"assemblies,omitempty"`

	// CompatibleWith lists framework identities this framework is an
	// acceptable substitute for.
	CompatibleWith []FrameworkID `json:"compatible_with,omitempty"`

	// PackageMetadata describes the packages the framework's assemblies are
	// grouped into, keyed by package name through PackageInfoFor.
	PackageMetadata []PackageInfo `json:"package_metadata,omitempty"`

	// BackendFactory optionally supplies a runtime-specific backend for this
	// framework. When nil the runtime's default factory is consulted.
	BackendFactory BackendFactory `json:"-"`
}

// PackageInfoFor returns the metadata for the named package, or a synthetic
// default carrying the framework's version when the name is unknown.
func (f *Framework) PackageInfoFor(name string) PackageInfo {
	for _, info := range f.PackageMetadata {
		if info.Name == name {
			return info
		}
	}
	return PackageInfo{
		Name:          name,
		Version:       f.ID.Version,
		IsCorePackage: true,
	}
}

// DisplayName returns the framework name, falling back to the identity.
func (f *Framework) DisplayName() string {
	if f.Name != "" {
		return f.Name
	}
	return f.ID.String()
}

// PackageInfo is the descriptive metadata of a package, independent of the
// resolved assembly list.
type PackageInfo struct {
	// Name is the package name.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Version is the package version.
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Description is an optional human-readable description.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// IsCorePackage marks the package as part of the baseline framework
	// offering. Names of packages registered with this flag cleared are
	// recorded in the runtime's core-name set and never removed.
	IsCorePackage bool `json:"is_core_package" yaml:"core"`
}

// Package is a named, versioned bundle of resolved assembly paths.
type Package struct {
	// Info is the package metadata.
	Info PackageInfo `json:"info"`

	// Assemblies is the ordered list of resolved assembly file paths.
	Assemblies []string `json:"assemblies,omitempty"`

	// IsFrameworkPackage is set when the package was supplied as part of a
	// framework's core set rather than contributed separately.
	IsFrameworkPackage bool `json:"is_framework_package"`

	// IsInternalPackage is set when the package was supplied
	// programmatically rather than discovered from installed state. Only
	// internal packages may be unregistered.
	IsInternalPackage bool `json:"is_internal_package"`

	// IsCorePackage is set when the package name appears in the runtime's
	// core-package name set at registration time.
	IsCorePackage bool `json:"is_core_package"`
}

// Name returns the package name.
func (p *Package) Name() string { return p.Info.Name }

// Version returns the package version.
func (p *Package) Version() string { return p.Info.Version }

// PackageChangeType distinguishes add and remove notifications.
type PackageChangeType string

const (
	// PackageAdded signals a package contributed at run time.
	PackageAdded PackageChangeType = "added"

	// PackageRemoved signals a run-time contributed package going away.
	PackageRemoved PackageChangeType = "removed"
)

// PackageChange is one asynchronous add/remove notification delivered by an
// external notification source.
type PackageChange struct {
	// Type is the change type.
	Type PackageChangeType `json:"type"`

	// Info is the package metadata carried by the notification.
	Info PackageInfo `json:"info"`

	// Assemblies is the assembly path list carried by the notification.
	Assemblies []string `json:"assemblies,omitempty"`

	// IsFrameworkPackage marks the incoming package as framework-supplied,
	// which grants it replacement precedence over non-framework packages of
	// the same name.
	IsFrameworkPackage bool `json:"is_framework_package"`
}

// AssemblyInfo is the metadata an inspector extracts from an assembly file.
type AssemblyInfo struct {
	// Name is the assembly name.
	Name string `json:"name"`

	// Version is the assembly version.
	Version string `json:"version,omitempty"`
}

// InitState is the initialization lifecycle of a runtime instance.
// Transitions only move forward: NotStarted -> Running -> Done.
type InitState int32

const (
	// InitNotStarted means initialization has not been triggered.
	InitNotStarted InitState = iota

	// InitRunning means the background initialization sequence is active.
	InitRunning

	// InitDone means initialization completed (successfully or after a
	// logged internal error).
	InitDone
)

// String returns the state name.
func (s InitState) String() string {
	switch s {
	case InitNotStarted:
		return "not_started"
	case InitRunning:
		return "running"
	case InitDone:
		return "done"
	default:
		return "unknown"
	}
}

// ExecutionEnvironment is the resolved per-framework environment used to
// prepare a process launch.
type ExecutionEnvironment struct {
	// Framework is the framework the environment was resolved for. It may
	// differ from the requested framework when a compatible substitute was
	// chosen.
	Framework FrameworkID `json:"framework"`

	// Variables is the name-to-value environment variable set.
	Variables map[string]string `json:"variables,omitempty"`

	// ToolPaths are the directories searched for framework tools.
	ToolPaths []string `json:"tool_paths,omitempty"`
}

// LaunchConfig describes a process to start. The engine merges resolved
// environment variables into a copy before delegating to the launcher; the
// caller's value is never mutated.
type LaunchConfig struct {
	// Path is the file to execute. ExecuteAssembly fills it with the
	// assembly path when empty.
	Path string `json:"path"`

	// Args are the process arguments (not including Path).
	Args []string `json:"args,omitempty"`

	// Dir is the working directory.
	Dir string `json:"dir,omitempty"`

	// Env is the name-to-value environment variable set.
	Env map[string]string `json:"env,omitempty"`
}

// Clone returns a deep copy of the launch configuration.
func (c LaunchConfig) Clone() LaunchConfig {
	out := c
	out.Args = append([]string(nil), c.Args...)
	if c.Env != nil {
		out.Env = make(map[string]string, len(c.Env))
		for k, v := range c.Env {
			out.Env[k] = v
		}
	}
	return out
}

// ProcessHandle is a started process returned by a ProcessLauncher.
type ProcessHandle interface {
	// ID is the launcher-assigned handle identifier.
	ID() string

	// PID is the operating system process id.
	PID() int

	// Wait blocks until the process exits and returns its exit code.
	Wait() (int, error)

	// StartedAt is when the process was started.
	StartedAt() time.Time
}
