package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/koichiyamashita/monodevelop/pkg/telemetry"
)

// packageKey identifies a registered package by name and version.
type packageKey struct {
	name    string
	version string
}

// PackageRegistry is the mutable set of packages a runtime provides or that
// plugins contribute at run time. It is keyed by (name, version), tracks
// which package names are core, and reconciles asynchronous add/remove
// notifications against already-registered state. A single coarse lock
// guards all mutation; the mutation rate is low (once at startup, occasional
// plugin contributions afterwards).
type PackageRegistry struct {
	mu        sync.Mutex
	packages  map[packageKey]*Package
	order     []packageKey
	coreNames map[string]struct{}
	logger    *telemetry.Logger
	metrics   *telemetry.Metrics
}

// NewPackageRegistry creates an empty package registry.
func NewPackageRegistry(logger *telemetry.Logger, metrics *telemetry.Metrics) *PackageRegistry {
	return &PackageRegistry{
		packages:  make(map[packageKey]*Package),
		coreNames: make(map[string]struct{}),
		logger:    logger.NewComponentLogger("package-registry"),
		metrics:   metrics,
	}
}

// RegisterPackage creates or replaces the package keyed by the info's name
// and version. The internal flag marks the package as programmatically
// supplied; only internal packages can be unregistered later.
func (r *PackageRegistry) RegisterPackage(info PackageInfo, files []string, internal bool) *Package {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(info, files, false, internal)
}

func (r *PackageRegistry) registerLocked(info PackageInfo, files []string, framework, internal bool) *Package {
	r.classifyCoreLocked(info)

	key := packageKey{name: info.Name, version: info.Version}
	p := &Package{
		Info:               info,
		Assemblies:         append([]string(nil), files...),
		IsFrameworkPackage: framework,
		IsInternalPackage:  internal,
	}
	_, p.IsCorePackage = r.coreNames[info.Name]

	if _, exists := r.packages[key]; !exists {
		r.order = append(r.order, key)
	}
	r.packages[key] = p

	r.logger.WithPackage(info.Name, info.Version).
		WithField("framework_package", framework).
		WithField("internal", internal).
		Debug("registered package")
	r.metrics.PackageRegistered(framework, internal)
	return p
}

// classifyCoreLocked records the package name in the core-name set when its
// metadata does not mark it as a core package. The set only grows for the
// runtime's lifetime.
func (r *PackageRegistry) classifyCoreLocked(info PackageInfo) {
	if !info.IsCorePackage {
		r.coreNames[info.Name] = struct{}{}
	}
}

// UnregisterPackage removes the package keyed by (name, version) if and only
// if it was programmatically supplied. Disk-discovered packages are derived
// from installed state, not request state, so removing them is a no-op.
func (r *PackageRegistry) UnregisterPackage(name, version string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregisterLocked(name, version)
}

func (r *PackageRegistry) unregisterLocked(name, version string) {
	key := packageKey{name: name, version: version}
	p, ok := r.packages[key]
	if !ok || !p.IsInternalPackage {
		return
	}
	delete(r.packages, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.logger.WithPackage(name, version).Debug("unregistered package")
}

// OnExternalPackageChange reconciles one asynchronous add/remove
// notification. On add: if no package with the same name exists, or the
// existing one is not a framework package while the incoming one is, the
// incoming package is registered (collapsing the existing name regardless of
// version); otherwise the notification is ignored, so a framework-supplied
// package is never downgraded by a later non-framework registration of the
// same name. On remove: the package is unregistered only when it exists and
// was programmatically supplied.
func (r *PackageRegistry) OnExternalPackageChange(change PackageChange) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.metrics.PackageChange(string(change.Type))

	switch change.Type {
	case PackageAdded:
		existing := r.lookupByNameLocked(change.Info.Name)
		if existing != nil {
			if existing.IsFrameworkPackage || !change.IsFrameworkPackage {
				r.logger.WithPackage(change.Info.Name, change.Info.Version).
					Debug("ignoring add notification, existing package has precedence")
				return
			}
			// Incoming framework package replaces the non-framework one;
			// same name collapses regardless of version.
			r.removeNameLocked(change.Info.Name)
		}
		r.registerLocked(change.Info, change.Assemblies, change.IsFrameworkPackage, true)

	case PackageRemoved:
		r.unregisterLocked(change.Info.Name, change.Info.Version)
	}
}

func (r *PackageRegistry) removeNameLocked(name string) {
	kept := r.order[:0]
	for _, key := range r.order {
		if key.name == name {
			delete(r.packages, key)
			continue
		}
		kept = append(kept, key)
	}
	r.order = kept
}

// RegisterFrameworkAssemblies resolves a framework's assembly descriptors
// against the given folders and registers the resulting packages as
// framework packages. For each descriptor the folders are searched in order
// and the first existing file wins; the descriptor's version is filled in by
// the inspector only when one is supplied (the runtime passes nil unless it
// is the one currently executing, to avoid cross-runtime binary
// inspection). Assembly bind order across descriptors is insertion order.
// Inspection failures are ignored per assembly; the assembly is still
// registered, just without version metadata.
func (r *PackageRegistry) RegisterFrameworkAssemblies(ctx context.Context, fw *Framework, folders []string, inspector AssemblyInspector) {
	buckets := make(map[string][]string)
	var names []string

	for i := range fw.Assemblies {
		asm := &fw.Assemblies[i]
		path, ok := resolveAssembly(folders, asm.Name)
		if !ok {
			continue
		}
		if inspector != nil && asm.Version == "" {
			if info, err := inspector.Inspect(ctx, path); err == nil {
				asm.Version = info.Version
			}
		}

		pkgName := asm.Package
		if pkgName == "" {
			pkgName = fw.ID.Identifier
		}
		if _, seen := buckets[pkgName]; !seen {
			names = append(names, pkgName)
		}
		buckets[pkgName] = append(buckets[pkgName], path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		info := fw.PackageInfoFor(name)
		r.registerLocked(info, buckets[name], true, false)
	}
}

// resolveAssembly searches the folders in order for the named assembly,
// trying the bare name and name+".dll".
func resolveAssembly(folders []string, name string) (string, bool) {
	candidates := []string{name}
	if !strings.Contains(name, ".") {
		candidates = append(candidates, name+".dll")
	}
	for _, dir := range folders {
		for _, c := range candidates {
			p := filepath.Join(dir, c)
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p, true
			}
		}
	}
	return "", false
}

// Lookup returns the package registered under (name, version).
func (r *PackageRegistry) Lookup(name, version string) (*Package, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.packages[packageKey{name: name, version: version}]
	return p, ok
}

// LookupByName returns the first package registered under the name,
// ignoring version.
func (r *PackageRegistry) LookupByName(name string) (*Package, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.lookupByNameLocked(name)
	return p, p != nil
}

func (r *PackageRegistry) lookupByNameLocked(name string) *Package {
	for _, key := range r.order {
		if key.name == name {
			return r.packages[key]
		}
	}
	return nil
}

// Packages returns a snapshot of all registered packages in registration
// order.
func (r *PackageRegistry) Packages() []*Package {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Package, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.packages[key])
	}
	return out
}

// IsCorePackageName reports whether the name is in the runtime's core-name
// set. The set is monotonically non-decreasing for the runtime's lifetime.
func (r *PackageRegistry) IsCorePackageName(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.coreNames[name]
	return ok
}
