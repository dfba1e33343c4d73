// Package inspector extracts identity metadata (name, version) from
// assembly files.
//
// ManifestInspector reads a YAML sidecar manifest next to the assembly;
// CachingInspector wraps any inspector with a persistent cache keyed by
// path and modification time, so unchanged assemblies are inspected at
// most once across runs.
package inspector
