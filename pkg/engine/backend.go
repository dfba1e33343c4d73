package engine

import (
	"os"
	"path/filepath"
)

// LocalBackend is the default backend for frameworks laid out under the
// runtime's frameworks directory: identifier/version[/Profile/profile]. The
// framework is considered installed when at least one of its folders exists.
type LocalBackend struct {
	installed bool
	folders   []string
	toolPaths []string
	env       map[string]string
}

// NewLocalBackend returns the runtime's default backend factory.
func NewLocalBackend(rt *Runtime, fw *Framework) Backend {
	return &LocalBackend{}
}

// Initialize resolves the framework folders and environment. Called exactly
// once by the backend cache before the backend is published.
func (b *LocalBackend) Initialize(rt *Runtime, fw *Framework) error {
	root := filepath.Join(rt.FrameworksDir(), fw.ID.Identifier, fw.ID.Version)
	if fw.ID.Profile != "" {
		root = filepath.Join(root, profileDirName, fw.ID.Profile)
	}

	candidates := []string{root, filepath.Join(root, "lib")}
	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			b.folders = append(b.folders, dir)
		}
	}
	b.installed = len(b.folders) > 0

	b.toolPaths = append(b.toolPaths, filepath.Join(root, "bin"))
	b.toolPaths = append(b.toolPaths, rt.ToolPaths()...)

	b.env = map[string]string{
		envFrameworkID:      fw.ID.String(),
		envFrameworkVersion: fw.ID.Version,
	}
	if len(b.folders) > 0 {
		b.env[envFrameworkRoot] = b.folders[0]
	}
	for k, v := range rt.Environment() {
		b.env[k] = v
	}
	return nil
}

// Installed reports whether any framework folder exists on disk.
func (b *LocalBackend) Installed() bool { return b.installed }

// FrameworkFolders returns the resolved framework folders.
func (b *LocalBackend) FrameworkFolders() []string { return b.folders }

// ToolPaths returns the tool search directories.
func (b *LocalBackend) ToolPaths() []string { return b.toolPaths }

// EnvironmentVariables returns the backend environment variable set.
func (b *LocalBackend) EnvironmentVariables() map[string]string { return b.env }

// ResolveTool searches the tool paths for the named tool. Both the bare name
// and name+".exe" are tried, in path order.
func (b *LocalBackend) ResolveTool(name string) (string, bool) {
	for _, dir := range b.toolPaths {
		for _, candidate := range []string{name, name + ".exe"} {
			p := filepath.Join(dir, candidate)
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p, true
			}
		}
	}
	return "", false
}

const (
	profileDirName = "Profile"

	envFrameworkID      = "MD_FRAMEWORK"
	envFrameworkVersion = "MD_FRAMEWORK_VERSION"
	envFrameworkRoot    = "MD_FRAMEWORK_ROOT"
)

// unsupportedBackend is the guaranteed-non-nil fallback: never installed,
// empty folders and environment, tool resolution always misses. It lets
// GetBackend never fail and spares callers nil checks.
type unsupportedBackend struct{}

func (unsupportedBackend) Initialize(rt *Runtime, fw *Framework) error { return nil }
func (unsupportedBackend) Installed() bool                             { return false }
func (unsupportedBackend) FrameworkFolders() []string                  { return nil }
func (unsupportedBackend) ToolPaths() []string                         { return nil }
func (unsupportedBackend) EnvironmentVariables() map[string]string     { return map[string]string{} }
func (unsupportedBackend) ResolveTool(name string) (string, bool)      { return "", false }
