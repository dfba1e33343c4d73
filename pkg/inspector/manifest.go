package inspector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/koichiyamashita/monodevelop/pkg/engine"
)

// sidecarExt is the extension of the metadata manifest that accompanies an
// assembly on disk, e.g. System.Core.dll.meta.yaml.
const sidecarExt = ".meta.yaml"

// assemblyManifest is the on-disk sidecar schema.
type assemblyManifest struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// ManifestInspector resolves assembly metadata from YAML sidecar manifests.
// When no sidecar exists, the assembly's base name is used and the version
// is left empty.
type ManifestInspector struct{}

// NewManifestInspector creates a manifest-based inspector.
func NewManifestInspector() *ManifestInspector {
	return &ManifestInspector{}
}

// Inspect reads the sidecar manifest for the assembly at path. A missing
// sidecar is not an error; the result then carries only the base name.
func (i *ManifestInspector) Inspect(ctx context.Context, path string) (engine.AssemblyInfo, error) {
	if err := ctx.Err(); err != nil {
		return engine.AssemblyInfo{}, err
	}

	info := engine.AssemblyInfo{
		Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}

	data, err := os.ReadFile(path + sidecarExt)
	if os.IsNotExist(err) {
		return info, nil
	}
	if err != nil {
		return engine.AssemblyInfo{}, fmt.Errorf("failed to read assembly manifest: %w", err)
	}

	var manifest assemblyManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return engine.AssemblyInfo{}, fmt.Errorf("failed to parse assembly manifest for %s: %w", path, err)
	}

	if manifest.Name != "" {
		info.Name = manifest.Name
	}
	info.Version = manifest.Version
	return info, nil
}
