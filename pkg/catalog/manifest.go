package catalog

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/koichiyamashita/monodevelop/pkg/engine"
)

// ManifestFileName is the file name of a framework definition manifest.
const ManifestFileName = "framework.yaml"

// frameworkRef is a framework identity as written in a manifest.
type frameworkRef struct {
	Identifier string `yaml:"identifier" validate:"required"`
	Version    string `yaml:"version" validate:"required"`
	Profile    string `yaml:"profile,omitempty"`
}

// frameworkManifest is the on-disk framework definition schema. The
// framework's own identity comes from the directory layout, not the
// manifest.
type frameworkManifest struct {
	Name           string                      `yaml:"name"`
	Assemblies     []engine.AssemblyDescriptor `yaml:"assemblies" validate:"dive"`
	CompatibleWith []frameworkRef              `yaml:"compatible_with,omitempty" validate:"dive"`
	Packages       []engine.PackageInfo        `yaml:"packages,omitempty" validate:"dive"`
}

// parseManifest reads and validates one framework manifest and binds it to
// the identity derived from its location.
func parseManifest(path string, id engine.FrameworkID, validate *validator.Validate) (*engine.Framework, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read framework manifest: %w", err)
	}

	var manifest frameworkManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse framework manifest %s: %w", path, err)
	}

	if err := validate.Struct(&manifest); err != nil {
		return nil, fmt.Errorf("framework manifest %s failed validation: %w", path, err)
	}

	fw := &engine.Framework{
		ID:              id,
		Name:            manifest.Name,
		Assemblies:      manifest.Assemblies,
		PackageMetadata: manifest.Packages,
	}
	for _, ref := range manifest.CompatibleWith {
		fw.CompatibleWith = append(fw.CompatibleWith, engine.FrameworkID{
			Identifier: ref.Identifier,
			Version:    ref.Version,
			Profile:    ref.Profile,
		})
	}
	return fw, nil
}
