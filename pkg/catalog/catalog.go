package catalog

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/koichiyamashita/monodevelop/pkg/engine"
	"github.com/koichiyamashita/monodevelop/pkg/telemetry"
)

// profileDirName separates the optional profile level from version
// directories in the framework hierarchy.
const profileDirName = "Profile"

// Catalog discovers framework definitions under a root directory. Every
// Discover call rescans the disk, so frameworks added between calls are
// picked up by the next scan.
type Catalog struct {
	root     string
	validate *validator.Validate
	logger   *telemetry.Logger
}

// NewCatalog creates a catalog over the given root directory.
func NewCatalog(root string, logger *telemetry.Logger) *Catalog {
	return &Catalog{
		root:     root,
		validate: validator.New(),
		logger:   logger.NewComponentLogger("framework-catalog"),
	}
}

// Discover scans the hierarchy and returns all parseable framework
// definitions, ordered by identity for deterministic output. A missing root
// yields an empty set; a malformed manifest is logged and skipped.
func (c *Catalog) Discover(ctx context.Context) ([]*engine.Framework, error) {
	entries, err := os.ReadDir(c.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []*engine.Framework
	for _, idDir := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !idDir.IsDir() {
			continue
		}
		out = append(out, c.discoverVersions(idDir.Name())...)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (c *Catalog) discoverVersions(identifier string) []*engine.Framework {
	dir := filepath.Join(c.root, identifier)
	entries, err := os.ReadDir(dir)
	if err != nil {
		c.logger.WithError(err).WithField("dir", dir).
			Warn("failed to read framework identifier directory")
		return nil
	}

	var out []*engine.Framework
	for _, verDir := range entries {
		if !verDir.IsDir() {
			continue
		}
		id := engine.NewFrameworkID(identifier, verDir.Name())
		versionRoot := filepath.Join(dir, verDir.Name())

		if fw := c.load(filepath.Join(versionRoot, ManifestFileName), id); fw != nil {
			out = append(out, fw)
		}
		out = append(out, c.discoverProfiles(versionRoot, id)...)
	}
	return out
}

func (c *Catalog) discoverProfiles(versionRoot string, base engine.FrameworkID) []*engine.Framework {
	dir := filepath.Join(versionRoot, profileDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		// No profile level is the common case.
		return nil
	}

	var out []*engine.Framework
	for _, profDir := range entries {
		if !profDir.IsDir() {
			continue
		}
		id := base
		id.Profile = profDir.Name()
		if fw := c.load(filepath.Join(dir, profDir.Name(), ManifestFileName), id); fw != nil {
			out = append(out, fw)
		}
	}
	return out
}

// load parses one manifest, returning nil when the file is absent or
// malformed. Parse and validation failures are logged so a single bad
// definition never aborts the scan.
func (c *Catalog) load(path string, id engine.FrameworkID) *engine.Framework {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	fw, err := parseManifest(path, id, c.validate)
	if err != nil {
		c.logger.WithError(err).WithFramework(id.String()).
			Warn("skipping unparseable framework definition")
		return nil
	}
	return fw
}
