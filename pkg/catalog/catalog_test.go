package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/koichiyamashita/monodevelop/pkg/engine"
	"github.com/koichiyamashita/monodevelop/pkg/telemetry"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFileName), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
}

const netManifest = `
name: ".NET Framework 4.0"
assemblies:
  - name: mscorlib
  - name: System.Core
    package: net-core
compatible_with:
  - identifier: net
    version: "3.5"
packages:
  - name: net-core
    version: "4.0"
    core: true
`

func TestDiscoverTwoLevelHierarchy(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "net", "4.0"), netManifest)

	cat := NewCatalog(root, telemetry.NewNopLogger())
	fws, err := cat.Discover(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fws) != 1 {
		t.Fatalf("expected 1 framework, got %d", len(fws))
	}

	fw := fws[0]
	if fw.ID != engine.NewFrameworkID("net", "4.0") {
		t.Errorf("unexpected id: %v", fw.ID)
	}
	if fw.Name != ".NET Framework 4.0" {
		t.Errorf("unexpected name: %s", fw.Name)
	}
	if len(fw.Assemblies) != 2 {
		t.Errorf("expected 2 assemblies, got %d", len(fw.Assemblies))
	}
	if len(fw.CompatibleWith) != 1 || fw.CompatibleWith[0] != engine.NewFrameworkID("net", "3.5") {
		t.Errorf("unexpected compatibility list: %v", fw.CompatibleWith)
	}
	if len(fw.PackageMetadata) != 1 || !fw.PackageMetadata[0].IsCorePackage {
		t.Errorf("unexpected package metadata: %v", fw.PackageMetadata)
	}
}

func TestDiscoverProfileLevel(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "net", "4.0"), netManifest)
	writeManifest(t, filepath.Join(root, "net", "4.0", "Profile", "Client"), `
name: ".NET Framework 4.0 Client Profile"
assemblies:
  - name: mscorlib
`)

	cat := NewCatalog(root, telemetry.NewNopLogger())
	fws, err := cat.Discover(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fws) != 2 {
		t.Fatalf("expected 2 frameworks, got %d", len(fws))
	}

	want := engine.FrameworkID{Identifier: "net", Version: "4.0", Profile: "Client"}
	found := false
	for _, fw := range fws {
		if fw.ID == want {
			found = true
		}
	}
	if !found {
		t.Errorf("profile framework %v not discovered", want)
	}
}

func TestDiscoverSkipsMalformedManifest(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "net", "4.0"), netManifest)
	writeManifest(t, filepath.Join(root, "net", "4.5"), ":\tnot yaml")
	writeManifest(t, filepath.Join(root, "mono", "6.0"), `
assemblies:
  - version: "1.0"
`) // assembly missing required name

	cat := NewCatalog(root, telemetry.NewNopLogger())
	fws, err := cat.Discover(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fws) != 1 {
		t.Fatalf("expected only the valid framework, got %d", len(fws))
	}
	if fws[0].ID != engine.NewFrameworkID("net", "4.0") {
		t.Errorf("unexpected framework: %v", fws[0].ID)
	}
}

func TestDiscoverMissingRoot(t *testing.T) {
	cat := NewCatalog(filepath.Join(t.TempDir(), "absent"), telemetry.NewNopLogger())
	fws, err := cat.Discover(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fws) != 0 {
		t.Errorf("expected no frameworks, got %d", len(fws))
	}
}

func TestDiscoverPicksUpNewFrameworksOnRescan(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "net", "4.0"), netManifest)

	cat := NewCatalog(root, telemetry.NewNopLogger())
	first, err := cat.Discover(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 framework, got %d", len(first))
	}

	writeManifest(t, filepath.Join(root, "net", "4.5"), `
name: ".NET Framework 4.5"
assemblies:
  - name: mscorlib
`)

	second, err := cat.Discover(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second) != 2 {
		t.Errorf("expected rescan to pick up new framework, got %d", len(second))
	}
}
