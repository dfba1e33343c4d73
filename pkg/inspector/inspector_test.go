package inspector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/koichiyamashita/monodevelop/pkg/engine"
	"github.com/koichiyamashita/monodevelop/pkg/stores"
	"github.com/koichiyamashita/monodevelop/pkg/telemetry"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestManifestInspectorWithSidecar(t *testing.T) {
	dir := t.TempDir()
	asm := filepath.Join(dir, "System.Core.dll")
	writeFile(t, asm, "binary")
	writeFile(t, asm+sidecarExt, "name: System.Core\nversion: 4.0.0.0\n")

	info, err := NewManifestInspector().Inspect(context.Background(), asm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Name != "System.Core" {
		t.Errorf("expected name System.Core, got %s", info.Name)
	}
	if info.Version != "4.0.0.0" {
		t.Errorf("expected version 4.0.0.0, got %s", info.Version)
	}
}

func TestManifestInspectorWithoutSidecar(t *testing.T) {
	dir := t.TempDir()
	asm := filepath.Join(dir, "Mono.Addins.dll")
	writeFile(t, asm, "binary")

	info, err := NewManifestInspector().Inspect(context.Background(), asm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Name != "Mono.Addins" {
		t.Errorf("expected name Mono.Addins, got %s", info.Name)
	}
	if info.Version != "" {
		t.Errorf("expected empty version, got %s", info.Version)
	}
}

func TestManifestInspectorMalformedSidecar(t *testing.T) {
	dir := t.TempDir()
	asm := filepath.Join(dir, "Broken.dll")
	writeFile(t, asm, "binary")
	writeFile(t, asm+sidecarExt, ":\tnot yaml")

	_, err := NewManifestInspector().Inspect(context.Background(), asm)
	if err == nil {
		t.Fatal("expected error for malformed sidecar")
	}
}

// countingInspector counts how many inspections reach the wrapped inspector.
type countingInspector struct {
	calls int
	info  engine.AssemblyInfo
}

func (c *countingInspector) Inspect(_ context.Context, _ string) (engine.AssemblyInfo, error) {
	c.calls++
	return c.info, nil
}

func setupStore(t *testing.T) stores.AssemblyStore {
	t.Helper()
	store, err := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCachingInspectorHitsCacheOnSecondInspect(t *testing.T) {
	dir := t.TempDir()
	asm := filepath.Join(dir, "System.Xml.dll")
	writeFile(t, asm, "binary")

	inner := &countingInspector{info: engine.AssemblyInfo{Name: "System.Xml", Version: "4.0.0.0"}}
	ci := NewCachingInspector(inner, setupStore(t), telemetry.NewNopLogger())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		info, err := ci.Inspect(ctx, asm)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.Name != "System.Xml" || info.Version != "4.0.0.0" {
			t.Errorf("unexpected info: %+v", info)
		}
	}

	if inner.calls != 1 {
		t.Errorf("expected 1 inner inspection, got %d", inner.calls)
	}
}

func TestCachingInspectorMissesAfterModification(t *testing.T) {
	dir := t.TempDir()
	asm := filepath.Join(dir, "mscorlib.dll")
	writeFile(t, asm, "binary")

	inner := &countingInspector{info: engine.AssemblyInfo{Name: "mscorlib", Version: "4.0.0.0"}}
	ci := NewCachingInspector(inner, setupStore(t), telemetry.NewNopLogger())

	ctx := context.Background()
	if _, err := ci.Inspect(ctx, asm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Rewrite the file with a different mtime
	writeFile(t, asm, "binary v2")
	old := time.Now().Add(time.Hour)
	if err := os.Chtimes(asm, old, old); err != nil {
		t.Fatalf("failed to change mtime: %v", err)
	}

	if _, err := ci.Inspect(ctx, asm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inner.calls != 2 {
		t.Errorf("expected 2 inner inspections, got %d", inner.calls)
	}
}
