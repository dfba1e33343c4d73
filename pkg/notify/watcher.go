package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/koichiyamashita/monodevelop/pkg/engine"
	"github.com/koichiyamashita/monodevelop/pkg/telemetry"
)

// manifestSuffix is the suffix identifying package manifests in the watched
// directory.
const manifestSuffix = ".pkg.yaml"

// packageManifest is the on-disk package description schema.
type packageManifest struct {
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Description string   `yaml:"description,omitempty"`
	Core        bool     `yaml:"core"`
	Framework   bool     `yaml:"framework"`
	Assemblies  []string `yaml:"assemblies,omitempty"`
}

// Watcher watches a packages directory and delivers add/remove changes to a
// subscribed handler. It implements the runtime's external notification
// source contract.
type Watcher struct {
	dir    string
	logger *telemetry.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	known   map[string]engine.PackageChange
	closed  bool
}

// NewWatcher creates a watcher over the given packages directory.
func NewWatcher(dir string, logger *telemetry.Logger) *Watcher {
	return &Watcher{
		dir:    dir,
		logger: logger.NewComponentLogger("package-watcher"),
		known:  make(map[string]engine.PackageChange),
	}
}

// Subscribe starts watching and delivers one add change for every manifest
// already present, then change events as files appear, change and
// disappear. The handler is invoked from the watcher's goroutine; delivery
// stops when ctx is cancelled or Close is called.
func (w *Watcher) Subscribe(ctx context.Context, handler func(engine.PackageChange)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("watcher is closed")
	}
	if w.watcher != nil {
		return fmt.Errorf("watcher already subscribed")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.watcher = fsw

	// Replay existing manifests as adds before the event stream starts.
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		_ = fsw.Close()
		w.watcher = nil
		return fmt.Errorf("failed to read packages directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), manifestSuffix) {
			continue
		}
		w.deliverAddLocked(filepath.Join(w.dir, entry.Name()), handler)
	}

	go w.processEvents(ctx, fsw, handler)

	w.logger.WithField("dir", w.dir).Info("watching package manifests")
	return nil
}

func (w *Watcher) processEvents(ctx context.Context, fsw *fsnotify.Watcher, handler func(engine.PackageChange)) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, manifestSuffix) {
				continue
			}
			w.mu.Lock()
			switch {
			case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
				w.deliverAddLocked(event.Name, handler)
			case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
				w.deliverRemoveLocked(event.Name, handler)
			}
			w.mu.Unlock()

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("package watcher error")
		}
	}
}

// deliverAddLocked parses the manifest and delivers an add change,
// remembering the parsed metadata for a later remove.
func (w *Watcher) deliverAddLocked(path string, handler func(engine.PackageChange)) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.WithError(err).WithField("path", path).Warn("failed to read package manifest")
		return
	}

	var manifest packageManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		w.logger.WithError(err).WithField("path", path).Warn("skipping unparseable package manifest")
		return
	}
	if manifest.Name == "" {
		w.logger.WithField("path", path).Warn("skipping package manifest without a name")
		return
	}

	change := engine.PackageChange{
		Type: engine.PackageAdded,
		Info: engine.PackageInfo{
			Name:          manifest.Name,
			Version:       manifest.Version,
			Description:   manifest.Description,
			IsCorePackage: manifest.Core,
		},
		Assemblies:         manifest.Assemblies,
		IsFrameworkPackage: manifest.Framework,
	}
	w.known[path] = change
	handler(change)
}

// deliverRemoveLocked replays the remembered metadata as a remove change.
// Removes for manifests never successfully parsed are dropped.
func (w *Watcher) deliverRemoveLocked(path string, handler func(engine.PackageChange)) {
	change, ok := w.known[path]
	if !ok {
		return
	}
	delete(w.known, path)
	change.Type = engine.PackageRemoved
	handler(change)
}

// Close stops the watcher and releases its resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	w.watcher = nil
	return err
}
