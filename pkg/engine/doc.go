// Package engine implements the runtime/framework resolution core: one-shot
// background initialization, directory-discovered framework sets, a lazy
// backend cache keyed by framework identity, and an event-driven package
// registry that reconciles concurrent add/remove notifications.
//
// The engine owns no UI and no on-disk formats. Framework definitions,
// package-change notifications, assembly metadata inspection, and process
// launching all arrive through the collaborator interfaces in interfaces.go;
// concrete implementations live in pkg/catalog, pkg/notify, pkg/inspector and
// pkg/launcher.
package engine
