// Package notify delivers asynchronous package change notifications.
//
// Watcher observes a directory of package manifests (*.pkg.yaml) with
// fsnotify and translates file events into add/remove package changes. A
// removed manifest can no longer be read, so the watcher remembers the
// metadata it last parsed per path and replays it on removal.
package notify
