package serve

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes a report directory tree and fires hub reload events
// when files change. Bursts of writes (a full report rebuild touches many
// files) collapse into one event per debounce window.
type Watcher struct {
	dir      string
	hub      *Hub
	log      *slog.Logger
	debounce time.Duration
}

// NewWatcher watches dir and notifies hub.
func NewWatcher(dir string, hub *Hub, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{dir: dir, hub: hub, log: log, debounce: 200 * time.Millisecond}
}

// Run blocks until ctx is cancelled, forwarding filesystem changes to the
// hub. Subdirectories existing at start are watched; directories created
// later are added as they appear.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addTree(fw, w.dir); err != nil {
		return err
	}

	var (
		pending string
		timer   *time.Timer
		fire    <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Create) {
				// New directories need their own watch.
				if err := addTree(fw, ev.Name); err == nil {
					w.log.Debug("watching new path", "path", ev.Name)
				}
			}
			if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Remove) {
				pending = ev.Name
				if timer == nil {
					timer = time.NewTimer(w.debounce)
				} else {
					timer.Reset(w.debounce)
				}
				fire = timer.C
			}
		case <-fire:
			rel, err := filepath.Rel(w.dir, pending)
			if err != nil {
				rel = pending
			}
			w.log.Info("content changed, reloading", "path", rel)
			w.hub.Broadcast(ReloadEvent{Type: "reload", Path: filepath.ToSlash(rel), Timestamp: time.Now()})
			fire = nil
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

// addTree registers path and every directory below it. Non-directories are
// ignored so Create events for plain files pass through cheaply.
func addTree(fw *fsnotify.Watcher, path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(p)
		}
		return nil
	})
}
