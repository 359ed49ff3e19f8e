package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file into a Holder whenever it changes on disk
type Watcher struct {
	path     string
	holder   *Holder
	debounce time.Duration
	onReload func(*Config)
}

// NewWatcher creates a watcher for path feeding holder
func NewWatcher(path string, holder *Holder) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		holder:   holder,
		debounce: 250 * time.Millisecond,
	}
}

// OnReload registers a callback fired after each successful reload
func (w *Watcher) OnReload(fn func(*Config)) {
	w.onReload = fn
}

// Reload parses the file once and swaps it in; on error the old config stays
func (w *Watcher) Reload() error {
	cfg, err := Load(w.path)
	if err != nil {
		return err
	}
	w.holder.Set(cfg)
	if w.onReload != nil {
		w.onReload(cfg)
	}
	return nil
}

// Run watches until ctx is cancelled.
// The parent directory is watched so editors that replace the file are seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	log.Printf("👀 Watching %s for config changes", w.path)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if err := w.Reload(); err != nil {
				log.Printf("⚠️  Config reload failed, keeping previous config: %v", err)
				continue
			}
			log.Printf("🔄 Config reloaded from %s", w.path)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("⚠️  Config watcher error: %v", err)
		}
	}
}
