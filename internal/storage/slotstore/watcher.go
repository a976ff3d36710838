package slotstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// ChangeKind classifies a slot file change.
type ChangeKind int

const (
	SlotWritten ChangeKind = iota
	SlotRemoved
)

// String returns the change name.
func (k ChangeKind) String() string {
	if k == SlotRemoved {
		return "removed"
	}
	return "written"
}

// Change is a single slot file event.
type Change struct {
	Slot string
	Kind ChangeKind
}

// Watcher reports changes to slot files in a FileStore directory. Temp
// files and files with other extensions are ignored.
type Watcher struct {
	store   *FileStore
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// NewWatcher starts watching the directory of store.
func NewWatcher(store *FileStore, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("slotstore: create watcher: %w", err)
	}
	if err := fw.Add(store.Dir()); err != nil {
		fw.Close()
		return nil, fmt.Errorf("slotstore: watch %s: %w", store.Dir(), err)
	}
	logger.Debug("watching slot directory", "path", store.Dir())
	return &Watcher{store: store, watcher: fw, logger: logger}, nil
}

// Run delivers changes to fn until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context, fn func(Change)) error {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if c, ok := w.translate(event); ok {
				fn(c)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("slot watcher error", "error", err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Watcher) translate(event fsnotify.Event) (Change, bool) {
	name, ok := w.store.SlotName(event.Name)
	if !ok {
		return Change{}, false
	}
	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		return Change{Slot: name, Kind: SlotWritten}, true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return Change{Slot: name, Kind: SlotRemoved}, true
	}
	return Change{}, false
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
