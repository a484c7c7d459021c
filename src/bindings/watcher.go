package bindings

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceWindow = 200 * time.Millisecond

// Watcher reports external edits to the bindings file. Editors and the
// store's own atomic rename produce bursts of filesystem events, so changes
// are debounced into single notifications on Events.
type Watcher struct {
	path   string
	fsw    *fsnotify.Watcher
	events chan struct{}
}

// NewWatcher watches the directory containing path; watching the file itself
// would break on rename-replace.
func NewWatcher(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}
	return &Watcher{
		path:   path,
		fsw:    fsw,
		events: make(chan struct{}, 1),
	}, nil
}

// Events delivers one notification per debounced change burst.
func (w *Watcher) Events() <-chan struct{} { return w.events }

// Run pumps filesystem events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	var debounce *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(debounceWindow)
			} else {
				debounce.Reset(debounceWindow)
			}
			fire = debounce.C
		case <-fire:
			fire = nil
			select {
			case w.events <- struct{}{}:
			default: // a notification is already pending
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("BINDINGS: watcher error: %v", err)
		}
	}
}
