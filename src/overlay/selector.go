package overlay

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
)

var (
	// ErrSelectionActive rejects a second selection while one is running.
	// At most one overlay surface exists at a time.
	ErrSelectionActive = errors.New("a selection session is already active")

	// ErrUnsupported is returned by platform stubs without an overlay driver.
	ErrUnsupported = errors.New("interactive region selection is not supported on this platform")
)

// Selector runs one interactive region selection. The call blocks and MUST be
// invoked only from the single event-loop goroutine. Returns the selected
// rectangle in top-left-origin global coordinates, cancelled=true when the
// user backed out (not an error), or an error when the overlay could not run.
type Selector interface {
	Select(ctx context.Context) (image.Rectangle, bool, error)
}

// Guarded wraps a platform selector with the single-active-session invariant.
func Guarded(impl Selector) Selector {
	return &guardedSelector{impl: impl}
}

type guardedSelector struct {
	impl   Selector
	active atomic.Bool
}

func (g *guardedSelector) Select(ctx context.Context) (image.Rectangle, bool, error) {
	if !g.active.CompareAndSwap(false, true) {
		return image.Rectangle{}, false, ErrSelectionActive
	}
	defer g.active.Store(false)
	return g.impl.Select(ctx)
}
