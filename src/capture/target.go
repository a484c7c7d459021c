package capture

import (
	"fmt"
	"image"
)

// TargetKind discriminates the capture target union.
type TargetKind int

const (
	KindFullScreen TargetKind = iota
	KindRegion
	KindWindow
)

func (k TargetKind) String() string {
	switch k {
	case KindFullScreen:
		return "fullscreen"
	case KindRegion:
		return "region"
	case KindWindow:
		return "window"
	default:
		return "unknown"
	}
}

// WindowID is an opaque OS window identifier (an HWND on Windows).
type WindowID uint64

// Target describes one thing to capture: the whole primary screen, a
// rectangle in top-left-origin logical display coordinates, or one window.
// Constructed per request and discarded after use.
type Target struct {
	kind   TargetKind
	rect   image.Rectangle
	window WindowID
}

// FullScreen targets the primary display's full bounds.
func FullScreen() Target { return Target{kind: KindFullScreen} }

// Region targets a sub-rectangle of the display space.
func Region(rect image.Rectangle) Target { return Target{kind: KindRegion, rect: rect} }

// Window targets a single window by its OS identifier.
func Window(id WindowID) Target { return Target{kind: KindWindow, window: id} }

func (t Target) Kind() TargetKind   { return t.kind }
func (t Target) Rect() image.Rectangle { return t.rect }
func (t Target) WindowID() WindowID { return t.window }

func (t Target) String() string {
	switch t.kind {
	case KindRegion:
		return fmt.Sprintf("region %dx%d at (%d,%d)", t.rect.Dx(), t.rect.Dy(), t.rect.Min.X, t.rect.Min.Y)
	case KindWindow:
		return fmt.Sprintf("window %d", t.window)
	default:
		return "fullscreen"
	}
}
