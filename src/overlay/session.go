package overlay

import (
	"fmt"
	"image"
)

// State is the selection lifecycle.
type State int

const (
	Idle State = iota
	Selecting
	Completed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selecting:
		return "selecting"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MinDragSpan is the minimum selection size in logical units, per dimension.
// Anything at or below it is an accidental click, not a deliberate selection.
const MinDragSpan = 10

// Config describes the overlay surface a Session runs on.
type Config struct {
	// Surface is the overlay's local bounds, Min at (0,0).
	Surface image.Rectangle
	// Origin is the global top-left of the surface (virtual-screen offset).
	Origin image.Point
	// BottomLeftOrigin marks surfaces whose local Y axis grows upward;
	// completion flips the rectangle into top-left-origin coordinates.
	BottomLeftOrigin bool
	// MinSpan overrides MinDragSpan when positive.
	MinSpan int
	// OnResult receives the converted rectangle on completion, or ok=false
	// on cancellation. It fires exactly once per session.
	OnResult func(rect image.Rectangle, ok bool)
}

// Session is the pure selection state machine for one interactive selection.
// It is platform-free: a driver feeds it pointer and key events and renders
// from Rect/Label. All methods are synchronous and never suspend, so drags
// stay low-latency.
type Session struct {
	cfg      Config
	state    State
	origin   image.Point
	rect     image.Rectangle
	hasRect  bool
	dragging bool
	fired    bool
}

func NewSession(cfg Config) *Session {
	if cfg.MinSpan <= 0 {
		cfg.MinSpan = MinDragSpan
	}
	return &Session{cfg: cfg, state: Idle}
}

// Begin transitions Idle to Selecting.
func (s *Session) Begin() error {
	if s.state != Idle {
		return fmt.Errorf("cannot begin selection from state %s", s.state)
	}
	s.state = Selecting
	return nil
}

func (s *Session) State() State   { return s.state }
func (s *Session) Dragging() bool { return s.dragging }

// Rect returns the current normalized rectangle in local coordinates.
func (s *Session) Rect() (image.Rectangle, bool) { return s.rect, s.hasRect }

// PointerDown records the drag origin and clears any prior rectangle.
func (s *Session) PointerDown(x, y int) {
	if s.state != Selecting {
		return
	}
	s.origin = image.Pt(x, y)
	s.rect = image.Rectangle{}
	s.hasRect = false
	s.dragging = true
}

// PointerMove recomputes the axis-aligned rectangle from origin to the
// current position. Min/max normalization makes drag direction irrelevant.
func (s *Session) PointerMove(x, y int) {
	if !s.dragging {
		return
	}
	s.rect = normalized(s.origin, image.Pt(x, y))
	s.hasRect = true
}

// PointerUp completes the selection when both dimensions exceed the minimum
// span; anything smaller cancels.
func (s *Session) PointerUp(x, y int) {
	if !s.dragging {
		return
	}
	s.dragging = false
	s.rect = normalized(s.origin, image.Pt(x, y))
	s.hasRect = true
	if s.rect.Dx() > s.cfg.MinSpan && s.rect.Dy() > s.cfg.MinSpan {
		s.complete()
	} else {
		s.Cancel()
	}
}

// Cancel aborts the session from any point while Selecting.
func (s *Session) Cancel() {
	if s.state != Selecting {
		return
	}
	s.state = Cancelled
	s.dragging = false
	s.fire(image.Rectangle{}, false)
}

func (s *Session) complete() {
	s.state = Completed
	s.fire(s.toGlobal(s.rect), true)
}

// toGlobal converts the local rectangle into the top-left-origin global
// coordinate space the capture engine expects: flip the vertical axis for
// bottom-left-origin surfaces, then translate by the surface origin.
func (s *Session) toGlobal(r image.Rectangle) image.Rectangle {
	if s.cfg.BottomLeftOrigin {
		h := s.cfg.Surface.Dy()
		r = image.Rect(r.Min.X, h-r.Max.Y, r.Max.X, h-r.Min.Y)
	}
	return r.Add(s.cfg.Origin)
}

// fire invokes OnResult at most once per session.
func (s *Session) fire(rect image.Rectangle, ok bool) {
	if s.fired {
		return
	}
	s.fired = true
	if s.cfg.OnResult != nil {
		s.cfg.OnResult(rect, ok)
	}
}

// Label is the live size readout rendered next to the rectangle.
func (s *Session) Label() string {
	return fmt.Sprintf("%d × %d", s.rect.Dx(), s.rect.Dy())
}

const labelPad = 6

// LabelOrigin places a label of the given size just below the rectangle,
// flipping above it when it would render off-surface, and clamping
// horizontally.
func (s *Session) LabelOrigin(labelW, labelH int) image.Point {
	x := s.rect.Min.X
	if x+labelW > s.cfg.Surface.Max.X {
		x = s.cfg.Surface.Max.X - labelW
	}
	if x < s.cfg.Surface.Min.X {
		x = s.cfg.Surface.Min.X
	}
	y := s.rect.Max.Y + labelPad
	if y+labelH > s.cfg.Surface.Max.Y {
		y = s.rect.Min.Y - labelPad - labelH
	}
	if y < s.cfg.Surface.Min.Y {
		y = s.rect.Min.Y + labelPad
	}
	return image.Pt(x, y)
}

func normalized(a, b image.Point) image.Rectangle {
	return image.Rect(
		min(a.X, b.X), min(a.Y, b.Y),
		max(a.X, b.X), max(a.Y, b.Y),
	)
}
