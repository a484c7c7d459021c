package capture

import (
	"context"
	"image"
)

// DisplayState reports whether the display surface can be captured right now.
type DisplayState int

const (
	DisplayActive DisplayState = iota
	DisplayAsleep
	DisplayLocked
)

// Display describes one attached display in logical coordinates.
type Display struct {
	ID      int
	Bounds  image.Rectangle
	Scale   float64
	Primary bool
}

// WindowInfo describes one capturable window as enumerated from the OS.
type WindowInfo struct {
	ID        WindowID
	Title     string
	OwnerName string
	OwnerPID  int
	Bounds    image.Rectangle
	OnScreen  bool
	Layer     int
}

// TargetInfo is the user-facing tuple returned by Engine.Targets.
type TargetInfo struct {
	ID        WindowID
	Title     string
	OwnerName string
}

// FrameConfig tells the OS layer exactly what to deliver. SourceRect is the
// logical rectangle to capture; it is passed to the OS rather than cropped
// after the fact so pixels outside the rect are never read. PixelWidth and
// PixelHeight are the requested buffer dimensions (logical size times the
// device-scale multiplier).
type FrameConfig struct {
	SourceRect  image.Rectangle
	PixelWidth  int
	PixelHeight int
}

// Frame is one delivered frame from a streaming capture session.
type Frame struct {
	Image *image.RGBA
}

// FrameStream is a short-lived streaming capture session. The engine consumes
// exactly the first delivered frame and then closes the stream.
type FrameStream interface {
	Frames() <-chan Frame
	Close() error
}

// Platform is the OS capture subsystem behind the engine. Implementations
// report ErrStrategyUnavailable for strategies the OS tier does not expose;
// the engine falls through to the next one. All methods must be safe to call
// from any goroutine.
type Platform interface {
	Displays() ([]Display, error)
	Windows() ([]WindowInfo, error)
	State() DisplayState

	// Grab is the single-shot "one frame now" strategy.
	Grab(ctx context.Context, d Display, cfg FrameConfig) (*image.RGBA, error)
	// OpenStream is the streaming fallback for OS tiers without a
	// single-shot call.
	OpenStream(ctx context.Context, d Display, cfg FrameConfig) (FrameStream, error)
	// SnapshotWindow is the legacy per-window strategy, needed because
	// display-level capture does not uniformly cover occluded windows.
	SnapshotWindow(ctx context.Context, id WindowID, cfg FrameConfig) (*image.RGBA, error)

	// OwnWindowIDs lists windows belonging to this process so Targets can
	// hide capture infrastructure from the user.
	OwnWindowIDs() []WindowID
}
