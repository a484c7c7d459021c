package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"math"
	"strings"
	"time"

	"snipclip/src/permission"
)

const (
	// DefaultScale oversamples captures 2x for crispness on high-density
	// displays. Configurable through Options, never hard-coded downstream.
	DefaultScale = 2.0

	// Bounds on the streaming-fallback first-frame wait. Waiting forever
	// for a frame is a hang, so the wait is always clamped into this range.
	DefaultFirstFrameWait = 3 * time.Second
	MinFirstFrameWait     = 2 * time.Second
	MaxFirstFrameWait     = 5 * time.Second
)

// Gate is the permission seam the engine consults before touching the OS
// capture subsystem.
type Gate interface {
	EnsureAuthorized() permission.Status
}

// Options configures an Engine. Platform and Gate are required.
type Options struct {
	Platform       Platform
	Gate           Gate
	Scale          float64
	FirstFrameWait time.Duration
}

// Engine produces in-memory bitmaps from capture targets. It holds no
// per-capture state; concurrent Capture calls are independent.
type Engine struct {
	platform       Platform
	gate           Gate
	scale          float64
	firstFrameWait time.Duration
}

func NewEngine(opts Options) *Engine {
	scale := opts.Scale
	if scale <= 0 {
		scale = DefaultScale
	}
	wait := opts.FirstFrameWait
	if wait <= 0 {
		wait = DefaultFirstFrameWait
	}
	if wait < MinFirstFrameWait {
		wait = MinFirstFrameWait
	}
	if wait > MaxFirstFrameWait {
		wait = MaxFirstFrameWait
	}
	return &Engine{
		platform:       opts.Platform,
		gate:           opts.Gate,
		scale:          scale,
		firstFrameWait: wait,
	}
}

// Scale returns the configured device-scale multiplier.
func (e *Engine) Scale() float64 { return e.scale }

// Capture resolves a target and grabs one decoded bitmap. Strategy order:
// single-shot grab, then a bounded-wait streaming session, with a dedicated
// window-snapshot path for window targets. Every intermediate buffer is
// scoped to the call.
func (e *Engine) Capture(ctx context.Context, target Target) (*Result, error) {
	// Region dimensions are validated before any OS call is made.
	if target.Kind() == KindRegion {
		r := target.Rect()
		if r.Dx() <= 0 || r.Dy() <= 0 {
			return nil, fmt.Errorf("%w: %dx%d", ErrInvalidRegion, r.Dx(), r.Dy())
		}
	}

	// Request access once when unauthorized, then fail. Never loop the
	// prompt.
	if st := e.gate.EnsureAuthorized(); st != permission.Authorized {
		return nil, fmt.Errorf("%w: permission status is %s", ErrPermissionDenied, st)
	}

	switch e.platform.State() {
	case DisplayAsleep:
		return nil, ErrScreenAsleep
	case DisplayLocked:
		return nil, ErrScreenLocked
	}

	displays, err := e.platform.Displays()
	if err != nil {
		return nil, errors.Join(ErrCaptureFailed, err)
	}
	if len(displays) == 0 {
		return nil, ErrNoDisplaysFound
	}

	switch target.Kind() {
	case KindWindow:
		return e.captureWindow(ctx, target.WindowID())
	case KindRegion:
		disp, ok := displayForRect(displays, target.Rect())
		if !ok {
			return nil, fmt.Errorf("%w: region %v intersects no display", ErrCaptureFailed, target.Rect())
		}
		return e.captureRect(ctx, disp, target.Rect())
	default:
		// Full screen means the primary display; combining displays is a
		// separate product decision.
		return e.captureRect(ctx, primaryDisplay(displays), primaryDisplay(displays).Bounds)
	}
}

// Targets enumerates on-screen, user-visible windows. The process's own
// windows and OS shell surfaces are filtered out so users cannot select
// capture infrastructure.
func (e *Engine) Targets() ([]TargetInfo, error) {
	wins, err := e.platform.Windows()
	if err != nil {
		return nil, errors.Join(ErrCaptureFailed, err)
	}
	own := make(map[WindowID]bool)
	for _, id := range e.platform.OwnWindowIDs() {
		own[id] = true
	}
	var out []TargetInfo
	for _, w := range wins {
		if !w.OnScreen || w.Layer != 0 || w.Title == "" {
			continue
		}
		if own[w.ID] || shellOwners[strings.ToLower(w.OwnerName)] {
			continue
		}
		out = append(out, TargetInfo{ID: w.ID, Title: w.Title, OwnerName: w.OwnerName})
	}
	return out, nil
}

// shellOwners are window-manager and dock/taskbar processes whose surfaces
// never make sense as capture targets.
var shellOwners = map[string]bool{
	"window server": true,
	"windowserver":  true,
	"dock":          true,
	"dwm.exe":       true,
	"explorer.exe":  true,
	"kwin_x11":      true,
	"kwin_wayland":  true,
	"mutter":        true,
	"plasmashell":   true,
}

func (e *Engine) captureRect(ctx context.Context, disp Display, rect image.Rectangle) (*Result, error) {
	cfg := e.frameConfig(rect)
	img, err := e.platform.Grab(ctx, disp, cfg)
	if errors.Is(err, ErrStrategyUnavailable) {
		log.Printf("ENGINE: single-shot grab unavailable, falling back to streaming capture")
		img, err = e.firstStreamedFrame(ctx, disp, cfg)
	}
	if err != nil {
		return nil, wrapCaptureError(ctx, err)
	}
	return e.decode(img)
}

func (e *Engine) captureWindow(ctx context.Context, id WindowID) (*Result, error) {
	wins, err := e.platform.Windows()
	if err != nil {
		return nil, errors.Join(ErrCaptureFailed, err)
	}
	var info *WindowInfo
	for i := range wins {
		if wins[i].ID == id {
			info = &wins[i]
			break
		}
	}
	if info == nil {
		return nil, fmt.Errorf("%w: id %d", ErrWindowNotFound, id)
	}
	img, err := e.platform.SnapshotWindow(ctx, id, e.frameConfig(info.Bounds))
	if err != nil {
		return nil, wrapCaptureError(ctx, err)
	}
	return e.decode(img)
}

// firstStreamedFrame opens a short-lived stream, consumes exactly the first
// delivered frame, and tears the stream down. The wait is bounded: expiry is
// a CaptureFailed, not a hang.
func (e *Engine) firstStreamedFrame(ctx context.Context, disp Display, cfg FrameConfig) (*image.RGBA, error) {
	stream, err := e.platform.OpenStream(ctx, disp, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			log.Printf("ENGINE: stream close: %v", cerr)
		}
	}()

	timer := time.NewTimer(e.firstFrameWait)
	defer timer.Stop()

	select {
	case f, ok := <-stream.Frames():
		if !ok || f.Image == nil {
			return nil, fmt.Errorf("%w: stream ended before delivering a frame", ErrCaptureFailed)
		}
		return f.Image, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: no frame within %s", ErrCaptureFailed, e.firstFrameWait)
	case <-ctx.Done():
		return nil, errors.Join(ErrCancelled, ctx.Err())
	}
}

func (e *Engine) frameConfig(rect image.Rectangle) FrameConfig {
	return FrameConfig{
		SourceRect:  rect,
		PixelWidth:  int(math.Round(float64(rect.Dx()) * e.scale)),
		PixelHeight: int(math.Round(float64(rect.Dy()) * e.scale)),
	}
}

func (e *Engine) decode(img *image.RGBA) (*Result, error) {
	if img == nil || img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrCaptureFailed)
	}
	return &Result{
		Image:  img,
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
		Scale:  e.scale,
	}, nil
}

func wrapCaptureError(ctx context.Context, err error) error {
	if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if errors.Is(err, ErrCancelled) {
			return err
		}
		return errors.Join(ErrCancelled, err)
	}
	if errors.Is(err, ErrCaptureFailed) {
		return err
	}
	return errors.Join(ErrCaptureFailed, err)
}

// displayForRect resolves a region against the display with the largest
// intersection area.
func displayForRect(displays []Display, rect image.Rectangle) (Display, bool) {
	best := -1
	bestArea := 0
	for i, d := range displays {
		ix := d.Bounds.Intersect(rect)
		area := ix.Dx() * ix.Dy()
		if area > bestArea {
			best = i
			bestArea = area
		}
	}
	if best < 0 {
		return Display{}, false
	}
	return displays[best], true
}

func primaryDisplay(displays []Display) Display {
	for _, d := range displays {
		if d.Primary {
			return d
		}
	}
	return displays[0]
}
