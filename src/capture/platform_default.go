package capture

import (
	"context"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
	xdraw "golang.org/x/image/draw"
)

// defaultPlatform backs the engine with the portable single-shot grab path.
// Window enumeration, window snapshots, and the lock probe are layered on by
// platform files where the OS exposes them.
type defaultPlatform struct{}

// NewPlatform returns the capture platform for this OS.
func NewPlatform() Platform { return newOSPlatform() }

func (defaultPlatform) Displays() ([]Display, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, nil
	}
	displays := make([]Display, 0, n)
	for i := 0; i < n; i++ {
		displays = append(displays, Display{
			ID:      i,
			Bounds:  screenshot.GetDisplayBounds(i),
			Scale:   1.0,
			Primary: i == 0,
		})
	}
	return displays, nil
}

func (defaultPlatform) Windows() ([]WindowInfo, error) {
	return nil, fmt.Errorf("%w: window enumeration", ErrStrategyUnavailable)
}

func (defaultPlatform) State() DisplayState { return DisplayActive }

// Grab captures the source rectangle in one shot and resamples it to the
// requested pixel dimensions so the oversampling policy holds on displays the
// OS reports at 1x.
func (defaultPlatform) Grab(ctx context.Context, d Display, cfg FrameConfig) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := screenshot.CaptureRect(cfg.SourceRect)
	if err != nil {
		return nil, err
	}
	if cfg.PixelWidth <= 0 || cfg.PixelHeight <= 0 {
		return img, nil
	}
	if img.Bounds().Dx() == cfg.PixelWidth && img.Bounds().Dy() == cfg.PixelHeight {
		return img, nil
	}
	scaled := image.NewRGBA(image.Rect(0, 0, cfg.PixelWidth, cfg.PixelHeight))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return scaled, nil
}

func (defaultPlatform) OpenStream(ctx context.Context, d Display, cfg FrameConfig) (FrameStream, error) {
	return nil, fmt.Errorf("%w: streaming capture", ErrStrategyUnavailable)
}

func (defaultPlatform) SnapshotWindow(ctx context.Context, id WindowID, cfg FrameConfig) (*image.RGBA, error) {
	return nil, fmt.Errorf("%w: window snapshot", ErrStrategyUnavailable)
}

func (defaultPlatform) OwnWindowIDs() []WindowID { return nil }

// VirtualScreenBounds is the union of all display bounds. The selection
// overlay uses it to size its backdrop; capture targets never do.
func VirtualScreenBounds() (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return image.Rectangle{}, ErrNoDisplaysFound
	}
	union := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}
	return union, nil
}
