//go:build !windows

package gui

import (
	"context"
	"image"

	"snipclip/src/overlay"
)

type stubSelector struct{}

func newPlatformSelector() overlay.Selector { return stubSelector{} }

func (stubSelector) Select(ctx context.Context) (image.Rectangle, bool, error) {
	return image.Rectangle{}, false, overlay.ErrUnsupported
}
