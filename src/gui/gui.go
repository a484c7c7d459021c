package gui

import (
	"snipclip/src/overlay"
)

// NewSelector returns the platform overlay driver wrapped with the
// single-active-session guard. Non-Windows builds get a stub that reports
// overlay.ErrUnsupported.
func NewSelector() overlay.Selector {
	return overlay.Guarded(newPlatformSelector())
}
