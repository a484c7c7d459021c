// Package notification shows transient capture feedback popups.
package notification

import (
	"errors"
	"log"
	"runtime"

	"snipclip/src/capture"
	"snipclip/src/overlay"
	"snipclip/src/session"
)

// Notify displays a short auto-dismissing popup.
func Notify(title, message string) {
	display := message
	if len(display) > 200 {
		display = display[:200] + "..."
	}
	if runtime.GOOS == "windows" {
		go func() {
			if err := showWindowsPopup(title, display); err != nil {
				log.Printf("Failed to show notification: %v", err)
			}
		}()
		return
	}
	log.Printf("%s: %s", title, display)
}

// NotifyError turns a capture failure into user-facing feedback. A cancelled
// selection is the user changing their mind and stays silent.
func NotifyError(err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, session.ErrSelectionCancelled), errors.Is(err, capture.ErrCancelled),
		errors.Is(err, overlay.ErrSelectionActive):
		return
	case errors.Is(err, capture.ErrPermissionDenied):
		Notify("Capture failed", "Screen recording permission denied.\nGrant access in the system privacy settings and try again.")
	case errors.Is(err, capture.ErrScreenLocked):
		Notify("Capture failed", "The screen is locked.")
	case errors.Is(err, capture.ErrScreenAsleep):
		Notify("Capture failed", "The display is asleep.")
	case errors.Is(err, capture.ErrWindowNotFound):
		Notify("Capture failed", "The window is gone.")
	default:
		Notify("Capture failed", err.Error())
	}
}

// showWindowsPopup and ShowBlockingError are implemented per-platform in
// notification_windows.go and notification_stub.go.
