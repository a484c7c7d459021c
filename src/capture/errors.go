package capture

import "errors"

// Capture failure taxonomy. Callers branch with errors.Is; wrapped causes
// travel alongside via errors.Join.
var (
	ErrPermissionDenied = errors.New("screen capture permission denied")
	ErrNoDisplaysFound  = errors.New("no displays found")
	ErrCaptureFailed    = errors.New("capture failed")
	ErrInvalidRegion    = errors.New("invalid capture region")
	ErrWindowNotFound   = errors.New("window not found")
	ErrCancelled        = errors.New("capture cancelled")
	ErrScreenAsleep     = errors.New("screen is asleep")
	ErrScreenLocked     = errors.New("screen is locked")

	// ErrStrategyUnavailable is returned by a Platform when a particular
	// capture strategy is not implemented on this OS tier. The engine uses
	// it to chain to the next strategy; it never escapes Capture.
	ErrStrategyUnavailable = errors.New("capture strategy unavailable")
)
