// Package events defines the application event vocabulary published on the bus.
package events

import (
	"time"

	"snipclip/src/capture"
	"snipclip/src/permission"
)

// Event is the base interface for all bus events.
type Event interface {
	Type() string
}

// Type constants for identification in logs and subscriber filters.
const (
	TypeCaptureStarted    = "CaptureStarted"
	TypeCaptureDone       = "CaptureDone"
	TypePermissionChanged = "PermissionChanged"
	TypeBindingsReloaded  = "BindingsReloaded"
)

// CaptureStarted - published when a capture job is accepted by the worker pool.
type CaptureStarted struct {
	Target capture.Target
}

func (e CaptureStarted) Type() string { return TypeCaptureStarted }

// CaptureDone - published when a capture job finishes, successfully or not.
type CaptureDone struct {
	Target  capture.Target
	Result  *capture.Result
	Err     error
	Elapsed time.Duration
}

func (e CaptureDone) Type() string { return TypeCaptureDone }

// PermissionChanged - published when the screen recording authorization flips.
type PermissionChanged struct {
	Status permission.Status
}

func (e PermissionChanged) Type() string { return TypePermissionChanged }

// BindingsReloaded - published after the bindings file was re-read and applied.
type BindingsReloaded struct{}

func (e BindingsReloaded) Type() string { return TypeBindingsReloaded }
