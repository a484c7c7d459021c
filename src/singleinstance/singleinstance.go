package singleinstance

// This file defines the API for single-instance ownership and capture
// delegation. A resident tray process owns a loopback TCP port; later
// invocations hand their capture request to it instead of fighting over the
// global hotkeys and the screen recording permission.

import (
	"context"
)

// Target kinds accepted on the wire.
const (
	KindFullScreen = "full"
	KindRegion     = "region"
	KindWindow     = "window"
)

// Request is one delegated capture.
type Request struct {
	// Kind is KindFullScreen, KindRegion or KindWindow.
	Kind string
	// WindowID identifies the window for KindWindow requests.
	WindowID uint64
	// OutputToStdout asks for the PNG bytes back instead of a clipboard write
	// on the resident side.
	OutputToStdout bool
}

// Server owns the TCP endpoint and answers delegated capture requests.
type Server interface {
	// Start begins listening on the start port of the configured range.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted connection as a Conn, or ctx error.
	Next(ctx context.Context) (Conn, error)
	// Close releases ownership and stops accepting clients.
	Close() error
}

// Conn represents one client connection and exposes request + response API.
type Conn interface {
	// Request returns the parsed client request.
	Request() Request
	// RespondSuccess sends success. Stdout-mode requests get the PNG bytes;
	// clipboard-mode requests get an empty payload.
	RespondSuccess(png []byte) error
	// RespondError sends an error with a human-readable message.
	RespondError(msg string) error
	// Close closes the underlying connection.
	Close() error
}

// Client attempts to delegate a capture to a resident server.
type Client interface {
	// TryCapture scans the configured TCP range, performs the PING handshake,
	// and delegates to a resident. If no resident is found, returns
	// delegated=false, err=nil.
	TryCapture(ctx context.Context, req Request) (delegated bool, png []byte, err error)
}

// NewServer returns the TCP implementation.
func NewServer() Server { return newTcpServer() }

// NewClient returns the TCP implementation.
func NewClient() Client { return newTcpClient() }
