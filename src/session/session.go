// Package session runs one capture from trigger to delivery.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"time"

	"snipclip/src/capture"
	"snipclip/src/clipboard"
	"snipclip/src/singleinstance"
)

var ErrSelectionCancelled = errors.New("selection cancelled")

// RegionSelectorFunc runs the interactive overlay and returns the chosen
// rectangle, or cancelled=true when the user backed out.
type RegionSelectorFunc func(ctx context.Context) (image.Rectangle, bool, error)

// CaptureFunc grabs the resolved target.
type CaptureFunc func(ctx context.Context, target capture.Target) (*capture.Result, error)

// ResultTarget receives the finished capture or its failure.
type ResultTarget interface {
	OnSuccess(res *capture.Result) error
	OnFailure(err error) error
}

type Options struct {
	// Deadline bounds the capture itself, not the interactive selection.
	Deadline time.Duration
	// Target is what to capture. Region targets with an empty rectangle run
	// SelectRegion first.
	Target capture.Target
	// SelectRegion is required only for interactive region captures.
	SelectRegion RegionSelectorFunc
	Capture      CaptureFunc
	Deliver      ResultTarget
}

// Execute resolves the target, captures it and hands the result to the
// delivery target. Cancellation is reported as ErrSelectionCancelled, which
// delivery targets treat as silence rather than failure.
func Execute(ctx context.Context, opts Options) (*capture.Result, error) {
	if opts.Capture == nil {
		return nil, errors.New("Capture is required")
	}
	if opts.Deliver == nil {
		return nil, errors.New("Deliver is required")
	}

	target := opts.Target
	if target.Kind() == capture.KindRegion && target.Rect().Empty() {
		if opts.SelectRegion == nil {
			return nil, errors.New("SelectRegion is required for interactive region capture")
		}
		rect, cancelled, err := opts.SelectRegion(ctx)
		if err != nil {
			_ = opts.Deliver.OnFailure(err)
			return nil, err
		}
		if cancelled {
			_ = opts.Deliver.OnFailure(ErrSelectionCancelled)
			return nil, ErrSelectionCancelled
		}
		target = capture.Region(rect)
	}

	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = 10 * time.Second
	}
	jobCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	res, err := opts.Capture(jobCtx, target)
	if err != nil {
		_ = opts.Deliver.OnFailure(err)
		return nil, err
	}
	if err := opts.Deliver.OnSuccess(res); err != nil {
		_ = opts.Deliver.OnFailure(err)
		return nil, err
	}
	return res, nil
}

// ClipboardTarget writes the capture to the system clipboard.
type ClipboardTarget struct {
	Sink clipboard.Sink
}

func (t ClipboardTarget) OnSuccess(res *capture.Result) error {
	if t.Sink == nil {
		return errors.New("clipboard target missing sink")
	}
	png, err := res.EncodePNG()
	if err != nil {
		return err
	}
	return t.Sink.WriteImage(png)
}

func (ClipboardTarget) OnFailure(err error) error { return nil }

// StdoutTarget streams the PNG bytes to a writer, os.Stdout by default.
type StdoutTarget struct {
	Writer io.Writer
}

func (t StdoutTarget) OnSuccess(res *capture.Result) error {
	w := t.Writer
	if w == nil {
		w = os.Stdout
	}
	png, err := res.EncodePNG()
	if err != nil {
		return err
	}
	_, err = w.Write(png)
	return err
}

func (StdoutTarget) OnFailure(err error) error { return nil }

// DelegatedTarget answers a capture delegated from another process. In stdout
// mode the PNG travels back over the connection; in clipboard mode the
// resident writes the clipboard and sends an empty success.
type DelegatedTarget struct {
	Conn           singleinstance.Conn
	Sink           clipboard.Sink
	OutputToStdout bool
}

func (t DelegatedTarget) OnSuccess(res *capture.Result) error {
	if t.Conn == nil {
		return errors.New("delegated target missing connection")
	}
	png, err := res.EncodePNG()
	if err != nil {
		return err
	}
	if t.OutputToStdout {
		return t.Conn.RespondSuccess(png)
	}
	if t.Sink == nil {
		return errors.New("delegated target missing sink")
	}
	if err := t.Sink.WriteImage(png); err != nil {
		return fmt.Errorf("clipboard error: %w", err)
	}
	return t.Conn.RespondSuccess(nil)
}

func (t DelegatedTarget) OnFailure(err error) error {
	if t.Conn == nil {
		return nil
	}
	if err == nil {
		return t.Conn.RespondError("unknown session error")
	}
	return t.Conn.RespondError(err.Error())
}
