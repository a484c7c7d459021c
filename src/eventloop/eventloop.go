// Package eventloop is the single-goroutine coordinator: hotkeys, tray menu
// clicks, delegated captures and worker results all funnel through one loop.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"snipclip/src/bindings"
	"snipclip/src/bus"
	"snipclip/src/capture"
	"snipclip/src/clipboard"
	"snipclip/src/config"
	"snipclip/src/events"
	"snipclip/src/hotkey"
	"snipclip/src/notification"
	"snipclip/src/overlay"
	"snipclip/src/permission"
	"snipclip/src/session"
	"snipclip/src/singleinstance"
	"snipclip/src/worker"
)

// TooltipUpdater is the loop's view of the tray.
type TooltipUpdater interface {
	UpdateTooltip(text string)
	SetPermissionStatus(st permission.Status)
}

// submitter is the loop's view of the worker pool.
type submitter interface {
	Submit(ctx context.Context, target capture.Target, cb worker.ResultCallback) bool
	Close()
}

// soundPlayer is the loop's view of the shutter click.
type soundPlayer interface {
	Play()
}

// Options wires the loop's collaborators. Config, Capture, Sink and Selector
// are required; the rest degrade to no-ops when nil.
type Options struct {
	Config   *config.Config
	Selector overlay.Selector
	Capture  worker.CaptureFunc
	// Targets enumerates candidate windows for window capture, frontmost first.
	Targets    func() ([]capture.TargetInfo, error)
	Sink       clipboard.Sink
	Gate       *permission.Gate
	Dispatcher *hotkey.Dispatcher
	Store      *bindings.Store
	Bus        *bus.Bus
	Tray       TooltipUpdater
	Sound      soundPlayer
	Server     singleinstance.Server
	// BindingsEvents delivers bindings-file change notifications.
	BindingsEvents <-chan struct{}
}

// Loop is the single-threaded coordinator. All capture state (busy flag,
// selection) is confined to the Run goroutine; other goroutines reach it
// through Invoke.
type Loop struct {
	opts           Options
	pool           submitter
	srv            singleinstance.Server
	busy           bool
	results        chan result
	calls          chan func()
	defaultTooltip string
	deadline       time.Duration
}

type result struct {
	res    *capture.Result
	err    error
	target capture.Target
	start  time.Time
	sink   resultTarget
	cancel context.CancelFunc
}

type resultTarget interface {
	OnSuccess(res *capture.Result) error
	OnProcessError(err error)
	OnDeliveryError(err error)
	Close()
}

// New creates the loop. If cfg.DeadlineSec <= 0 a 10s deadline is used.
func New(opts Options) *Loop {
	deadlineSec := config.DefaultDeadlineSec
	if opts.Config != nil && opts.Config.DeadlineSec > 0 {
		deadlineSec = opts.Config.DeadlineSec
	}
	srv := opts.Server
	if srv == nil {
		srv = singleinstance.NewServer()
	}
	return &Loop{
		opts:           opts,
		pool:           worker.New(0, opts.Capture),
		srv:            srv,
		results:        make(chan result, 1),
		calls:          make(chan func(), 8),
		defaultTooltip: "snipclip — screen capture to clipboard",
		deadline:       time.Duration(deadlineSec) * time.Second,
	}
}

// SetDefaultTooltip optionally sets the tray tooltip base text.
func (l *Loop) SetDefaultTooltip(tt string) { l.defaultTooltip = tt }

// Deadline returns the configured capture deadline for this loop.
func (l *Loop) Deadline() time.Duration { return l.deadline }

// Invoke marshals fn onto the loop goroutine. It is the dispatcher's invoke
// function and the tray's path into the loop; drops when the loop is wedged
// rather than blocking the caller.
func (l *Loop) Invoke(fn func()) {
	select {
	case l.calls <- fn:
	default:
		log.Printf("Loop: dropping call, queue full")
	}
}

// RequestCapture starts a capture of the given kind. Must run on the loop
// goroutine; external callers go through Invoke.
func (l *Loop) RequestCapture(ctx context.Context, kind capture.TargetKind) {
	l.startRequest(ctx, kind, 0, hotkeyResultTarget{sink: l.opts.Sink}, requestCallbacks{
		onBusy: func() {
			log.Printf("Loop: busy, skipping %s capture", kind)
			notification.Notify("snipclip", "A capture is already running")
		},
		onSelectError: func(err error) {
			log.Printf("Loop: selection error: %v", err)
			notification.NotifyError(err)
		},
		onCancelled: func() {
			log.Printf("Loop: selection cancelled")
		},
	})
}

// Run starts the singleinstance server and processes events until ctx is
// cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.srv.Start(ctx); err != nil {
		return err
	}
	if p := l.srv.Port(); p > 0 {
		log.Printf("Resident listening on 127.0.0.1:%d", p)
	}
	defer l.pool.Close()

	// Accept loop in background to avoid blocking result handling.
	reqCh := make(chan singleinstance.Conn, 4)
	go func() {
		for {
			conn, err := l.srv.Next(ctx)
			if err != nil {
				close(reqCh)
				return
			}
			reqCh <- conn
		}
	}()

	var permCh <-chan permission.Status
	if l.opts.Gate != nil {
		permCh = l.opts.Gate.Subscribe()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.calls:
			fn()
		case conn, ok := <-reqCh:
			if !ok {
				return nil
			}
			l.handleConn(ctx, conn)
		case res := <-l.results:
			l.handleResult(res)
		case st := <-permCh:
			l.handlePermissionChange(st)
		case <-l.opts.BindingsEvents:
			l.reloadBindings()
		}
	}
}

type requestCallbacks struct {
	onBusy        func()
	onSelectError func(err error)
	onCancelled   func()
}

func (l *Loop) handleConn(ctx context.Context, conn singleinstance.Conn) {
	req := conn.Request()
	target := newDelegatedResultTarget(conn, l.opts.Sink, req.OutputToStdout)
	kind, windowID, err := delegatedTarget(req)
	if err != nil {
		target.OnProcessError(err)
		target.Close()
		return
	}
	l.startRequest(ctx, kind, windowID, target, requestCallbacks{
		onBusy: func() {
			target.OnProcessError(errors.New("busy, please retry"))
			target.Close()
		},
		onSelectError: func(err error) {
			target.OnProcessError(fmt.Errorf("failed to select region: %w", err))
			target.Close()
		},
		onCancelled: func() {
			target.OnProcessError(session.ErrSelectionCancelled)
			target.Close()
		},
	})
}

func delegatedTarget(req singleinstance.Request) (capture.TargetKind, capture.WindowID, error) {
	switch req.Kind {
	case singleinstance.KindFullScreen:
		return capture.KindFullScreen, 0, nil
	case singleinstance.KindRegion:
		return capture.KindRegion, 0, nil
	case singleinstance.KindWindow:
		return capture.KindWindow, capture.WindowID(req.WindowID), nil
	default:
		return 0, 0, fmt.Errorf("unknown capture kind %q", req.Kind)
	}
}

func (l *Loop) startRequest(ctx context.Context, kind capture.TargetKind, windowID capture.WindowID, sink resultTarget, callbacks requestCallbacks) {
	if l.busy {
		if callbacks.onBusy != nil {
			callbacks.onBusy()
		}
		return
	}

	target, cancelled, err := l.resolveTarget(ctx, kind, windowID)
	if err != nil {
		if callbacks.onSelectError != nil {
			callbacks.onSelectError(err)
		}
		return
	}
	if cancelled {
		if callbacks.onCancelled != nil {
			callbacks.onCancelled()
		}
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, l.deadline)
	l.setBusy(true)
	l.publish(events.CaptureStarted{Target: target})
	start := time.Now()
	submitted := l.pool.Submit(jobCtx, target, func(res *capture.Result, err error) {
		l.results <- result{res: res, err: err, target: target, start: start, sink: sink, cancel: cancel}
	})
	if !submitted {
		cancel()
		l.setBusy(false)
		if callbacks.onBusy != nil {
			callbacks.onBusy()
		}
	}
}

// resolveTarget turns a capture kind into a concrete target. Region capture
// blocks on the interactive overlay; the overlay runs its own OS message
// pump, so holding the loop goroutine here is expected.
func (l *Loop) resolveTarget(ctx context.Context, kind capture.TargetKind, windowID capture.WindowID) (capture.Target, bool, error) {
	switch kind {
	case capture.KindFullScreen:
		return capture.FullScreen(), false, nil

	case capture.KindRegion:
		rect, cancelled, err := l.opts.Selector.Select(ctx)
		if err != nil || cancelled {
			return capture.Target{}, cancelled, err
		}
		return capture.Region(rect), false, nil

	case capture.KindWindow:
		if windowID != 0 {
			return capture.Window(windowID), false, nil
		}
		if l.opts.Targets == nil {
			return capture.Target{}, false, capture.ErrWindowNotFound
		}
		infos, err := l.opts.Targets()
		if err != nil {
			return capture.Target{}, false, err
		}
		if len(infos) == 0 {
			return capture.Target{}, false, capture.ErrWindowNotFound
		}
		// Frontmost enumerated window wins.
		return capture.Window(infos[0].ID), false, nil

	default:
		return capture.Target{}, false, fmt.Errorf("unknown capture kind %v", kind)
	}
}

func (l *Loop) handleResult(res result) {
	defer func() {
		l.setBusy(false)
		if res.cancel != nil {
			res.cancel()
		}
	}()
	elapsed := time.Since(res.start)
	l.publish(events.CaptureDone{Target: res.target, Result: res.res, Err: res.err, Elapsed: elapsed})

	if res.sink == nil {
		return
	}
	defer res.sink.Close()

	if res.err != nil {
		log.Printf("Loop: capture of %s failed after %s: %v", res.target, elapsed, res.err)
		res.sink.OnProcessError(res.err)
		return
	}
	if err := res.sink.OnSuccess(res.res); err != nil {
		log.Printf("Loop: delivery failed: %v", err)
		res.sink.OnDeliveryError(err)
		return
	}
	log.Printf("Loop: capture of %s delivered in %s (%dx%d)", res.target, elapsed, res.res.Width, res.res.Height)
	if l.opts.Sound != nil {
		l.opts.Sound.Play()
	}
}

func (l *Loop) handlePermissionChange(st permission.Status) {
	log.Printf("Loop: screen recording permission is now %s", st)
	if l.opts.Tray != nil {
		l.opts.Tray.SetPermissionStatus(st)
	}
	l.publish(events.PermissionChanged{Status: st})
}

// reloadBindings applies externally edited bindings without persisting them
// back (the file is already the source of truth).
func (l *Loop) reloadBindings() {
	if l.opts.Dispatcher == nil || l.opts.Store == nil {
		return
	}
	all, err := l.opts.Store.All()
	if err != nil {
		log.Printf("Loop: bindings reload failed: %v", err)
		return
	}
	for action, b := range all {
		if err := l.opts.Dispatcher.Rebind(action, b); err != nil {
			log.Printf("Loop: cannot apply %s to %q: %v", b, action, err)
			notification.Notify("snipclip", fmt.Sprintf("Cannot apply hotkey %s: %v", b, err))
		}
	}
	l.publish(events.BindingsReloaded{})
}

func (l *Loop) setBusy(b bool) {
	l.busy = b
	if l.opts.Tray == nil {
		return
	}
	if b {
		l.opts.Tray.UpdateTooltip("snipclip — capturing…")
	} else {
		l.opts.Tray.UpdateTooltip(l.defaultTooltip)
	}
}

func (l *Loop) publish(ev events.Event) {
	if l.opts.Bus != nil {
		l.opts.Bus.Publish(ev)
	}
}

type hotkeyResultTarget struct {
	sink clipboard.Sink
}

func (t hotkeyResultTarget) OnSuccess(res *capture.Result) error {
	return session.ClipboardTarget{Sink: t.sink}.OnSuccess(res)
}

func (hotkeyResultTarget) OnProcessError(err error) {
	notification.NotifyError(err)
}

func (hotkeyResultTarget) OnDeliveryError(err error) {
	notification.Notify("snipclip", "Clipboard error")
}

func (hotkeyResultTarget) Close() {}

type delegatedResultTarget struct {
	sink session.DelegatedTarget
	conn singleinstance.Conn
}

func newDelegatedResultTarget(conn singleinstance.Conn, sink clipboard.Sink, outputToStdout bool) delegatedResultTarget {
	return delegatedResultTarget{
		sink: session.DelegatedTarget{Conn: conn, Sink: sink, OutputToStdout: outputToStdout},
		conn: conn,
	}
}

func (t delegatedResultTarget) OnSuccess(res *capture.Result) error {
	return t.sink.OnSuccess(res)
}

func (t delegatedResultTarget) OnProcessError(err error) {
	_ = t.sink.OnFailure(err)
}

func (t delegatedResultTarget) OnDeliveryError(err error) {
	_ = t.sink.OnFailure(err)
}

func (t delegatedResultTarget) Close() {
	if t.conn != nil {
		_ = t.conn.Close()
	}
}
