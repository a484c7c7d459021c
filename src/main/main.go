package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"snipclip/src/bindings"
	"snipclip/src/bus"
	"snipclip/src/capture"
	"snipclip/src/config"
	"snipclip/src/eventloop"
	"snipclip/src/events"
	"snipclip/src/gui"
	"snipclip/src/hotkey"
	"snipclip/src/lifecycle"
	"snipclip/src/logutil"
	"snipclip/src/notification"
	"snipclip/src/runtimeinit"
	"snipclip/src/session"
	"snipclip/src/singleinstance"
	"snipclip/src/sound"
	"snipclip/src/tray"
)

type mainOptions struct {
	once         bool
	target       string
	stdout       bool
	scale        float64
	deadlineSec  int
	bindingsFile string
}

// normalizeLegacyArgs maps single-dash long flags (-once, -scale=1.5) to the
// double-dash form older wrappers still pass.
func normalizeLegacyArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 1; i < len(out); i++ {
		arg := out[i]
		if !strings.HasPrefix(arg, "-") || strings.HasPrefix(arg, "--") {
			continue
		}
		name := strings.TrimPrefix(arg, "-")
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			name = name[:eq]
		}
		if len(name) > 1 {
			out[i] = "-" + arg
		}
	}
	return out
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "snipclip",
		Short:         "Screen capture to clipboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	cmd.Flags().BoolVar(&opts.once, "once", false, "Capture once and exit instead of staying resident")
	cmd.Flags().StringVar(&opts.target, "target", "region", "Capture target for --once: full, region or window[:id]")
	cmd.Flags().BoolVar(&opts.stdout, "stdout", false, "With --once, write the PNG to stdout instead of the clipboard")
	cmd.Flags().Float64Var(&opts.scale, "scale", 0, "Override CAPTURE_SCALE")
	cmd.Flags().IntVar(&opts.deadlineSec, "deadline", 0, "Override CAPTURE_DEADLINE_SEC")
	cmd.Flags().StringVar(&opts.bindingsFile, "bindings-file", "", "Override the hotkey bindings file path")
	return cmd
}

func main() {
	// DPI awareness must be set before any window or metric query.
	enableDPIAwareness()

	// Lock main to its own OS thread so the tray loop never shares a message
	// queue with worker goroutines.
	runtime.LockOSThread()

	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(normalizeLegacyArgs(os.Args)[1:])
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(opts *mainOptions) error {
	loadOpts := config.LoadOptions{
		ScaleOverride:        opts.scale,
		DeadlineSecOverride:  opts.deadlineSec,
		BindingsFileOverride: opts.bindingsFile,
	}

	if opts.once {
		req, err := parseOnceTarget(opts.target, opts.stdout)
		if err != nil {
			return err
		}
		// Load .env early so SINGLEINSTANCE_PORT_* apply to the delegation scan.
		_, _ = config.Load()
		handleOnceWithDelegation(req, singleinstance.NewClient(), func() {
			runOnceStandalone(loadOpts, req)
		})
		return nil
	}

	return runResident(loadOpts)
}

// parseOnceTarget turns the --target flag into a delegation request.
func parseOnceTarget(spec string, stdout bool) (singleinstance.Request, error) {
	req := singleinstance.Request{OutputToStdout: stdout}
	switch {
	case spec == "full":
		req.Kind = singleinstance.KindFullScreen
	case spec == "region" || spec == "":
		req.Kind = singleinstance.KindRegion
	case spec == "window":
		req.Kind = singleinstance.KindWindow
	case strings.HasPrefix(spec, "window:"):
		id, err := strconv.ParseUint(spec[len("window:"):], 10, 64)
		if err != nil {
			return req, fmt.Errorf("invalid window id in %q", spec)
		}
		req.Kind = singleinstance.KindWindow
		req.WindowID = id
	default:
		return req, fmt.Errorf("unknown capture target %q (want full, region or window[:id])", spec)
	}
	return req, nil
}

// captureClient is the delegation seam, satisfied by singleinstance.Client.
type captureClient interface {
	TryCapture(ctx context.Context, req singleinstance.Request) (delegated bool, png []byte, err error)
}

// handleOnceWithDelegation prefers handing the capture to a resident instance
// so hotkeys, permission state and the overlay stay in one process. Only when
// no resident answers does the fallback run standalone.
func handleOnceWithDelegation(req singleinstance.Request, client captureClient, fallback func()) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	delegated, png, err := client.TryCapture(ctx, req)
	if delegated {
		if err != nil {
			log.Printf("Resident refused capture: %v", err)
			fmt.Fprintf(os.Stderr, "capture failed: %v\n", err)
			if !strings.Contains(err.Error(), "cancelled") {
				os.Exit(1)
			}
			return
		}
		log.Printf("Delegated to resident")
		if req.OutputToStdout && len(png) > 0 {
			_, _ = os.Stdout.Write(png)
		}
		return
	}
	if err != nil {
		log.Printf("Delegation error: %v; falling back to standalone", err)
		fallback()
		return
	}
	log.Printf("No resident detected, running standalone")
	fallback()
}

// runOnceStandalone performs a single capture without a resident process.
func runOnceStandalone(loadOpts config.LoadOptions, req singleinstance.Request) {
	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:   loadOpts,
		SetupLogging:  logutil.Setup,
		SkipClipboard: req.OutputToStdout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	target, err := resolveOnceTarget(rt, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "capture failed: %v\n", err)
		os.Exit(1)
	}

	var deliver session.ResultTarget
	if req.OutputToStdout {
		deliver = session.StdoutTarget{}
	} else {
		deliver = session.ClipboardTarget{Sink: rt.Sink}
	}

	selector := gui.NewSelector()
	_, err = session.Execute(context.Background(), session.Options{
		Deadline:     time.Duration(rt.Config.DeadlineSec) * time.Second,
		Target:       target,
		SelectRegion: selector.Select,
		Capture:      rt.Engine.Capture,
		Deliver:      deliver,
	})
	if err != nil {
		if errors.Is(err, session.ErrSelectionCancelled) {
			log.Printf("Selection cancelled, exiting")
			return
		}
		fmt.Fprintf(os.Stderr, "capture failed: %v\n", err)
		os.Exit(1)
	}
	log.Printf("Capture completed, exiting")
}

func resolveOnceTarget(rt *runtimeinit.Runtime, req singleinstance.Request) (capture.Target, error) {
	switch req.Kind {
	case singleinstance.KindFullScreen:
		return capture.FullScreen(), nil
	case singleinstance.KindRegion:
		// Empty rectangle defers to the interactive overlay.
		return capture.Region(image.Rectangle{}), nil
	case singleinstance.KindWindow:
		if req.WindowID != 0 {
			return capture.Window(capture.WindowID(req.WindowID)), nil
		}
		infos, err := rt.Engine.Targets()
		if err != nil {
			return capture.Target{}, err
		}
		if len(infos) == 0 {
			return capture.Target{}, capture.ErrWindowNotFound
		}
		return capture.Window(infos[0].ID), nil
	default:
		return capture.Target{}, fmt.Errorf("unknown capture kind %q", req.Kind)
	}
}

func runResident(loadOpts config.LoadOptions) error {
	// Load .env early so SINGLEINSTANCE_PORT_* are available for pre-flight.
	_, _ = config.Load()

	// ---------- SINGLE-INSTANCE PRE-FLIGHT ----------
	startPort, _ := singleinstance.GetPortRangeForDebug()
	addr := fmt.Sprintf("127.0.0.1:%d", startPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("Pre-flight: port %d busy, resident already exists", startPort)
		fmt.Printf("snipclip is already running on port %d\n", startPort)
		os.Exit(1)
	}
	// We claimed the port; release it so the event loop can re-bind.
	_ = listener.Close()
	log.Printf("Pre-flight: port %d free, we are the resident", startPort)
	// ------------------------------------------------

	logMonitorConfiguration()

	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:  loadOpts,
		SetupLogging: logutil.Setup,
	})
	if err != nil {
		return err
	}
	cfg := rt.Config

	log.Printf("snipclip initialized")
	log.Printf("Hotkeys: fullscreen=%s region=%s window=%s",
		cfg.HotkeyFullScreen, cfg.HotkeyRegion, cfg.HotkeyWindow)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := bus.New()
	defer eventBus.Shutdown()

	player := sound.NewPlayer(cfg.CaptureSound)
	defer player.Close()

	watcher, err := bindings.NewWatcher(rt.Store.Path())
	var bindingEvents <-chan struct{}
	if err != nil {
		log.Printf("BINDINGS: watcher unavailable: %v", err)
	} else {
		bindingEvents = watcher.Events()
	}

	// The dispatcher marshals hotkey fires onto the loop goroutine; the loop
	// does not exist yet, so the invoke closure resolves it late.
	var loop *eventloop.Loop
	hook := hotkey.NewSystemHook()
	dispatcher := hotkey.NewDispatcher(hook, rt.Store, func(fn func()) {
		if loop != nil {
			loop.Invoke(fn)
		}
	})

	trayIcon := tray.New(tray.Config{
		OnCaptureRegion: func() {
			loop.Invoke(func() { loop.RequestCapture(ctx, capture.KindRegion) })
		},
		OnCaptureFullScreen: func() {
			loop.Invoke(func() { loop.RequestCapture(ctx, capture.KindFullScreen) })
		},
		OnCaptureWindow: func() {
			loop.Invoke(func() { loop.RequestCapture(ctx, capture.KindWindow) })
		},
		OnOpenSettings: func() {
			if err := rt.Gate.OpenSettings(); err != nil {
				log.Printf("Failed to open privacy settings: %v", err)
			}
		},
		OnQuit: func() { cancel() },
	})

	loop = eventloop.New(eventloop.Options{
		Config:         cfg,
		Selector:       gui.NewSelector(),
		Capture:        rt.Engine.Capture,
		Targets:        rt.Engine.Targets,
		Sink:           rt.Sink,
		Gate:           rt.Gate,
		Dispatcher:     dispatcher,
		Store:          rt.Store,
		Bus:            eventBus,
		Tray:           trayIcon,
		Sound:          player,
		BindingsEvents: bindingEvents,
	})
	loop.SetDefaultTooltip(fmt.Sprintf("snipclip — %s region, %s full screen", cfg.HotkeyRegion, cfg.HotkeyFullScreen))

	registerHotkeys(dispatcher, cfg, func(kind capture.TargetKind) func() {
		return func() { loop.RequestCapture(ctx, kind) }
	})

	super := lifecycle.NewSupervisor()
	super.Start(ctx, lifecycle.Func("permission-watch", func(ctx context.Context) error {
		return rt.Gate.Watch(ctx, 15*time.Second)
	}))
	if watcher != nil {
		super.Start(ctx, lifecycle.Func("bindings-watch", watcher.Run))
	}
	super.Start(ctx, lifecycle.Func("capture-log", func(ctx context.Context) error {
		return logCaptureEvents(ctx, eventBus)
	}))

	// Handle SIGINT/SIGTERM.
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()

	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()

	// Quit menu, signal or loop failure all end up here: tear down the hook
	// and unblock the tray loop on the main thread.
	go func() {
		<-ctx.Done()
		dispatcher.UnregisterAll()
		trayIcon.Quit()
	}()

	// Prime the permission line in the tray menu.
	rt.Gate.Check()

	trayIcon.Run(func() {
		trayIcon.SetPermissionStatus(rt.Gate.Status())
		trayIcon.UpdateTooltip(fmt.Sprintf("snipclip — %s region, %s full screen", cfg.HotkeyRegion, cfg.HotkeyFullScreen))
	})

	cancel()
	if err := <-loopDone; err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("event loop stopped: %v", err)
	}
	super.Wait()
	return nil
}

// logCaptureEvents consumes the event bus for the capture activity log.
func logCaptureEvents(ctx context.Context, eventBus *bus.Bus) error {
	ch, err := eventBus.Subscribe("capture-log", 16)
	if err != nil {
		return err
	}
	defer eventBus.Unsubscribe("capture-log")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			switch e := ev.(type) {
			case events.CaptureDone:
				if e.Err != nil {
					log.Printf("Activity: %s capture failed after %s: %v", e.Target, e.Elapsed, e.Err)
				} else {
					log.Printf("Activity: %s capture in %s", e.Target, e.Elapsed)
				}
			case events.PermissionChanged:
				log.Printf("Activity: screen recording permission %s", e.Status)
			case events.BindingsReloaded:
				log.Printf("Activity: hotkey bindings reloaded")
			}
		}
	}
}

func registerHotkeys(d *hotkey.Dispatcher, cfg *config.Config, handler func(capture.TargetKind) func()) {
	specs := []struct {
		action hotkey.Action
		spec   string
		kind   capture.TargetKind
	}{
		{hotkey.ActionFullScreen, cfg.HotkeyFullScreen, capture.KindFullScreen},
		{hotkey.ActionRegion, cfg.HotkeyRegion, capture.KindRegion},
		{hotkey.ActionWindow, cfg.HotkeyWindow, capture.KindWindow},
	}
	for _, s := range specs {
		b, err := hotkey.ParseBinding(s.spec)
		if err != nil {
			log.Printf("HOTKEY: invalid binding %q for %s: %v", s.spec, s.action, err)
			continue
		}
		if err := d.Register(s.action, b, handler(s.kind)); err != nil {
			log.Printf("HOTKEY: cannot register %s for %s: %v", b, s.action, err)
			notification.Notify("snipclip", fmt.Sprintf("Hotkey %s unavailable: %v", b, err))
		}
	}
}
