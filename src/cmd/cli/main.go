// snipctl is the command-line companion to the snipclip resident app.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"snipclip/src/bindings"
	"snipclip/src/capture"
	"snipclip/src/config"
	"snipclip/src/gui"
	"snipclip/src/hotkey"
	"snipclip/src/permission"
	"snipclip/src/runtimeinit"
	"snipclip/src/session"
	"snipclip/src/singleinstance"
)

type cliOptions struct {
	verbose bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(os.Args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "snipctl",
		Short:         "Control snipclip captures, targets, permission and hotkeys",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.verbose {
				log.SetOutput(os.Stderr)
			} else {
				log.SetOutput(io.Discard)
			}
		},
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging to stderr")

	cmd.AddCommand(newCaptureCmd())
	cmd.AddCommand(newTargetsCmd())
	cmd.AddCommand(newPermissionCmd())
	cmd.AddCommand(newBindingsCmd())
	return cmd
}

type captureOptions struct {
	rect     string
	windowID uint64
	stdout   bool
	scale    float64
	timeout  time.Duration
}

func newCaptureCmd() *cobra.Command {
	opts := &captureOptions{}
	cmd := &cobra.Command{
		Use:       "capture full|region|window",
		Short:     "Capture the screen to the clipboard or stdout",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"full", "region", "window"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(args[0], *opts)
		},
	}
	cmd.Flags().StringVar(&opts.rect, "rect", "", `Region as "x,y,w,h" (skips the interactive overlay)`)
	cmd.Flags().Uint64Var(&opts.windowID, "window-id", 0, "Window to capture (default: frontmost)")
	cmd.Flags().BoolVar(&opts.stdout, "stdout", false, "Write the PNG to stdout instead of the clipboard")
	cmd.Flags().Float64Var(&opts.scale, "scale", 0, "Override CAPTURE_SCALE")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Override the capture deadline")
	return cmd
}

func runCapture(kind string, opts captureOptions) error {
	switch kind {
	case "full", "region", "window":
	default:
		return fmt.Errorf("unknown capture target %q (want full, region or window)", kind)
	}

	// A preset rectangle cannot travel over the delegation wire; everything
	// else prefers the resident so one process owns the overlay and the
	// permission prompt.
	if kind != "region" || opts.rect == "" {
		delegated, err := delegateCapture(kind, opts)
		if delegated {
			return err
		}
		if err != nil {
			log.Printf("Delegation error: %v; running standalone", err)
		}
	}
	return captureStandalone(kind, opts)
}

func delegateCapture(kind string, opts captureOptions) (bool, error) {
	// Load .env early so SINGLEINSTANCE_PORT_* apply to the scan.
	_, _ = config.Load()

	req := singleinstance.Request{OutputToStdout: opts.stdout}
	switch kind {
	case "full":
		req.Kind = singleinstance.KindFullScreen
	case "region":
		req.Kind = singleinstance.KindRegion
	case "window":
		req.Kind = singleinstance.KindWindow
		req.WindowID = opts.windowID
	}

	timeout := opts.timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	delegated, png, err := singleinstance.NewClient().TryCapture(ctx, req)
	if !delegated {
		return false, err
	}
	if err != nil {
		if strings.Contains(err.Error(), "cancelled") {
			return true, nil
		}
		return true, err
	}
	log.Printf("Delegated to resident")
	if opts.stdout && len(png) > 0 {
		if _, err := os.Stdout.Write(png); err != nil {
			return true, err
		}
	}
	return true, nil
}

func captureStandalone(kind string, opts captureOptions) error {
	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions: config.LoadOptions{
			ScaleOverride:       opts.scale,
			DeadlineSecOverride: int(opts.timeout / time.Second),
		},
		SkipClipboard: opts.stdout,
	})
	if err != nil {
		return err
	}

	target, err := standaloneTarget(rt, kind, opts)
	if err != nil {
		return err
	}

	var deliver session.ResultTarget
	if opts.stdout {
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
	if errors.Is(err, session.ErrSelectionCancelled) {
		// Backing out of the overlay is not a failure.
		return nil
	}
	return err
}

func standaloneTarget(rt *runtimeinit.Runtime, kind string, opts captureOptions) (capture.Target, error) {
	switch kind {
	case "full":
		return capture.FullScreen(), nil
	case "region":
		if opts.rect == "" {
			return capture.Region(image.Rectangle{}), nil
		}
		rect, err := parseRect(opts.rect)
		if err != nil {
			return capture.Target{}, err
		}
		return capture.Region(rect), nil
	case "window":
		if opts.windowID != 0 {
			return capture.Window(capture.WindowID(opts.windowID)), nil
		}
		infos, err := rt.Engine.Targets()
		if err != nil {
			return capture.Target{}, err
		}
		if len(infos) == 0 {
			return capture.Target{}, capture.ErrWindowNotFound
		}
		return capture.Window(infos[0].ID), nil
	}
	return capture.Target{}, fmt.Errorf("unknown capture target %q", kind)
}

// parseRect parses "x,y,w,h" into a rectangle. Width and height must be
// positive; x and y may be negative on multi-monitor layouts.
func parseRect(s string) (image.Rectangle, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("invalid rect %q (want \"x,y,w,h\")", s)
	}
	nums := make([]int, 4)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("invalid rect %q: %q is not an integer", s, p)
		}
		nums[i] = n
	}
	x, y, w, h := nums[0], nums[1], nums[2], nums[3]
	if w <= 0 || h <= 0 {
		return image.Rectangle{}, fmt.Errorf("invalid rect %q: width and height must be positive", s)
	}
	return image.Rect(x, y, x+w, y+h), nil
}

func newTargetsCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "targets",
		Short: "List capturable windows, frontmost first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTargets(jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

type targetEntry struct {
	ID    uint64 `json:"id"`
	Title string `json:"title"`
	Owner string `json:"owner"`
}

func runTargets(jsonOutput bool) error {
	gate := permission.NewGate(permission.NewScreenProber())
	engine := capture.NewEngine(capture.Options{
		Platform: capture.NewPlatform(),
		Gate:     gate,
	})
	infos, err := engine.Targets()
	if err != nil {
		return err
	}

	if jsonOutput {
		entries := make([]targetEntry, 0, len(infos))
		for _, w := range infos {
			entries = append(entries, targetEntry{ID: uint64(w.ID), Title: w.Title, Owner: w.OwnerName})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tOWNER\tTITLE")
	for _, w := range infos {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", w.ID, w.OwnerName, w.Title)
	}
	return tw.Flush()
}

func newPermissionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permission status|request|open-settings",
		Short: "Inspect or request the screen recording permission",
	}
	gate := func() *permission.Gate {
		return permission.NewGate(permission.NewScreenProber())
	}
	cmd.AddCommand(&cobra.Command{
		Use:  "status",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(gate().Check())
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:  "request",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := gate().Request()
			fmt.Println(st)
			if st != permission.Authorized {
				os.Exit(1)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:  "open-settings",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return gate().OpenSettings()
		},
	})
	return cmd
}

func newBindingsCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "bindings show|set",
		Short: "Inspect or change the capture hotkeys",
	}
	cmd.PersistentFlags().StringVar(&file, "file", "", "Bindings file (default: the user config dir)")

	cmd.AddCommand(&cobra.Command{
		Use:  "show",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(file)
			if err != nil {
				return err
			}
			return showBindings(os.Stdout, store)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set action chord",
		Short: `e.g. snipctl bindings set region "Ctrl+Shift+4"`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(file)
			if err != nil {
				return err
			}
			return setBinding(store, args[0], args[1])
		},
	})
	return cmd
}

func openStore(file string) (*bindings.Store, error) {
	if file != "" {
		return bindings.NewStore(file), nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	path := cfg.BindingsFile
	if path == "" {
		path, err = bindings.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return bindings.NewStore(path), nil
}

func showBindings(w io.Writer, store *bindings.Store) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	defaults := map[hotkey.Action]string{
		hotkey.ActionFullScreen: cfg.HotkeyFullScreen,
		hotkey.ActionRegion:     cfg.HotkeyRegion,
		hotkey.ActionWindow:     cfg.HotkeyWindow,
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTION\tBINDING\tSOURCE")
	for _, action := range []hotkey.Action{hotkey.ActionFullScreen, hotkey.ActionRegion, hotkey.ActionWindow} {
		def, err := hotkey.ParseBinding(defaults[action])
		if err != nil {
			fmt.Fprintf(tw, "%s\t%s\tinvalid default\n", action, defaults[action])
			continue
		}
		effective := store.Load(action, def)
		source := "default"
		if effective != def {
			source = store.Path()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", action, effective, source)
	}
	return tw.Flush()
}

func setBinding(store *bindings.Store, action, chord string) error {
	act := hotkey.Action(action)
	switch act {
	case hotkey.ActionFullScreen, hotkey.ActionRegion, hotkey.ActionWindow:
	default:
		return fmt.Errorf("unknown action %q (want fullscreen, region or window)", action)
	}
	b, err := hotkey.ParseBinding(chord)
	if err != nil {
		return err
	}
	if err := store.Save(act, b); err != nil {
		return err
	}
	// A running resident picks the change up through its file watcher.
	fmt.Printf("%s = %s\n", act, b)
	return nil
}
