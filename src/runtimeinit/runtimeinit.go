// Package runtimeinit assembles the application's core services.
package runtimeinit

import (
	"fmt"
	"log"
	"time"

	"snipclip/src/bindings"
	"snipclip/src/capture"
	"snipclip/src/clipboard"
	"snipclip/src/config"
	"snipclip/src/hotkey"
	"snipclip/src/permission"
)

type Options struct {
	LoadOptions  config.LoadOptions
	SetupLogging func(bool)
	// SkipClipboard leaves the clipboard uninitialized for flows that never
	// write it locally (e.g. --stdout delegation).
	SkipClipboard bool
}

// Runtime is the bundle of initialized services main wires together.
type Runtime struct {
	Config *config.Config
	Gate   *permission.Gate
	Engine *capture.Engine
	Sink   *clipboard.SystemSink
	Store  *bindings.Store
}

func Bootstrap(opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg.EnableFileLogging)
	}

	gate := permission.NewGate(permission.NewScreenProber())
	engine := capture.NewEngine(capture.Options{
		Platform:       capture.NewPlatform(),
		Gate:           gate,
		Scale:          cfg.CaptureScale,
		FirstFrameWait: time.Duration(cfg.FirstFrameWaitSec) * time.Second,
	})

	var sink *clipboard.SystemSink
	if !opts.SkipClipboard {
		if err := clipboard.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
		}
		sink = clipboard.NewSystemSink()
	}

	// Configured chords are validated up front so a typo in .env surfaces at
	// startup, not on first keypress.
	for _, hk := range []struct{ key, chord string }{
		{"HOTKEY_FULLSCREEN", cfg.HotkeyFullScreen},
		{"HOTKEY_REGION", cfg.HotkeyRegion},
		{"HOTKEY_WINDOW", cfg.HotkeyWindow},
	} {
		if _, err := hotkey.ParseBinding(hk.chord); err != nil {
			log.Printf("Bootstrap: %s=%q is not a valid chord: %v", hk.key, hk.chord, err)
		}
	}

	bindingsPath := cfg.BindingsFile
	if bindingsPath == "" {
		bindingsPath, err = bindings.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve bindings file: %w", err)
		}
	}
	store := bindings.NewStore(bindingsPath)

	log.Printf("Bootstrap: scale=%.1f deadline=%ds firstFrameWait=%ds bindings=%s",
		cfg.CaptureScale, cfg.DeadlineSec, cfg.FirstFrameWaitSec, bindingsPath)

	return &Runtime{
		Config: cfg,
		Gate:   gate,
		Engine: engine,
		Sink:   sink,
		Store:  store,
	}, nil
}
