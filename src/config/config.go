package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvPathVar = "SNIPCLIP_ENV"

	DefaultHotkeyFullScreen = "Ctrl+Alt+F"
	DefaultHotkeyRegion     = "Ctrl+Alt+R"
	DefaultHotkeyWindow     = "Ctrl+Alt+W"

	DefaultCaptureScale   = 2.0
	DefaultDeadlineSec    = 10
	DefaultFirstFrameWait = 3
	minFirstFrameWaitSec  = 2
	maxFirstFrameWaitSec  = 5
)

type LoadOptions struct {
	ScaleOverride        float64
	DeadlineSecOverride  int
	BindingsFileOverride string
}

type Config struct {
	HotkeyFullScreen  string
	HotkeyRegion      string
	HotkeyWindow      string
	CaptureScale      float64
	DeadlineSec       int
	FirstFrameWaitSec int
	EnableFileLogging bool
	CaptureSound      bool
	BindingsFile      string
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Load configuration from sources in priority order:
	// 1) .env in the application (executable) directory
	// 2) If not found, use SNIPCLIP_ENV env var as a path to a config file
	if envPath := resolveEnvPath(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	scale := DefaultCaptureScale
	if v := os.Getenv("CAPTURE_SCALE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			scale = f
		}
	}
	if opts.ScaleOverride > 0 {
		scale = opts.ScaleOverride
	}

	deadlineSec := DefaultDeadlineSec
	if v := os.Getenv("CAPTURE_DEADLINE_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			deadlineSec = n
		}
	}
	if opts.DeadlineSecOverride > 0 {
		deadlineSec = opts.DeadlineSecOverride
	}

	firstFrameWait := DefaultFirstFrameWait
	if v := os.Getenv("FIRST_FRAME_WAIT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			firstFrameWait = n
		}
	}
	// The streaming fallback needs a beat to deliver its first frame, but
	// waiting longer than a few seconds just feels broken.
	if firstFrameWait < minFirstFrameWaitSec {
		firstFrameWait = minFirstFrameWaitSec
	}
	if firstFrameWait > maxFirstFrameWaitSec {
		firstFrameWait = maxFirstFrameWaitSec
	}

	bindingsFile := os.Getenv("BINDINGS_FILE")
	if strings.TrimSpace(opts.BindingsFileOverride) != "" {
		bindingsFile = strings.TrimSpace(opts.BindingsFileOverride)
	}

	cfg := &Config{
		HotkeyFullScreen:  getEnvWithDefault("HOTKEY_FULLSCREEN", DefaultHotkeyFullScreen),
		HotkeyRegion:      getEnvWithDefault("HOTKEY_REGION", DefaultHotkeyRegion),
		HotkeyWindow:      getEnvWithDefault("HOTKEY_WINDOW", DefaultHotkeyWindow),
		CaptureScale:      scale,
		DeadlineSec:       deadlineSec,
		FirstFrameWaitSec: firstFrameWait,
		EnableFileLogging: strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		CaptureSound:      strings.ToLower(getEnvWithDefault("CAPTURE_SOUND", "true")) != "false",
		BindingsFile:      bindingsFile,
	}
	return cfg, nil
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}

	execDir := filepath.Dir(execPath)
	exeEnv := filepath.Join(execDir, ".env")
	if _, err := os.Stat(exeEnv); err == nil {
		return exeEnv
	}

	if alt := os.Getenv(EnvPathVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
