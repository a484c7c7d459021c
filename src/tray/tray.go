// Package tray drives the system tray icon and menu.
package tray

import (
	"log"

	"github.com/getlantern/systray"

	"snipclip/src/permission"
)

// Config carries the menu callbacks. All callbacks run on the tray's own
// goroutine; implementations should hand off to the event loop.
type Config struct {
	OnCaptureRegion     func()
	OnCaptureFullScreen func()
	OnCaptureWindow     func()
	OnOpenSettings      func()
	OnQuit              func()
}

// Tray is the live systray menu. Create with Run, which blocks the calling
// goroutine for the life of the application (systray owns the OS loop).
type Tray struct {
	cfg        Config
	permItem   *systray.MenuItem
	settings   *systray.MenuItem
	tooltipsCh chan string
	permCh     chan permission.Status
}

func New(cfg Config) *Tray {
	return &Tray{
		cfg:        cfg,
		tooltipsCh: make(chan string, 4),
		permCh:     make(chan permission.Status, 4),
	}
}

// Run starts the systray loop. onReady fires after the OS tray is available.
func (t *Tray) Run(onReady func()) {
	systray.Run(func() {
		t.onReady()
		if onReady != nil {
			onReady()
		}
	}, t.onExit)
}

// Quit tears the tray down and unblocks Run.
func (t *Tray) Quit() { systray.Quit() }

// UpdateTooltip changes the hover text, e.g. "snipclip — capturing…".
func (t *Tray) UpdateTooltip(text string) {
	select {
	case t.tooltipsCh <- text:
	default:
	}
}

// SetPermissionStatus refreshes the permission line in the menu.
func (t *Tray) SetPermissionStatus(st permission.Status) {
	select {
	case t.permCh <- st:
	default:
	}
}

func (t *Tray) onReady() {
	systray.SetIcon(IconBytes())
	systray.SetTitle("snipclip")
	systray.SetTooltip("snipclip — screen capture to clipboard")

	mRegion := systray.AddMenuItem("Capture Region", "Select a region and copy it to the clipboard")
	mFull := systray.AddMenuItem("Capture Full Screen", "Copy the primary display to the clipboard")
	mWindow := systray.AddMenuItem("Capture Window", "Copy the frontmost window to the clipboard")
	systray.AddSeparator()
	t.permItem = systray.AddMenuItem("Screen Recording: checking…", "Current screen recording authorization")
	t.permItem.Disable()
	t.settings = systray.AddMenuItem("Open Privacy Settings", "Open the system screen recording settings")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit snipclip")

	go func() {
		for {
			select {
			case <-mRegion.ClickedCh:
				t.fire(t.cfg.OnCaptureRegion)
			case <-mFull.ClickedCh:
				t.fire(t.cfg.OnCaptureFullScreen)
			case <-mWindow.ClickedCh:
				t.fire(t.cfg.OnCaptureWindow)
			case <-t.settings.ClickedCh:
				t.fire(t.cfg.OnOpenSettings)
			case text := <-t.tooltipsCh:
				systray.SetTooltip(text)
			case st := <-t.permCh:
				t.permItem.SetTitle("Screen Recording: " + st.String())
			case <-mQuit.ClickedCh:
				t.fire(t.cfg.OnQuit)
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	log.Printf("Tray: exited")
}

func (t *Tray) fire(fn func()) {
	if fn != nil {
		fn()
	}
}
