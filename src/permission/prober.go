package permission

import (
	"fmt"
	"image"
	"log"
	"os/exec"
	"runtime"

	"github.com/kbinani/screenshot"
)

// ScreenProber derives authorization by attempting a 1x1 grab of the primary
// display. On platforms with a screen-recording permission model the first
// grab attempt is exactly what triggers the OS prompt.
type ScreenProber struct {
	// Grab is swappable for tests; defaults to a kbinani 1x1 capture.
	Grab func() error
}

func NewScreenProber() *ScreenProber {
	return &ScreenProber{Grab: probeGrab}
}

func probeGrab() error {
	if screenshot.NumActiveDisplays() == 0 {
		return fmt.Errorf("no active displays")
	}
	b := screenshot.GetDisplayBounds(0)
	_, err := screenshot.CaptureRect(image.Rect(b.Min.X, b.Min.Y, b.Min.X+1, b.Min.Y+1))
	return err
}

func (p *ScreenProber) Probe() Status {
	if err := p.Grab(); err != nil {
		// Probe failure and explicit denial are indistinguishable here.
		log.Printf("PERMISSION: probe failed: %v", err)
		return Denied
	}
	return Authorized
}

// Request re-probes; the probe is the request mechanism.
func (p *ScreenProber) Request() Status { return p.Probe() }

func (p *ScreenProber) OpenSettings() error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open",
			"x-apple.systempreferences:com.apple.preference.security?Privacy_ScreenCapture").Start()
	case "windows":
		return exec.Command("cmd", "/c", "start",
			"ms-settings:privacy-graphicscaptureprogrammatic").Start()
	default:
		return exec.Command("xdg-open", "settings://privacy").Start()
	}
}
