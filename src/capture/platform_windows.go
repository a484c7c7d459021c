//go:build windows

package capture

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"
	"syscall"
	"unsafe"

	"github.com/lxn/win"
	xdraw "golang.org/x/image/draw"
)

var (
	user32DLL                     = syscall.NewLazyDLL("user32.dll")
	procEnumWindows               = user32DLL.NewProc("EnumWindows")
	procIsWindowVisible           = user32DLL.NewProc("IsWindowVisible")
	procGetWindowTextW            = user32DLL.NewProc("GetWindowTextW")
	procGetWindowThreadProcessId  = user32DLL.NewProc("GetWindowThreadProcessId")
	procGetWindowRect             = user32DLL.NewProc("GetWindowRect")
	procPrintWindow               = user32DLL.NewProc("PrintWindow")
	procOpenInputDesktop          = user32DLL.NewProc("OpenInputDesktop")
	procCloseDesktop              = user32DLL.NewProc("CloseDesktop")
	procSwitchDesktop             = user32DLL.NewProc("SwitchDesktop")
	kernel32DLL                   = syscall.NewLazyDLL("kernel32.dll")
	procQueryFullProcessImageName = kernel32DLL.NewProc("QueryFullProcessImageNameW")
	procOpenProcess               = kernel32DLL.NewProc("OpenProcess")
)

const (
	pwRenderFullContent              = 0x00000002
	processQueryLimitedInformation   = 0x1000
	desktopSwitchdesktopAccessRight  = 0x0100
)

// windowsPlatform layers window enumeration, PrintWindow snapshots, and a
// desktop-lock probe on top of the portable grab path.
type windowsPlatform struct {
	defaultPlatform
}

func newOSPlatform() Platform { return &windowsPlatform{} }

// State probes the input desktop. When the workstation is locked,
// OpenInputDesktop either fails or returns a desktop we cannot switch to.
func (p *windowsPlatform) State() DisplayState {
	hDesk, _, _ := procOpenInputDesktop.Call(0, 0, desktopSwitchdesktopAccessRight)
	if hDesk == 0 {
		return DisplayLocked
	}
	defer procCloseDesktop.Call(hDesk)
	if ok, _, _ := procSwitchDesktop.Call(hDesk); ok == 0 {
		return DisplayLocked
	}
	return DisplayActive
}

// The runtime compiles each distinct function passed to syscall.NewCallback
// into a fixed-size table that is never freed, so the EnumWindows callbacks
// are created exactly once and per-call state flows through a mutex-guarded
// collector instead of a fresh closure.
var (
	enumMu      sync.Mutex
	enumWins    []WindowInfo
	enumOwnPID  uint32
	enumOwnWins []WindowID

	collectWindowCallback = syscall.NewCallback(collectWindow)
	collectOwnCallback    = syscall.NewCallback(collectOwnWindow)
)

func collectWindow(hwnd uintptr, lParam uintptr) uintptr {
	visible, _, _ := procIsWindowVisible.Call(hwnd)

	var title [512]uint16
	n, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&title[0])), uintptr(len(title)))

	var pid uint32
	procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))

	var rc win.RECT
	procGetWindowRect.Call(hwnd, uintptr(unsafe.Pointer(&rc)))

	enumWins = append(enumWins, WindowInfo{
		ID:        WindowID(hwnd),
		Title:     syscall.UTF16ToString(title[:n]),
		OwnerName: processImageName(pid),
		OwnerPID:  int(pid),
		Bounds:    image.Rect(int(rc.Left), int(rc.Top), int(rc.Right), int(rc.Bottom)),
		OnScreen:  visible != 0,
		Layer:     0,
	})
	return 1 // continue enumeration
}

func collectOwnWindow(hwnd uintptr, lParam uintptr) uintptr {
	var wpid uint32
	procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&wpid)))
	if wpid == enumOwnPID {
		enumOwnWins = append(enumOwnWins, WindowID(hwnd))
	}
	return 1
}

func (p *windowsPlatform) Windows() ([]WindowInfo, error) {
	enumMu.Lock()
	defer enumMu.Unlock()
	enumWins = nil
	ret, _, err := procEnumWindows.Call(collectWindowCallback, 0)
	if ret == 0 {
		enumWins = nil
		return nil, fmt.Errorf("EnumWindows: %v", err)
	}
	wins := enumWins
	enumWins = nil
	return wins, nil
}

// SnapshotWindow renders one window into a memory DC via PrintWindow, which
// works for occluded windows where a display-level grab would not.
func (p *windowsPlatform) SnapshotWindow(ctx context.Context, id WindowID, cfg FrameConfig) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hwnd := win.HWND(id)

	var rc win.RECT
	if ret, _, _ := procGetWindowRect.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&rc))); ret == 0 {
		return nil, fmt.Errorf("%w: GetWindowRect failed for %d", ErrWindowNotFound, id)
	}
	width := int(rc.Right - rc.Left)
	height := int(rc.Bottom - rc.Top)
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: window %d has empty bounds", ErrCaptureFailed, id)
	}

	hdcWindow := win.GetDC(hwnd)
	if hdcWindow == 0 {
		return nil, fmt.Errorf("%w: GetDC failed", ErrCaptureFailed)
	}
	defer win.ReleaseDC(hwnd, hdcWindow)

	memDC := win.CreateCompatibleDC(hdcWindow)
	if memDC == 0 {
		return nil, fmt.Errorf("%w: CreateCompatibleDC failed", ErrCaptureFailed)
	}
	defer win.DeleteDC(memDC)

	bmi := win.BITMAPINFO{
		BmiHeader: win.BITMAPINFOHEADER{
			BiSize:        uint32(unsafe.Sizeof(win.BITMAPINFOHEADER{})),
			BiWidth:       int32(width),
			BiHeight:      -int32(height), // top-down
			BiPlanes:      1,
			BiBitCount:    32,
			BiCompression: win.BI_RGB,
		},
	}
	var pBits unsafe.Pointer
	hBitmap := win.CreateDIBSection(memDC, &bmi.BmiHeader, win.DIB_RGB_COLORS, &pBits, 0, 0)
	if hBitmap == 0 {
		return nil, fmt.Errorf("%w: CreateDIBSection failed", ErrCaptureFailed)
	}
	defer win.DeleteObject(win.HGDIOBJ(hBitmap))

	oldBitmap := win.SelectObject(memDC, win.HGDIOBJ(hBitmap))
	defer win.SelectObject(memDC, oldBitmap)

	if ret, _, _ := procPrintWindow.Call(uintptr(hwnd), uintptr(memDC), pwRenderFullContent); ret == 0 {
		return nil, fmt.Errorf("%w: PrintWindow failed for %d", ErrCaptureFailed, id)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	stride := ((width*32 + 31) &^ 31) / 8
	src := unsafe.Slice((*byte)(pBits), stride*height)
	for y := 0; y < height; y++ {
		row := src[y*stride : y*stride+width*4]
		for x := 0; x < width; x++ {
			// BGRA to RGBA
			o := x * 4
			d := img.PixOffset(x, y)
			img.Pix[d+0] = row[o+2]
			img.Pix[d+1] = row[o+1]
			img.Pix[d+2] = row[o+0]
			img.Pix[d+3] = 0xff
		}
	}

	if cfg.PixelWidth > 0 && cfg.PixelHeight > 0 &&
		(cfg.PixelWidth != width || cfg.PixelHeight != height) {
		scaled := image.NewRGBA(image.Rect(0, 0, cfg.PixelWidth, cfg.PixelHeight))
		xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Src, nil)
		return scaled, nil
	}
	return img, nil
}

func (p *windowsPlatform) OwnWindowIDs() []WindowID {
	enumMu.Lock()
	defer enumMu.Unlock()
	enumOwnPID = uint32(os.Getpid())
	enumOwnWins = nil
	procEnumWindows.Call(collectOwnCallback, 0)
	own := enumOwnWins
	enumOwnWins = nil
	return own
}

func processImageName(pid uint32) string {
	h, _, _ := procOpenProcess.Call(processQueryLimitedInformation, 0, uintptr(pid))
	if h == 0 {
		return ""
	}
	defer syscall.CloseHandle(syscall.Handle(h))

	var buf [512]uint16
	size := uint32(len(buf))
	if ret, _, _ := procQueryFullProcessImageName.Call(h, 0, uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&size))); ret == 0 {
		return ""
	}
	full := syscall.UTF16ToString(buf[:size])
	for i := len(full) - 1; i >= 0; i-- {
		if full[i] == '\\' || full[i] == '/' {
			return full[i+1:]
		}
	}
	return full
}
