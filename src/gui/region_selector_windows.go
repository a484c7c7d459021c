//go:build windows

package gui

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"log"
	"os"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/kbinani/screenshot"
	"github.com/lxn/win"

	"snipclip/src/capture"
	"snipclip/src/overlay"
)

const (
	overlayKeyPollTimerID    = 1
	overlayKeyPollIntervalMs = 25
	scrimShade               = 140 // out of 255; pixels are scaled by this
)

var (
	user32DLL                    = syscall.NewLazyDLL("user32.dll")
	procAllowSetForegroundWindow = user32DLL.NewProc("AllowSetForegroundWindow")
	procGetAsyncKeyState         = user32DLL.NewProc("GetAsyncKeyState")

	gdi32DLL      = syscall.NewLazyDLL("gdi32.dll")
	procCreatePen = gdi32DLL.NewProc("CreatePen")
	procRectangle = gdi32DLL.NewProc("Rectangle")
)

type selectionOutcome struct {
	rect image.Rectangle
	ok   bool
}

// overlayWindow is the per-selection driver state. It is looked up through an
// explicit hwnd-keyed registry so the C-style WndProc callback reaches its
// instance without module-level selection globals.
type overlayWindow struct {
	session       *overlayShim
	background    *image.RGBA
	dimmed        *image.RGBA
	result        chan selectionOutcome
	crossCursor   win.HCURSOR
	escapeWasDown bool
}

// overlayShim narrows the Session surface the WndProc needs.
type overlayShim struct {
	*overlay.Session
}

var (
	windowsMu   sync.Mutex
	liveWindows = map[win.HWND]*overlayWindow{}
)

func bindWindow(hwnd win.HWND, ow *overlayWindow) {
	windowsMu.Lock()
	liveWindows[hwnd] = ow
	windowsMu.Unlock()
}

func windowFor(hwnd win.HWND) *overlayWindow {
	windowsMu.Lock()
	defer windowsMu.Unlock()
	return liveWindows[hwnd]
}

func dropWindow(hwnd win.HWND) {
	windowsMu.Lock()
	delete(liveWindows, hwnd)
	windowsMu.Unlock()
}

type platformSelector struct{}

func newPlatformSelector() overlay.Selector { return platformSelector{} }

func (platformSelector) Select(ctx context.Context) (image.Rectangle, bool, error) {
	return selectRegion(ctx)
}

// selectRegion runs the full-virtual-screen overlay and blocks until the user
// completes or cancels the selection.
func selectRegion(ctx context.Context) (image.Rectangle, bool, error) {
	vx := win.GetSystemMetrics(win.SM_XVIRTUALSCREEN)
	vy := win.GetSystemMetrics(win.SM_YVIRTUALSCREEN)
	vw := win.GetSystemMetrics(win.SM_CXVIRTUALSCREEN)
	vh := win.GetSystemMetrics(win.SM_CYVIRTUALSCREEN)
	log.Printf("OVERLAY: virtual screen x=%d y=%d w=%d h=%d", vx, vy, vw, vh)

	background, err := captureVirtualScreen(int(vw), int(vh))
	if err != nil {
		return image.Rectangle{}, false, fmt.Errorf("failed to capture overlay background: %w", err)
	}

	ow := &overlayWindow{
		background:  background,
		dimmed:      dimImage(background),
		result:      make(chan selectionOutcome, 1),
		crossCursor: win.LoadCursor(0, win.MAKEINTRESOURCE(win.IDC_CROSS)),
	}
	ow.session = &overlayShim{overlay.NewSession(overlay.Config{
		Surface: image.Rect(0, 0, int(vw), int(vh)),
		Origin:  image.Pt(int(vx), int(vy)),
		OnResult: func(r image.Rectangle, ok bool) {
			ow.result <- selectionOutcome{rect: r, ok: ok}
		},
	})}
	if err := ow.session.Begin(); err != nil {
		return image.Rectangle{}, false, err
	}

	classNameStr := fmt.Sprintf("SnipclipOverlay_%d", time.Now().UnixNano())
	className := syscall.StringToUTF16Ptr(classNameStr)
	wndClass := win.WNDCLASSEX{
		CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
		Style:         win.CS_HREDRAW | win.CS_VREDRAW,
		LpfnWndProc:   syscall.NewCallback(overlayWndProc),
		HInstance:     win.GetModuleHandle(nil),
		HCursor:       ow.crossCursor,
		HbrBackground: 0, // painted entirely in WM_PAINT
		LpszClassName: className,
	}
	if atom := win.RegisterClassEx(&wndClass); atom == 0 {
		return image.Rectangle{}, false, fmt.Errorf("failed to register overlay window class")
	}
	defer win.UnregisterClass(className)

	hwnd := win.CreateWindowEx(
		win.WS_EX_TOPMOST,
		className,
		syscall.StringToUTF16Ptr("Select Region - drag to select, ESC cancels"),
		win.WS_POPUP|win.WS_VISIBLE,
		vx, vy, vw, vh,
		0, 0, win.GetModuleHandle(nil), nil,
	)
	if hwnd == 0 {
		return image.Rectangle{}, false, fmt.Errorf("failed to create overlay window")
	}
	bindWindow(hwnd, ow)

	win.ShowWindow(hwnd, win.SW_SHOW)
	procAllowSetForegroundWindow.Call(uintptr(os.Getpid()))
	win.SetForegroundWindow(hwnd)
	win.BringWindowToTop(hwnd)
	win.SetFocus(hwnd)
	win.InvalidateRect(hwnd, nil, false)
	win.UpdateWindow(hwnd)

	if timerID := win.SetTimer(hwnd, overlayKeyPollTimerID, overlayKeyPollIntervalMs, 0); timerID == 0 {
		log.Printf("OVERLAY: failed to start keyboard poll timer")
	}

	// Message loop. The session posts its outcome into ow.result from inside
	// the WndProc; we check after every dispatched message. No WM_QUIT is
	// ever posted, so the thread queue stays clean for the next selection.
	var msg win.MSG
	for {
		ret := win.GetMessage(&msg, 0, 0, 0)
		if ret == 0 || ret == -1 {
			win.DestroyWindow(hwnd)
			return image.Rectangle{}, true, nil
		}
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)

		select {
		case out := <-ow.result:
			win.DestroyWindow(hwnd)
			if err := ctx.Err(); err != nil {
				return image.Rectangle{}, false, err
			}
			if !out.ok {
				log.Printf("OVERLAY: selection cancelled")
				return image.Rectangle{}, true, nil
			}
			log.Printf("OVERLAY: selection completed: %v", out.rect)
			return out.rect, false, nil
		default:
		}
	}
}

// captureVirtualScreen grabs the union of all displays for the overlay
// backdrop.
func captureVirtualScreen(width, height int) (*image.RGBA, error) {
	union, err := capture.VirtualScreenBounds()
	if err != nil {
		return nil, err
	}
	img, err := screenshot.CaptureRect(union)
	if err != nil {
		return nil, err
	}
	if img.Bounds().Dx() != width || img.Bounds().Dy() != height {
		rgba := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.Draw(rgba, rgba.Bounds(), img, image.Point{}, draw.Src)
		return rgba, nil
	}
	return img, nil
}

// dimImage precomputes the scrim: the backdrop scaled down to scrimShade.
func dimImage(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	for i := 0; i+3 < len(src.Pix); i += 4 {
		dst.Pix[i+0] = uint8(int(src.Pix[i+0]) * scrimShade / 255)
		dst.Pix[i+1] = uint8(int(src.Pix[i+1]) * scrimShade / 255)
		dst.Pix[i+2] = uint8(int(src.Pix[i+2]) * scrimShade / 255)
		dst.Pix[i+3] = src.Pix[i+3]
	}
	return dst
}

func overlayWndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	ow := windowFor(hwnd)
	if ow == nil {
		return win.DefWindowProc(hwnd, msg, wParam, lParam)
	}

	switch msg {
	case win.WM_LBUTTONDOWN:
		x, y := pointerPos(lParam)
		win.SetCapture(hwnd)
		ow.session.PointerDown(x, y)
		win.InvalidateRect(hwnd, nil, false)
		win.UpdateWindow(hwnd)
		return 0

	case win.WM_MOUSEMOVE:
		if ow.session.Dragging() {
			x, y := pointerPos(lParam)
			ow.session.PointerMove(x, y)
			win.InvalidateRect(hwnd, nil, false)
			win.UpdateWindow(hwnd)
		}
		return 0

	case win.WM_LBUTTONUP:
		if ow.session.Dragging() {
			win.ReleaseCapture()
			x, y := pointerPos(lParam)
			ow.session.PointerUp(x, y)
		}
		return 0

	case win.WM_PAINT:
		var ps win.PAINTSTRUCT
		hdc := win.BeginPaint(hwnd, &ps)
		ow.paint(hdc)
		win.EndPaint(hwnd, &ps)
		return 0

	case win.WM_SETCURSOR:
		if ow.crossCursor != 0 {
			win.SetCursor(ow.crossCursor)
		}
		return 1

	case win.WM_TIMER:
		if wParam == overlayKeyPollTimerID {
			ow.pollEscape()
		}
		return 0

	case win.WM_KEYDOWN:
		if wParam == win.VK_ESCAPE {
			ow.escapeWasDown = true
			ow.session.Cancel()
		}
		return 0

	case win.WM_KEYUP, win.WM_SYSKEYUP:
		if wParam == win.VK_ESCAPE {
			ow.escapeWasDown = false
		}
		return 0

	case win.WM_NCHITTEST:
		// Everything is client area so the window receives all mouse events.
		return uintptr(win.HTCLIENT)

	case win.WM_DESTROY:
		win.KillTimer(hwnd, overlayKeyPollTimerID)
		dropWindow(hwnd)
		return 0
	}

	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}

// pollEscape catches escape even when the overlay loses key focus.
func (ow *overlayWindow) pollEscape() {
	state, _, _ := procGetAsyncKeyState.Call(uintptr(int32(win.VK_ESCAPE)))
	s := uint16(state)
	isDown := s&0x8000 != 0
	wasPressed := s&0x0001 != 0
	if !ow.escapeWasDown && (isDown || wasPressed) {
		log.Printf("OVERLAY: escape detected via async polling")
		ow.session.Cancel()
	}
	ow.escapeWasDown = isDown
}

// paint renders the dimmed scrim, the transparent cut-out for the selection,
// a dashed border, and the live size label.
func (ow *overlayWindow) paint(hdc win.HDC) {
	rect, hasRect := ow.session.Rect()

	blitImage(hdc, ow.dimmed, ow.dimmed.Bounds(), image.Point{})
	if !hasRect {
		return
	}

	// Cut-out: the selected rectangle shows the undimmed backdrop.
	blitImage(hdc, ow.background, rect, rect.Min)
	drawDashedBorder(hdc, rect)
	ow.drawLabel(hdc)
}

func (ow *overlayWindow) drawLabel(hdc win.HDC) {
	label := ow.session.Label()
	text := syscall.StringToUTF16Ptr(label)

	win.SetBkMode(hdc, win.TRANSPARENT)
	win.SetTextColor(hdc, win.COLORREF(0x00FFFFFF))

	var size win.SIZE
	if !win.GetTextExtentPoint32(hdc, text, int32(len(label)), &size) {
		size = win.SIZE{CX: int32(8 * len(label)), CY: 16}
	}
	at := ow.session.LabelOrigin(int(size.CX), int(size.CY))
	win.TextOut(hdc, int32(at.X), int32(at.Y), text, int32(len(label)))
}

func drawDashedBorder(hdc win.HDC, rect image.Rectangle) {
	const psDash = 1
	pen, _, _ := procCreatePen.Call(psDash, 1, 0x00FFFFFF)
	oldPen := win.SelectObject(hdc, win.HGDIOBJ(pen))
	oldBrush := win.SelectObject(hdc, win.GetStockObject(win.NULL_BRUSH))

	procRectangle.Call(uintptr(hdc),
		uintptr(rect.Min.X), uintptr(rect.Min.Y),
		uintptr(rect.Max.X), uintptr(rect.Max.Y))

	win.SelectObject(hdc, oldPen)
	win.SelectObject(hdc, oldBrush)
	win.DeleteObject(win.HGDIOBJ(pen))
}

// blitImage copies the given sub-rectangle of an RGBA image onto the window
// DC at the same position through a DIB section.
func blitImage(hdc win.HDC, img *image.RGBA, src image.Rectangle, at image.Point) {
	src = src.Intersect(img.Bounds())
	if src.Empty() {
		return
	}
	width := src.Dx()
	height := src.Dy()

	memDC := win.CreateCompatibleDC(hdc)
	if memDC == 0 {
		return
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
		return
	}
	defer win.DeleteObject(win.HGDIOBJ(hBitmap))

	oldBitmap := win.SelectObject(memDC, win.HGDIOBJ(hBitmap))
	defer win.SelectObject(memDC, oldBitmap)

	stride := ((width*32 + 31) &^ 31) / 8
	dstPix := unsafe.Slice((*byte)(pBits), stride*height)
	for y := 0; y < height; y++ {
		srcOff := img.PixOffset(src.Min.X, src.Min.Y+y)
		row := dstPix[y*stride:]
		for x := 0; x < width; x++ {
			o := srcOff + x*4
			// RGBA to BGRA
			row[x*4+0] = img.Pix[o+2]
			row[x*4+1] = img.Pix[o+1]
			row[x*4+2] = img.Pix[o+0]
			row[x*4+3] = img.Pix[o+3]
		}
	}

	win.BitBlt(hdc, int32(at.X), int32(at.Y), int32(width), int32(height), memDC, 0, 0, win.SRCCOPY)
}

func pointerPos(lParam uintptr) (int, int) {
	x := int(int16(win.LOWORD(uint32(lParam))))
	y := int(int16(win.HIWORD(uint32(lParam))))
	return x, y
}
