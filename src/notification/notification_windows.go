//go:build windows

package notification

import (
	"log"
	"runtime"
	"sync"
	"syscall"
	"unsafe"
)

var (
	user32                 = syscall.NewLazyDLL("user32.dll")
	kernel32               = syscall.NewLazyDLL("kernel32.dll")
	procMessageBox         = user32.NewProc("MessageBoxW")
	procCreateWindowEx     = user32.NewProc("CreateWindowExW")
	procDefWindowProc      = user32.NewProc("DefWindowProcW")
	procDestroyWindow      = user32.NewProc("DestroyWindow")
	procShowWindow         = user32.NewProc("ShowWindow")
	procSetWindowPos       = user32.NewProc("SetWindowPos")
	procGetSystemMetrics   = user32.NewProc("GetSystemMetrics")
	procSetTimer           = user32.NewProc("SetTimer")
	procKillTimer          = user32.NewProc("KillTimer")
	procRegisterClassEx    = user32.NewProc("RegisterClassExW")
	procUpdateWindow       = user32.NewProc("UpdateWindow")
	procGetMessage         = user32.NewProc("GetMessageW")
	procDispatchMessage    = user32.NewProc("DispatchMessageW")
	procTranslateMessage   = user32.NewProc("TranslateMessage")
	procPeekMessage        = user32.NewProc("PeekMessageW")
	procBeginPaint         = user32.NewProc("BeginPaint")
	procEndPaint           = user32.NewProc("EndPaint")
	procDrawText           = user32.NewProc("DrawTextW")
	procLoadCursor         = user32.NewProc("LoadCursorW")
	procPostThreadMessage  = user32.NewProc("PostThreadMessageW")
	procGetCurrentThreadId = kernel32.NewProc("GetCurrentThreadId")
)

const (
	wsPopup         = 0x80000000
	wsVisible       = 0x10000000
	wsExNoActivate  = 0x08000000
	wsExToolWindow  = 0x00000080
	wsExClientEdge  = 0x00000200
	wmDestroy       = 0x0002
	wmClose         = 0x0010
	wmPaint         = 0x000F
	wmTimer         = 0x0113
	wmLButtonDown   = 0x0201
	wmRButtonDown   = 0x0204
	wmNcLButtonDown = 0x00A1
	wmNcRButtonDown = 0x00A4
	wmUser          = 0x0400
	wmExitLoop      = wmUser + 1
	swShow          = 5
	swpNoActivate   = 0x0010
	swpNoMove       = 0x0002
	swpNoSize       = 0x0001
	hwndTopmost     = ^uintptr(0)
	smCyScreen      = 1
	dtWordBreak     = 0x00000010
	colorWindow     = 5
	idcArrow        = 32512
	timerClose      = 1
	closeAfterMs    = 3000
)

type wndClassEx struct {
	CbSize        uint32
	Style         uint32
	LpfnWndProc   uintptr
	CbClsExtra    int32
	CbWndExtra    int32
	HInstance     syscall.Handle
	HIcon         syscall.Handle
	HCursor       syscall.Handle
	HbrBackground syscall.Handle
	LpszMenuName  *uint16
	LpszClassName *uint16
	HIconSm       syscall.Handle
}

type point struct {
	X, Y int32
}

type msgStruct struct {
	Hwnd    syscall.Handle
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      point
}

type rect struct {
	Left, Top, Right, Bottom int32
}

type paintStruct struct {
	Hdc         syscall.Handle
	FErase      int32
	RcPaint     rect
	FRestore    int32
	FIncUpdate  int32
	RgbReserved [32]byte
}

type popupRequest struct {
	title string
	text  string
}

var (
	popupQueue chan popupRequest
	popupOnce  sync.Once

	popupMu   sync.Mutex
	popupText string

	classRegistered bool
)

// ShowBlockingError displays a modal, blocking error dialog and returns after
// the user dismisses it.
func ShowBlockingError(title, message string) {
	titlePtr, _ := syscall.UTF16PtrFromString(title)
	msgPtr, _ := syscall.UTF16PtrFromString(message)
	const mbOK = 0x00000000
	const mbIconError = 0x00000010
	const mbSystemModal = 0x00001000
	procMessageBox.Call(0, uintptr(unsafe.Pointer(msgPtr)), uintptr(unsafe.Pointer(titlePtr)), mbOK|mbIconError|mbSystemModal)
}

// showWindowsPopup queues a popup for the single popup thread. Popups are
// shown sequentially; a full queue drops the request rather than blocking a
// capture.
func showWindowsPopup(title, text string) error {
	initPopupThread()
	select {
	case popupQueue <- popupRequest{title: title, text: text}:
	default:
		log.Printf("Popup: queue full, dropping request")
	}
	return nil
}

// initPopupThread starts the one OS thread that owns every popup window.
// Win32 windows must be serviced from their creating thread.
func initPopupThread() {
	popupOnce.Do(func() {
		popupQueue = make(chan popupRequest, 10)
		go func() {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Popup thread panic: %v", r)
				}
			}()
			if err := registerPopupClass(); err != nil {
				log.Printf("Popup: failed to register window class: %v", err)
				return
			}
			for req := range popupQueue {
				if err := showOnePopup(req); err != nil {
					log.Printf("Popup: failed to show popup: %v", err)
				}
			}
		}()
	})
}

func registerPopupClass() error {
	if classRegistered {
		return nil
	}
	className, _ := syscall.UTF16PtrFromString("SnipclipNotificationClass")
	cursor, _, _ := procLoadCursor.Call(0, idcArrow)
	wc := wndClassEx{
		CbSize:        uint32(unsafe.Sizeof(wndClassEx{})),
		LpfnWndProc:   syscall.NewCallback(popupWndProc),
		HCursor:       syscall.Handle(cursor),
		HbrBackground: syscall.Handle(colorWindow + 1),
		LpszClassName: className,
	}
	atom, _, _ := procRegisterClassEx.Call(uintptr(unsafe.Pointer(&wc)))
	if atom == 0 {
		return syscall.GetLastError()
	}
	classRegistered = true
	return nil
}

func popupWndProc(hwnd syscall.Handle, msg uint32, wParam, lParam uintptr) uintptr {
	switch msg {
	case wmPaint:
		var ps paintStruct
		hdc, _, _ := procBeginPaint.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&ps)))
		popupMu.Lock()
		text := popupText
		popupMu.Unlock()
		r := rect{Left: 10, Top: 10, Right: 390, Bottom: 90}
		textPtr, _ := syscall.UTF16PtrFromString(text)
		procDrawText.Call(hdc, uintptr(unsafe.Pointer(textPtr)), uintptr(^uint32(0)), uintptr(unsafe.Pointer(&r)), dtWordBreak)
		procEndPaint.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&ps)))
		return 0

	case wmTimer:
		if wParam == timerClose {
			procKillTimer.Call(uintptr(hwnd), timerClose)
			procDestroyWindow.Call(uintptr(hwnd))
		}
		return 0

	case wmLButtonDown, wmRButtonDown, wmNcLButtonDown, wmNcRButtonDown:
		// Any click dismisses the popup.
		procKillTimer.Call(uintptr(hwnd), timerClose)
		procDestroyWindow.Call(uintptr(hwnd))
		return 0

	case wmClose:
		procKillTimer.Call(uintptr(hwnd), timerClose)
		procDestroyWindow.Call(uintptr(hwnd))
		return 0

	case wmDestroy:
		// Post the exit marker to the thread, not the window: the window is
		// already gone and a WM_QUIT would leak into the next popup's loop.
		threadID, _, _ := procGetCurrentThreadId.Call()
		procPostThreadMessage.Call(threadID, wmExitLoop, 0, 0)
		return 0
	}
	ret, _, _ := procDefWindowProc.Call(uintptr(hwnd), uintptr(msg), wParam, lParam)
	return ret
}

func showOnePopup(req popupRequest) error {
	popupMu.Lock()
	popupText = req.title + "\n" + req.text
	popupMu.Unlock()

	className, _ := syscall.UTF16PtrFromString("SnipclipNotificationClass")
	windowName, _ := syscall.UTF16PtrFromString(req.title)

	screenHeight, _, _ := procGetSystemMetrics.Call(smCyScreen)
	x := int32(20)
	y := int32(screenHeight) - 120
	width := int32(400)
	height := int32(100)

	hwnd, _, _ := procCreateWindowEx.Call(
		wsExNoActivate|wsExToolWindow|wsExClientEdge,
		uintptr(unsafe.Pointer(className)),
		uintptr(unsafe.Pointer(windowName)),
		wsPopup|wsVisible,
		uintptr(x), uintptr(y), uintptr(width), uintptr(height),
		0, 0, 0, 0,
	)
	if hwnd == 0 {
		log.Printf("Popup: failed to create popup window")
		return nil // feedback only, never fail the capture over it
	}

	procSetWindowPos.Call(hwnd, hwndTopmost, 0, 0, 0, 0, swpNoActivate|swpNoMove|swpNoSize)
	procShowWindow.Call(hwnd, swShow)
	procUpdateWindow.Call(hwnd)
	procSetTimer.Call(hwnd, timerClose, closeAfterMs, 0)

	var m msgStruct
	for {
		ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if ret == 0 { // WM_QUIT
			break
		}
		if m.Message == wmExitLoop {
			break
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		procDispatchMessage.Call(uintptr(unsafe.Pointer(&m)))
	}

	// Flush leftovers so the next popup starts with a clean queue.
	var flush msgStruct
	for {
		ret, _, _ := procPeekMessage.Call(uintptr(unsafe.Pointer(&flush)), 0, 0, 0, 1 /* PM_REMOVE */)
		if ret == 0 {
			break
		}
	}
	return nil
}
