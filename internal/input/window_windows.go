//go:build windows
// +build windows

package input

import (
	"fmt"
	"image"
	"sync"
	"syscall"
	"time"

	"github.com/lxn/win"
)

// WindowMouse posts mouse messages straight to a window, so clicks land
// without moving the real cursor or bringing the window to the foreground.
type WindowMouse struct {
	title string

	mu    sync.Mutex
	hwnd  win.HWND
	scale float64
}

// NewWindowMouse creates an injector for the window with this title
func NewWindowMouse(title string) (*WindowMouse, error) {
	wm := &WindowMouse{title: title}
	if _, err := wm.handle(); err != nil {
		return nil, err
	}
	return wm, nil
}

// handle returns a live window handle, looking it up again when the window
// was closed and reopened
func (wm *WindowMouse) handle() (win.HWND, error) {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	if wm.hwnd != 0 && win.IsWindow(wm.hwnd) {
		return wm.hwnd, nil
	}

	titlePtr, err := syscall.UTF16PtrFromString(wm.title)
	if err != nil {
		return 0, err
	}
	hwnd := win.FindWindow(nil, titlePtr)
	if hwnd == 0 {
		wm.hwnd = 0
		return 0, fmt.Errorf("window not found: %s", wm.title)
	}

	wm.hwnd = hwnd
	wm.scale = dpiScale(hwnd)
	return hwnd, nil
}

// dpiScale returns the window's logical DPI relative to 96
func dpiScale(hwnd win.HWND) float64 {
	hdc := win.GetDC(hwnd)
	if hdc == 0 {
		return 1
	}
	defer win.ReleaseDC(hwnd, hdc)

	dpi := win.GetDeviceCaps(hdc, win.LOGPIXELSX)
	if dpi <= 0 {
		return 1
	}
	return float64(dpi) / 96
}

// lParam packs client coordinates corrected for display scaling
func (wm *WindowMouse) lParam(p image.Point) uintptr {
	wm.mu.Lock()
	scale := wm.scale
	wm.mu.Unlock()
	if scale <= 0 {
		scale = 1
	}

	x := int(float64(p.X) / scale)
	y := int(float64(p.Y) / scale)
	return uintptr(uint32(y&0xFFFF)<<16 | uint32(x&0xFFFF))
}

func (wm *WindowMouse) post(hwnd win.HWND, msg uint32, wParam, lParam uintptr) error {
	if win.PostMessage(hwnd, msg, wParam, lParam) == 0 {
		return fmt.Errorf("PostMessage 0x%04x to %s failed", msg, wm.title)
	}
	return nil
}

// Click presses and releases the left button at p
func (wm *WindowMouse) Click(p image.Point) error {
	hwnd, err := wm.handle()
	if err != nil {
		return err
	}

	lp := wm.lParam(p)
	if err := wm.post(hwnd, win.WM_LBUTTONDOWN, win.MK_LBUTTON, lp); err != nil {
		return err
	}
	time.Sleep(ClickDelay)
	return wm.post(hwnd, win.WM_LBUTTONUP, 0, lp)
}

// DoubleClick clicks twice at p
func (wm *WindowMouse) DoubleClick(p image.Point) error {
	if err := wm.Click(p); err != nil {
		return err
	}
	time.Sleep(DoubleClickDelay)
	return wm.Click(p)
}

// Move sends a pointer move to p with no buttons held
func (wm *WindowMouse) Move(p image.Point) error {
	hwnd, err := wm.handle()
	if err != nil {
		return err
	}
	return wm.post(hwnd, win.WM_MOUSEMOVE, 0, wm.lParam(p))
}
