//go:build windows
// +build windows

package capture

import (
	"fmt"
	"image"
	"sync"
	"syscall"
	"unsafe"

	"github.com/lxn/win"
)

// WindowCapture copies the client area of a top level window found by title.
// The handle is looked up again when the window goes away, so the game client
// can be restarted under the same title.
type WindowCapture struct {
	title string

	mu     sync.Mutex
	hwnd   win.HWND
	width  int
	height int
}

// FindWindow returns the handle of the top level window with this title
func FindWindow(title string) (win.HWND, error) {
	titlePtr, err := syscall.UTF16PtrFromString(title)
	if err != nil {
		return 0, err
	}

	hwnd := win.FindWindow(nil, titlePtr)
	if hwnd == 0 {
		return 0, fmt.Errorf("window not found: %s", title)
	}
	return hwnd, nil
}

// NewWindowCapture creates a capturer for the window with this title
func NewWindowCapture(title string) (*WindowCapture, error) {
	wc := &WindowCapture{title: title}
	if err := wc.refresh(); err != nil {
		return nil, err
	}
	return wc, nil
}

// refresh re-resolves a stale handle and reads the client size.
// Caller must not hold mu.
func (wc *WindowCapture) refresh() error {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return wc.refreshLocked()
}

func (wc *WindowCapture) refreshLocked() error {
	if wc.hwnd == 0 || !win.IsWindow(wc.hwnd) {
		hwnd, err := FindWindow(wc.title)
		if err != nil {
			return err
		}
		wc.hwnd = hwnd
	}

	var rect win.RECT
	if !win.GetClientRect(wc.hwnd, &rect) {
		return fmt.Errorf("failed to get client rect of %s", wc.title)
	}

	width := int(rect.Right - rect.Left)
	height := int(rect.Bottom - rect.Top)
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid window dimensions: %dx%d", width, height)
	}
	wc.width, wc.height = width, height
	return nil
}

// CaptureFrame copies the window's client area into an RGBA image
func (wc *WindowCapture) CaptureFrame() (*image.RGBA, error) {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	// Picks up resizes and restarts of the client
	if err := wc.refreshLocked(); err != nil {
		return nil, err
	}
	width, height := int32(wc.width), int32(wc.height)

	hdcWindow := win.GetDC(wc.hwnd)
	if hdcWindow == 0 {
		return nil, fmt.Errorf("failed to get window DC")
	}
	defer win.ReleaseDC(wc.hwnd, hdcWindow)

	hdcMem := win.CreateCompatibleDC(hdcWindow)
	if hdcMem == 0 {
		return nil, fmt.Errorf("failed to create compatible DC")
	}
	defer win.DeleteDC(hdcMem)

	hBitmap := win.CreateCompatibleBitmap(hdcWindow, width, height)
	if hBitmap == 0 {
		return nil, fmt.Errorf("failed to create compatible bitmap")
	}
	defer win.DeleteObject(win.HGDIOBJ(hBitmap))

	old := win.SelectObject(hdcMem, win.HGDIOBJ(hBitmap))
	defer win.SelectObject(hdcMem, old)

	if !win.BitBlt(hdcMem, 0, 0, width, height, hdcWindow, 0, 0, win.SRCCOPY) {
		return nil, fmt.Errorf("BitBlt failed")
	}

	var bi win.BITMAPINFO
	bi.BmiHeader.BiSize = uint32(unsafe.Sizeof(bi.BmiHeader))
	bi.BmiHeader.BiWidth = width
	bi.BmiHeader.BiHeight = -height // top-down rows
	bi.BmiHeader.BiPlanes = 1
	bi.BmiHeader.BiBitCount = 32
	bi.BmiHeader.BiCompression = win.BI_RGB

	img := image.NewRGBA(image.Rect(0, 0, wc.width, wc.height))
	if win.GetDIBits(hdcMem, hBitmap, 0, uint32(height), &img.Pix[0], &bi, win.DIB_RGB_COLORS) == 0 {
		return nil, fmt.Errorf("GetDIBits failed")
	}

	// BGRA to RGBA; GDI leaves alpha undefined
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+2] = img.Pix[i+2], img.Pix[i]
		img.Pix[i+3] = 0xff
	}
	return img, nil
}

// GetDimensions returns the client size seen by the last capture
func (wc *WindowCapture) GetDimensions() (width, height int) {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return wc.width, wc.height
}

// Handle returns the current window handle
func (wc *WindowCapture) Handle() uintptr {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return uintptr(wc.hwnd)
}
