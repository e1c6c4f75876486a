package capture

import (
	"context"
	"fmt"
	"image"
	"sync"

	"jordanella.com/sortie-pilot/internal/adb"
)

// ADBCapture grabs frames from an Android device with screencap. Frames are
// in device pixels, which are the coordinates adb taps use.
type ADBCapture struct {
	ctrl *adb.Controller

	mu     sync.Mutex
	width  int
	height int
}

// NewADBCapture captures the device behind ctrl
func NewADBCapture(ctrl *adb.Controller) *ADBCapture {
	return &ADBCapture{ctrl: ctrl}
}

// CaptureFrame grabs one screencap
func (ac *ADBCapture) CaptureFrame() (*image.RGBA, error) {
	img, err := ac.ctrl.Screencap(context.Background())
	if err != nil {
		return nil, fmt.Errorf("screencap on %s: %w", ac.ctrl.Device(), err)
	}

	ac.mu.Lock()
	ac.width, ac.height = img.Bounds().Dx(), img.Bounds().Dy()
	ac.mu.Unlock()
	return img, nil
}

// GetDimensions returns the size of the last frame, asking the device when
// nothing has been captured yet
func (ac *ADBCapture) GetDimensions() (width, height int) {
	ac.mu.Lock()
	width, height = ac.width, ac.height
	ac.mu.Unlock()

	if width == 0 || height == 0 {
		if w, h, err := ac.ctrl.GetWindowSize(); err == nil {
			return w, h
		}
	}
	return width, height
}
