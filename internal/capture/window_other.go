//go:build !windows
// +build !windows

package capture

import (
	"fmt"
	"image"
)

// WindowCapture is only available on Windows
type WindowCapture struct{}

// NewWindowCapture always fails outside Windows
func NewWindowCapture(title string) (*WindowCapture, error) {
	return nil, fmt.Errorf("window capture of %q: %w", title, ErrUnsupported)
}

func (wc *WindowCapture) CaptureFrame() (*image.RGBA, error) {
	return nil, ErrUnsupported
}

func (wc *WindowCapture) GetDimensions() (width, height int) {
	return 0, 0
}

func (wc *WindowCapture) Handle() uintptr {
	return 0
}
