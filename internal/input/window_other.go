//go:build !windows
// +build !windows

package input

import (
	"fmt"
	"image"
)

// WindowMouse is only available on Windows
type WindowMouse struct{}

// NewWindowMouse always fails outside Windows
func NewWindowMouse(title string) (*WindowMouse, error) {
	return nil, fmt.Errorf("window mouse for %q: %w", title, ErrUnsupported)
}

func (wm *WindowMouse) Click(p image.Point) error       { return ErrUnsupported }
func (wm *WindowMouse) DoubleClick(p image.Point) error { return ErrUnsupported }
func (wm *WindowMouse) Move(p image.Point) error        { return ErrUnsupported }
