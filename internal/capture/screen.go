package capture

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// ScreenCapture grabs a fixed rectangle of the desktop. It works on every
// platform screenshot supports and is the fallback when the game window
// cannot be captured directly. Frame coordinates are relative to the rectangle.
type ScreenCapture struct {
	rect image.Rectangle
}

// NewScreenCapture captures rect, or the whole primary display when rect is empty
func NewScreenCapture(rect image.Rectangle) (*ScreenCapture, error) {
	if rect.Empty() {
		if screenshot.NumActiveDisplays() == 0 {
			return nil, fmt.Errorf("no active displays")
		}
		rect = screenshot.GetDisplayBounds(0)
	}
	return &ScreenCapture{rect: rect}, nil
}

// CaptureFrame grabs the rectangle
func (sc *ScreenCapture) CaptureFrame() (*image.RGBA, error) {
	img, err := screenshot.CaptureRect(sc.rect)
	if err != nil {
		return nil, fmt.Errorf("failed to capture %v: %w", sc.rect, err)
	}

	// Rebase so frame coordinates start at the rectangle origin
	if img.Rect.Min != (image.Point{}) {
		img.Rect = img.Rect.Sub(img.Rect.Min)
	}
	return img, nil
}

// GetDimensions returns the rectangle size
func (sc *ScreenCapture) GetDimensions() (width, height int) {
	return sc.rect.Dx(), sc.rect.Dy()
}

// Bounds returns the captured desktop rectangle
func (sc *ScreenCapture) Bounds() image.Rectangle {
	return sc.rect
}
