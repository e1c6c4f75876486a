package input

import (
	"fmt"
	"image"
	"time"

	"jordanella.com/sortie-pilot/internal/adb"
)

// ADBInjector taps an Android device through adb. Frame points are multiplied
// by scale to get device pixels, for captures that are not taken at device
// resolution.
type ADBInjector struct {
	ctrl  *adb.Controller
	scale float64
}

// NewADBInjector creates an injector for ctrl. A scale of zero means 1.
func NewADBInjector(ctrl *adb.Controller, scale float64) *ADBInjector {
	if scale <= 0 {
		scale = 1
	}
	return &ADBInjector{ctrl: ctrl, scale: scale}
}

func (a *ADBInjector) device(p image.Point) (int, int) {
	return int(float64(p.X)*a.scale + 0.5), int(float64(p.Y)*a.scale + 0.5)
}

// Click taps once
func (a *ADBInjector) Click(p image.Point) error {
	x, y := a.device(p)
	if err := a.ctrl.Tap(x, y); err != nil {
		return fmt.Errorf("tap at %d,%d: %w", x, y, err)
	}
	return nil
}

// DoubleClick taps twice
func (a *ADBInjector) DoubleClick(p image.Point) error {
	if err := a.Click(p); err != nil {
		return err
	}
	time.Sleep(DoubleClickDelay)
	return a.Click(p)
}

// Move has no equivalent on a touch screen and does nothing
func (a *ADBInjector) Move(p image.Point) error {
	return nil
}
