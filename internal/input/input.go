// Package input delivers synthetic clicks to the game client. All points are
// in the client coordinate space of the captured frame.
package input

import (
	"errors"
	"image"
	"time"
)

// ErrUnsupported is returned by injectors that do not exist on this platform
var ErrUnsupported = errors.New("input injection not supported on this platform")

const (
	// ClickDelay is the hold time between button down and up
	ClickDelay = 50 * time.Millisecond

	// DoubleClickDelay separates the two clicks of a double click
	DoubleClickDelay = 100 * time.Millisecond

	DefaultMoveSteps = 30
	DefaultMoveDelay = 10 * time.Millisecond
)

// Injector performs mouse actions against the target
type Injector interface {
	Click(p image.Point) error
	DoubleClick(p image.Point) error
	Move(p image.Point) error
}

// SmoothMove walks the pointer from one point to another in equal steps
func SmoothMove(inj Injector, from, to image.Point, steps int, delay time.Duration) error {
	if steps <= 0 {
		steps = DefaultMoveSteps
	}

	for i := 1; i <= steps; i++ {
		p := image.Point{
			X: from.X + (to.X-from.X)*i/steps,
			Y: from.Y + (to.Y-from.Y)*i/steps,
		}
		if err := inj.Move(p); err != nil {
			return err
		}
		if delay > 0 && i < steps {
			time.Sleep(delay)
		}
	}
	return nil
}
