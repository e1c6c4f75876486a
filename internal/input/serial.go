package input

import (
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// DefaultBaud is the rate the click firmware listens on
const DefaultBaud = 9600

// SerialInjector drives a USB HID board (Arduino Leonardo style) that moves
// the real mouse. Commands are newline terminated text such as "click:x,y".
// The board works in screen coordinates, so frame points are offset by the
// screen position of the captured area.
type SerialInjector struct {
	origin image.Point

	mu sync.Mutex
	w  io.Writer
}

// OpenSerial opens the board on port (e.g. "COM5" or "/dev/ttyACM0")
func OpenSerial(port string, baud int, origin image.Point) (*SerialInjector, io.Closer, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}

	p, err := serial.OpenPort(&serial.Config{
		Name:     port,
		Baud:     baud,
		Parity:   serial.ParityNone,
		StopBits: serial.Stop1,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open serial port %s: %w", port, err)
	}
	return NewSerialInjector(p, origin), p, nil
}

// NewSerialInjector writes board commands to w
func NewSerialInjector(w io.Writer, origin image.Point) *SerialInjector {
	return &SerialInjector{w: w, origin: origin}
}

func (s *SerialInjector) send(cmd string, p image.Point) error {
	p = p.Add(s.origin)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "%s:%d,%d\n", cmd, p.X, p.Y); err != nil {
		return fmt.Errorf("serial %s: %w", cmd, err)
	}
	return nil
}

// Click moves to p and clicks
func (s *SerialInjector) Click(p image.Point) error {
	return s.send("click", p)
}

// DoubleClick clicks twice at p
func (s *SerialInjector) DoubleClick(p image.Point) error {
	if err := s.Click(p); err != nil {
		return err
	}
	time.Sleep(DoubleClickDelay)
	return s.Click(p)
}

// Move moves the pointer to p
func (s *SerialInjector) Move(p image.Point) error {
	return s.send("move", p)
}
