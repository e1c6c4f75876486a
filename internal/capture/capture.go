package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"jordanella.com/sortie-pilot/internal/logging"
	"jordanella.com/sortie-pilot/internal/settings"
)

var (
	// ErrFrameTimeout is returned when no frame arrives within the capture timeout
	ErrFrameTimeout = errors.New("no frame received within timeout")

	// ErrNotStarted is returned by Frame before Start
	ErrNotStarted = errors.New("frame source not started")

	// ErrUnsupported is returned by capturers that do not exist on this platform
	ErrUnsupported = errors.New("capture not supported on this platform")
)

const (
	DefaultTimeout      = 2 * time.Second
	DefaultGrabInterval = 20 * time.Millisecond
)

// Capturer grabs one frame of the target
type Capturer interface {
	CaptureFrame() (*image.RGBA, error)
	GetDimensions() (width, height int)
}

// Option configures a Source
type Option func(*Source)

// WithTimeout bounds how long Frame waits for a frame
func WithTimeout(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithGrabInterval sets the continuous capture period
func WithGrabInterval(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger replaces the default capture logger
func WithLogger(logger *logging.Logger) Option {
	return func(s *Source) {
		s.logger = logger
	}
}

// Source delivers frames from a Capturer in one of two modes. In single mode
// every Frame call grabs a fresh frame. In continuous mode a background loop
// grabs frames on an interval and Frame returns the most recent one.
//
// Start and Stop are reference counted so several strategies can share one
// source; the grab loop runs while at least one of them is started.
type Source struct {
	capturer Capturer
	timeout  time.Duration
	interval time.Duration
	logger   *logging.Logger

	mu       sync.Mutex
	refs     int
	mode     settings.CaptureMode
	latest   *image.RGBA
	lastErr  error
	notify   chan struct{}
	stopGrab context.CancelFunc
	grabDone chan struct{}
}

// NewSource creates a stopped source in single mode
func NewSource(capturer Capturer, opts ...Option) *Source {
	s := &Source{
		capturer: capturer,
		timeout:  DefaultTimeout,
		interval: DefaultGrabInterval,
		mode:     settings.CaptureSingle,
		notify:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewLogger("capture")
	}
	return s
}

// Start takes a reference on the source
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refs++
	if s.refs == 1 && s.mode == settings.CaptureContinuous {
		s.startGrabLocked()
	}
	return nil
}

// Stop releases a reference. The grab loop ends with the last reference.
func (s *Source) Stop() {
	s.mu.Lock()
	if s.refs == 0 {
		s.mu.Unlock()
		return
	}
	s.refs--
	var done chan struct{}
	if s.refs == 0 {
		done = s.stopGrabLocked()
	}
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Mode returns the current capture mode
func (s *Source) Mode() settings.CaptureMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches between single and continuous capture
func (s *Source) SetMode(mode settings.CaptureMode) {
	s.mu.Lock()
	if mode == s.mode {
		s.mu.Unlock()
		return
	}
	s.mode = mode

	var done chan struct{}
	if s.refs > 0 {
		if mode == settings.CaptureContinuous {
			s.startGrabLocked()
		} else {
			done = s.stopGrabLocked()
		}
	}
	s.mu.Unlock()

	if done != nil {
		<-done
	}
	s.logger.InfoWithContext("Capture mode changed", map[string]interface{}{"mode": mode.String()})
}

// Frame returns a frame, waiting at most the capture timeout
func (s *Source) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	refs, mode := s.refs, s.mode
	s.mu.Unlock()

	if refs == 0 {
		return nil, ErrNotStarted
	}

	timeout := time.NewTimer(s.timeout)
	defer timeout.Stop()

	if mode == settings.CaptureContinuous {
		return s.latestFrame(ctx, timeout.C)
	}
	return s.grabOnce(ctx, timeout.C)
}

type result struct {
	frame *image.RGBA
	err   error
}

// grabOnce runs one capture and gives up waiting for it at the deadline
func (s *Source) grabOnce(ctx context.Context, deadline <-chan time.Time) (image.Image, error) {
	ch := make(chan result, 1)
	go func() {
		frame, err := s.capturer.CaptureFrame()
		ch <- result{frame, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("failed to capture frame: %w", r.err)
		}
		if r.frame == nil {
			return nil, nil
		}
		return r.frame, nil
	case <-deadline:
		return nil, fmt.Errorf("single capture after %v: %w", s.timeout, ErrFrameTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// latestFrame returns the newest grabbed frame, waiting for the first one
func (s *Source) latestFrame(ctx context.Context, deadline <-chan time.Time) (image.Image, error) {
	for {
		s.mu.Lock()
		frame, lastErr, notify := s.latest, s.lastErr, s.notify
		s.mu.Unlock()

		if frame != nil {
			return frame, nil
		}
		if lastErr != nil {
			return nil, fmt.Errorf("failed to capture frame: %w", lastErr)
		}

		select {
		case <-notify:
		case <-deadline:
			return nil, fmt.Errorf("continuous capture after %v: %w", s.timeout, ErrFrameTimeout)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *Source) startGrabLocked() {
	if s.stopGrab != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.stopGrab = cancel
	s.grabDone = done
	go s.grabLoop(ctx, done)
}

// stopGrabLocked cancels the grab loop and returns a channel closed when it exits
func (s *Source) stopGrabLocked() chan struct{} {
	if s.stopGrab == nil {
		return nil
	}
	s.stopGrab()
	done := s.grabDone
	s.stopGrab = nil
	s.grabDone = nil
	s.latest = nil
	s.lastErr = nil
	return done
}

func (s *Source) grabLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		frame, err := s.capturer.CaptureFrame()

		s.mu.Lock()
		if ctx.Err() != nil {
			s.mu.Unlock()
			return
		}
		if err != nil {
			s.lastErr = err
		} else if frame != nil {
			s.latest = frame
			s.lastErr = nil
		}
		close(s.notify)
		s.notify = make(chan struct{})
		s.mu.Unlock()

		if err != nil {
			s.logger.DebugWithContext("Continuous capture failed", map[string]interface{}{"error": err})
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
