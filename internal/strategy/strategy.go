package strategy

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"jordanella.com/sortie-pilot/internal/capture"
	"jordanella.com/sortie-pilot/internal/cv"
	"jordanella.com/sortie-pilot/internal/events"
	"jordanella.com/sortie-pilot/internal/logging"
	"jordanella.com/sortie-pilot/internal/settings"
)

// FrameSource delivers frames of the target window
type FrameSource interface {
	Start() error
	Stop()
	Frame(ctx context.Context) (image.Image, error)
}

// ModeSetter is implemented by frame sources that can switch capture mode
type ModeSetter interface {
	SetMode(mode settings.CaptureMode)
}

// Injector dispatches a click at a frame coordinate
type Injector interface {
	Click(p image.Point) error
}

// DoubleClicker is implemented by injectors that support double clicks
type DoubleClicker interface {
	DoubleClick(p image.Point) error
}

// Locator finds the first visible template of a candidate list
type Locator interface {
	Locate(frame image.Image, candidates []string) (cv.Match, bool, error)
}

// Preloader loads templates ahead of the first tick
type Preloader interface {
	Preload(paths ...string) error
}

// Controller is a named strategy that can be started and stopped
type Controller interface {
	Name() string
	Profile() *Profile
	Start(ctx context.Context) error
	Stop()
	State() State
	Stats() Stats
}

// State of a strategy
type State int32

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// Stats counts what a strategy has done since it was created
type Stats struct {
	Ticks   int64
	Clicks  int64
	Skipped int64
	Last    cv.Match // most recent click
}

// Option configures a Runner or Sequence
type Option func(*base)

// WithInterval sets the delay between ticks
func WithInterval(d time.Duration) Option {
	return func(b *base) {
		if d > 0 {
			b.interval = d
		}
	}
}

// WithEventBus publishes lifecycle and click events on bus
func WithEventBus(bus events.EventBus) Option {
	return func(b *base) {
		b.bus = bus
	}
}

// WithLogger replaces the default runner:<name> logger
func WithLogger(logger *logging.Logger) Option {
	return func(b *base) {
		b.logger = logger
	}
}

// WithPreloader loads every profile template when the strategy starts
func WithPreloader(p Preloader) Option {
	return func(b *base) {
		b.preloader = p
	}
}

// base holds the collaborators and lifecycle shared by Runner and Sequence
type base struct {
	name     string
	source   FrameSource
	injector Injector
	locator  Locator
	settings *settings.Settings
	profile  *Profile

	interval  time.Duration
	bus       events.EventBus
	logger    *logging.Logger
	preloader Preloader

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}

	ticks   atomic.Int64
	clicks  atomic.Int64
	skipped atomic.Int64
	last    atomic.Pointer[cv.Match]
}

func newBase(name string, source FrameSource, injector Injector, locator Locator,
	s *settings.Settings, profile *Profile, interval time.Duration, opts []Option) *base {

	b := &base{
		name:     name,
		source:   source,
		injector: injector,
		locator:  locator,
		settings: s,
		profile:  profile,
		interval: interval,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logging.NewLogger("runner:" + name)
	}
	return b
}

// Name returns the strategy name
func (b *base) Name() string {
	return b.name
}

// Profile returns the profile the strategy runs
func (b *base) Profile() *Profile {
	return b.profile
}

// State returns whether the strategy is running
func (b *base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a copy of the counters
func (b *base) Stats() Stats {
	st := Stats{
		Ticks:   b.ticks.Load(),
		Clicks:  b.clicks.Load(),
		Skipped: b.skipped.Load(),
	}
	if m := b.last.Load(); m != nil {
		st.Last = *m
	}
	return st
}

// start validates, preloads and launches run in a goroutine. Starting a
// running strategy does nothing.
func (b *base) start(ctx context.Context, run func(ctx context.Context)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateRunning {
		return nil
	}

	if err := b.settings.Load().Validate(); err != nil {
		return fmt.Errorf("strategy %s: %w", b.name, err)
	}
	if b.preloader != nil {
		if err := b.preloader.Preload(b.profile.Paths()...); err != nil {
			return fmt.Errorf("strategy %s: failed to preload templates: %w", b.name, err)
		}
	}
	if err := b.source.Start(); err != nil {
		return fmt.Errorf("strategy %s: failed to start frame source: %w", b.name, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	b.cancel = cancel
	b.done = done
	b.state = StateRunning

	b.logger.InfoWithContext("Strategy started", map[string]interface{}{
		"profile":  b.profile.Name,
		"interval": b.interval,
	})
	b.publish(events.NewRunnerStartedEvent(b.name, b.profile.Name))

	go func() {
		defer b.finish(cancel, done)
		run(ctx)
	}()
	return nil
}

// finish runs on the loop goroutine after run returns
func (b *base) finish(cancel context.CancelFunc, done chan struct{}) {
	cancel()
	b.source.Stop()

	b.mu.Lock()
	if b.done == done {
		b.state = StateIdle
		b.cancel = nil
		b.done = nil
	}
	b.mu.Unlock()

	b.logger.InfoWithContext("Strategy stopped", map[string]interface{}{
		"ticks":  b.ticks.Load(),
		"clicks": b.clicks.Load(),
	})
	b.publish(events.NewRunnerStoppedEvent(b.name, b.ticks.Load(), b.clicks.Load()))
	close(done)
}

// Stop cancels the loop and waits for it to exit. Safe to call when idle.
// A Locate call in progress is not interrupted, so Stop can take up to one
// Locate duration; the interval wait itself ends at once. A match returned
// after Stop began is not clicked.
func (b *base) Stop() {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// frame pulls one frame after applying the current capture mode. It reports
// false when the tick should be skipped.
func (b *base) frame(ctx context.Context, snap *settings.Snapshot) (image.Image, bool) {
	if ms, ok := b.source.(ModeSetter); ok {
		ms.SetMode(snap.CaptureMode)
	}

	frame, err := b.source.Frame(ctx)
	switch {
	case ctx.Err() != nil:
		return nil, false
	case errors.Is(err, capture.ErrFrameTimeout):
		b.logger.Debug("Frame timeout, skipping tick")
		b.skip("frame timeout")
		return nil, false
	case err != nil:
		b.logger.WarnWithContext("Frame capture failed, skipping tick", map[string]interface{}{"error": err})
		b.skip("capture failed")
		return nil, false
	case frame == nil:
		b.skip("no frame")
		return nil, false
	}
	return frame, true
}

func (b *base) skip(reason string) {
	b.skipped.Add(1)
	if b.bus != nil {
		b.bus.PublishAsync(events.NewTickSkippedEvent(b.name, reason))
	}
}

// click dispatches a click unless the context was cancelled
func (b *base) click(ctx context.Context, m cv.Match, double bool) bool {
	if ctx.Err() != nil {
		return false
	}

	var err error
	if dc, ok := b.injector.(DoubleClicker); ok && double {
		err = dc.DoubleClick(m.Point)
	} else {
		err = b.injector.Click(m.Point)
	}
	if err != nil {
		b.logger.ErrorWithContext("Click failed", err, map[string]interface{}{"template": m.Template})
		return false
	}

	b.clicks.Add(1)
	b.last.Store(&m)
	b.logger.DebugWithContext("Clicked", map[string]interface{}{
		"template": m.Template,
		"x":        m.Point.X,
		"y":        m.Point.Y,
	})
	b.publish(events.NewRunnerClickedEvent(b.name, m.Template, m.Point.X, m.Point.Y))
	return true
}

func (b *base) publish(e events.Event) {
	if b.bus != nil {
		b.bus.Publish(e)
	}
}

// sleep waits d or until ctx is done and reports whether the full wait elapsed
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
