// Package monitor watches running strategies for stalls and checks that the
// target is still reachable.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jordanella.com/sortie-pilot/internal/events"
	"jordanella.com/sortie-pilot/internal/logging"
)

// HealthCheck checks that a collaborator is still usable
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// UnhealthyCallback is called when a runner stalls or a health check fails.
// runner is empty for health check failures.
type UnhealthyCallback func(runner, reason string, err error)

// Watchdog tracks runner activity from the event bus. A running strategy that
// has not clicked for stallTimeout on stallThreshold consecutive checks is
// reported as stalled.
type Watchdog struct {
	bus    events.EventBus
	subs   []events.SubscriptionID
	logger *logging.Logger

	stallTimeout   time.Duration
	stallThreshold int
	checkInterval  time.Duration
	checkTimeout   time.Duration
	checks         []HealthCheck
	onUnhealthy    UnhealthyCallback
	now            func() time.Time

	mu      sync.Mutex
	runners map[string]*activity

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type activity struct {
	last       time.Time
	stuckCount int
}

// NewWatchdog creates a watchdog reporting runners idle for longer than stallTimeout
func NewWatchdog(bus events.EventBus, stallTimeout time.Duration) *Watchdog {
	w := &Watchdog{
		bus:            bus,
		logger:         logging.NewLogger("watchdog"),
		stallTimeout:   stallTimeout,
		stallThreshold: 3,
		checkInterval:  10 * time.Second,
		checkTimeout:   5 * time.Second,
		now:            time.Now,
		runners:        make(map[string]*activity),
	}

	w.subs = []events.SubscriptionID{
		bus.Subscribe(events.EventTypeRunnerStarted, w.onStarted),
		bus.Subscribe(events.EventTypeRunnerClicked, w.onClicked),
		bus.Subscribe(events.EventTypeRunnerStopped, w.onStopped),
	}
	return w
}

// WithUnhealthyCallback sets the callback for unhealthy events
func (w *Watchdog) WithUnhealthyCallback(callback UnhealthyCallback) *Watchdog {
	w.onUnhealthy = callback
	return w
}

// WithCheckInterval sets how often stalls and health checks run
func (w *Watchdog) WithCheckInterval(interval time.Duration) *Watchdog {
	if interval > 0 {
		w.checkInterval = interval
	}
	return w
}

// WithStallThreshold sets how many consecutive idle checks make a stall
func (w *Watchdog) WithStallThreshold(n int) *Watchdog {
	if n > 0 {
		w.stallThreshold = n
	}
	return w
}

// WithHealthCheck adds a reachability check run on every interval
func (w *Watchdog) WithHealthCheck(p HealthCheck) *Watchdog {
	w.checks = append(w.checks, p)
	return w
}

// Start begins monitoring
func (w *Watchdog) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.wg.Add(1)
	go w.loop(ctx)
}

// Stop ends monitoring and unsubscribes from the bus
func (w *Watchdog) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()

	for _, id := range w.subs {
		w.bus.Unsubscribe(id)
	}
	w.subs = nil
}

// Tracking returns the number of running strategies being watched
func (w *Watchdog) Tracking() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.runners)
}

func (w *Watchdog) onStarted(e events.Event) {
	runner, _ := e.String("runner")
	w.mu.Lock()
	defer w.mu.Unlock()
	w.runners[runner] = &activity{last: w.now()}
}

func (w *Watchdog) onClicked(e events.Event) {
	runner, _ := e.String("runner")
	w.mu.Lock()
	defer w.mu.Unlock()
	if a, ok := w.runners[runner]; ok {
		a.last = w.now()
		a.stuckCount = 0
	}
}

func (w *Watchdog) onStopped(e events.Event) {
	runner, _ := e.String("runner")
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.runners, runner)
}

func (w *Watchdog) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.checkStalls()
			w.runHealthChecks(ctx)
		}
	}
}

// checkStalls counts idle checks per runner and reports those over the threshold
func (w *Watchdog) checkStalls() {
	if w.stallTimeout <= 0 {
		return
	}

	type stall struct {
		runner string
		idle   time.Duration
	}
	var stalled []stall

	w.mu.Lock()
	now := w.now()
	for runner, a := range w.runners {
		idle := now.Sub(a.last)
		if idle <= w.stallTimeout {
			a.stuckCount = 0
			continue
		}

		a.stuckCount++
		if a.stuckCount >= w.stallThreshold {
			stalled = append(stalled, stall{runner, idle})
			// Reset counter after reporting
			a.stuckCount = 0
		}
	}
	w.mu.Unlock()

	for _, s := range stalled {
		w.report(s.runner, "runner_stalled", fmt.Errorf("no click for %v", s.idle.Round(time.Second)))
	}
}

func (w *Watchdog) runHealthChecks(ctx context.Context) {
	for _, p := range w.checks {
		pctx, cancel := context.WithTimeout(ctx, w.checkTimeout)
		err := p.Check(pctx)
		cancel()

		if err != nil && ctx.Err() == nil {
			w.report("", p.Name+"_unreachable", err)
		}
	}
}

func (w *Watchdog) report(runner, reason string, err error) {
	w.logger.WarnWithContext("Unhealthy", map[string]interface{}{
		"runner": runner,
		"reason": reason,
		"error":  err,
	})

	source := "watchdog"
	if runner != "" {
		source = "runner:" + runner
	}
	w.bus.PublishAsync(events.NewErrorEvent(source, reason, err))

	if w.onUnhealthy != nil {
		w.onUnhealthy(runner, reason, err)
	}
}
