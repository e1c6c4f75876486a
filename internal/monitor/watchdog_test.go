package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"jordanella.com/sortie-pilot/internal/events"
)

type report struct {
	runner, reason string
}

type recorder struct {
	mu      sync.Mutex
	reports []report
}

func (r *recorder) record(runner, reason string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report{runner, reason})
}

func (r *recorder) all() []report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]report(nil), r.reports...)
}

// fakeClock is advanced by hand
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// deliver publishes events and waits until the bus has dispatched them
func deliver(bus *events.DefaultEventBus, evs ...events.Event) {
	done := make(chan struct{})
	id := bus.Subscribe("test.flush", func(events.Event) { close(done) })
	defer bus.Unsubscribe(id)

	for _, e := range evs {
		bus.Publish(e)
	}
	bus.Publish(events.Event{Type: "test.flush"})
	<-done
}

func TestStallDetection(t *testing.T) {
	bus := events.NewEventBus(16)
	defer bus.Stop()

	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	rec := &recorder{}
	w := NewWatchdog(bus, time.Minute).WithStallThreshold(2).WithUnhealthyCallback(rec.record)
	w.now = clock.Now
	defer w.Stop()

	deliver(bus, events.NewRunnerStartedEvent("combat", "combat"), events.NewRunnerStartedEvent("5-2", "5-2"))
	if w.Tracking() != 2 {
		t.Fatalf("expected 2 tracked runners, got %d", w.Tracking())
	}

	clock.Advance(30 * time.Second)
	w.checkStalls()
	if len(rec.all()) != 0 {
		t.Fatalf("expected no report while active, got %v", rec.all())
	}

	// combat keeps clicking, 5-2 goes quiet
	clock.Advance(45 * time.Second)
	deliver(bus, events.NewRunnerClickedEvent("combat", "common/next.png", 1, 1))
	w.checkStalls()
	if len(rec.all()) != 0 {
		t.Fatalf("expected threshold not reached, got %v", rec.all())
	}

	clock.Advance(10 * time.Second)
	w.checkStalls()
	got := rec.all()
	if len(got) != 1 || got[0] != (report{"5-2", "runner_stalled"}) {
		t.Fatalf("expected 5-2 stalled, got %v", got)
	}

	// Stopped runners are forgotten
	deliver(bus, events.NewRunnerStoppedEvent("5-2", 10, 0))
	clock.Advance(10 * time.Minute)
	deliver(bus, events.NewRunnerClickedEvent("combat", "common/next.png", 1, 1))
	w.checkStalls()
	w.checkStalls()
	if len(rec.all()) != 1 {
		t.Errorf("expected no further reports, got %v", rec.all())
	}
	if w.Tracking() != 1 {
		t.Errorf("expected 1 tracked runner, got %d", w.Tracking())
	}
}

func TestStallDisabled(t *testing.T) {
	bus := events.NewEventBus(16)
	defer bus.Stop()

	rec := &recorder{}
	w := NewWatchdog(bus, 0).WithStallThreshold(1).WithUnhealthyCallback(rec.record)
	defer w.Stop()

	deliver(bus, events.NewRunnerStartedEvent("combat", "combat"))
	w.now = func() time.Time { return time.Now().Add(time.Hour) }
	w.checkStalls()
	if len(rec.all()) != 0 {
		t.Errorf("expected no reports with stall detection off, got %v", rec.all())
	}
}

func TestHealthChecks(t *testing.T) {
	bus := events.NewEventBus(16)

	var mu sync.Mutex
	var errorsSeen []string
	bus.Subscribe(events.EventTypeError, func(e events.Event) {
		mu.Lock()
		defer mu.Unlock()
		msg, _ := e.String("message")
		errorsSeen = append(errorsSeen, msg)
	})

	rec := &recorder{}
	w := NewWatchdog(bus, time.Minute).
		WithCheckInterval(5 * time.Millisecond).
		WithUnhealthyCallback(rec.record).
		WithHealthCheck(HealthCheck{Name: "adb", Check: func(ctx context.Context) error { return errors.New("device offline") }}).
		WithHealthCheck(HealthCheck{Name: "window", Check: func(ctx context.Context) error { return nil }})
	w.Start()

	deadline := time.Now().Add(2 * time.Second)
	for len(rec.all()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	w.Stop()
	bus.Stop()

	got := rec.all()
	if len(got) == 0 {
		t.Fatal("expected a health check failure report")
	}
	for _, r := range got {
		if r != (report{"", "adb_unreachable"}) {
			t.Errorf("unexpected report %v", r)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(errorsSeen) == 0 || errorsSeen[0] != "adb_unreachable" {
		t.Errorf("expected error events, got %v", errorsSeen)
	}
}
