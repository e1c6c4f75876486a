package events

import "time"

// EventType represents different types of events in the system
type EventType string

const (
	// Runner lifecycle
	EventTypeRunnerStarted EventType = "runner.started"
	EventTypeRunnerStopped EventType = "runner.stopped"

	// Runner activity
	EventTypeRunnerClicked     EventType = "runner.clicked"
	EventTypeRunnerTickSkipped EventType = "runner.tick_skipped"

	// Settings changes made through the console
	EventTypeSettingsChanged EventType = "settings.changed"

	EventTypeError EventType = "error"
)

// AllEventTypes lists every event type the system publishes
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeRunnerStarted,
		EventTypeRunnerStopped,
		EventTypeRunnerClicked,
		EventTypeRunnerTickSkipped,
		EventTypeSettingsChanged,
		EventTypeError,
	}
}

// Event represents a system event with metadata
type Event struct {
	Type      EventType              // Type of event
	Source    string                 // Component that emitted the event, e.g. "runner:combat"
	Timestamp time.Time              // When the event occurred
	Data      map[string]interface{} // Event-specific data
}

// EventHandler is a function that processes an event
type EventHandler func(Event)

// SubscriptionID uniquely identifies a subscription
type SubscriptionID int64

// EventBus defines the interface for event pub/sub
type EventBus interface {
	// Subscribe registers a handler for a specific event type
	Subscribe(eventType EventType, handler EventHandler) SubscriptionID

	// Unsubscribe removes a subscription by ID
	Unsubscribe(id SubscriptionID)

	// Publish queues an event, blocking until there is room
	Publish(event Event)

	// PublishAsync queues an event without blocking the caller
	PublishAsync(event Event)

	// Stop stops the event bus and drains remaining events
	Stop()
}

// NewRunnerStartedEvent creates a runner started event
func NewRunnerStartedEvent(runner, profile string) Event {
	return Event{
		Type:      EventTypeRunnerStarted,
		Source:    "runner:" + runner,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"runner":  runner,
			"profile": profile,
		},
	}
}

// NewRunnerStoppedEvent creates a runner stopped event
func NewRunnerStoppedEvent(runner string, ticks, clicks int64) Event {
	return Event{
		Type:      EventTypeRunnerStopped,
		Source:    "runner:" + runner,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"runner": runner,
			"ticks":  ticks,
			"clicks": clicks,
		},
	}
}

// NewRunnerClickedEvent creates a click event for a located template
func NewRunnerClickedEvent(runner, template string, x, y int) Event {
	return Event{
		Type:      EventTypeRunnerClicked,
		Source:    "runner:" + runner,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"runner":   runner,
			"template": template,
			"x":        x,
			"y":        y,
		},
	}
}

// NewTickSkippedEvent creates an event for a tick that could not run
func NewTickSkippedEvent(runner, reason string) Event {
	return Event{
		Type:      EventTypeRunnerTickSkipped,
		Source:    "runner:" + runner,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"runner": runner,
			"reason": reason,
		},
	}
}

// NewSettingsChangedEvent creates an event for a published settings snapshot
func NewSettingsChangedEvent(version uint64, change string) Event {
	return Event{
		Type:      EventTypeSettingsChanged,
		Source:    "console",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"version": version,
			"change":  change,
		},
	}
}

// NewErrorEvent creates an error event
func NewErrorEvent(source, message string, err error) Event {
	data := map[string]interface{}{
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	return Event{
		Type:      EventTypeError,
		Source:    source,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// Int reads an integer field from event data
func (e Event) Int(key string) (int, bool) {
	switch v := e.Data[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	}
	return 0, false
}

// String reads a string field from event data
func (e Event) String(key string) (string, bool) {
	s, ok := e.Data[key].(string)
	return s, ok
}
