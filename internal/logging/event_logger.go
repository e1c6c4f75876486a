package logging

import (
	"fmt"

	"jordanella.com/sortie-pilot/internal/events"
)

// EventLogger subscribes to the event bus and logs every event it sees.
// Tick skips are logged at debug level since they happen on most idle ticks.
type EventLogger struct {
	logger          *Logger
	eventBus        events.EventBus
	subscriptionIDs []events.SubscriptionID
}

// NewEventLogger subscribes a logger to all known event types
func NewEventLogger(eventBus events.EventBus, logger *Logger) *EventLogger {
	if logger == nil {
		logger = NewLogger("events")
	}

	el := &EventLogger{
		logger:   logger,
		eventBus: eventBus,
	}
	for _, eventType := range events.AllEventTypes() {
		el.subscriptionIDs = append(el.subscriptionIDs, eventBus.Subscribe(eventType, el.handleEvent))
	}
	return el
}

func (el *EventLogger) handleEvent(event events.Event) {
	context := map[string]interface{}{
		"source": event.Source,
	}
	for k, v := range event.Data {
		context[k] = v
	}

	message := fmt.Sprintf("Event: %s", event.Type)
	switch event.Type {
	case events.EventTypeRunnerTickSkipped:
		el.logger.DebugWithContext(message, context)
	case events.EventTypeError:
		el.logger.WarnWithContext(message, context)
	default:
		el.logger.InfoWithContext(message, context)
	}
}

// Close unsubscribes from the bus
func (el *EventLogger) Close() error {
	for _, id := range el.subscriptionIDs {
		el.eventBus.Unsubscribe(id)
	}
	el.subscriptionIDs = nil
	return nil
}
