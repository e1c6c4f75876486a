package journal

import (
	"sync"

	"jordanella.com/sortie-pilot/internal/events"
	"jordanella.com/sortie-pilot/internal/logging"
)

// Recorder writes runner events from the bus into the journal
type Recorder struct {
	db     *DB
	bus    events.EventBus
	logger *logging.Logger
	subs   []events.SubscriptionID

	mu   sync.Mutex
	runs map[string]int64 // runner name -> open run ID
}

// NewRecorder subscribes to runner and error events on bus
func NewRecorder(db *DB, bus events.EventBus) *Recorder {
	r := &Recorder{
		db:     db,
		bus:    bus,
		logger: logging.NewLogger("journal"),
		runs:   make(map[string]int64),
	}

	r.subs = []events.SubscriptionID{
		bus.Subscribe(events.EventTypeRunnerStarted, r.onStarted),
		bus.Subscribe(events.EventTypeRunnerClicked, r.onClicked),
		bus.Subscribe(events.EventTypeRunnerStopped, r.onStopped),
		bus.Subscribe(events.EventTypeError, r.onError),
	}
	return r
}

// Close unsubscribes from the bus
func (r *Recorder) Close() {
	for _, id := range r.subs {
		r.bus.Unsubscribe(id)
	}
	r.subs = nil
}

// RunID returns the open run for a runner
func (r *Recorder) RunID(runner string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.runs[runner]
	return id, ok
}

func (r *Recorder) onStarted(e events.Event) {
	runner, _ := e.String("runner")
	profile, _ := e.String("profile")

	id, err := r.db.StartRun(runner, profile, e.Timestamp)
	if err != nil {
		r.logger.Error("Failed to journal run start", err)
		return
	}

	r.mu.Lock()
	r.runs[runner] = id
	r.mu.Unlock()
}

func (r *Recorder) onClicked(e events.Event) {
	runner, _ := e.String("runner")
	id, ok := r.RunID(runner)
	if !ok {
		r.logger.WarnWithContext("Click from runner without an open run", map[string]interface{}{"runner": runner})
		return
	}

	template, _ := e.String("template")
	x, _ := e.Int("x")
	y, _ := e.Int("y")
	if _, err := r.db.RecordClick(id, template, x, y, e.Timestamp); err != nil {
		r.logger.Error("Failed to journal click", err)
	}
}

func (r *Recorder) onStopped(e events.Event) {
	runner, _ := e.String("runner")

	r.mu.Lock()
	id, ok := r.runs[runner]
	delete(r.runs, runner)
	r.mu.Unlock()
	if !ok {
		return
	}

	ticks, _ := e.Int("ticks")
	clicks, _ := e.Int("clicks")
	if err := r.db.FinishRun(id, int64(ticks), int64(clicks), e.Timestamp); err != nil {
		r.logger.Error("Failed to journal run stop", err)
	}
}

func (r *Recorder) onError(e events.Event) {
	message, _ := e.String("message")

	var errText *string
	if s, ok := e.String("error"); ok {
		errText = &s
	}
	if _, err := r.db.LogError(e.Source, message, errText, e.Timestamp); err != nil {
		r.logger.Error("Failed to journal error", err)
	}
}
