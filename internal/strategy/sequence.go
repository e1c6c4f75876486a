package strategy

import (
	"context"
	"sync"
	"time"

	"jordanella.com/sortie-pilot/internal/settings"
)

// DefaultStepPoll is how often a sequence looks for the current step's template
const DefaultStepPoll = 100 * time.Millisecond

// Sequence works through a scripted profile once: for each step it waits until
// the template is visible, clicks it and pauses. It stops by itself after the
// last step.
type Sequence struct {
	*base

	stepMu  sync.Mutex
	current string
}

// NewSequence creates an idle sequence for a profile with steps
func NewSequence(name string, source FrameSource, injector Injector, locator Locator,
	s *settings.Settings, profile *Profile, opts ...Option) *Sequence {
	return &Sequence{
		base: newBase(name, source, injector, locator, s, profile, DefaultStepPoll, opts),
	}
}

// Start launches the sequence from its first step
func (q *Sequence) Start(ctx context.Context) error {
	return q.start(ctx, q.run)
}

// Current returns the template the sequence is waiting for, empty when idle
func (q *Sequence) Current() string {
	q.stepMu.Lock()
	defer q.stepMu.Unlock()
	return q.current
}

func (q *Sequence) setCurrent(template string) {
	q.stepMu.Lock()
	q.current = template
	q.stepMu.Unlock()
}

func (q *Sequence) run(ctx context.Context) {
	defer q.setCurrent("")

	for i, step := range q.profile.Steps {
		if step.When != "" && q.settings.Load().Toggle(step.When) != settings.Enabled {
			q.logger.DebugWithContext("Skipping step", map[string]interface{}{
				"step":     i + 1,
				"template": step.Template,
				"when":     step.When,
			})
			continue
		}

		q.setCurrent(step.Template)
		if !q.waitAndClick(ctx, step) {
			return
		}

		wait := step.Wait
		if wait == 0 {
			wait = DefaultStepWait
		}
		if !sleep(ctx, wait) {
			return
		}
	}
	q.logger.Info("Sequence complete")
}

// waitAndClick polls until the step's template is located and clicked. It
// returns false when the context ends first.
func (q *Sequence) waitAndClick(ctx context.Context, step Step) bool {
	candidates := []string{step.Template}

	for {
		if !sleep(ctx, q.interval) {
			return false
		}
		q.ticks.Add(1)

		frame, ok := q.frame(ctx, q.settings.Load())
		if !ok {
			continue
		}

		match, found, err := q.locator.Locate(frame, candidates)
		if err != nil {
			q.logger.Error("Locate failed", err)
			q.skip("locate failed")
			continue
		}
		if !found {
			continue
		}

		if q.click(ctx, match, step.DoubleClick) {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
	}
}
