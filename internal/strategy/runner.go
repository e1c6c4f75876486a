package strategy

import (
	"context"
	"time"

	"jordanella.com/sortie-pilot/internal/settings"
)

// DefaultPollInterval is the delay between runner ticks
const DefaultPollInterval = 50 * time.Millisecond

// Runner repeatedly locates the profile's candidates in fresh frames and
// clicks the first one found. The candidate list is rebuilt from the settings
// every tick, so toggle changes apply without a restart.
type Runner struct {
	*base
}

// NewRunner creates an idle runner
func NewRunner(name string, source FrameSource, injector Injector, locator Locator,
	s *settings.Settings, profile *Profile, opts ...Option) *Runner {
	return &Runner{
		base: newBase(name, source, injector, locator, s, profile, DefaultPollInterval, opts),
	}
}

// Start launches the polling loop. It returns an error if the settings are
// invalid, a template cannot be preloaded or the frame source fails to start.
// Cancelling ctx stops the runner like Stop does.
func (r *Runner) Start(ctx context.Context) error {
	return r.start(ctx, r.loop)
}

// loop pauses a full interval after every tick, however long the tick took
func (r *Runner) loop(ctx context.Context) {
	for {
		r.tick(ctx)
		if !sleep(ctx, r.interval) {
			return
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	r.ticks.Add(1)

	snap := r.settings.Load()
	frame, ok := r.frame(ctx, snap)
	if !ok {
		return
	}

	candidates := r.profile.Candidates(snap)
	match, found, err := r.locator.Locate(frame, candidates)
	if err != nil {
		r.logger.Error("Locate failed", err)
		r.skip("locate failed")
		return
	}
	if !found {
		return
	}

	r.click(ctx, match, false)
}
