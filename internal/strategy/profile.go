package strategy

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"jordanella.com/sortie-pilot/internal/settings"
)

// Profile describes what a strategy looks for. A polling profile has a base
// candidate list plus toggle-driven options; a scripted profile has steps
// that are worked through once in order.
type Profile struct {
	Name    string         `yaml:"name"`
	Base    []string       `yaml:"base,omitempty"`
	Options []ToggleOption `yaml:"options,omitempty"`
	Steps   []Step         `yaml:"steps,omitempty"`
}

// ToggleOption appends Enabled when its toggle is enabled and Disabled (if any)
// when it is disabled. An unset toggle appends nothing.
type ToggleOption struct {
	Toggle   string `yaml:"toggle"`
	Enabled  string `yaml:"enabled"`
	Disabled string `yaml:"disabled,omitempty"`
}

// Step waits for a template, clicks it and then pauses
type Step struct {
	Template    string        `yaml:"template"`
	Wait        time.Duration `yaml:"wait,omitempty"`
	DoubleClick bool          `yaml:"double_click,omitempty"`
	// When names a toggle; the step only runs while it is enabled
	When string `yaml:"when,omitempty"`
}

// DefaultStepWait is the pause after a step's click when none is configured
const DefaultStepWait = 500 * time.Millisecond

// DefaultProfile returns the combat polling profile
func DefaultProfile() *Profile {
	return &Profile{
		Name: "combat",
		Base: []string{
			"combat/compass.png",
			"combat/line_ahead.png",
			"common/next.png",
			"common/return.png",
		},
		Options: []ToggleOption{
			{Toggle: "march", Enabled: "combat/advance.png", Disabled: "combat/retreat.png"},
			{Toggle: "night_battle", Enabled: "combat/engage_night_battle.png", Disabled: "combat/skip_night_battle.png"},
		},
	}
}

// LoadProfile reads and validates a YAML profile
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile YAML: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	return &p, nil
}

// Validate checks that the profile is usable
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if p.Scripted() && (len(p.Base) > 0 || len(p.Options) > 0) {
		return fmt.Errorf("steps cannot be combined with base or options")
	}
	if !p.Scripted() && len(p.Base) == 0 && len(p.Options) == 0 {
		return fmt.Errorf("no templates configured")
	}

	for i, path := range p.Base {
		if path == "" {
			return fmt.Errorf("base entry %d: path cannot be empty", i+1)
		}
	}
	for i, opt := range p.Options {
		if opt.Toggle == "" {
			return fmt.Errorf("option %d: toggle cannot be empty", i+1)
		}
		if opt.Enabled == "" {
			return fmt.Errorf("option %d (%s): enabled path cannot be empty", i+1, opt.Toggle)
		}
	}
	for i, step := range p.Steps {
		if step.Template == "" {
			return fmt.Errorf("step %d: template cannot be empty", i+1)
		}
		if step.Wait < 0 {
			return fmt.Errorf("step %d (%s): negative wait", i+1, step.Template)
		}
	}
	return nil
}

// Scripted reports whether the profile runs steps instead of polling
func (p *Profile) Scripted() bool {
	return len(p.Steps) > 0
}

// Candidates builds the ordered candidate list for a settings snapshot
func (p *Profile) Candidates(snap *settings.Snapshot) []string {
	candidates := make([]string, 0, len(p.Base)+len(p.Options))
	candidates = append(candidates, p.Base...)

	for _, opt := range p.Options {
		switch snap.Toggle(opt.Toggle) {
		case settings.Enabled:
			candidates = append(candidates, opt.Enabled)
		case settings.Disabled:
			if opt.Disabled != "" {
				candidates = append(candidates, opt.Disabled)
			}
		}
	}
	return candidates
}

// Paths returns every template the profile can reference, without duplicates
func (p *Profile) Paths() []string {
	seen := make(map[string]bool)
	var paths []string
	add := func(path string) {
		if path != "" && !seen[path] {
			seen[path] = true
			paths = append(paths, path)
		}
	}

	for _, path := range p.Base {
		add(path)
	}
	for _, opt := range p.Options {
		add(opt.Enabled)
		add(opt.Disabled)
	}
	for _, step := range p.Steps {
		add(step.Template)
	}
	return paths
}

// Toggles returns the toggle names the profile reads
func (p *Profile) Toggles() []string {
	var names []string
	for _, opt := range p.Options {
		names = append(names, opt.Toggle)
	}
	for _, step := range p.Steps {
		if step.When != "" {
			names = append(names, step.When)
		}
	}
	return names
}
