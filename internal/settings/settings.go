package settings

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrInvalidValue is returned when a capture mode or toggle value cannot be parsed
var ErrInvalidValue = errors.New("invalid settings value")

// CaptureMode selects how frames are acquired from the target window
type CaptureMode int

const (
	// CaptureSingle grabs one frame on demand, blocking up to the capture timeout
	CaptureSingle CaptureMode = iota
	// CaptureContinuous keeps grabbing in the background and serves the latest frame
	CaptureContinuous
)

func (m CaptureMode) String() string {
	switch m {
	case CaptureSingle:
		return "single"
	case CaptureContinuous:
		return "continuous"
	default:
		return fmt.Sprintf("CaptureMode(%d)", int(m))
	}
}

// Valid reports whether m is a known capture mode
func (m CaptureMode) Valid() bool {
	return m == CaptureSingle || m == CaptureContinuous
}

// ParseCaptureMode parses "single" or "continuous" (case-insensitive)
func ParseCaptureMode(s string) (CaptureMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single", "single capture":
		return CaptureSingle, nil
	case "continuous", "continuous capture":
		return CaptureContinuous, nil
	}
	return CaptureSingle, fmt.Errorf("%w: capture mode %q", ErrInvalidValue, s)
}

// TriState is an optional behavior switch. Unset removes the behavior entirely.
type TriState int

const (
	Unset TriState = iota
	Enabled
	Disabled
)

func (t TriState) String() string {
	switch t {
	case Unset:
		return "unset"
	case Enabled:
		return "enabled"
	case Disabled:
		return "disabled"
	default:
		return fmt.Sprintf("TriState(%d)", int(t))
	}
}

// Valid reports whether t is one of the three known states
func (t TriState) Valid() bool {
	return t == Unset || t == Enabled || t == Disabled
}

// ParseTriState accepts enabled/disabled/unset and the usual boolean spellings
func ParseTriState(s string) (TriState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unset", "none", "-":
		return Unset, nil
	case "enabled", "enable", "on", "true", "yes", "1":
		return Enabled, nil
	case "disabled", "disable", "off", "false", "no", "0":
		return Disabled, nil
	}
	return Unset, fmt.Errorf("%w: toggle value %q", ErrInvalidValue, s)
}

// Snapshot is an immutable view of the settings at one version.
// Readers hold on to a snapshot for a whole tick.
type Snapshot struct {
	Version     uint64
	CaptureMode CaptureMode
	toggles     map[string]TriState
}

// Toggle returns the state of a named toggle, Unset when it was never set
func (s *Snapshot) Toggle(name string) TriState {
	return s.toggles[name]
}

// Toggles returns a copy of all toggles that have been set
func (s *Snapshot) Toggles() map[string]TriState {
	out := make(map[string]TriState, len(s.toggles))
	for k, v := range s.toggles {
		out[k] = v
	}
	return out
}

// ToggleNames returns the set toggle names in sorted order
func (s *Snapshot) ToggleNames() []string {
	names := make([]string, 0, len(s.toggles))
	for k := range s.toggles {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every field holds a known value
func (s *Snapshot) Validate() error {
	if !s.CaptureMode.Valid() {
		return fmt.Errorf("%w: capture mode %d", ErrInvalidValue, int(s.CaptureMode))
	}
	for name, v := range s.toggles {
		if !v.Valid() {
			return fmt.Errorf("%w: toggle %s=%d", ErrInvalidValue, name, int(v))
		}
	}
	return nil
}

// Draft is a mutable copy handed to Update callbacks
type Draft struct {
	CaptureMode CaptureMode
	Toggles     map[string]TriState
}

// Settings is shared between the control surface (writer) and any number of
// runners (readers). Reads are lock-free; every write publishes a new snapshot.
type Settings struct {
	current atomic.Pointer[Snapshot]
	writeMu sync.Mutex
}

// New creates settings with the given capture mode and initial toggles
func New(mode CaptureMode, toggles map[string]TriState) *Settings {
	s := &Settings{}
	snap := &Snapshot{
		Version:     1,
		CaptureMode: mode,
		toggles:     make(map[string]TriState, len(toggles)),
	}
	for k, v := range toggles {
		snap.toggles[k] = v
	}
	s.current.Store(snap)
	return s
}

// Load returns the current snapshot
func (s *Settings) Load() *Snapshot {
	return s.current.Load()
}

// Update applies fn to a copy of the current settings and publishes the result
// atomically. If fn returns an error or leaves an invalid value, nothing changes.
func (s *Settings) Update(fn func(d *Draft) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	old := s.current.Load()
	d := &Draft{
		CaptureMode: old.CaptureMode,
		Toggles:     old.Toggles(),
	}
	if err := fn(d); err != nil {
		return err
	}

	next := &Snapshot{
		Version:     old.Version + 1,
		CaptureMode: d.CaptureMode,
		toggles:     d.Toggles,
	}
	if next.toggles == nil {
		next.toggles = make(map[string]TriState)
	}
	if err := next.Validate(); err != nil {
		return err
	}

	s.current.Store(next)
	return nil
}

// SetCaptureMode switches the capture mode
func (s *Settings) SetCaptureMode(mode CaptureMode) error {
	return s.Update(func(d *Draft) error {
		d.CaptureMode = mode
		return nil
	})
}

// ToggleCaptureMode flips between single and continuous capture and returns
// the new mode. On error the settings are unchanged.
func (s *Settings) ToggleCaptureMode() (CaptureMode, error) {
	var mode CaptureMode
	err := s.Update(func(d *Draft) error {
		if d.CaptureMode == CaptureSingle {
			d.CaptureMode = CaptureContinuous
		} else {
			d.CaptureMode = CaptureSingle
		}
		mode = d.CaptureMode
		return nil
	})
	if err != nil {
		return s.Load().CaptureMode, err
	}
	return mode, nil
}

// SetToggle sets a named toggle. Setting Unset removes it.
func (s *Settings) SetToggle(name string, value TriState) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty toggle name", ErrInvalidValue)
	}
	return s.Update(func(d *Draft) error {
		if value == Unset {
			delete(d.Toggles, name)
			return nil
		}
		d.Toggles[name] = value
		return nil
	})
}
