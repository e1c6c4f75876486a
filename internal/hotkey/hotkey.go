// Package hotkey runs actions on global key presses, so strategies can be
// paused while the game window has focus.
package hotkey

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"jordanella.com/sortie-pilot/internal/logging"
)

// ErrUnsupported is returned by Run where global hooks are not available
var ErrUnsupported = errors.New("global hotkeys not supported on this platform")

// Virtual key codes for the keys that can be bound
const (
	vkPause      = 0x13
	vkScrollLock = 0x91
	vkF1         = 0x70
)

// ParseKey converts a key name (F1-F12, Pause, ScrollLock) to its virtual key code
func ParseKey(name string) (uint32, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	switch n {
	case "PAUSE":
		return vkPause, nil
	case "SCROLLLOCK", "SCROLL":
		return vkScrollLock, nil
	}

	if strings.HasPrefix(n, "F") {
		if i, err := strconv.Atoi(n[1:]); err == nil && i >= 1 && i <= 12 {
			return uint32(vkF1 + i - 1), nil
		}
	}
	return 0, fmt.Errorf("unsupported hotkey %q", name)
}

// Listener maps key presses to actions
type Listener struct {
	logger *logging.Logger

	mu       sync.Mutex
	bindings map[uint32]binding
	held     map[uint32]bool
}

type binding struct {
	name   string
	action func()
}

// NewListener binds key names to actions. Empty key names are skipped.
func NewListener(bindings map[string]func()) (*Listener, error) {
	l := &Listener{
		logger:   logging.NewLogger("hotkey"),
		bindings: make(map[uint32]binding),
		held:     make(map[uint32]bool),
	}

	for name, action := range bindings {
		if strings.TrimSpace(name) == "" {
			continue
		}
		vk, err := ParseKey(name)
		if err != nil {
			return nil, err
		}
		if prev, dup := l.bindings[vk]; dup {
			return nil, fmt.Errorf("hotkey %s bound twice (%s)", name, prev.name)
		}
		l.bindings[vk] = binding{name: strings.ToUpper(name), action: action}
	}
	return l, nil
}

// Len returns the number of bound keys
func (l *Listener) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.bindings)
}

// dispatch runs the bound action on the first key down. Auto-repeat downs
// are ignored until the key is released.
func (l *Listener) dispatch(vk uint32, down bool) {
	l.mu.Lock()
	b, ok := l.bindings[vk]
	if !ok {
		l.mu.Unlock()
		return
	}
	if !down {
		delete(l.held, vk)
		l.mu.Unlock()
		return
	}
	if l.held[vk] {
		l.mu.Unlock()
		return
	}
	l.held[vk] = true
	l.mu.Unlock()

	l.logger.InfoWithContext("Hotkey pressed", map[string]interface{}{"key": b.name})
	b.action()
}
