package strategy

import (
	"context"
	"fmt"
	"sync"

	"jordanella.com/sortie-pilot/internal/settings"
)

// Manager holds named strategies that share one frame source, injector,
// locator and settings
type Manager struct {
	mu          sync.RWMutex
	controllers map[string]Controller
	order       []string
}

// NewManager creates an empty manager
func NewManager() *Manager {
	return &Manager{
		controllers: make(map[string]Controller),
	}
}

// New builds a Sequence for scripted profiles and a Runner otherwise
func New(name string, source FrameSource, injector Injector, locator Locator,
	s *settings.Settings, profile *Profile, opts ...Option) Controller {
	if profile.Scripted() {
		return NewSequence(name, source, injector, locator, s, profile, opts...)
	}
	return NewRunner(name, source, injector, locator, s, profile, opts...)
}

// Add registers a strategy under its name
func (m *Manager) Add(c Controller) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.controllers[c.Name()]; exists {
		return fmt.Errorf("strategy %s already exists", c.Name())
	}
	m.controllers[c.Name()] = c
	m.order = append(m.order, c.Name())
	return nil
}

// Get retrieves a strategy by name
func (m *Manager) Get(name string) (Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, exists := m.controllers[name]
	return c, exists
}

// Names returns strategy names in the order they were added
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, len(m.order))
	copy(names, m.order)
	return names
}

// Running returns the names of running strategies
func (m *Manager) Running() []string {
	var running []string
	for _, name := range m.Names() {
		if c, ok := m.Get(name); ok && c.State() == StateRunning {
			running = append(running, name)
		}
	}
	return running
}

// StartAll starts every strategy. If one fails, those already started by
// this call are stopped again and the error is returned.
func (m *Manager) StartAll(ctx context.Context) error {
	var started []Controller
	for _, name := range m.Names() {
		c, _ := m.Get(name)
		wasRunning := c.State() == StateRunning

		if err := c.Start(ctx); err != nil {
			for _, s := range started {
				s.Stop()
			}
			return err
		}
		if !wasRunning {
			started = append(started, c)
		}
	}
	return nil
}

// StopAll stops every strategy and waits for their loops to exit
func (m *Manager) StopAll() {
	var wg sync.WaitGroup
	for _, name := range m.Names() {
		c, _ := m.Get(name)
		wg.Add(1)
		go func(c Controller) {
			defer wg.Done()
			c.Stop()
		}(c)
	}
	wg.Wait()
}
