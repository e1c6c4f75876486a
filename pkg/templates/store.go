package templates

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"gocv.io/x/gocv"

	"jordanella.com/sortie-pilot/internal/cv"
)

// ErrTemplateNotFound is returned when a template image cannot be read or decoded
var ErrTemplateNotFound = errors.New("template not found")

// Store loads template images on first use and keeps their features for the
// lifetime of the store. Entries are never evicted.
type Store struct {
	root      string
	extractor cv.FeatureExtractor

	entries map[string]*entry
	mu      sync.RWMutex
	stats   Stats
}

// Stats tracks store performance
type Stats struct {
	Hits     int64 // Lookups served from memory
	Misses   int64 // Lookups that had to load
	Loads    int64 // Successful loads
	Failures int64 // Failed loads
}

type entry struct {
	path     string
	template *cv.Template
	mu       sync.RWMutex
}

// NewStore creates a store resolving relative paths against root, taken
// relative to the working directory at construction. A nil extractor uses SIFT.
func NewStore(root string, extractor cv.FeatureExtractor) *Store {
	if extractor == nil {
		extractor = cv.SIFTExtractor{}
	}
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		} else {
			root = filepath.Clean(root)
		}
	}
	return &Store{
		root:      root,
		extractor: extractor,
		entries:   make(map[string]*entry),
	}
}

// Root returns the template root directory
func (s *Store) Root() string {
	return s.root
}

// Resolve returns the key a path is cached under
func (s *Store) Resolve(path string) string {
	if filepath.IsAbs(path) || s.root == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(s.root, path)
}

// Get returns the template for path, loading and extracting it on first use
func (s *Store) Get(path string) (*cv.Template, error) {
	key := s.Resolve(path)

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		s.mu.Lock()
		if e, ok = s.entries[key]; !ok {
			e = &entry{path: key}
			s.entries[key] = e
		}
		s.mu.Unlock()
	}

	tmpl, loaded, err := e.getOrLoad(s.extractor)

	s.mu.Lock()
	switch {
	case err != nil:
		s.stats.Misses++
		s.stats.Failures++
	case loaded:
		s.stats.Misses++
		s.stats.Loads++
	default:
		s.stats.Hits++
	}
	s.mu.Unlock()

	return tmpl, err
}

// Preload loads every path and returns the first failure
func (s *Store) Preload(paths ...string) error {
	for _, p := range paths {
		if _, err := s.Get(p); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of loaded templates
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.entries {
		if e.isLoaded() {
			n++
		}
	}
	return n
}

// Paths returns the resolved paths of loaded templates, sorted
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.entries))
	for key, e := range s.entries {
		if e.isLoaded() {
			paths = append(paths, key)
		}
	}
	sort.Strings(paths)
	return paths
}

// Stats returns store statistics
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Close releases every loaded template. The store must not be used afterwards.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.entries {
		e.close()
		delete(s.entries, key)
	}
}

// entry methods

// getOrLoad returns the cached template or loads it. loaded reports whether
// this call did the load.
func (e *entry) getOrLoad(extractor cv.FeatureExtractor) (*cv.Template, bool, error) {
	// Fast path: already loaded
	e.mu.RLock()
	if e.template != nil {
		defer e.mu.RUnlock()
		return e.template, false, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Double-check after acquiring write lock
	if e.template != nil {
		return e.template, false, nil
	}

	tmpl, err := loadTemplate(e.path, extractor)
	if err != nil {
		return nil, false, err
	}
	e.template = tmpl
	return tmpl, true, nil
}

func (e *entry) isLoaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.template != nil
}

func (e *entry) close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.template != nil {
		e.template.Close()
		e.template = nil
	}
}

// loadTemplate reads path as grayscale and extracts its features
func loadTemplate(path string, extractor cv.FeatureExtractor) (*cv.Template, error) {
	img := gocv.IMRead(path, gocv.IMReadGrayScale)
	if img.Empty() {
		img.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrTemplateNotFound)
	}

	tmpl, err := cv.NewTemplate(path, img, extractor)
	if err != nil {
		img.Close()
		return nil, fmt.Errorf("failed to extract features from %s: %w", path, err)
	}
	return tmpl, nil
}
