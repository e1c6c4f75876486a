package strategy

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"

	"jordanella.com/sortie-pilot/internal/cv"
	"jordanella.com/sortie-pilot/internal/logging"
	"jordanella.com/sortie-pilot/internal/settings"
)

type fakeSource struct {
	mu       sync.Mutex
	starts   int
	stops    int
	startErr error
	frameErr error
	modes    []settings.CaptureMode
}

func (s *fakeSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.starts++
	return nil
}

func (s *fakeSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
}

func (s *fakeSource) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frameErr != nil {
		return nil, s.frameErr
	}
	return image.NewGray(image.Rect(0, 0, 8, 8)), nil
}

func (s *fakeSource) SetMode(mode settings.CaptureMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modes = append(s.modes, mode)
}

func (s *fakeSource) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts, s.stops
}

type fakeInjector struct {
	mu      sync.Mutex
	clicks  []image.Point
	doubles []image.Point
}

func (i *fakeInjector) Click(p image.Point) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.clicks = append(i.clicks, p)
	return nil
}

func (i *fakeInjector) DoubleClick(p image.Point) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.doubles = append(i.doubles, p)
	return nil
}

func (i *fakeInjector) clickCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.clicks)
}

// fakeLocator records every candidate list and answers through fn
type fakeLocator struct {
	mu    sync.Mutex
	calls [][]string
	fn    func(call int, candidates []string) (cv.Match, bool, error)
}

func (l *fakeLocator) Locate(frame image.Image, candidates []string) (cv.Match, bool, error) {
	l.mu.Lock()
	call := len(l.calls)
	l.calls = append(l.calls, append([]string(nil), candidates...))
	fn := l.fn
	l.mu.Unlock()

	if fn == nil {
		return cv.Match{}, false, nil
	}
	return fn(call, candidates)
}

func (l *fakeLocator) history() [][]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]string(nil), l.calls...)
}

type fakePreloader struct {
	paths []string
	err   error
}

func (p *fakePreloader) Preload(paths ...string) error {
	p.paths = append(p.paths, paths...)
	return p.err
}

var errBoom = errors.New("boom")

func quietLogger() *logging.Logger {
	return logging.NewLogger("test").SetOutput(io.Discard)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
