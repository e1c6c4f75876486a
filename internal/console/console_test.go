package console

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"jordanella.com/sortie-pilot/internal/cv"
	"jordanella.com/sortie-pilot/internal/events"
	"jordanella.com/sortie-pilot/internal/journal"
	"jordanella.com/sortie-pilot/internal/settings"
	"jordanella.com/sortie-pilot/internal/strategy"
)

type fakeController struct {
	name    string
	profile *strategy.Profile

	mu       sync.Mutex
	state    strategy.State
	startErr error
	stats    strategy.Stats
}

func (f *fakeController) Name() string                { return f.name }
func (f *fakeController) Profile() *strategy.Profile { return f.profile }

func (f *fakeController) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.state = strategy.StateRunning
	return nil
}

func (f *fakeController) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = strategy.StateIdle
}

func (f *fakeController) State() strategy.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeController) Stats() strategy.Stats { return f.stats }

type fakeHistory struct {
	clicks []*journal.Click
}

func (f *fakeHistory) RecentClicks(limit int) ([]*journal.Click, error) {
	if limit < len(f.clicks) {
		return f.clicks[:limit], nil
	}
	return f.clicks, nil
}

func newTestConsole(t *testing.T, history History) (*Console, *settings.Settings, *fakeController, *fakeController) {
	t.Helper()

	combat := &fakeController{name: "combat", profile: strategy.DefaultProfile()}
	combat.stats = strategy.Stats{Ticks: 12, Clicks: 2, Last: cv.Match{Template: "combat/sortie.png", Point: image.Pt(300, 200)}}
	expedition := &fakeController{name: "expedition", profile: &strategy.Profile{Name: "expedition", Base: []string{"exp.png"}}}

	m := strategy.NewManager()
	if err := m.Add(combat); err != nil {
		t.Fatal(err)
	}
	if err := m.Add(expedition); err != nil {
		t.Fatal(err)
	}

	s := settings.New(settings.CaptureSingle, nil)
	return New(m, s, nil, history), s, combat, expedition
}

func exec(t *testing.T, c *Console, line string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := c.Execute(context.Background(), line, &out)
	return out.String(), err
}

func TestStartStop(t *testing.T) {
	c, _, combat, expedition := newTestConsole(t, nil)

	if _, err := exec(t, c, "start combat"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if combat.State() != strategy.StateRunning || expedition.State() != strategy.StateIdle {
		t.Error("expected only combat to run")
	}

	out, err := exec(t, c, "start all")
	if err != nil {
		t.Fatalf("start all failed: %v", err)
	}
	if !strings.Contains(out, "combat, expedition") {
		t.Errorf("unexpected output %q", out)
	}

	if _, err := exec(t, c, "stop expedition"); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if expedition.State() != strategy.StateIdle || combat.State() != strategy.StateRunning {
		t.Error("expected only expedition to stop")
	}

	if _, err := exec(t, c, "stop"); err != nil {
		t.Fatalf("stop all failed: %v", err)
	}
	if combat.State() != strategy.StateIdle {
		t.Error("expected combat to stop")
	}

	if _, err := exec(t, c, "start nothing"); err == nil {
		t.Error("expected unknown strategy error")
	}
}

func TestStartError(t *testing.T) {
	c, _, combat, _ := newTestConsole(t, nil)
	combat.startErr = errors.New("template missing")

	if _, err := exec(t, c, "start combat"); err == nil || !strings.Contains(err.Error(), "template missing") {
		t.Errorf("expected start error, got %v", err)
	}
}

func TestSetAndMode(t *testing.T) {
	c, s, _, _ := newTestConsole(t, nil)
	bus := events.NewEventBus(8)
	c.bus = bus

	var mu sync.Mutex
	var changes []string
	bus.Subscribe(events.EventTypeSettingsChanged, func(e events.Event) {
		mu.Lock()
		defer mu.Unlock()
		change, _ := e.String("change")
		changes = append(changes, change)
	})

	if _, err := exec(t, c, "set night_battle on"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if s.Load().Toggle("night_battle") != settings.Enabled {
		t.Error("expected toggle enabled")
	}

	if _, err := exec(t, c, "set night_battle unset"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if s.Load().Toggle("night_battle") != settings.Unset {
		t.Error("expected toggle removed")
	}

	if _, err := exec(t, c, "set march sometimes"); !errors.Is(err, settings.ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got %v", err)
	}
	if _, err := exec(t, c, "set march"); err == nil {
		t.Error("expected usage error")
	}

	if _, err := exec(t, c, "mode continuous"); err != nil {
		t.Fatalf("mode failed: %v", err)
	}
	if s.Load().CaptureMode != settings.CaptureContinuous {
		t.Error("expected continuous mode")
	}
	out, err := exec(t, c, "mode toggle")
	if err != nil {
		t.Fatalf("mode toggle failed: %v", err)
	}
	if s.Load().CaptureMode != settings.CaptureSingle || !strings.Contains(out, "single") {
		t.Errorf("expected single mode, output %q", out)
	}
	if _, err := exec(t, c, "mode sometimes"); err == nil {
		t.Error("expected invalid mode error")
	}

	bus.Stop()

	mu.Lock()
	defer mu.Unlock()
	want := []string{"night_battle=enabled", "night_battle=unset", "capture=continuous", "capture=single"}
	if strings.Join(changes, ";") != strings.Join(want, ";") {
		t.Errorf("changes = %v, want %v", changes, want)
	}
}

func TestStatusAndToggles(t *testing.T) {
	c, s, _, _ := newTestConsole(t, nil)
	s.SetToggle("march", settings.Disabled)

	out, err := exec(t, c, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	for _, want := range []string{"capture: single", "combat", "expedition", "combat/sortie.png @ 300,200", "march = disabled"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}

	out, err = exec(t, c, "toggles combat")
	if err != nil {
		t.Fatalf("toggles failed: %v", err)
	}
	if !strings.Contains(out, "march = disabled") || !strings.Contains(out, "night_battle = unset") {
		t.Errorf("unexpected toggles output:\n%s", out)
	}
}

func TestHistory(t *testing.T) {
	c, _, _, _ := newTestConsole(t, nil)
	if _, err := exec(t, c, "history"); err == nil {
		t.Error("expected error without a journal")
	}

	h := &fakeHistory{clicks: []*journal.Click{
		{Template: "combat/a.png", X: 1, Y: 2, ClickedAt: time.Now()},
		{Template: "combat/b.png", X: 3, Y: 4, ClickedAt: time.Now()},
	}}
	c, _, _, _ = newTestConsole(t, h)

	out, err := exec(t, c, "history 1")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "combat/a.png") || strings.Contains(out, "combat/b.png") {
		t.Errorf("unexpected history output %q", out)
	}
	if _, err := exec(t, c, "history -3"); err == nil {
		t.Error("expected invalid count error")
	}
}

func TestRun(t *testing.T) {
	c, _, combat, _ := newTestConsole(t, nil)

	in := strings.NewReader("help\nstart combat\nbogus\n\nquit\nstatus\n")
	var out bytes.Buffer
	if err := c.Run(context.Background(), in, &out); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "set <toggle>") {
		t.Error("expected help output")
	}
	if !strings.Contains(text, `unknown command "bogus"`) {
		t.Error("expected unknown command error")
	}
	if !strings.HasSuffix(text, "bye\n") {
		t.Errorf("expected quit to end the session, got %q", text)
	}
	if combat.State() != strategy.StateIdle {
		t.Error("expected quit to stop strategies")
	}
}

func TestRunEndOfInput(t *testing.T) {
	c, _, _, _ := newTestConsole(t, nil)
	if err := c.Run(context.Background(), strings.NewReader("status\n"), &bytes.Buffer{}); err != nil {
		t.Errorf("expected clean exit at end of input, got %v", err)
	}
}

type fakeSource struct {
	starts, stops int
	frame         image.Image
	err           error
}

func (f *fakeSource) Start() error { f.starts++; return nil }
func (f *fakeSource) Stop()        { f.stops++ }
func (f *fakeSource) Frame(ctx context.Context) (image.Image, error) {
	return f.frame, f.err
}

func TestSnap(t *testing.T) {
	c, _, _, _ := newTestConsole(t, nil)
	if _, err := exec(t, c, "snap out.png"); err == nil {
		t.Error("expected error without a frame source")
	}

	src := &fakeSource{frame: image.NewRGBA(image.Rect(0, 0, 8, 6))}
	c.WithSource(src)

	path := filepath.Join(t.TempDir(), "shots", "frame.png")
	out, err := exec(t, c, "snap "+path)
	if err != nil {
		t.Fatalf("snap failed: %v", err)
	}
	if !strings.Contains(out, "8x6") {
		t.Errorf("unexpected output %q", out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected snapshot file: %v", err)
	}
	if src.starts != 1 || src.stops != 1 {
		t.Errorf("expected balanced start/stop, got %d/%d", src.starts, src.stops)
	}

	src.err = errors.New("window gone")
	if _, err := exec(t, c, "snap "+path); err == nil {
		t.Error("expected frame error")
	}
	if src.stops != 2 {
		t.Error("expected the source to be released after a failed grab")
	}
}
