package strategy

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"jordanella.com/sortie-pilot/internal/settings"
)

func TestManagerAddAndGet(t *testing.T) {
	s := settings.New(settings.CaptureSingle, nil)
	m := NewManager()

	combat := New("combat", &fakeSource{}, &fakeInjector{}, &fakeLocator{}, s, DefaultProfile(), WithLogger(quietLogger()))
	script := New("5-2", &fakeSource{}, &fakeInjector{}, &fakeLocator{}, s, scriptedProfile(), WithLogger(quietLogger()))

	if _, ok := combat.(*Runner); !ok {
		t.Errorf("expected a Runner for a polling profile, got %T", combat)
	}
	if _, ok := script.(*Sequence); !ok {
		t.Errorf("expected a Sequence for a scripted profile, got %T", script)
	}

	if err := m.Add(combat); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := m.Add(script); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := m.Add(combat); err == nil {
		t.Error("expected duplicate name to be rejected")
	}

	if got := m.Names(); !reflect.DeepEqual(got, []string{"combat", "5-2"}) {
		t.Errorf("Names = %v", got)
	}
	if c, ok := m.Get("5-2"); !ok || c != script {
		t.Error("Get returned the wrong strategy")
	}
	if _, ok := m.Get("missing"); ok {
		t.Error("expected missing strategy")
	}
}

func TestManagerStartStopAll(t *testing.T) {
	s := settings.New(settings.CaptureSingle, nil)
	m := NewManager()
	for _, name := range []string{"a", "b"} {
		m.Add(NewRunner(name, &fakeSource{}, &fakeInjector{}, &fakeLocator{}, s, DefaultProfile(),
			WithInterval(testInterval), WithLogger(quietLogger())))
	}

	if err := m.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	if got := m.Running(); len(got) != 2 {
		t.Errorf("expected 2 running, got %v", got)
	}

	m.StopAll()
	if got := m.Running(); len(got) != 0 {
		t.Errorf("expected none running, got %v", got)
	}
}

func TestManagerStartAllRollsBack(t *testing.T) {
	s := settings.New(settings.CaptureSingle, nil)
	m := NewManager()

	good := NewRunner("good", &fakeSource{}, &fakeInjector{}, &fakeLocator{}, s, DefaultProfile(),
		WithInterval(testInterval), WithLogger(quietLogger()))
	bad := NewRunner("bad", &fakeSource{startErr: errBoom}, &fakeInjector{}, &fakeLocator{}, s, DefaultProfile(),
		WithInterval(testInterval), WithLogger(quietLogger()))
	m.Add(good)
	m.Add(bad)

	if err := m.StartAll(context.Background()); !errors.Is(err, errBoom) {
		t.Fatalf("expected start error, got %v", err)
	}
	if good.State() != StateIdle {
		t.Error("expected already started runner to be stopped again")
	}
}
