package strategy

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"jordanella.com/sortie-pilot/internal/settings"
)

func TestCandidates(t *testing.T) {
	base := []string{
		"combat/compass.png",
		"combat/line_ahead.png",
		"common/next.png",
		"common/return.png",
	}

	tests := []struct {
		name    string
		toggles map[string]settings.TriState
		want    []string
	}{
		{
			name: "all unset",
			want: base,
		},
		{
			name:    "march enabled",
			toggles: map[string]settings.TriState{"march": settings.Enabled},
			want:    append(append([]string{}, base...), "combat/advance.png"),
		},
		{
			name: "march disabled, night battle enabled",
			toggles: map[string]settings.TriState{
				"march":        settings.Disabled,
				"night_battle": settings.Enabled,
			},
			want: append(append([]string{}, base...), "combat/retreat.png", "combat/engage_night_battle.png"),
		},
		{
			name:    "night battle disabled",
			toggles: map[string]settings.TriState{"night_battle": settings.Disabled},
			want:    append(append([]string{}, base...), "combat/skip_night_battle.png"),
		},
	}

	p := DefaultProfile()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := settings.New(settings.CaptureSingle, tt.toggles).Load()
			if got := p.Candidates(snap); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Candidates = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCandidatesDisabledWithoutAlternate(t *testing.T) {
	p := &Profile{
		Name:    "test",
		Base:    []string{"a.png"},
		Options: []ToggleOption{{Toggle: "extra", Enabled: "b.png"}},
	}
	snap := settings.New(settings.CaptureSingle, map[string]settings.TriState{"extra": settings.Disabled}).Load()

	if got := p.Candidates(snap); !reflect.DeepEqual(got, []string{"a.png"}) {
		t.Errorf("Candidates = %v", got)
	}
}

func TestProfilePaths(t *testing.T) {
	paths := DefaultProfile().Paths()
	if len(paths) != 8 {
		t.Errorf("expected 8 paths, got %d: %v", len(paths), paths)
	}

	p := &Profile{Name: "dup", Base: []string{"a.png", "a.png"}, Options: []ToggleOption{{Toggle: "t", Enabled: "a.png"}}}
	if got := p.Paths(); !reflect.DeepEqual(got, []string{"a.png"}) {
		t.Errorf("expected duplicates removed, got %v", got)
	}
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "combat.yaml")
	yamlText := `name: combat
base:
  - combat/compass.png
  - common/next.png
options:
  - toggle: march
    enabled: combat/advance.png
    disabled: combat/retreat.png
`
	if err := os.WriteFile(path, []byte(yamlText), 0644); err != nil {
		t.Fatalf("failed to write profile: %v", err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	if p.Name != "combat" || len(p.Base) != 2 || len(p.Options) != 1 {
		t.Errorf("unexpected profile: %+v", p)
	}
	if p.Options[0].Disabled != "combat/retreat.png" {
		t.Errorf("unexpected option: %+v", p.Options[0])
	}
	if p.Scripted() {
		t.Error("polling profile reported as scripted")
	}
}

func TestLoadScriptedProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "5-2.yaml")
	yamlText := `name: "5-2"
steps:
  - template: port/sortie.png
    double_click: true
  - template: combat/line_ahead.png
    when: line_ahead
  - template: common/next.png
    wait: 3s
`
	if err := os.WriteFile(path, []byte(yamlText), 0644); err != nil {
		t.Fatalf("failed to write profile: %v", err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	if !p.Scripted() || len(p.Steps) != 3 {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if !p.Steps[0].DoubleClick || p.Steps[1].When != "line_ahead" || p.Steps[2].Wait != 3*time.Second {
		t.Errorf("unexpected steps: %+v", p.Steps)
	}
	if got := p.Toggles(); !reflect.DeepEqual(got, []string{"line_ahead"}) {
		t.Errorf("Toggles = %v", got)
	}
}

func TestLoadProfileInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "base: [a.png]\n", "name cannot be empty"},
		{"empty", "name: x\n", "no templates configured"},
		{"option without toggle", "name: x\noptions:\n  - enabled: a.png\n", "toggle cannot be empty"},
		{"option without path", "name: x\noptions:\n  - toggle: t\n", "enabled path cannot be empty"},
		{"mixed", "name: x\nbase: [a.png]\nsteps:\n  - template: b.png\n", "cannot be combined"},
		{"bad yaml", "name: [\n", "unmarshal"},
	}

	dir := t.TempDir()
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0644); err != nil {
				t.Fatalf("case %d: failed to write: %v", i, err)
			}
			_, err := LoadProfile(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}

	if _, err := LoadProfile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestShippedProfiles(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "profiles", "*.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Skip("no profiles directory")
	}

	for _, path := range paths {
		p, err := LoadProfile(path)
		if err != nil {
			t.Errorf("%s: %v", path, err)
			continue
		}
		if len(p.Paths()) == 0 {
			t.Errorf("%s: no templates", path)
		}
	}

	combat, err := LoadProfile(filepath.Join("..", "..", "profiles", "combat.yaml"))
	if err != nil {
		t.Fatalf("combat profile: %v", err)
	}
	if !reflect.DeepEqual(combat, DefaultProfile()) {
		t.Errorf("combat.yaml differs from the built-in profile:\n got  %+v\n want %+v", combat, DefaultProfile())
	}
}
