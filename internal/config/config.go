// Package config loads application settings from an INI file.
package config

import (
	"errors"
	"fmt"
	"image"
	"time"

	"jordanella.com/sortie-pilot/internal/capture"
	"jordanella.com/sortie-pilot/internal/cv"
	"jordanella.com/sortie-pilot/internal/logging"
	"jordanella.com/sortie-pilot/internal/settings"
	"jordanella.com/sortie-pilot/internal/strategy"
)

// Capture backends
const (
	CaptureWindow = "window"
	CaptureScreen = "screen"
	CaptureADB    = "adb"
)

// Input backends
const (
	InputWindow = "window"
	InputADB    = "adb"
	InputSerial = "serial"
)

// DefaultWindowTitle is the title of the game viewer window
const DefaultWindowTitle = "poi"

// Config is the full application configuration
type Config struct {
	WindowTitle string

	Capture  CaptureConfig
	Matching MatchingConfig
	Strategy StrategyConfig
	Input    InputConfig
	Hotkeys  HotkeyConfig
	Watchdog WatchdogConfig

	// Toggles seeds the shared settings
	Toggles map[string]settings.TriState

	// JournalPath is the SQLite journal file; empty disables the journal
	JournalPath string

	LogLevel logging.LogLevel
}

type CaptureConfig struct {
	Backend  string
	Mode     settings.CaptureMode
	Timeout  time.Duration
	Interval time.Duration

	// Rect is the desktop rectangle for the screen backend; empty means the primary display
	Rect image.Rectangle
}

type MatchingConfig struct {
	TemplateRoot        string
	RatioThreshold      float64
	SimilarityThreshold float64
	InlierThreshold     float64
	MinInliers          int
	MaxIterations       int
}

type StrategyConfig struct {
	// Profiles are YAML profile paths; empty runs the built-in combat profile
	Profiles     []string
	PollInterval time.Duration
}

type InputConfig struct {
	Backend   string
	ADBPath   string
	ADBDevice string
	ADBScale  float64

	SerialPort string
	SerialBaud int
}

// HotkeyConfig holds global key names; an empty name leaves the action unbound
type HotkeyConfig struct {
	ToggleRun     string
	ToggleCapture string
	StopAll       string
}

// WatchdogConfig controls stall detection; a zero StallTimeout disables it
type WatchdogConfig struct {
	StallTimeout  time.Duration
	CheckInterval time.Duration
}

// Default returns the configuration used when no file is given
func Default() *Config {
	ransac := cv.DefaultRANSACOptions()
	return &Config{
		WindowTitle: DefaultWindowTitle,
		Capture: CaptureConfig{
			Backend:  CaptureWindow,
			Mode:     settings.CaptureSingle,
			Timeout:  capture.DefaultTimeout,
			Interval: capture.DefaultGrabInterval,
		},
		Matching: MatchingConfig{
			TemplateRoot:        "templates",
			RatioThreshold:      0.7,
			SimilarityThreshold: 0.8,
			InlierThreshold:     ransac.Threshold,
			MinInliers:          ransac.MinInliers,
			MaxIterations:       ransac.MaxIterations,
		},
		Strategy: StrategyConfig{
			PollInterval: strategy.DefaultPollInterval,
		},
		Input: InputConfig{
			Backend:    InputWindow,
			ADBScale:   1,
			SerialBaud: 9600,
		},
		Hotkeys: HotkeyConfig{
			ToggleRun:     "F9",
			ToggleCapture: "F10",
			StopAll:       "F12",
		},
		Watchdog: WatchdogConfig{
			StallTimeout:  5 * time.Minute,
			CheckInterval: 10 * time.Second,
		},
		Toggles:  make(map[string]settings.TriState),
		LogLevel: logging.LogLevelInfo,
	}
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	var errs []error

	if c.WindowTitle == "" && (c.Capture.Backend == CaptureWindow || c.Input.Backend == InputWindow) {
		errs = append(errs, errors.New("window title cannot be empty"))
	}
	switch c.Capture.Backend {
	case CaptureWindow, CaptureScreen, CaptureADB:
	default:
		errs = append(errs, fmt.Errorf("unknown capture backend %q", c.Capture.Backend))
	}
	switch c.Input.Backend {
	case InputWindow, InputADB:
	case InputSerial:
		if c.Input.SerialPort == "" {
			errs = append(errs, errors.New("serial input needs a port"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown input backend %q", c.Input.Backend))
	}
	if c.Capture.Timeout <= 0 {
		errs = append(errs, errors.New("capture timeout must be positive"))
	}
	if c.Strategy.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.Matching.RatioThreshold <= 0 || c.Matching.RatioThreshold >= 1 {
		errs = append(errs, fmt.Errorf("ratio threshold %v must be between 0 and 1", c.Matching.RatioThreshold))
	}
	if c.Matching.SimilarityThreshold < -1 || c.Matching.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("similarity threshold %v must be between -1 and 1", c.Matching.SimilarityThreshold))
	}
	if c.Matching.MinInliers < 3 {
		errs = append(errs, fmt.Errorf("min inliers %d must be at least 3", c.Matching.MinInliers))
	}
	if c.Watchdog.StallTimeout < 0 {
		errs = append(errs, errors.New("stall timeout cannot be negative"))
	}
	if c.Input.ADBScale <= 0 {
		errs = append(errs, errors.New("adb scale must be positive"))
	}

	return errors.Join(errs...)
}

// Settings builds the shared runtime settings
func (c *Config) Settings() *settings.Settings {
	return settings.New(c.Capture.Mode, c.Toggles)
}

// LocatorOptions returns the matching thresholds as locator options
func (c *Config) LocatorOptions() []cv.Option {
	m := c.Matching
	return []cv.Option{
		cv.WithRatioThreshold(m.RatioThreshold),
		cv.WithSimilarityThreshold(m.SimilarityThreshold),
		cv.WithInlierThreshold(m.InlierThreshold),
		cv.WithMinInliers(m.MinInliers),
		cv.WithMaxIterations(m.MaxIterations),
	}
}

// CaptureOptions returns the frame source options
func (c *Config) CaptureOptions() []capture.Option {
	return []capture.Option{
		capture.WithTimeout(c.Capture.Timeout),
		capture.WithGrabInterval(c.Capture.Interval),
	}
}
