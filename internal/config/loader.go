package config

import (
	"fmt"
	"image"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"jordanella.com/sortie-pilot/internal/logging"
	"jordanella.com/sortie-pilot/internal/settings"
)

// LoadFromINI loads configuration from an INI file. Missing keys keep their
// defaults.
func LoadFromINI(path string) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	config := Default()

	// Window
	window := file.Section("Window")
	config.WindowTitle = window.Key("Title").MustString(config.WindowTitle)

	// Capture
	section := file.Section("Capture")
	config.Capture.Backend = strings.ToLower(section.Key("Backend").MustString(config.Capture.Backend))
	if s := section.Key("Mode").String(); s != "" {
		mode, err := settings.ParseCaptureMode(s)
		if err != nil {
			return nil, fmt.Errorf("[Capture] Mode: %w", err)
		}
		config.Capture.Mode = mode
	}
	config.Capture.Timeout = millis(section.Key("TimeoutMs").MustInt(ms(config.Capture.Timeout)))
	config.Capture.Interval = millis(section.Key("IntervalMs").MustInt(ms(config.Capture.Interval)))
	x := section.Key("ScreenX").MustInt(0)
	y := section.Key("ScreenY").MustInt(0)
	w := section.Key("ScreenW").MustInt(0)
	h := section.Key("ScreenH").MustInt(0)
	config.Capture.Rect = image.Rect(x, y, x+w, y+h)

	// Matching
	section = file.Section("Matching")
	m := &config.Matching
	m.TemplateRoot = section.Key("TemplateRoot").MustString(m.TemplateRoot)
	m.RatioThreshold = section.Key("RatioThreshold").MustFloat64(m.RatioThreshold)
	m.SimilarityThreshold = section.Key("SimilarityThreshold").MustFloat64(m.SimilarityThreshold)
	m.InlierThreshold = section.Key("InlierThreshold").MustFloat64(m.InlierThreshold)
	m.MinInliers = section.Key("MinInliers").MustInt(m.MinInliers)
	m.MaxIterations = section.Key("MaxIterations").MustInt(m.MaxIterations)

	// Strategy
	section = file.Section("Strategy")
	for _, p := range section.Key("Profiles").Strings(",") {
		if p = strings.TrimSpace(p); p != "" {
			config.Strategy.Profiles = append(config.Strategy.Profiles, p)
		}
	}
	config.Strategy.PollInterval = millis(section.Key("PollIntervalMs").MustInt(ms(config.Strategy.PollInterval)))

	// Toggles
	for _, key := range file.Section("Toggles").Keys() {
		value, err := settings.ParseTriState(key.String())
		if err != nil {
			return nil, fmt.Errorf("[Toggles] %s: %w", key.Name(), err)
		}
		if value != settings.Unset {
			config.Toggles[key.Name()] = value
		}
	}

	// Input
	section = file.Section("Input")
	config.Input.Backend = strings.ToLower(section.Key("Backend").MustString(config.Input.Backend))
	config.Input.ADBPath = section.Key("ADBPath").MustString("")
	config.Input.ADBDevice = section.Key("ADBDevice").MustString("")
	config.Input.ADBScale = section.Key("ADBScale").MustFloat64(config.Input.ADBScale)
	config.Input.SerialPort = section.Key("SerialPort").MustString("")
	config.Input.SerialBaud = section.Key("SerialBaud").MustInt(config.Input.SerialBaud)

	// Hotkeys; an explicit empty value unbinds
	section = file.Section("Hotkeys")
	hk := &config.Hotkeys
	for key, dst := range map[string]*string{
		"ToggleRun":     &hk.ToggleRun,
		"ToggleCapture": &hk.ToggleCapture,
		"StopAll":       &hk.StopAll,
	} {
		if section.HasKey(key) {
			*dst = section.Key(key).String()
		}
	}

	// Watchdog
	section = file.Section("Watchdog")
	config.Watchdog.StallTimeout = time.Duration(section.Key("StallSeconds").MustInt(int(config.Watchdog.StallTimeout/time.Second))) * time.Second
	config.Watchdog.CheckInterval = millis(section.Key("CheckIntervalMs").MustInt(ms(config.Watchdog.CheckInterval)))

	// Journal
	config.JournalPath = file.Section("Journal").Key("Path").MustString("")

	// Logging
	if s := file.Section("Logging").Key("Level").String(); s != "" {
		level, err := logging.ParseLevel(s)
		if err != nil {
			return nil, fmt.Errorf("[Logging] Level: %w", err)
		}
		config.LogLevel = level
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

func millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func ms(d time.Duration) int {
	return int(d / time.Millisecond)
}
