package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"jordanella.com/sortie-pilot/internal/adb"
	"jordanella.com/sortie-pilot/internal/capture"
	"jordanella.com/sortie-pilot/internal/config"
	"jordanella.com/sortie-pilot/internal/console"
	"jordanella.com/sortie-pilot/internal/cv"
	"jordanella.com/sortie-pilot/internal/events"
	"jordanella.com/sortie-pilot/internal/hotkey"
	"jordanella.com/sortie-pilot/internal/input"
	"jordanella.com/sortie-pilot/internal/journal"
	"jordanella.com/sortie-pilot/internal/logging"
	"jordanella.com/sortie-pilot/internal/monitor"
	"jordanella.com/sortie-pilot/internal/settings"
	"jordanella.com/sortie-pilot/internal/strategy"
	"jordanella.com/sortie-pilot/pkg/templates"
)

func main() {
	configPath := flag.String("config", "Settings.ini", "Path to the INI configuration")
	profiles := flag.String("profiles", "", "Comma separated profile YAML files (overrides the config)")
	autostart := flag.Bool("start", false, "Start every strategy immediately")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *profiles != "" {
		cfg.Strategy.Profiles = strings.Split(*profiles, ",")
	}
	if *logLevel != "" {
		level, err := logging.ParseLevel(*logLevel)
		if err != nil {
			log.Fatalf("Invalid -log-level: %v", err)
		}
		cfg.LogLevel = level
	}

	if err := run(cfg, *autostart); err != nil {
		log.Fatal(err)
	}
}

// loadConfig falls back to defaults when the file does not exist
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: %s not found, using defaults", path)
		return config.Default(), nil
	}
	return config.LoadFromINI(path)
}

func run(cfg *config.Config, autostart bool) error {
	logging.SetDefaults(cfg.LogLevel, os.Stdout)
	logger := logging.NewLogger("main")

	bus := events.NewEventBus(256)
	defer bus.Stop()

	eventLogger := logging.NewEventLogger(bus, logging.NewLogger("events"))
	defer eventLogger.Close()

	var history console.History
	if cfg.JournalPath != "" {
		db, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return err
		}
		defer db.Close()

		recorder := journal.NewRecorder(db, bus)
		defer recorder.Close()
		history = db
	}

	store := templates.NewStore(cfg.Matching.TemplateRoot, nil)
	defer store.Close()
	locator := cv.NewLocator(store, cfg.LocatorOptions()...)

	var (
		adbCtrl *adb.Controller
		err     error
	)
	if cfg.Capture.Backend == config.CaptureADB || cfg.Input.Backend == config.InputADB {
		adbCtrl, err = connectADB(cfg)
		if err != nil {
			return err
		}
		defer adbCtrl.Disconnect()
	}

	capturer, err := newCapturer(cfg, adbCtrl)
	if err != nil {
		return err
	}
	source := capture.NewSource(capturer, cfg.CaptureOptions()...)

	injector, closer, err := newInjector(cfg, adbCtrl)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	shared := cfg.Settings()
	manager := strategy.NewManager()
	for _, p := range loadProfiles(cfg.Strategy.Profiles, logger) {
		ctrl := strategy.New(p.Name, source, injector, locator, shared, p,
			strategy.WithInterval(cfg.Strategy.PollInterval),
			strategy.WithEventBus(bus),
			strategy.WithPreloader(store),
		)
		if err := manager.Add(ctrl); err != nil {
			return err
		}
	}
	defer manager.StopAll()

	watchdog := monitor.NewWatchdog(bus, cfg.Watchdog.StallTimeout).
		WithCheckInterval(cfg.Watchdog.CheckInterval)
	if adbCtrl != nil {
		watchdog.WithHealthCheck(monitor.HealthCheck{Name: "adb", Check: func(ctx context.Context) error {
			_, err := adbCtrl.ShellContext(ctx, "echo ok")
			return err
		}})
	}
	watchdog.Start()
	defer watchdog.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startHotkeys(ctx, cfg.Hotkeys, manager, shared, logger)

	logger.InfoWithContext("Ready", map[string]interface{}{
		"strategies": strings.Join(manager.Names(), ","),
		"capture":    cfg.Capture.Backend,
		"input":      cfg.Input.Backend,
		"templates":  store.Root(),
	})

	if autostart {
		if err := manager.StartAll(ctx); err != nil {
			return err
		}
	}

	return console.New(manager, shared, bus, history).WithSource(source).Run(ctx, os.Stdin, os.Stdout)
}

func connectADB(cfg *config.Config) (*adb.Controller, error) {
	path, err := adb.FindADB(cfg.Input.ADBPath)
	if err != nil {
		return nil, err
	}

	ctrl := adb.NewController(path, cfg.Input.ADBDevice)
	if err := ctrl.Connect(); err != nil {
		return nil, err
	}
	return ctrl, nil
}

func newCapturer(cfg *config.Config, adbCtrl *adb.Controller) (capture.Capturer, error) {
	switch cfg.Capture.Backend {
	case config.CaptureScreen:
		return capture.NewScreenCapture(cfg.Capture.Rect)
	case config.CaptureADB:
		return capture.NewADBCapture(adbCtrl), nil
	default:
		return capture.NewWindowCapture(cfg.WindowTitle)
	}
}

func newInjector(cfg *config.Config, adbCtrl *adb.Controller) (input.Injector, io.Closer, error) {
	switch cfg.Input.Backend {
	case config.InputADB:
		return input.NewADBInjector(adbCtrl, cfg.Input.ADBScale), nil, nil
	case config.InputSerial:
		inj, port, err := input.OpenSerial(cfg.Input.SerialPort, cfg.Input.SerialBaud, cfg.Capture.Rect.Min)
		if err != nil {
			return nil, nil, err
		}
		return inj, port, nil
	default:
		mouse, err := input.NewWindowMouse(cfg.WindowTitle)
		if err != nil {
			return nil, nil, err
		}
		return mouse, nil, nil
	}
}

// loadProfiles skips profiles that fail to load; with none configured the
// built-in combat profile is used
func loadProfiles(paths []string, logger *logging.Logger) []*strategy.Profile {
	var profiles []*strategy.Profile
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		p, err := strategy.LoadProfile(path)
		if err != nil {
			logger.Error(fmt.Sprintf("Skipping profile %s", path), err)
			continue
		}
		profiles = append(profiles, p)
	}

	if len(profiles) == 0 {
		profiles = append(profiles, strategy.DefaultProfile())
	}
	return profiles
}

// startHotkeys binds the global keys. Failures only disable the hotkeys.
func startHotkeys(ctx context.Context, keys config.HotkeyConfig, manager *strategy.Manager,
	shared *settings.Settings, logger *logging.Logger) {
	listener, err := hotkey.NewListener(map[string]func(){
		keys.ToggleRun: func() {
			if len(manager.Running()) > 0 {
				manager.StopAll()
				return
			}
			if err := manager.StartAll(ctx); err != nil {
				logger.Error("Hotkey start failed", err)
			}
		},
		keys.ToggleCapture: func() {
			mode, err := shared.ToggleCaptureMode()
			if err != nil {
				logger.Error("Capture mode toggle failed", err)
				return
			}
			logger.InfoWithContext("Capture mode toggled", map[string]interface{}{"mode": mode.String()})
		},
		keys.StopAll: manager.StopAll,
	})
	if err != nil {
		logger.Error("Hotkeys disabled", err)
		return
	}
	if listener.Len() == 0 {
		return
	}

	go func() {
		if err := listener.Run(ctx); err != nil {
			if errors.Is(err, hotkey.ErrUnsupported) {
				logger.Debug("Global hotkeys are not available on this platform")
				return
			}
			logger.Error("Hotkey listener stopped", err)
		}
	}()
}
