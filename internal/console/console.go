// Package console is the line-oriented control surface. It starts and stops
// strategies and edits the shared settings while they run.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"jordanella.com/sortie-pilot/internal/events"
	"jordanella.com/sortie-pilot/internal/journal"
	"jordanella.com/sortie-pilot/internal/logging"
	"jordanella.com/sortie-pilot/internal/settings"
	"jordanella.com/sortie-pilot/internal/snapshot"
	"jordanella.com/sortie-pilot/internal/strategy"
)

// History is the part of the journal the console reads
type History interface {
	RecentClicks(limit int) ([]*journal.Click, error)
}

// Console executes commands against a strategy manager
type Console struct {
	manager  *strategy.Manager
	settings *settings.Settings
	bus      events.EventBus
	history  History
	source   strategy.FrameSource
	logger   *logging.Logger

	commands map[string]command
}

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, args []string, out io.Writer) error
}

// errQuit ends Run
var errQuit = errors.New("quit")

// New creates a console. bus and history may be nil.
func New(manager *strategy.Manager, s *settings.Settings, bus events.EventBus, history History) *Console {
	c := &Console{
		manager:  manager,
		settings: s,
		bus:      bus,
		history:  history,
		logger:   logging.NewLogger("console"),
	}

	c.commands = map[string]command{
		"help":    {"help", "show this list", c.cmdHelp},
		"status":  {"status", "show strategies and settings", c.cmdStatus},
		"start":   {"start [name|all]", "start strategies", c.cmdStart},
		"stop":    {"stop [name|all]", "stop strategies", c.cmdStop},
		"mode":    {"mode [single|continuous|toggle]", "show or change the capture mode", c.cmdMode},
		"set":     {"set <toggle> <enabled|disabled|unset>", "change a toggle", c.cmdSet},
		"toggles": {"toggles [name]", "list the toggles a strategy reads", c.cmdToggles},
		"history": {"history [n]", "show the last clicks from the journal", c.cmdHistory},
		"snap":    {"snap <file.png|file.webp>", "save the current frame", c.cmdSnap},
		"quit":    {"quit", "stop everything and exit", c.cmdQuit},
	}
	c.commands["exit"] = c.commands["quit"]
	return c
}

// WithSource lets the snap command grab frames from src
func (c *Console) WithSource(src strategy.FrameSource) *Console {
	c.source = src
	return c
}

// Run reads commands from in until quit, end of input or ctx ends
func (c *Console) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-readCtx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	fmt.Fprint(out, "> ")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}

			err := c.Execute(ctx, line, out)
			if err == errQuit {
				return nil
			}
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			fmt.Fprint(out, "> ")
		}
	}
}

// Execute runs one command line
func (c *Console) Execute(ctx context.Context, line string, out io.Writer) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	name := strings.ToLower(fields[0])
	cmd, ok := c.commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q, try help", fields[0])
	}

	c.logger.DebugWithContext("Command", map[string]interface{}{"line": line})
	return cmd.run(ctx, fields[1:], out)
}

func (c *Console) cmdHelp(ctx context.Context, args []string, out io.Writer) error {
	names := make([]string, 0, len(c.commands))
	for name := range c.commands {
		if name != "exit" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, name := range names {
		cmd := c.commands[name]
		fmt.Fprintf(tw, "  %s\t%s\n", cmd.usage, cmd.help)
	}
	return tw.Flush()
}

func (c *Console) cmdStatus(ctx context.Context, args []string, out io.Writer) error {
	snap := c.settings.Load()
	fmt.Fprintf(out, "capture: %s (settings v%d)\n", snap.CaptureMode, snap.Version)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATE\tTICKS\tCLICKS\tSKIPPED\tLAST")
	for _, name := range c.manager.Names() {
		ctrl, _ := c.manager.Get(name)
		st := ctrl.Stats()
		last := "-"
		if st.Last.Template != "" {
			last = fmt.Sprintf("%s @ %d,%d", st.Last.Template, st.Last.Point.X, st.Last.Point.Y)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n", name, ctrl.State(), st.Ticks, st.Clicks, st.Skipped, last)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, name := range snap.ToggleNames() {
		fmt.Fprintf(out, "  %s = %s\n", name, snap.Toggle(name))
	}
	return nil
}

// targets resolves "all", no argument or a list of names to controllers
func (c *Console) targets(args []string) ([]strategy.Controller, error) {
	if len(args) == 0 || (len(args) == 1 && strings.EqualFold(args[0], "all")) {
		var all []strategy.Controller
		for _, name := range c.manager.Names() {
			ctrl, _ := c.manager.Get(name)
			all = append(all, ctrl)
		}
		return all, nil
	}

	var ctrls []strategy.Controller
	for _, name := range args {
		ctrl, ok := c.manager.Get(name)
		if !ok {
			return nil, fmt.Errorf("no strategy named %s", name)
		}
		ctrls = append(ctrls, ctrl)
	}
	return ctrls, nil
}

func (c *Console) cmdStart(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 || (len(args) == 1 && strings.EqualFold(args[0], "all")) {
		if err := c.manager.StartAll(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "running: %s\n", strings.Join(c.manager.Running(), ", "))
		return nil
	}

	ctrls, err := c.targets(args)
	if err != nil {
		return err
	}
	for _, ctrl := range ctrls {
		if err := ctrl.Start(ctx); err != nil {
			return fmt.Errorf("start %s: %w", ctrl.Name(), err)
		}
		fmt.Fprintf(out, "%s: %s\n", ctrl.Name(), ctrl.State())
	}
	return nil
}

func (c *Console) cmdStop(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 || (len(args) == 1 && strings.EqualFold(args[0], "all")) {
		c.manager.StopAll()
		fmt.Fprintln(out, "all strategies stopped")
		return nil
	}

	ctrls, err := c.targets(args)
	if err != nil {
		return err
	}
	for _, ctrl := range ctrls {
		ctrl.Stop()
		fmt.Fprintf(out, "%s: %s\n", ctrl.Name(), ctrl.State())
	}
	return nil
}

func (c *Console) cmdMode(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintf(out, "capture: %s\n", c.settings.Load().CaptureMode)
		return nil
	}

	var mode settings.CaptureMode
	if strings.EqualFold(args[0], "toggle") {
		m, err := c.settings.ToggleCaptureMode()
		if err != nil {
			return err
		}
		mode = m
	} else {
		m, err := settings.ParseCaptureMode(strings.Join(args, " "))
		if err != nil {
			return err
		}
		if err := c.settings.SetCaptureMode(m); err != nil {
			return err
		}
		mode = m
	}

	c.changed("capture=" + mode.String())
	fmt.Fprintf(out, "capture: %s\n", mode)
	return nil
}

func (c *Console) cmdSet(ctx context.Context, args []string, out io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: %s", c.commands["set"].usage)
	}

	value, err := settings.ParseTriState(args[1])
	if err != nil {
		return err
	}
	if err := c.settings.SetToggle(args[0], value); err != nil {
		return err
	}

	c.changed(args[0] + "=" + value.String())
	fmt.Fprintf(out, "%s = %s\n", args[0], value)
	return nil
}

func (c *Console) cmdToggles(ctx context.Context, args []string, out io.Writer) error {
	ctrls, err := c.targets(args)
	if err != nil {
		return err
	}

	snap := c.settings.Load()
	for _, ctrl := range ctrls {
		toggles := ctrl.Profile().Toggles()
		if len(toggles) == 0 {
			continue
		}
		fmt.Fprintf(out, "%s:\n", ctrl.Name())
		for _, name := range toggles {
			fmt.Fprintf(out, "  %s = %s\n", name, snap.Toggle(name))
		}
	}
	return nil
}

func (c *Console) cmdHistory(ctx context.Context, args []string, out io.Writer) error {
	if c.history == nil {
		return fmt.Errorf("journal is disabled")
	}

	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid count %q", args[0])
		}
		limit = n
	}

	clicks, err := c.history.RecentClicks(limit)
	if err != nil {
		return err
	}
	if len(clicks) == 0 {
		fmt.Fprintln(out, "no clicks recorded")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, click := range clicks {
		fmt.Fprintf(tw, "%s\t%s\t%d,%d\n", click.ClickedAt.Local().Format("15:04:05"), click.Template, click.X, click.Y)
	}
	return tw.Flush()
}

func (c *Console) cmdSnap(ctx context.Context, args []string, out io.Writer) error {
	if c.source == nil {
		return fmt.Errorf("no frame source")
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.commands["snap"].usage)
	}

	if err := c.source.Start(); err != nil {
		return err
	}
	defer c.source.Stop()

	frame, err := c.source.Frame(ctx)
	if err != nil {
		return err
	}
	if frame == nil {
		return fmt.Errorf("no frame available")
	}
	if err := snapshot.Save(frame, args[0]); err != nil {
		return err
	}

	b := frame.Bounds()
	fmt.Fprintf(out, "saved %dx%d frame to %s\n", b.Dx(), b.Dy(), args[0])
	return nil
}

func (c *Console) cmdQuit(ctx context.Context, args []string, out io.Writer) error {
	c.manager.StopAll()
	fmt.Fprintln(out, "bye")
	return errQuit
}

// changed announces a published settings snapshot
func (c *Console) changed(change string) {
	snap := c.settings.Load()
	c.logger.InfoWithContext("Settings changed", map[string]interface{}{
		"change":  change,
		"version": snap.Version,
	})
	if c.bus != nil {
		c.bus.PublishAsync(events.NewSettingsChangedEvent(snap.Version, change))
	}
}
