package adb

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// DefaultCommandTimeout bounds every adb invocation
const DefaultCommandTimeout = 10 * time.Second

// Runner executes adb with arguments and returns its combined output
type Runner func(ctx context.Context, path string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, path string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, path, args...).CombinedOutput()
}

// Controller talks to one device through the adb executable
type Controller struct {
	path    string
	device  string // serial or host:port
	timeout time.Duration
	run     Runner

	mu        sync.Mutex
	connected bool
}

// NewController creates a controller for device. An empty device uses the
// only attached device.
func NewController(adbPath, device string) *Controller {
	return &Controller{
		path:    adbPath,
		device:  device,
		timeout: DefaultCommandTimeout,
		run:     execRunner,
	}
}

// WithRunner replaces how adb is executed
func (c *Controller) WithRunner(r Runner) *Controller {
	c.run = r
	return c
}

// Device returns the device serial the controller targets
func (c *Controller) Device() string {
	return c.device
}

// Connect runs "adb connect" for network devices. USB serials need no connect.
func (c *Controller) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == "" || !strings.Contains(c.device, ":") {
		c.connected = true
		return nil
	}

	output, err := c.exec(context.Background(), "connect", c.device)
	if err != nil {
		return fmt.Errorf("failed to connect to device %s: %w, output: %s", c.device, err, output)
	}
	if !strings.Contains(string(output), "connected") {
		return fmt.Errorf("unexpected connect output: %s", strings.TrimSpace(string(output)))
	}

	c.connected = true
	return nil
}

// Disconnect forgets the connection state
func (c *Controller) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

// IsConnected returns whether Connect succeeded
func (c *Controller) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// args prefixes the device selector
func (c *Controller) args(args ...string) []string {
	if c.device == "" {
		return args
	}
	return append([]string{"-s", c.device}, args...)
}

func (c *Controller) exec(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	output, err := c.run(ctx, c.path, args...)
	if ctx.Err() == context.DeadlineExceeded {
		return output, fmt.Errorf("adb %s timed out after %v", strings.Join(args, " "), c.timeout)
	}
	return output, err
}
