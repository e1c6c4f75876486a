package adb

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
)

// Tap performs a tap at device coordinates
func (c *Controller) Tap(x, y int) error {
	_, err := c.Shell(fmt.Sprintf("input tap %d %d", x, y))
	return err
}

// Swipe performs a swipe gesture lasting duration milliseconds
func (c *Controller) Swipe(x1, y1, x2, y2, duration int) error {
	_, err := c.Shell(fmt.Sprintf("input swipe %d %d %d %d %d", x1, y1, x2, y2, duration))
	return err
}

// SendKey sends a key event such as "KEYCODE_BACK"
func (c *Controller) SendKey(key string) error {
	_, err := c.Shell(fmt.Sprintf("input keyevent %s", key))
	return err
}

// Shell executes a shell command and returns its trimmed output
func (c *Controller) Shell(command string) (string, error) {
	return c.ShellContext(context.Background(), command)
}

// ShellContext executes a shell command that ends with ctx
func (c *Controller) ShellContext(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	output, err := c.exec(ctx, c.args("shell", command)...)
	if err != nil {
		return "", fmt.Errorf("shell command failed: %w, output: %s", err, bytes.TrimSpace(output))
	}
	return strings.TrimSpace(string(output)), nil
}

// Screencap grabs the device screen as PNG and decodes it
func (c *Controller) Screencap(ctx context.Context) (*image.RGBA, error) {
	c.mu.Lock()
	output, err := c.exec(ctx, c.args("exec-out", "screencap", "-p")...)
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("screencap failed: %w", err)
	}

	img, err := png.Decode(bytes.NewReader(output))
	if err != nil {
		return nil, fmt.Errorf("failed to decode screencap: %w", err)
	}

	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			rgba.Set(x-b.Min.X, y-b.Min.Y, img.At(x, y))
		}
	}
	return rgba, nil
}

// GetWindowSize returns the screen size reported by "wm size"
func (c *Controller) GetWindowSize() (width, height int, err error) {
	output, err := c.Shell("wm size")
	if err != nil {
		return 0, 0, err
	}

	// "Physical size: 1080x1920", possibly followed by "Override size: ..."
	var w, h int
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if _, err := fmt.Sscanf(line, "Override size: %dx%d", &w, &h); err == nil {
			return w, h, nil
		}
	}
	if _, err := fmt.Sscanf(output, "Physical size: %dx%d", &w, &h); err != nil {
		return 0, 0, fmt.Errorf("failed to parse window size: %s", output)
	}
	return w, h, nil
}
