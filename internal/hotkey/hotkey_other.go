//go:build !windows
// +build !windows

package hotkey

import "context"

// Run is only available on Windows
func (l *Listener) Run(ctx context.Context) error {
	return ErrUnsupported
}
