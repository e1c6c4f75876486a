//go:build windows
// +build windows

package hotkey

import (
	"context"
	"fmt"

	"github.com/moutend/go-hook/pkg/keyboard"
	"github.com/moutend/go-hook/pkg/types"
)

// Run installs a low level keyboard hook and dispatches bound keys until ctx ends
func (l *Listener) Run(ctx context.Context) error {
	eventChan := make(chan types.KeyboardEvent, 100)
	if err := keyboard.Install(nil, eventChan); err != nil {
		return fmt.Errorf("failed to install keyboard hook: %w", err)
	}
	defer keyboard.Uninstall()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-eventChan:
			switch event.Message {
			case types.WM_KEYDOWN, types.WM_SYSKEYDOWN:
				l.dispatch(uint32(event.VKCode), true)
			case types.WM_KEYUP, types.WM_SYSKEYUP:
				l.dispatch(uint32(event.VKCode), false)
			}
		}
	}
}
