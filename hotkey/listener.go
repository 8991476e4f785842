package hotkey

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	hook "github.com/robotn/gohook"
)

// ParseCombo converts a "+"-separated key list such as "cmd+e" or
// "ctrl+shift+space" into hook keycodes.
func ParseCombo(s string) ([]Key, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")

	keys := make([]Key, 0, len(parts))
	seen := make(map[Key]bool, len(parts))
	for _, p := range parts {
		name := strings.TrimSpace(p)
		if name == "" {
			return nil, fmt.Errorf("invalid hotkey %q: empty key", s)
		}
		code, ok := hook.Keycode[name]
		if !ok {
			return nil, fmt.Errorf("invalid hotkey %q: unknown key %q", s, name)
		}
		k := Key(code)
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys, nil
}

// Listener feeds global keyboard events into a Reducer and calls onToggle
// each time the combination fires. onToggle runs on the listener goroutine
// and must return quickly: gohook blocks the native event tap while the
// event channel is full.
type Listener struct {
	reducer  *Reducer
	onToggle func()
}

// NewListener creates a Listener for combo.
func NewListener(combo []Key, onToggle func()) *Listener {
	return &Listener{
		reducer:  NewReducer(combo),
		onToggle: onToggle,
	}
}

// Run installs the global hook and processes events until ctx is done.
// On macOS this requires the Accessibility permission.
func (l *Listener) Run(ctx context.Context) error {
	events := hook.Start()
	defer hook.End()

	slog.Info("hotkey listener started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("hotkey listener stopped")
			return nil
		case ev, ok := <-events:
			if !ok {
				return fmt.Errorf("hook event channel closed")
			}
			l.handle(ev)
		}
	}
}

// handle maps a hook event onto the reducer. gohook reports a physical
// press as KeyDown and repeats it while the key stays down. KeyHold is the
// typed-character event; it carries no keycode and modifiers never emit it.
func (l *Listener) handle(ev hook.Event) {
	switch ev.Kind {
	case hook.KeyDown:
		if l.reducer.KeyDown(Key(ev.Keycode)) && l.onToggle != nil {
			l.onToggle()
		}
	case hook.KeyUp:
		l.reducer.KeyUp(Key(ev.Keycode))
	}
}
