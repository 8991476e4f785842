// Package hotkey turns global keyboard events into a start/stop toggle.
package hotkey

import "sync"

// Key identifies a physical key by its hook keycode.
type Key uint16

// Reducer tracks which shortcut keys are held and reports when the full
// combination is pressed. Keys outside the combination are ignored.
//
// After firing, the held set is cleared so key-repeat events delivered while
// the combination stays down cannot fire again.
type Reducer struct {
	mu    sync.Mutex
	combo map[Key]struct{}
	held  map[Key]struct{}
}

// NewReducer creates a Reducer for the given combination.
func NewReducer(combo []Key) *Reducer {
	r := &Reducer{
		combo: make(map[Key]struct{}, len(combo)),
		held:  make(map[Key]struct{}, len(combo)),
	}
	for _, k := range combo {
		r.combo[k] = struct{}{}
	}
	return r
}

// KeyDown records a key press and returns true when it completes the
// combination.
func (r *Reducer) KeyDown(k Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.combo[k]; !ok || len(r.combo) == 0 {
		return false
	}
	r.held[k] = struct{}{}

	if len(r.held) != len(r.combo) {
		return false
	}
	clear(r.held)
	return true
}

// KeyUp records a key release.
func (r *Reducer) KeyUp(k Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.held, k)
}

// Held returns the number of shortcut keys currently held.
func (r *Reducer) Held() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.held)
}
