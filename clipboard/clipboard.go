// Package clipboard writes transcripts to the system clipboard.
package clipboard

import (
	"errors"
	"sync"

	"github.com/atotto/clipboard"
)

// ErrUnsupported is returned when no clipboard utility is available.
var ErrUnsupported = errors.New("clipboard not supported on this system")

// Sink accepts text and makes it the clipboard content.
type Sink interface {
	WriteText(text string) error
}

// System is the Sink backed by the OS pasteboard (pbcopy on macOS).
type System struct {
	mu sync.Mutex
}

// WriteText replaces the clipboard content with text.
func (s *System) WriteText(text string) error {
	if clipboard.Unsupported {
		return ErrUnsupported
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return clipboard.WriteAll(text)
}
