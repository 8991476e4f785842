// Package notify gives audible and desktop feedback to the operator.
package notify

import (
	"log/slog"
	"time"

	"github.com/gen2brain/beeep"
)

const (
	toneFrequency = 440.0 // Hz
	toneDuration  = 100   // ms
	toneGap       = 100 * time.Millisecond
)

// Notifier plays the completion cue and reports failures.
type Notifier struct {
	Sound   bool // Play the two-tone cue after a successful copy
	Desktop bool // Show a desktop notification on failure

	// beep and alert are replaced in tests.
	beep  func(freq float64, duration int) error
	alert func(title, message string) error
}

// New creates a Notifier backed by beeep.
func New(sound, desktop bool) *Notifier {
	return &Notifier{
		Sound:   sound,
		Desktop: desktop,
		beep:    beeep.Beep,
		alert: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// Done plays two short tones when sound is enabled.
func (n *Notifier) Done() {
	if n == nil || !n.Sound {
		return
	}
	for i := 0; i < 2; i++ {
		if i > 0 {
			time.Sleep(toneGap)
		}
		if err := n.beep(toneFrequency, toneDuration); err != nil {
			slog.Warn("play completion tone", "error", err)
			return
		}
	}
}

// Failure reports err on the desktop when enabled.
func (n *Notifier) Failure(title string, err error) {
	if n == nil || !n.Desktop || err == nil {
		return
	}
	if nerr := n.alert(title, err.Error()); nerr != nil {
		slog.Warn("desktop notification", "error", nerr)
	}
}
