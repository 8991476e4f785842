// Package tray shows the elapsed recording time in the macOS menu bar.
package tray

import (
	"context"
	"fmt"
	"time"

	"github.com/getlantern/systray"

	"go.aimuz.me/whisperkey/internal/types"
)

// StatusFunc returns the current recorder snapshot.
type StatusFunc func() types.RecordingStatus

// FormatElapsed renders d as MM:SS. Minutes keep counting past 59.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// Title returns the menu-bar title for st, blank when idle.
func Title(st types.RecordingStatus) string {
	if !st.Recording {
		return ""
	}
	return FormatElapsed(st.Elapsed)
}

// Tooltip describes what the next hotkey press will do.
func Tooltip(st types.RecordingStatus) string {
	switch {
	case !st.Recording:
		return "Press the hotkey to start recording"
	case !st.Capturing:
		return "Capture ended, press the hotkey to transcribe"
	default:
		return "Recording, press the hotkey to stop"
	}
}

// Run shows the indicator and blocks until ctx is done or Quit is chosen.
// It must be called from the main goroutine. onQuit runs when the user
// picks Quit from the menu.
func Run(ctx context.Context, status StatusFunc, onQuit func()) {
	onReady := func() {
		st := status()
		systray.SetTitle(Title(st))
		systray.SetTooltip(Tooltip(st))
		mQuit := systray.AddMenuItem("Quit", "Quit the application")

		go func() {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					systray.Quit()
					return
				case <-mQuit.ClickedCh:
					if onQuit != nil {
						onQuit()
					}
					systray.Quit()
					return
				case <-ticker.C:
					st := status()
					systray.SetTitle(Title(st))
					systray.SetTooltip(Tooltip(st))
				}
			}
		}()
	}

	systray.Run(onReady, func() {})
}
