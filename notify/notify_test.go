package notify

import (
	"errors"
	"testing"
)

type recorder struct {
	beeps  []float64
	alerts []string
}

func newTestNotifier(sound, desktop bool, beepErr error) (*Notifier, *recorder) {
	rec := &recorder{}
	n := &Notifier{
		Sound:   sound,
		Desktop: desktop,
		beep: func(freq float64, _ int) error {
			rec.beeps = append(rec.beeps, freq)
			return beepErr
		},
		alert: func(title, message string) error {
			rec.alerts = append(rec.alerts, title+": "+message)
			return nil
		},
	}
	return n, rec
}

func TestDone(t *testing.T) {
	tests := []struct {
		name      string
		sound     bool
		beepErr   error
		wantBeeps int
	}{
		{"sound enabled", true, nil, 2},
		{"sound disabled", false, nil, 0},
		{"stops after first failure", true, errors.New("no audio"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, rec := newTestNotifier(tt.sound, false, tt.beepErr)
			n.Done()
			if len(rec.beeps) != tt.wantBeeps {
				t.Fatalf("beeps = %d, want %d", len(rec.beeps), tt.wantBeeps)
			}
			for _, f := range rec.beeps {
				if f != 440 {
					t.Errorf("frequency = %v, want 440", f)
				}
			}
		})
	}
}

func TestFailure(t *testing.T) {
	n, rec := newTestNotifier(false, true, nil)
	n.Failure("Transcription failed", errors.New("API error 500"))
	n.Failure("ignored", nil)

	if len(rec.alerts) != 1 || rec.alerts[0] != "Transcription failed: API error 500" {
		t.Errorf("alerts = %v", rec.alerts)
	}

	n, rec = newTestNotifier(false, false, nil)
	n.Failure("x", errors.New("y"))
	if len(rec.alerts) != 0 {
		t.Errorf("desktop disabled but alerted: %v", rec.alerts)
	}
}

func TestNilNotifier(t *testing.T) {
	var n *Notifier
	n.Done()
	n.Failure("x", errors.New("y"))
}
