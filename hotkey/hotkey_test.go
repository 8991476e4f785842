package hotkey

import (
	"testing"

	hook "github.com/robotn/gohook"
)

const (
	keyCmd   Key = 1
	keyE     Key = 2
	keyShift Key = 3
)

func TestReducer_FiresOncePerHold(t *testing.T) {
	tests := []struct {
		name      string
		events    []string // "d:<key>" or "u:<key>"
		wantFires int
	}{
		{
			name:      "single press",
			events:    []string{"d:cmd", "d:e", "u:e", "u:cmd"},
			wantFires: 1,
		},
		{
			name:      "key repeat while held",
			events:    []string{"d:cmd", "d:e", "d:e", "d:e", "d:e", "d:e", "u:e", "u:cmd"},
			wantFires: 1,
		},
		{
			name:      "two separate presses",
			events:    []string{"d:cmd", "d:e", "u:e", "u:cmd", "d:cmd", "d:e", "u:e", "u:cmd"},
			wantFires: 2,
		},
		{
			name:      "release and re-press e with cmd held",
			events:    []string{"d:cmd", "d:e", "u:e", "d:cmd", "d:e", "u:e", "u:cmd"},
			wantFires: 2,
		},
		{
			name:      "only one key",
			events:    []string{"d:e", "d:e", "u:e"},
			wantFires: 0,
		},
		{
			name:      "released before completing",
			events:    []string{"d:cmd", "u:cmd", "d:e", "u:e"},
			wantFires: 0,
		},
		{
			name:      "unrelated key ignored",
			events:    []string{"d:cmd", "d:shift", "d:e", "u:e", "u:shift", "u:cmd"},
			wantFires: 1,
		},
	}

	names := map[string]Key{"cmd": keyCmd, "e": keyE, "shift": keyShift}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReducer([]Key{keyCmd, keyE})
			fires := 0
			for _, ev := range tt.events {
				k := names[ev[2:]]
				switch ev[0] {
				case 'd':
					if r.KeyDown(k) {
						fires++
					}
				case 'u':
					r.KeyUp(k)
				}
			}
			if fires != tt.wantFires {
				t.Errorf("fires = %d, want %d", fires, tt.wantFires)
			}
		})
	}
}

func TestReducer_ClearsAfterFire(t *testing.T) {
	r := NewReducer([]Key{keyCmd, keyE})
	r.KeyDown(keyCmd)
	if r.Held() != 1 {
		t.Fatalf("Held() = %d, want 1", r.Held())
	}
	if !r.KeyDown(keyE) {
		t.Fatal("expected fire")
	}
	if r.Held() != 0 {
		t.Errorf("Held() after fire = %d, want 0", r.Held())
	}
}

func TestReducer_EmptyComboNeverFires(t *testing.T) {
	r := NewReducer(nil)
	if r.KeyDown(keyE) {
		t.Error("empty combo fired")
	}
}

func TestParseCombo(t *testing.T) {
	tests := []struct {
		in      string
		want    []Key
		wantErr bool
	}{
		{in: "cmd+e", want: []Key{Key(hook.Keycode["cmd"]), Key(hook.Keycode["e"])}},
		{in: " CMD + E ", want: []Key{Key(hook.Keycode["cmd"]), Key(hook.Keycode["e"])}},
		{in: "ctrl+shift+space", want: []Key{Key(hook.Keycode["ctrl"]), Key(hook.Keycode["shift"]), Key(hook.Keycode["space"])}},
		{in: "e+e", want: []Key{Key(hook.Keycode["e"])}},
		{in: "", wantErr: true},
		{in: "cmd+", wantErr: true},
		{in: "cmd+nosuchkey", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCombo(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("key %d = %d, want %d", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestListener_HandleEvents(t *testing.T) {
	cmd, e := hook.Keycode["cmd"], hook.Keycode["e"]

	toggles := 0
	l := NewListener([]Key{Key(cmd), Key(e)}, func() { toggles++ })

	events := []hook.Event{
		{Kind: hook.KeyDown, Keycode: cmd},
		{Kind: hook.KeyDown, Keycode: e},
		{Kind: hook.KeyHold, Keychar: 'e'}, // typed char, no keycode
		{Kind: hook.KeyDown, Keycode: e},   // auto-repeat
		{Kind: hook.KeyUp, Keycode: e},
		{Kind: hook.KeyUp, Keycode: cmd},
		{Kind: hook.MouseMove},
		{Kind: hook.KeyDown, Keycode: cmd},
		{Kind: hook.KeyDown, Keycode: e},
	}
	for _, ev := range events {
		l.handle(ev)
	}

	if toggles != 2 {
		t.Errorf("toggles = %d, want 2", toggles)
	}
}

func TestListener_TypedEventsNeverFire(t *testing.T) {
	cmd, e := hook.Keycode["cmd"], hook.Keycode["e"]

	toggles := 0
	l := NewListener([]Key{Key(cmd), Key(e)}, func() { toggles++ })

	// Typed events arrive with an undefined keycode, even while the combo
	// is physically held.
	for _, ev := range []hook.Event{
		{Kind: hook.KeyHold, Keycode: 0, Keychar: 'e'},
		{Kind: hook.KeyHold, Keycode: 0, Keychar: 'e'},
	} {
		l.handle(ev)
	}
	if toggles != 0 {
		t.Errorf("toggles = %d, want 0", toggles)
	}
	if l.reducer.Held() != 0 {
		t.Errorf("Held() = %d, want 0", l.reducer.Held())
	}
}
