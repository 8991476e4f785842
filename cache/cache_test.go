package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := NewInMemory()
	if err != nil {
		t.Fatalf("NewInMemory: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSetGet(t *testing.T) {
	c := newTestCache(t)
	key := GenerateKey("api", "whisper-1", "abc")

	if _, ok := c.Get(key); ok {
		t.Fatal("expected miss on empty cache")
	}

	want := &Entry{Text: " hello ", Backend: "api", Model: "whisper-1", CreatedAt: time.Now().UTC().Truncate(time.Second)}
	if err := c.Set(key, want, DefaultTTL); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Text != want.Text || got.Backend != want.Backend || got.Model != want.Model || !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
}

func TestGenerateKey(t *testing.T) {
	tests := []struct {
		name string
		a, b [3]string
		same bool
	}{
		{"identical", [3]string{"api", "whisper-1", "d1"}, [3]string{"api", "whisper-1", "d1"}, true},
		{"different model", [3]string{"api", "whisper-1", "d1"}, [3]string{"api", "gpt-4o-transcribe", "d1"}, false},
		{"different backend", [3]string{"api", "m", "d1"}, [3]string{"local", "m", "d1"}, false},
		{"field boundary", [3]string{"ab", "c", "d"}, [3]string{"a", "bc", "d"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ka := GenerateKey(tt.a[0], tt.a[1], tt.a[2])
			kb := GenerateKey(tt.b[0], tt.b[1], tt.b[2])
			if (ka == kb) != tt.same {
				t.Errorf("keys equal = %v, want %v", ka == kb, tt.same)
			}
		})
	}
}

func TestFileDigest(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.wav")
	p2 := filepath.Join(dir, "b.wav")
	if err := os.WriteFile(p1, []byte("same"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p2, []byte("same"), 0644); err != nil {
		t.Fatal(err)
	}

	d1, err := FileDigest(p1)
	if err != nil {
		t.Fatalf("FileDigest: %v", err)
	}
	d2, _ := FileDigest(p2)
	if d1 != d2 {
		t.Errorf("digests differ for identical content")
	}
	// sha256("same")
	if d1 != "0967115f2813a3541eaef77de9d9d5773f1c0c04314b0bbfe4ff3b3b1c55b5d5" {
		t.Errorf("digest = %s", d1)
	}

	if _, err := FileDigest(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPersistentCache(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Set("k", &Entry{Text: "persisted"}, DefaultTTL); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c, err = New(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c.Close()
	if e, ok := c.Get("k"); !ok || e.Text != "persisted" {
		t.Errorf("Get after reopen = %+v, %v", e, ok)
	}
}
