// Package stt provides speech-to-text backend interface and implementations.
package stt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.aimuz.me/whisperkey/internal/types"
)

// ErrFileNotFound is returned when the audio file to transcribe is missing.
var ErrFileNotFound = errors.New("audio file not found")

// NetworkError reports a failed remote transcription request.
// StatusCode is zero when no response was received.
type NetworkError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("transcription request: %v", e.Err)
	}
	return fmt.Sprintf("transcription API error %d: %s", e.StatusCode, e.Body)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ModelError reports a local model load or inference failure.
type ModelError struct {
	Model string
	Op    string // "load" or "transcribe"
	Err   error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model %s %s: %v", e.Model, e.Op, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// Backend defines the interface for transcription backends.
// Both the remote (OpenAI API) and local (whisper.cpp) implementations
// must satisfy this interface.
type Backend interface {
	// Name returns the backend identifier used in configuration.
	Name() string

	// Check reports a missing external dependency (binary, credential).
	Check() error

	// Transcribe converts the audio file at req.SourcePath to text.
	// The returned text is untrimmed.
	Transcribe(ctx context.Context, req types.TranscriptRequest) (*types.TranscriptResult, error)

	// Close releases resources held by the backend.
	Close() error
}

// Registry holds registered transcription backends.
type Registry struct {
	backends map[string]Backend
}

// NewRegistry creates a new backend registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]Backend),
	}
}

// Register adds a backend to the registry.
func (r *Registry) Register(b Backend) {
	r.backends[b.Name()] = b
}

// Get returns a backend by name.
func (r *Registry) Get(name string) Backend {
	return r.backends[name]
}

// Select returns the backend registered under name or an error listing the
// available ones.
func (r *Registry) Select(name string) (Backend, error) {
	if b := r.Get(name); b != nil {
		return b, nil
	}
	return nil, fmt.Errorf("unknown backend %q (available: %s)", name, strings.Join(r.Names(), ", "))
}

// Names returns the registered backend names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases all backends.
func (r *Registry) Close() error {
	var errs []error
	for _, b := range r.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", b.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// checkSource returns ErrFileNotFound when path does not name a regular file.
func checkSource(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}
	return nil
}
