// Package app wires the recorder, transcription backend, clipboard and
// feedback into the record/transcribe/copy flow.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"go.aimuz.me/whisperkey/cache"
	"go.aimuz.me/whisperkey/clipboard"
	"go.aimuz.me/whisperkey/internal/types"
	"go.aimuz.me/whisperkey/notify"
	"go.aimuz.me/whisperkey/recorder"
	"go.aimuz.me/whisperkey/stt"
)

// ErrNoText is returned when the backend produced only whitespace.
var ErrNoText = errors.New("no text to copy")

// Recorder is the part of *recorder.Recorder the service drives.
type Recorder interface {
	State() recorder.State
	Start(ctx context.Context) error
	Stop() (*recorder.Result, error)
	Elapsed() time.Duration
	Capturing() bool
	SessionID() string
}

// Options configures a Service. Cache and Notifier may be nil.
type Options struct {
	Recorder  Recorder
	Backend   stt.Backend
	Model     string
	Clipboard clipboard.Sink
	Notifier  *notify.Notifier
	Cache     *cache.Cache
	CacheTTL  time.Duration
}

// Service is the process-wide context object. It owns the recorder and is
// handed to the hotkey listener and the status indicator.
type Service struct {
	rec      Recorder
	backend  stt.Backend
	model    string
	clip     clipboard.Sink
	notifier *notify.Notifier
	cache    *cache.Cache
	cacheTTL time.Duration

	// toggles are serialized so a stop and its transcription finish
	// before the next start.
	mu      sync.Mutex
	pending chan struct{}
}

// New creates a Service.
func New(opts Options) *Service {
	ttl := opts.CacheTTL
	if ttl == 0 {
		ttl = cache.DefaultTTL
	}
	return &Service{
		rec:      opts.Recorder,
		backend:  opts.Backend,
		model:    opts.Model,
		clip:     opts.Clipboard,
		notifier: opts.Notifier,
		cache:    opts.Cache,
		cacheTTL: ttl,
		pending:  make(chan struct{}, 1),
	}
}

// RequestToggle queues a toggle for Serve and returns immediately, so it is
// safe to call from the hotkey listener. A press made while another toggle
// is still queued is dropped.
func (s *Service) RequestToggle() bool {
	select {
	case s.pending <- struct{}{}:
		return true
	default:
		slog.Debug("toggle already pending, press ignored")
		return false
	}
}

// Serve runs queued toggles one at a time until ctx is done.
func (s *Service) Serve(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.pending:
			// Failures are already logged and reported.
			_ = s.Toggle(ctx)
		}
	}
}

// Toggle starts a recording when idle, otherwise stops it and runs the
// saved file through ProcessFile. Errors are logged and reported before
// being returned; none of them leave the recorder stuck.
func (s *Service) Toggle(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rec.State() != recorder.StateRecording {
		err := s.rec.Start(ctx)
		if errors.Is(err, recorder.ErrAlreadyRecording) {
			return nil
		}
		return err
	}

	res, err := s.rec.Stop()
	if errors.Is(err, recorder.ErrNotRecording) {
		return nil
	}
	if err != nil {
		if res != nil {
			slog.Info("captured audio kept, not transcribed", "path", res.Path, "duration", res.Duration)
		}
		return s.fail("recording failed", err)
	}

	_, err = s.ProcessFile(ctx, res.Path)
	return err
}

// ProcessFile transcribes the audio at path and copies the trimmed text to
// the clipboard. Nothing is copied when any step fails.
func (s *Service) ProcessFile(ctx context.Context, path string) (*types.TranscriptResult, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			err = fmt.Errorf("%w: %s", stt.ErrFileNotFound, path)
		}
		return nil, s.fail("file not found", err)
	}

	req := types.TranscriptRequest{SourcePath: path, Model: s.model}
	res, err := s.transcribe(ctx, req)
	if err != nil {
		return nil, s.fail("transcription failed", err)
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		slog.Warn("no text to copy", "path", path)
		return res, ErrNoText
	}

	if err := s.clip.WriteText(text); err != nil {
		return nil, s.fail("copy to clipboard failed", fmt.Errorf("copy to clipboard: %w", err))
	}
	res.Text = text

	attrs := []any{"chars", len(text), "elapsed", res.Elapsed.Round(time.Millisecond), "cached", res.CacheHit}
	if cost, ok := res.Cost(); ok {
		attrs = append(attrs, "cost_usd", cost)
	}
	slog.Info("text copied to clipboard", attrs...)
	slog.Debug("transcript", "text", text)

	s.notifier.Done()
	return res, nil
}

func (s *Service) transcribe(ctx context.Context, req types.TranscriptRequest) (*types.TranscriptResult, error) {
	key := s.cacheKey(req)
	if key != "" {
		if e, ok := s.cache.Get(key); ok {
			slog.Info("transcript cache hit", "path", req.SourcePath)
			return &types.TranscriptResult{Text: e.Text, CacheHit: true}, nil
		}
	}

	slog.Info("transcribing", "backend", s.backend.Name(), "model", req.Model, "path", req.SourcePath)
	res, err := s.backend.Transcribe(ctx, req)
	if err != nil {
		return nil, err
	}

	if key != "" {
		entry := &cache.Entry{
			Text:      res.Text,
			Backend:   s.backend.Name(),
			Model:     req.Model,
			CreatedAt: time.Now(),
		}
		if err := s.cache.Set(key, entry, s.cacheTTL); err != nil {
			slog.Warn("store transcript in cache", "error", err)
		}
	}
	return res, nil
}

// cacheKey returns "" when caching is off or the file cannot be hashed.
func (s *Service) cacheKey(req types.TranscriptRequest) string {
	if s.cache == nil {
		return ""
	}
	digest, err := cache.FileDigest(req.SourcePath)
	if err != nil {
		slog.Warn("hash audio for cache", "error", err)
		return ""
	}
	return cache.GenerateKey(s.backend.Name(), req.Model, digest)
}

func (s *Service) fail(msg string, err error) error {
	slog.Error(msg, "error", err)
	s.notifier.Failure(msg, err)
	return err
}

// Status returns a snapshot of the recorder for the status indicator.
func (s *Service) Status() types.RecordingStatus {
	if s.rec.State() != recorder.StateRecording {
		return types.RecordingStatus{}
	}
	return types.RecordingStatus{
		Recording: true,
		Capturing: s.rec.Capturing(),
		SessionID: s.rec.SessionID(),
		Elapsed:   s.rec.Elapsed(),
	}
}

// Shutdown flushes an in-progress recording and closes the cache.
// The recording is saved but not transcribed.
func (s *Service) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rec.State() == recorder.StateRecording {
		if _, err := s.rec.Stop(); err != nil {
			slog.Error("stop recording on shutdown", "error", err)
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			slog.Error("close cache", "error", err)
		}
	}
}
