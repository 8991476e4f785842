// Package recorder implements the start/stop recording lifecycle.
//
// A Recorder moves through Idle → Recording → Flushing → Idle. While
// Recording, a single capture goroutine appends chunks to the active
// Session; Stop seals the session and writes it to one WAV file.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.aimuz.me/whisperkey/audiocapture"
)

var (
	// ErrAlreadyRecording is returned by Start when the recorder is not idle.
	ErrAlreadyRecording = errors.New("already recording")

	// ErrNotRecording is returned by Stop when no session is recording.
	ErrNotRecording = errors.New("not recording")
)

// DefaultStopGrace bounds how long Stop waits for the capture loop to exit.
const DefaultStopGrace = time.Second

// State is the recorder lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateFlushing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateFlushing:
		return "flushing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DeviceError reports a capture device failure.
type DeviceError struct {
	Op  string // "open", "read" or "close"
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("capture device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// WriteFunc persists a sealed session.
type WriteFunc func(path string, f audiocapture.Format, chunks [][]int16) error

// Config holds configuration for a Recorder.
type Config struct {
	Source      audiocapture.Source
	Format      audiocapture.Format
	OutputPath  string        // Overwritten on every flush
	MaxDuration time.Duration // Zero means unbounded
	StopGrace   time.Duration // Defaults to DefaultStopGrace
	Write       WriteFunc     // Defaults to WriteWAV
}

// Result describes a flushed session.
type Result struct {
	SessionID string
	Path      string
	Duration  time.Duration // Audio length derived from the sample count
	Samples   int           // Interleaved samples written
}

// Session is the buffer of one recording. It is owned by the Recorder and
// only appended to by the capture goroutine.
type Session struct {
	ID        string
	StartedAt time.Time

	chunks  [][]int16
	samples int
	sealed  bool
	err     error
	endedAt time.Time // Set when the capture loop exits
}

// Recorder owns the recording state machine.
type Recorder struct {
	cfg Config

	mu      sync.Mutex
	state   State
	session *Session
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates an idle Recorder.
func New(cfg Config) *Recorder {
	if cfg.StopGrace == 0 {
		cfg.StopGrace = DefaultStopGrace
	}
	if cfg.Write == nil {
		cfg.Write = WriteWAV
	}
	return &Recorder{cfg: cfg, state: StateIdle}
}

// State returns the current state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Elapsed returns the wall time since the active session started, or zero
// when not recording. It stops growing once capture has ended, for example
// at the maximum duration.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording || r.session == nil {
		return 0
	}
	if !r.session.endedAt.IsZero() {
		return r.session.endedAt.Sub(r.session.StartedAt)
	}
	return time.Since(r.session.StartedAt)
}

// Capturing reports whether audio is still being pulled from the device.
// It is false once the maximum duration or a device error ended capture,
// even though the session stays Recording until Stop.
func (r *Recorder) Capturing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateRecording && r.session != nil && r.session.endedAt.IsZero()
}

// SessionID returns the active session's ID, or "" when idle.
func (r *Recorder) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return ""
	}
	return r.session.ID
}

// Start begins a new session and launches the capture goroutine.
// It returns ErrAlreadyRecording without side effects unless Idle.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return ErrAlreadyRecording
	}

	sess := &Session{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
	}

	var (
		captureCtx context.Context
		cancel     context.CancelFunc
	)
	if r.cfg.MaxDuration > 0 {
		captureCtx, cancel = context.WithTimeout(ctx, r.cfg.MaxDuration)
	} else {
		captureCtx, cancel = context.WithCancel(ctx)
	}

	r.state = StateRecording
	r.session = sess
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.capture(captureCtx, sess, r.done)

	slog.Info("recording started", "session", sess.ID)
	return nil
}

// Stop ends the active session, writes it to the output file and returns
// to Idle. It returns ErrNotRecording without side effects unless Recording.
// The captured chunks are written even when the device failed; the
// *DeviceError is then returned alongside the Result.
func (r *Recorder) Stop() (*Result, error) {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return nil, ErrNotRecording
	}
	r.state = StateFlushing
	sess, cancel, done := r.session, r.cancel, r.done
	r.mu.Unlock()

	defer r.reset()

	cancel()
	select {
	case <-done:
	case <-time.After(r.cfg.StopGrace):
		slog.Warn("capture did not exit in time", "session", sess.ID, "grace", r.cfg.StopGrace)
	}

	r.mu.Lock()
	sess.sealed = true
	chunks, samples, captureErr := sess.chunks, sess.samples, sess.err
	r.mu.Unlock()

	if captureErr != nil {
		slog.Error("recording failed", "session", sess.ID, "error", captureErr, "samples", samples)
	}

	// Whatever was captured is written, even after a device failure.
	if err := r.cfg.Write(r.cfg.OutputPath, r.cfg.Format, chunks); err != nil {
		return nil, errors.Join(captureErr, fmt.Errorf("write %s: %w", r.cfg.OutputPath, err))
	}

	res := &Result{
		SessionID: sess.ID,
		Path:      r.cfg.OutputPath,
		Samples:   samples,
		Duration:  audioDuration(r.cfg.Format, samples),
	}
	slog.Info("audio saved", "session", sess.ID, "path", res.Path, "duration", res.Duration)
	return res, captureErr
}

func (r *Recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateIdle
	r.session = nil
	r.cancel = nil
	r.done = nil
}

// capture pulls chunks until ctx ends. The stream is closed on every path.
func (r *Recorder) capture(ctx context.Context, sess *Session, done chan<- struct{}) {
	defer close(done)
	defer r.markEnded(sess)

	stream, err := r.cfg.Source.Open(r.cfg.Format)
	if err != nil {
		r.fail(sess, &DeviceError{Op: "open", Err: err})
		return
	}
	defer func() {
		if err := stream.Close(); err != nil {
			r.fail(sess, &DeviceError{Op: "close", Err: err})
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				slog.Info("recording stopped, max duration reached", "session", sess.ID, "max", r.cfg.MaxDuration)
			}
			return
		}

		chunk, err := stream.Read()
		if err != nil {
			r.fail(sess, &DeviceError{Op: "read", Err: err})
			return
		}
		r.append(sess, chunk)
	}
}

func (r *Recorder) append(sess *Session, chunk []int16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess.sealed {
		return
	}
	sess.chunks = append(sess.chunks, chunk)
	sess.samples += len(chunk)
}

func (r *Recorder) markEnded(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess.endedAt = time.Now()
}

func (r *Recorder) fail(sess *Session, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess.err == nil {
		sess.err = err
	}
}

func audioDuration(f audiocapture.Format, samples int) time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	frames := samples / f.Channels
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}
