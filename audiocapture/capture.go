// Package audiocapture provides microphone capture as a stream of PCM chunks.
package audiocapture

import (
	"errors"
	"fmt"
)

// ErrInvalidFormat is returned when a Format cannot be opened.
var ErrInvalidFormat = errors.New("invalid capture format")

// SampleWidth is the size in bytes of one captured sample (signed 16-bit PCM).
const SampleWidth = 2

// Format describes the PCM stream produced by a capture device.
type Format struct {
	SampleRate      int // Frames per second
	Channels        int // Interleaved channels per frame
	FramesPerBuffer int // Frames delivered per chunk
}

// Validate reports whether the format can be opened.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidFormat, f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("%w: channels %d", ErrInvalidFormat, f.Channels)
	}
	if f.FramesPerBuffer <= 0 {
		return fmt.Errorf("%w: frames per buffer %d", ErrInvalidFormat, f.FramesPerBuffer)
	}
	return nil
}

// ChunkLen returns the number of int16 samples in one chunk.
func (f Format) ChunkLen() int {
	return f.FramesPerBuffer * f.Channels
}

// Source opens capture streams. Implementations must be safe to Open again
// after a previous Stream has been closed.
type Source interface {
	Open(f Format) (Stream, error)
}

// Stream is an open capture device.
type Stream interface {
	// Read blocks until the next chunk is available and returns a slice the
	// caller owns. Each chunk holds Format.ChunkLen interleaved samples.
	Read() ([]int16, error)

	// Close stops the device and releases it.
	Close() error
}
