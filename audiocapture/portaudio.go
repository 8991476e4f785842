package audiocapture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudio captures from the default input device.
type PortAudio struct{}

// NewPortAudio returns a Source backed by the default PortAudio input.
func NewPortAudio() *PortAudio {
	return &PortAudio{}
}

// Open initializes PortAudio and starts a blocking input stream.
// The returned Stream terminates PortAudio when closed.
func (PortAudio) Open(f Format) (Stream, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}

	buf := make([]int16, f.ChunkLen())
	stream, err := portaudio.OpenDefaultStream(f.Channels, 0, float64(f.SampleRate), f.FramesPerBuffer, buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("start stream: %w", err)
	}

	slog.Debug("input stream opened", "rate", f.SampleRate, "channels", f.Channels, "frames", f.FramesPerBuffer)
	return &paStream{stream: stream, buf: buf}, nil
}

type paStream struct {
	stream *portaudio.Stream
	buf    []int16

	closeOnce sync.Once
	closeErr  error
}

func (s *paStream) Read() ([]int16, error) {
	if err := s.stream.Read(); err != nil {
		// Overflow drops frames but the buffer still holds valid audio.
		if !errors.Is(err, portaudio.InputOverflowed) {
			return nil, fmt.Errorf("read stream: %w", err)
		}
	}
	chunk := make([]int16, len(s.buf))
	copy(chunk, s.buf)
	return chunk, nil
}

func (s *paStream) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if err := s.stream.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop stream: %w", err))
		}
		if err := s.stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stream: %w", err))
		}
		if err := portaudio.Terminate(); err != nil {
			errs = append(errs, fmt.Errorf("portaudio terminate: %w", err))
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
