package recorder

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"go.aimuz.me/whisperkey/audiocapture"
)

const bitDepth = audiocapture.SampleWidth * 8

// wavFormatPCM is the RIFF audio format tag for uncompressed PCM.
const wavFormatPCM = 1

// WriteWAV writes chunks in order as a 16-bit PCM WAV file, truncating any
// existing file at path.
func WriteWAV(path string, f audiocapture.Format, chunks [][]int16) error {
	if err := f.Validate(); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}

	enc := wav.NewEncoder(file, f.SampleRate, bitDepth, f.Channels, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: f.Channels, SampleRate: f.SampleRate},
		SourceBitDepth: bitDepth,
	}

	// An empty write still emits the header for zero-length sessions.
	if err := enc.Write(buf); err != nil {
		file.Close()
		return fmt.Errorf("write wav header: %w", err)
	}

	var data []int
	for _, chunk := range chunks {
		data = data[:0]
		for _, s := range chunk {
			data = append(data, int(s))
		}
		buf.Data = data
		if err := enc.Write(buf); err != nil {
			file.Close()
			return fmt.Errorf("write wav data: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		file.Close()
		return fmt.Errorf("close wav encoder: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close wav: %w", err)
	}
	return nil
}
