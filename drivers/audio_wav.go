package drivers

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WavAudio records the session's audio to a mono 16-bit WAV file instead
// of playing it. Intended for bounded headless runs where the output is
// inspected offline.
type WavAudio struct {
	path string

	f   *os.File
	enc *wav.Encoder
	buf *audio.IntBuffer
}

// NewWavAudio creates a WAV-file audio sink writing to path.
func NewWavAudio(path string) *WavAudio {
	return &WavAudio{path: path}
}

// Init implements Audio.
func (w *WavAudio) Init(sampleRate int) error {
	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("failed to create wav file: %w", err)
	}
	w.f = f
	w.enc = wav.NewEncoder(f, sampleRate, 16, 1, 1)
	w.buf = &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}
	return nil
}

// PlaySamples implements Audio. File writes are buffered by the encoder;
// a tick's worth of samples is far below anything that could stall the
// caller.
func (w *WavAudio) PlaySamples(samples []int16) error {
	if w.enc == nil || len(samples) == 0 {
		return nil
	}

	if cap(w.buf.Data) < len(samples) {
		w.buf.Data = make([]int, len(samples))
	}
	w.buf.Data = w.buf.Data[:len(samples)]
	for i, s := range samples {
		w.buf.Data[i] = int(s)
	}

	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("wav write failed: %w", err)
	}
	return nil
}

// Close implements Audio, finalizing the WAV header.
func (w *WavAudio) Close() {
	if w.enc != nil {
		w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		w.f.Close()
		w.f = nil
	}
}
