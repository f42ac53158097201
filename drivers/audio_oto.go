package drivers

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/puterjam/arduboy-go/convert"
)

// Ring capacity in bytes: ~170ms of 48kHz stereo 16-bit audio. Deep enough
// to ride out scheduler jitter, shallow enough to stay responsive.
const otoRingCapacity = 32768

// The oto context is a process-wide singleton (an oto limitation); it is
// created once at the sample rate of the first driver to initialize. All
// other driver state is scoped to the OtoAudio instance.
var (
	otoCtx     *oto.Context
	otoRate    int
	otoInit    sync.Once
	otoInitErr error
)

func otoContext(sampleRate int) (*oto.Context, error) {
	otoInit.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   50 * time.Millisecond,
		}
		var ready chan struct{}
		otoCtx, ready, otoInitErr = oto.NewContext(op)
		if otoInitErr != nil {
			return
		}
		otoRate = sampleRate
		<-ready
	})
	if otoInitErr != nil {
		return nil, otoInitErr
	}
	if sampleRate != otoRate {
		return nil, fmt.Errorf("audio context already opened at %d Hz, cannot reopen at %d Hz", otoRate, sampleRate)
	}
	return otoCtx, nil
}

// OtoAudio plays audio through oto's pull-model player. Incoming mono
// samples are expanded to stereo and written to a drop-oldest ring buffer
// that the player drains on its own goroutine, so PlaySamples never blocks
// the tick loop.
type OtoAudio struct {
	volume float64

	player *oto.Player
	ring   *AudioRingBuffer
	stereo []int16
	bytes  []byte
}

// NewOtoAudio creates an oto audio driver with the given initial volume
// (0.0 silent to 1.0 full). Setting volume before playback starts avoids
// a pop when muted.
func NewOtoAudio(volume float64) *OtoAudio {
	if volume < 0 {
		volume = 0
	} else if volume > 1 {
		volume = 1
	}
	return &OtoAudio{volume: volume}
}

// Init implements Audio.
func (a *OtoAudio) Init(sampleRate int) error {
	ctx, err := otoContext(sampleRate)
	if err != nil {
		return fmt.Errorf("oto audio not available: %w", err)
	}

	a.ring = NewAudioRingBuffer(otoRingCapacity)
	a.player = ctx.NewPlayer(a.ring)
	a.player.SetVolume(a.volume)
	a.player.Play()
	return nil
}

// PlaySamples implements Audio. Mono input is duplicated into both stereo
// channels before queuing.
func (a *OtoAudio) PlaySamples(samples []int16) error {
	if a.ring == nil || len(samples) == 0 {
		return nil
	}

	a.stereo = convert.MonoToStereo(a.stereo, samples)

	need := len(a.stereo) * 2
	if cap(a.bytes) < need {
		a.bytes = make([]byte, 0, need)
	}
	a.bytes = a.bytes[:0]
	for _, s := range a.stereo {
		a.bytes = append(a.bytes, byte(s), byte(s>>8))
	}

	a.ring.Write(a.bytes)
	return nil
}

// Buffered returns the bytes of audio queued between the ring and the
// player's internal buffer. Useful when diagnosing pacing drift.
func (a *OtoAudio) Buffered() int {
	if a.ring == nil {
		return 0
	}
	n := a.ring.Buffered()
	if a.player != nil {
		n += a.player.BufferedSize()
	}
	return n
}

// SetVolume adjusts playback volume, clamped to [0, 1].
func (a *OtoAudio) SetVolume(volume float64) {
	if volume < 0 {
		volume = 0
	} else if volume > 1 {
		volume = 1
	}
	a.volume = volume
	if a.player != nil {
		a.player.SetVolume(volume)
	}
}

// Clear flushes all queued audio. Call after restoring a snapshot so stale
// audio does not play over the restored state.
func (a *OtoAudio) Clear() {
	if a.ring != nil {
		a.ring.Clear()
	}
}

// Close implements Audio.
func (a *OtoAudio) Close() {
	if a.ring != nil {
		a.ring.Close()
	}
	if a.player != nil {
		a.player.Close()
		a.player = nil
	}
}
