// Package drivers defines the pluggable video, audio, and input back-end
// contracts consumed by the frame pump, together with the bundled
// implementations: null variants for headless runs and tests, an oto
// playback driver, a WAV-file audio sink, an ebiten window that doubles as
// keyboard input, and a terminal renderer.
//
// Drivers may run background goroutines internally but must present a
// synchronous, non-blocking surface: Poll returns immediately with the
// latest known state, PlaySamples enqueues and returns, and Render must
// not block past one frame interval.
package drivers

import (
	"sync"

	"github.com/puterjam/arduboy-go/emucore"
)

// Frame is one tick's converted video output: tightly packed RGBA pixels
// (stride = Width*4). It is read-only for the duration of the tick;
// drivers copy it if they need persistence.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// Video displays converted frames.
type Video interface {
	// Init prepares the display for frames of the given dimensions.
	Init(width, height int) error

	// Render shows one frame. Implementations that cannot keep up must
	// drop frames rather than stall the caller.
	Render(frame *Frame) error

	// Close releases the display.
	Close()

	// IsRunning reports whether the display is still available.
	IsRunning() bool
}

// Audio plays converted sample blocks.
type Audio interface {
	// Init prepares playback at the given sample rate.
	Init(sampleRate int) error

	// PlaySamples enqueues mono int16 samples without blocking,
	// dropping the oldest queued data on overflow.
	PlaySamples(samples []int16) error

	// Close releases the audio device.
	Close()
}

// Input produces the current button state.
type Input interface {
	// Init prepares the input device.
	Init() error

	// Poll returns the latest known state without blocking. It may
	// repeat the previous state when no new event has arrived.
	Poll() emucore.InputState

	// Close releases the input device.
	Close()

	// IsRunning reports whether the input device is still available.
	IsRunning() bool
}

// NullVideo is a video driver that discards all frames. It counts renders
// so headless runs and tests can observe output cadence.
type NullVideo struct {
	mu      sync.Mutex
	running bool
	frames  uint64
}

// Init implements Video.
func (v *NullVideo) Init(width, height int) error {
	v.mu.Lock()
	v.running = true
	v.mu.Unlock()
	return nil
}

// Render implements Video.
func (v *NullVideo) Render(frame *Frame) error {
	v.mu.Lock()
	v.frames++
	v.mu.Unlock()
	return nil
}

// Close implements Video.
func (v *NullVideo) Close() {
	v.mu.Lock()
	v.running = false
	v.mu.Unlock()
}

// IsRunning implements Video.
func (v *NullVideo) IsRunning() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.running
}

// Frames returns the number of rendered frames.
func (v *NullVideo) Frames() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frames
}

// NullAudio is an audio driver that discards all samples.
type NullAudio struct {
	mu      sync.Mutex
	rate    int
	samples uint64
}

// Init implements Audio.
func (a *NullAudio) Init(sampleRate int) error {
	a.mu.Lock()
	a.rate = sampleRate
	a.mu.Unlock()
	return nil
}

// PlaySamples implements Audio.
func (a *NullAudio) PlaySamples(samples []int16) error {
	a.mu.Lock()
	a.samples += uint64(len(samples))
	a.mu.Unlock()
	return nil
}

// Close implements Audio.
func (a *NullAudio) Close() {}

// Samples returns the total number of discarded samples.
func (a *NullAudio) Samples() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.samples
}

// NullInput is an input driver that reports no buttons pressed.
type NullInput struct {
	mu      sync.Mutex
	running bool
}

// Init implements Input.
func (i *NullInput) Init() error {
	i.mu.Lock()
	i.running = true
	i.mu.Unlock()
	return nil
}

// Poll implements Input.
func (i *NullInput) Poll() emucore.InputState { return 0 }

// Close implements Input.
func (i *NullInput) Close() {
	i.mu.Lock()
	i.running = false
	i.mu.Unlock()
}

// IsRunning implements Input.
func (i *NullInput) IsRunning() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.running
}
