package drivers

import (
	"io"
	"sync"
)

// AudioRingBuffer is a fixed-capacity byte ring shared between the tick
// thread (writer) and an audio player's pull goroutine (reader). Writes
// never block: when the ring is full the oldest data is dropped to make
// room. Reads never block either: an underrun is padded with silence so a
// pull-model player keeps a steady cadence.
type AudioRingBuffer struct {
	mu     sync.Mutex
	buf    []byte
	start  int // oldest byte
	length int
	closed bool
}

// NewAudioRingBuffer creates a ring holding up to capacity bytes.
func NewAudioRingBuffer(capacity int) *AudioRingBuffer {
	return &AudioRingBuffer{buf: make([]byte, capacity)}
}

// Write appends p to the ring, dropping the oldest queued bytes on
// overflow. It never blocks.
func (rb *AudioRingBuffer) Write(p []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closed || len(rb.buf) == 0 {
		return
	}

	// Writes larger than the ring keep only the tail.
	if len(p) > len(rb.buf) {
		p = p[len(p)-len(rb.buf):]
	}

	// Evict oldest data to make room.
	if overflow := rb.length + len(p) - len(rb.buf); overflow > 0 {
		rb.start = (rb.start + overflow) % len(rb.buf)
		rb.length -= overflow
	}

	pos := (rb.start + rb.length) % len(rb.buf)
	n := copy(rb.buf[pos:], p)
	copy(rb.buf, p[n:])
	rb.length += len(p)
}

// Read fills p with queued audio. When less data is buffered than
// requested the remainder is zero-filled, so the player hears silence on
// underrun instead of stalling. Returns io.EOF after Close.
func (rb *AudioRingBuffer) Read(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closed {
		return 0, io.EOF
	}

	n := rb.length
	if n > len(p) {
		n = len(p)
	}
	for i := 0; i < n; i++ {
		p[i] = rb.buf[(rb.start+i)%len(rb.buf)]
	}
	rb.start = (rb.start + n) % len(rb.buf)
	rb.length -= n

	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

// Buffered returns the number of queued bytes.
func (rb *AudioRingBuffer) Buffered() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.length
}

// Clear discards all queued audio.
func (rb *AudioRingBuffer) Clear() {
	rb.mu.Lock()
	rb.start = 0
	rb.length = 0
	rb.mu.Unlock()
}

// Close marks the ring closed; subsequent reads return io.EOF.
func (rb *AudioRingBuffer) Close() {
	rb.mu.Lock()
	rb.closed = true
	rb.mu.Unlock()
}
