package snapshot

import "fmt"

// Ring stores serialized states in a bounded ring buffer for stepping
// gameplay backward. States are captured every `every` ticks; once the
// fixed capacity is reached the oldest entry is evicted. Capacity is set
// at construction and never resized.
type Ring struct {
	st       Stater
	buffer   [][]byte
	head     int // next write position
	count    int // valid entries
	capacity int
	every    int // capture every N ticks
	tick     int
}

// NewRing creates a rewind ring holding up to capacity snapshots, capturing
// one every `every` ticks (values below 1 mean every tick). A capacity
// below 1 disables rewind and returns nil.
func NewRing(st Stater, capacity, every int) *Ring {
	if capacity < 1 {
		return nil
	}
	if every < 1 {
		every = 1
	}
	return &Ring{
		st:       st,
		buffer:   make([][]byte, capacity),
		capacity: capacity,
		every:    every,
	}
}

// Capture serializes the current state into the ring, honoring the capture
// cadence. Call once per tick after the frame has run. A session without
// snapshot capability fails with ErrUnsupported; this includes a core that
// starts reporting a zero serialize size mid-run.
func (r *Ring) Capture() error {
	r.tick++
	if r.tick < r.every {
		return nil
	}
	r.tick = 0

	if r.st.SerializeSize() <= 0 {
		return ErrUnsupported
	}
	state, err := r.st.Serialize()
	if err != nil {
		return fmt.Errorf("snapshot: rewind capture: %w", err)
	}

	r.buffer[r.head] = state
	r.head = (r.head + 1) % r.capacity
	if r.count < r.capacity {
		r.count++
	}
	return nil
}

// Rewind discards the n most recent captures and restores the most recent
// remaining snapshot. It fails with ErrInsufficientHistory, leaving stored
// state untouched, when fewer than n+1 captures are available.
func (r *Ring) Rewind(n int) error {
	if n < 1 || n >= r.count {
		return ErrInsufficientHistory
	}

	// The entry to restore sits n+1 back from the write head.
	idx := (r.head - n - 1 + r.capacity) % r.capacity
	state := r.buffer[idx]
	if state == nil {
		return ErrInsufficientHistory
	}

	if err := r.st.Deserialize(state); err != nil {
		return fmt.Errorf("%w: %v", ErrDeserializeRejected, err)
	}

	// Commit the discard only after the core accepted the state.
	for i := 1; i <= n; i++ {
		r.buffer[(r.head-i+r.capacity)%r.capacity] = nil
	}
	r.head = (r.head - n + r.capacity) % r.capacity
	r.count -= n
	return nil
}

// Reset clears all captures. Call after loading a named snapshot so stale
// history cannot be rewound into.
func (r *Ring) Reset() {
	r.head = 0
	r.count = 0
	r.tick = 0
	for i := range r.buffer {
		r.buffer[i] = nil
	}
}

// Count returns the number of captures currently stored.
func (r *Ring) Count() int { return r.count }

// Capacity returns the fixed maximum number of captures.
func (r *Ring) Capacity() int { return r.capacity }
