package runtime

import (
	"sync"
	"time"
)

// Control coordinates pause, resume and stop between the tick goroutine
// and whoever drives it (a window thread, a signal handler, a test).
type Control struct {
	mu       sync.Mutex
	active   bool
	pauseReq bool
	paused   bool
	running  bool
	stopReq  bool
	ackCh    chan struct{}
}

// NewControl creates a control in the running state.
func NewControl() *Control {
	return &Control{
		running: true,
		ackCh:   make(chan struct{}, 1),
	}
}

// setActive marks whether the tick loop is live. RequestPause only waits
// for an acknowledgment while the loop is live; otherwise there is nobody
// to acknowledge and waiting would hang forever. Going inactive wakes any
// waiter still parked in RequestPause.
func (c *Control) setActive(active bool) {
	c.mu.Lock()
	c.active = active
	c.mu.Unlock()
	if !active {
		select {
		case c.ackCh <- struct{}{}:
		default:
		}
	}
}

// RequestPause asks the tick goroutine to pause and blocks until it parks
// or the loop exits. Safe to call when already paused or when the loop is
// not running; both latch the request and return immediately.
func (c *Control) RequestPause() {
	c.mu.Lock()
	if c.paused || c.pauseReq || !c.active || !c.running || c.stopReq {
		if !c.paused && !c.pauseReq {
			c.pauseReq = true
		}
		c.mu.Unlock()
		return
	}
	c.pauseReq = true
	// Drop any ack left over from an earlier pause nobody consumed, so we
	// wait on a fresh one.
	select {
	case <-c.ackCh:
	default:
	}
	c.mu.Unlock()

	<-c.ackCh
}

// RequestResume clears the pause.
func (c *Control) RequestResume() {
	c.mu.Lock()
	c.pauseReq = false
	c.paused = false
	c.mu.Unlock()
}

// CheckPause is called by the tick goroutine between frames. If a pause
// was requested it acknowledges and spins until resumed or stopped.
// Returns false when the goroutine should exit.
func (c *Control) CheckPause() bool {
	c.mu.Lock()
	if !c.running || c.stopReq {
		c.mu.Unlock()
		return false
	}
	if !c.pauseReq {
		c.mu.Unlock()
		return true
	}

	c.paused = true
	c.mu.Unlock()

	// Non-blocking ack; the channel is buffered so a waiter that gave up
	// does not strand the loop.
	select {
	case c.ackCh <- struct{}{}:
	default:
	}

	for {
		c.mu.Lock()
		if !c.running || c.stopReq {
			c.mu.Unlock()
			return false
		}
		if !c.pauseReq {
			c.paused = false
			c.mu.Unlock()
			return true
		}
		// A resume-then-pause cycle faster than the sleep interval lands
		// here with paused cleared and a new waiter blocked; acknowledge it.
		if !c.paused {
			c.paused = true
			c.mu.Unlock()
			select {
			case c.ackCh <- struct{}{}:
			default:
			}
			continue
		}
		c.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
}

// Stop signals the tick goroutine to exit. Clears any pending pause so
// CheckPause unblocks, and wakes any waiter parked in RequestPause.
func (c *Control) Stop() {
	c.mu.Lock()
	c.running = false
	c.stopReq = true
	c.pauseReq = false
	c.mu.Unlock()
	select {
	case c.ackCh <- struct{}{}:
	default:
	}
}

// ShouldRun reports whether the tick goroutine should keep running.
func (c *Control) ShouldRun() bool {
	c.mu.Lock()
	r := c.running && !c.stopReq
	c.mu.Unlock()
	return r
}

// IsPaused reports whether the tick goroutine is parked in CheckPause.
func (c *Control) IsPaused() bool {
	c.mu.Lock()
	p := c.paused
	c.mu.Unlock()
	return p
}
