// Package runtime drives an emulation session in real time: one
// cooperative tick loop that polls input, steps the core, converts the
// native frame, and hands the results to pluggable video, audio and input
// drivers. The loop runs on a dedicated goroutine; pause, resume, stop and
// all snapshot operations synchronize with it through Control.
package runtime

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/puterjam/arduboy-go/convert"
	"github.com/puterjam/arduboy-go/drivers"
	"github.com/puterjam/arduboy-go/session"
	"github.com/puterjam/arduboy-go/snapshot"
)

// Stats are logged every statsInterval frames.
const statsInterval = 300

// Config holds the tunables of a runtime.
type Config struct {
	// TargetFPS is the tick rate; 0 means 60.
	TargetFPS float64
	// MaxFrames stops the loop after that many frames; 0 means unbounded.
	MaxFrames uint64
	// AudioVolume scales samples before they reach the audio driver,
	// clamped to [0, 1]. Defaults to 1 when negative.
	AudioVolume float64
	// RewindCapacity is the number of rewind captures kept; 0 disables
	// rewind.
	RewindCapacity int
	// RewindEvery captures one rewind state every N ticks (minimum 1).
	RewindEvery int
	// SnapshotDir is where named snapshot slots are persisted; empty
	// disables snapshot slots.
	SnapshotDir string
}

func (c *Config) fillDefaults() {
	if c.TargetFPS <= 0 {
		c.TargetFPS = 60
	}
	if c.AudioVolume < 0 {
		c.AudioVolume = 1
	}
	if c.AudioVolume > 1 {
		c.AudioVolume = 1
	}
	if c.RewindEvery < 1 {
		c.RewindEvery = 1
	}
}

// Option configures a Runtime at construction.
type Option func(*Runtime)

// WithVideo sets the video driver. Without one the null driver is used.
func WithVideo(v drivers.Video) Option {
	return func(r *Runtime) { r.video = v }
}

// WithAudio sets the audio driver. Without one the null driver is used.
func WithAudio(a drivers.Audio) Option {
	return func(r *Runtime) { r.audio = a }
}

// WithInput sets the input driver. Without one the null driver is used.
func WithInput(in drivers.Input) Option {
	return func(r *Runtime) { r.input = in }
}

// Resetter is implemented by drivers that can request a session reset,
// such as a window with a reset key. ResetRequested consumes the request.
type Resetter interface {
	ResetRequested() bool
}

// AudioClearer is implemented by drivers with queued audio that should be
// flushed when state jumps backward (reset, rewind, snapshot load).
type AudioClearer interface {
	Clear()
}

// Runtime owns the tick loop for one session.
type Runtime struct {
	sess *session.Session
	cfg  Config
	ctl  *Control

	video drivers.Video
	audio drivers.Audio
	input drivers.Input

	ring  *snapshot.Ring
	snaps *snapshot.Manager

	// Conversion scratch, reused across ticks.
	rgba  []byte
	gains []int16

	// Driver errors are logged once per distinct message so a driver that
	// fails every tick cannot flood the log.
	logged map[string]bool

	statsMu sync.Mutex
	frames  uint64
	fps     float64
}

// New creates a runtime for sess. The session must already be initialized
// so the content identity is known; Run starts it if needed.
func New(sess *session.Session, cfg Config, opts ...Option) *Runtime {
	cfg.fillDefaults()
	r := &Runtime{
		sess:   sess,
		cfg:    cfg,
		ctl:    NewControl(),
		logged: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.video == nil {
		r.video = &drivers.NullVideo{}
	}
	if r.audio == nil {
		r.audio = &drivers.NullAudio{}
	}
	if r.input == nil {
		r.input = &drivers.NullInput{}
	}
	r.ring = snapshot.NewRing(sess, cfg.RewindCapacity, cfg.RewindEvery)
	if cfg.SnapshotDir != "" {
		r.snaps = snapshot.NewManager(cfg.SnapshotDir, sess.ContentID(), sess)
	}
	return r
}

// Snapshots returns the snapshot manager, or nil when snapshots are
// disabled.
func (r *Runtime) Snapshots() *snapshot.Manager {
	return r.snaps
}

// Run executes the tick loop until Stop is called, the video driver stops,
// MaxFrames is reached, or a fatal step error occurs. It blocks; call it
// on a dedicated goroutine when the display owns the main one.
func (r *Runtime) Run() error {
	if !r.sess.IsRunning() {
		if err := r.sess.Start(); err != nil {
			return err
		}
	}

	video := r.sess.VideoInfo()
	audio := r.sess.AudioInfo()

	// A driver that cannot initialize is replaced by its null variant so
	// the session keeps running headless on that surface.
	if err := r.video.Init(video.Width, video.Height); err != nil {
		log.Printf("video driver init failed, using null video: %v", err)
		r.video = &drivers.NullVideo{}
		r.video.Init(video.Width, video.Height)
	}
	if err := r.audio.Init(audio.SampleRate); err != nil {
		log.Printf("audio driver init failed, using null audio: %v", err)
		r.audio = &drivers.NullAudio{}
		r.audio.Init(audio.SampleRate)
	}
	if err := r.input.Init(); err != nil {
		log.Printf("input driver init failed, using null input: %v", err)
		r.input = &drivers.NullInput{}
		r.input.Init()
	}

	defer func() {
		r.input.Close()
		r.audio.Close()
		r.video.Close()
		r.sess.Stop()
	}()

	r.ctl.setActive(true)
	defer r.ctl.setActive(false)

	frameTime := time.Duration(float64(time.Second) / r.cfg.TargetFPS)
	lastFrame := time.Now()

	windowStart := time.Now()
	windowFrames := 0

	for {
		if !r.ctl.CheckPause() {
			return nil
		}
		if !r.video.IsRunning() {
			return nil
		}

		r.pollInput()

		if err := r.sess.RunFrame(); err != nil {
			return fmt.Errorf("frame %d: %w", r.sess.FrameCount(), err)
		}

		r.renderFrame(video.Width, video.Height)
		r.playAudio()

		if r.ring != nil {
			if err := r.ring.Capture(); err != nil && !errors.Is(err, snapshot.ErrUnsupported) {
				r.logOnce("rewind capture failed: %v", err)
			}
		}

		r.checkReset()

		frames := r.bumpStats(&windowStart, &windowFrames)
		if r.cfg.MaxFrames > 0 && frames >= r.cfg.MaxFrames {
			return nil
		}

		elapsed := time.Since(lastFrame)
		if sleep := frameTime - elapsed; sleep > time.Millisecond {
			time.Sleep(sleep)
		}
		lastFrame = time.Now()
	}
}

// pollInput reads the input driver and latches the result on the session.
// A panicking driver is treated as a per-tick error: logged once, input
// latch left as-is.
func (r *Runtime) pollInput() {
	defer func() {
		if rec := recover(); rec != nil {
			r.logOnce("input driver panic: %v", rec)
		}
	}()
	r.sess.SetInputState(r.input.Poll())
}

// renderFrame converts the native frame to RGBA and hands it to the video
// driver. Driver failures are per-tick: logged once, never fatal.
func (r *Runtime) renderFrame(width, height int) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logOnce("video driver panic: %v", rec)
		}
	}()

	pix, pitch := r.sess.Frame()
	if pix == nil {
		return
	}
	r.rgba = convert.ToRGBA(r.rgba, pix, r.sess.VideoInfo(), pitch)
	frame := &drivers.Frame{Width: width, Height: height, Pix: r.rgba}
	if err := r.video.Render(frame); err != nil {
		r.logOnce("video render failed: %v", err)
	}
}

// playAudio applies the configured volume and queues this tick's samples.
func (r *Runtime) playAudio() {
	defer func() {
		if rec := recover(); rec != nil {
			r.logOnce("audio driver panic: %v", rec)
		}
	}()

	samples := r.sess.AudioSamples()
	if len(samples) == 0 {
		return
	}

	if r.cfg.AudioVolume != 1 {
		if cap(r.gains) < len(samples) {
			r.gains = make([]int16, len(samples))
		}
		r.gains = r.gains[:len(samples)]
		copy(r.gains, samples)
		convert.ApplyGain(r.gains, r.cfg.AudioVolume)
		samples = r.gains
	}

	if err := r.audio.PlaySamples(samples); err != nil {
		r.logOnce("audio playback failed: %v", err)
	}
}

// checkReset services a reset request from the input or video driver.
func (r *Runtime) checkReset() {
	requested := false
	if rs, ok := r.input.(Resetter); ok && rs.ResetRequested() {
		requested = true
	} else if rs, ok := r.video.(Resetter); ok && rs.ResetRequested() {
		requested = true
	}
	if !requested {
		return
	}

	if err := r.sess.Reset(); err != nil {
		log.Printf("session reset failed: %v", err)
		return
	}
	r.afterStateJump()
	log.Printf("session reset")
}

// afterStateJump clears history that no longer matches the core state.
func (r *Runtime) afterStateJump() {
	if r.ring != nil {
		r.ring.Reset()
	}
	if ac, ok := r.audio.(AudioClearer); ok {
		ac.Clear()
	}
}

// bumpStats advances the frame counter and the rolling FPS estimate, and
// logs a stats line every statsInterval frames. Returns the new total.
func (r *Runtime) bumpStats(windowStart *time.Time, windowFrames *int) uint64 {
	*windowFrames++
	var fps float64
	if elapsed := time.Since(*windowStart); elapsed >= time.Second {
		fps = float64(*windowFrames) / elapsed.Seconds()
		*windowStart = time.Now()
		*windowFrames = 0
	}

	r.statsMu.Lock()
	r.frames++
	if fps > 0 {
		r.fps = fps
	}
	frames, cur := r.frames, r.fps
	r.statsMu.Unlock()

	if frames%statsInterval == 0 {
		log.Printf("frames=%d fps=%.1f", frames, cur)
	}
	return frames
}

// Stats returns the total frames run and the most recent FPS estimate.
func (r *Runtime) Stats() (frames uint64, fps float64) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.frames, r.fps
}

// Pause parks the tick loop between frames and blocks until it has parked.
func (r *Runtime) Pause() { r.ctl.RequestPause() }

// Resume unparks the tick loop.
func (r *Runtime) Resume() { r.ctl.RequestResume() }

// Stop asks the tick loop to exit. Run returns once the current tick
// finishes.
func (r *Runtime) Stop() { r.ctl.Stop() }

// IsPaused reports whether the tick loop is parked.
func (r *Runtime) IsPaused() bool { return r.ctl.IsPaused() }

// withPaused runs fn with the tick loop parked, restoring the previous
// pause state afterwards.
func (r *Runtime) withPaused(fn func() error) error {
	wasPaused := r.ctl.IsPaused()
	if !wasPaused {
		r.ctl.RequestPause()
	}
	err := fn()
	if !wasPaused {
		r.ctl.RequestResume()
	}
	return err
}

// SaveSlot pauses the loop and saves the current state into slot.
func (r *Runtime) SaveSlot(slot snapshot.Slot) error {
	if r.snaps == nil {
		return snapshot.ErrUnsupported
	}
	return r.withPaused(func() error {
		return r.snaps.Save(slot)
	})
}

// LoadSlot pauses the loop, restores slot, and discards rewind history and
// queued audio that no longer match the restored state.
func (r *Runtime) LoadSlot(slot snapshot.Slot) error {
	if r.snaps == nil {
		return snapshot.ErrUnsupported
	}
	return r.withPaused(func() error {
		if err := r.snaps.Load(slot); err != nil {
			return err
		}
		r.afterStateJump()
		return nil
	})
}

// Rewind pauses the loop and steps the session n captures backward.
func (r *Runtime) Rewind(n int) error {
	if r.ring == nil {
		return snapshot.ErrUnsupported
	}
	return r.withPaused(func() error {
		if err := r.ring.Rewind(n); err != nil {
			return err
		}
		if ac, ok := r.audio.(AudioClearer); ok {
			ac.Clear()
		}
		return nil
	})
}

func (r *Runtime) logOnce(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if r.logged[msg] {
		return
	}
	r.logged[msg] = true
	log.Print(msg)
}
