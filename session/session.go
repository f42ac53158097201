// Package session wraps an opaque emulation core behind a narrow,
// crash-isolated bridge. The session owns the core handle for its whole
// lifetime: the core is created during Initialize, stepped only through
// RunFrame, and closed exactly once during Cleanup.
package session

import (
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/puterjam/arduboy-go/content"
	"github.com/puterjam/arduboy-go/emucore"
)

// Sentinel errors for the session error taxonomy. Core and content load
// failures are fatal at initialization; a step failure is fatal mid-run
// because core state is no longer trustworthy.
var (
	ErrCoreLoad    = errors.New("session: core load failed")
	ErrContentLoad = errors.New("session: content load failed")
	ErrStep        = errors.New("session: core step failed")
)

type state int

const (
	stateUninitialized state = iota
	stateInitialized
	stateRunning
	stateStopped
)

func (s state) String() string {
	switch s {
	case stateUninitialized:
		return "Uninitialized"
	case stateInitialized:
		return "Initialized"
	case stateRunning:
		return "Running"
	case stateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Session is the bridge between the frame pump and an opaque core.
// It is driven by a single goroutine; callers that invoke snapshot
// operations out-of-band must pause the pump first.
type Session struct {
	loader emucore.Loader
	core   emucore.Core
	st     state

	corePath    string
	contentPath string
	contentID   string

	video emucore.VideoInfo
	audio emucore.AudioInfo

	input  emucore.InputState
	frames uint64
}

// NewSession creates a session that will load cores through loader.
func NewSession(loader emucore.Loader) *Session {
	return &Session{loader: loader}
}

// Initialize loads the core from corePath and feeds it the content at
// contentPath, then queries the core's video and audio constants. It is an
// idempotent no-op when the session is already initialized or running.
func (s *Session) Initialize(corePath, contentPath string) error {
	switch s.st {
	case stateInitialized, stateRunning:
		return nil
	case stateStopped:
		return fmt.Errorf("session: initialize in state %s", s.st)
	}

	core, err := s.loader.Load(corePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCoreLoad, err)
	}

	data, _, err := content.Load(contentPath, content.DefaultExtensions)
	if err != nil {
		core.Close()
		return fmt.Errorf("%w: %v", ErrContentLoad, err)
	}
	if err := core.LoadContent(data); err != nil {
		core.Close()
		return fmt.Errorf("%w: %v", ErrContentLoad, err)
	}

	s.core = core
	s.corePath = corePath
	s.contentPath = contentPath
	s.contentID = fmt.Sprintf("%08x", crc32.ChecksumIEEE(data))
	s.video = core.VideoInfo()
	s.audio = core.AudioInfo()
	s.frames = 0
	s.input = 0
	s.st = stateInitialized
	return nil
}

// Start transitions the session from Initialized to Running.
func (s *Session) Start() error {
	if s.st != stateInitialized {
		return fmt.Errorf("session: start in state %s", s.st)
	}
	s.st = stateRunning
	return nil
}

// RunFrame applies the latched input state and advances the core by exactly
// one emulated frame. This is the sole mutation point for core-internal
// state within a tick. A panic inside the core is recovered and reported as
// a step error; the core must be considered unusable afterwards.
func (s *Session) RunFrame() (err error) {
	if s.st != stateRunning {
		return fmt.Errorf("session: run frame in state %s", s.st)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: core panic: %v", ErrStep, r)
		}
	}()

	s.core.SetInput(s.input)
	s.core.RunFrame()
	s.frames++
	return nil
}

// Frame returns the current tick's native pixel buffer and pitch. It
// returns nil before the first RunFrame call. The buffer is read-only for
// the duration of the tick; drivers must copy to retain it.
func (s *Session) Frame() ([]byte, int) {
	if s.core == nil || s.frames == 0 {
		return nil, 0
	}
	return s.core.FrameBuffer()
}

// AudioSamples returns the current tick's native mono samples, or nil
// before the first RunFrame call.
func (s *Session) AudioSamples() []int16 {
	if s.core == nil || s.frames == 0 {
		return nil
	}
	return s.core.AudioSamples()
}

// SetInputState latches the input state for the next RunFrame call.
// Repeated calls before the next frame overwrite, they do not queue.
func (s *Session) SetInputState(input emucore.InputState) {
	s.input = input
}

// SerializeSize returns the core's snapshot blob size. Zero means the core
// does not support snapshotting; treat it as a capability flag.
func (s *Session) SerializeSize() int {
	if s.core == nil {
		return 0
	}
	return s.core.SerializeSize()
}

// Serialize captures the complete core state.
func (s *Session) Serialize() ([]byte, error) {
	if s.core == nil {
		return nil, fmt.Errorf("session: serialize in state %s", s.st)
	}
	return s.core.Serialize()
}

// Deserialize restores core state from a snapshot blob.
func (s *Session) Deserialize(data []byte) error {
	if s.core == nil {
		return fmt.Errorf("session: deserialize in state %s", s.st)
	}
	return s.core.Deserialize(data)
}

// Reset reloads the core and content from their original paths and starts
// the session again. All transient state, including the frame counter and
// the input latch, is discarded.
func (s *Session) Reset() error {
	if s.st == stateUninitialized {
		return fmt.Errorf("session: reset in state %s", s.st)
	}
	corePath, contentPath := s.corePath, s.contentPath
	s.Cleanup()
	if err := s.Initialize(corePath, contentPath); err != nil {
		return err
	}
	return s.Start()
}

// Stop transitions a running session to Stopped. The core remains loaded
// until Cleanup.
func (s *Session) Stop() {
	if s.st == stateRunning {
		s.st = stateStopped
	}
}

// Cleanup releases the core handle. It is idempotent and safe to call in
// any state; once it begins no further core methods are invoked.
func (s *Session) Cleanup() {
	s.st = stateUninitialized
	if s.core != nil {
		core := s.core
		s.core = nil
		core.Close()
	}
	s.frames = 0
	s.input = 0
}

// VideoInfo returns the core-reported video constants.
func (s *Session) VideoInfo() emucore.VideoInfo { return s.video }

// AudioInfo returns the core-reported audio constants.
func (s *Session) AudioInfo() emucore.AudioInfo { return s.audio }

// IsRunning reports whether the session is in the Running state.
func (s *Session) IsRunning() bool { return s.st == stateRunning }

// FrameCount returns the number of frames run since Initialize or Reset.
func (s *Session) FrameCount() uint64 { return s.frames }

// ContentID returns a stable identifier for the loaded content (CRC32 of
// the content bytes), used to key snapshot files on disk.
func (s *Session) ContentID() string { return s.contentID }
