package runtime

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/puterjam/arduboy-go/drivers"
	"github.com/puterjam/arduboy-go/emucore"
	"github.com/puterjam/arduboy-go/session"
	"github.com/puterjam/arduboy-go/snapshot"
)

// fakeCore steps a counter and serializes it, so tests can observe both
// progress and state restoration.
type fakeCore struct {
	mu          sync.Mutex
	frames      byte
	restored    int
	panicOnStep bool
	stateSize   int
}

func (c *fakeCore) LoadContent(data []byte) error { return nil }

func (c *fakeCore) VideoInfo() emucore.VideoInfo {
	return emucore.VideoInfo{Width: 4, Height: 4, Format: emucore.PixelRGB565}
}

func (c *fakeCore) AudioInfo() emucore.AudioInfo {
	return emucore.AudioInfo{SampleRate: 16000}
}

func (c *fakeCore) RunFrame() {
	if c.panicOnStep {
		panic("illegal opcode")
	}
	c.mu.Lock()
	c.frames++
	c.mu.Unlock()
}

func (c *fakeCore) FrameBuffer() ([]byte, int) { return make([]byte, 4*4*2), 8 }

func (c *fakeCore) AudioSamples() []int16 { return []int16{100, -100} }

func (c *fakeCore) SetInput(state emucore.InputState) {}

func (c *fakeCore) SerializeSize() int { return c.stateSize }

func (c *fakeCore) Serialize() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return []byte{c.frames}, nil
}

func (c *fakeCore) Deserialize(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = data[0]
	c.restored++
	return nil
}

func (c *fakeCore) Close() {}

func (c *fakeCore) restoreCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restored
}

// failVideo refuses to initialize.
type failVideo struct{ drivers.NullVideo }

func (f *failVideo) Init(width, height int) error {
	return fmt.Errorf("no display available")
}

// brokenVideo initializes but fails every render.
type brokenVideo struct{ drivers.NullVideo }

func (b *brokenVideo) Render(frame *drivers.Frame) error {
	return fmt.Errorf("display disconnected")
}

// failAudio refuses to initialize.
type failAudio struct{ drivers.NullAudio }

func (f *failAudio) Init(sampleRate int) error {
	return fmt.Errorf("no audio device")
}

func newSession(t *testing.T, core *fakeCore) *session.Session {
	t.Helper()
	game := filepath.Join(t.TempDir(), "game.hex")
	if err := os.WriteFile(game, []byte(":00000001FF\n"), 0644); err != nil {
		t.Fatal(err)
	}
	loader := emucore.LoaderFunc(func(path string) (emucore.Core, error) {
		return core, nil
	})
	s := session.NewSession(loader)
	if err := s.Initialize("core.so", game); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return s
}

// waitFrames polls until the runtime has run at least n frames.
func waitFrames(t *testing.T, rt *Runtime, n uint64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		if frames, _ := rt.Stats(); frames >= n {
			return
		}
		if time.Now().After(deadline) {
			frames, _ := rt.Stats()
			t.Fatalf("timed out at %d frames waiting for %d", frames, n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRunMaxFrames(t *testing.T) {
	core := &fakeCore{}
	video := &drivers.NullVideo{}
	audio := &drivers.NullAudio{}
	rt := New(newSession(t, core), Config{TargetFPS: 1000, MaxFrames: 10},
		WithVideo(video), WithAudio(audio))

	if err := rt.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}

	frames, _ := rt.Stats()
	if frames != 10 {
		t.Errorf("frames = %d, want 10", frames)
	}
	if video.Frames() != 10 {
		t.Errorf("rendered frames = %d, want 10", video.Frames())
	}
	if audio.Samples() != 20 {
		t.Errorf("audio samples = %d, want 20", audio.Samples())
	}
}

func TestRunPacing(t *testing.T) {
	if testing.Short() {
		t.Skip("wall-clock pacing test")
	}
	core := &fakeCore{}
	rt := New(newSession(t, core), Config{TargetFPS: 60, MaxFrames: 120})

	start := time.Now()
	if err := rt.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	elapsed := time.Since(start)

	// 120 frames at 60 FPS is 2s of emulated time; allow for scheduler
	// jitter but catch a loop that free-runs or oversleeps.
	if elapsed < 1700*time.Millisecond {
		t.Errorf("120 frames at 60fps finished in %v, pacing not applied", elapsed)
	}
	if elapsed > 2600*time.Millisecond {
		t.Errorf("120 frames at 60fps took %v", elapsed)
	}
}

func TestVideoInitFallback(t *testing.T) {
	core := &fakeCore{}
	rt := New(newSession(t, core), Config{TargetFPS: 1000, MaxFrames: 5},
		WithVideo(&failVideo{}))

	if err := rt.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if frames, _ := rt.Stats(); frames != 5 {
		t.Errorf("frames = %d, want 5 despite failed video init", frames)
	}
}

func TestAudioInitFallback(t *testing.T) {
	core := &fakeCore{}
	rt := New(newSession(t, core), Config{TargetFPS: 1000, MaxFrames: 5},
		WithAudio(&failAudio{}))

	if err := rt.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if frames, _ := rt.Stats(); frames != 5 {
		t.Errorf("frames = %d, want 5 despite failed audio init", frames)
	}
}

func TestRenderErrorNotFatal(t *testing.T) {
	core := &fakeCore{}
	rt := New(newSession(t, core), Config{TargetFPS: 1000, MaxFrames: 5},
		WithVideo(&brokenVideo{}))

	if err := rt.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if frames, _ := rt.Stats(); frames != 5 {
		t.Errorf("frames = %d, want 5 despite render errors", frames)
	}
}

func TestStepErrorFatal(t *testing.T) {
	core := &fakeCore{panicOnStep: true}
	rt := New(newSession(t, core), Config{TargetFPS: 1000, MaxFrames: 5})

	err := rt.Run()
	if !errors.Is(err, session.ErrStep) {
		t.Errorf("err = %v, want ErrStep", err)
	}
}

func TestStop(t *testing.T) {
	core := &fakeCore{}
	rt := New(newSession(t, core), Config{TargetFPS: 1000})

	done := make(chan error, 1)
	go func() { done <- rt.Run() }()

	waitFrames(t, rt, 1)
	rt.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runtime did not stop")
	}
}

func TestPauseHaltsFrames(t *testing.T) {
	core := &fakeCore{}
	rt := New(newSession(t, core), Config{TargetFPS: 1000})

	done := make(chan error, 1)
	go func() { done <- rt.Run() }()
	defer func() {
		rt.Stop()
		<-done
	}()

	waitFrames(t, rt, 1)
	rt.Pause()
	if !rt.IsPaused() {
		t.Error("not paused after Pause returned")
	}

	frames, _ := rt.Stats()
	time.Sleep(50 * time.Millisecond)
	after, _ := rt.Stats()
	if after != frames {
		t.Errorf("frames advanced from %d to %d while paused", frames, after)
	}

	rt.Resume()
	waitFrames(t, rt, after+1)
}

func TestPauseAfterRunCompletes(t *testing.T) {
	core := &fakeCore{}
	rt := New(newSession(t, core), Config{TargetFPS: 1000, MaxFrames: 3})

	if err := rt.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}

	// The loop is gone; Pause has nobody to wait for and must return.
	done := make(chan struct{})
	go func() {
		rt.Pause()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Pause blocked after the run completed")
	}
}

func TestRewindDuringRun(t *testing.T) {
	core := &fakeCore{stateSize: 1}
	rt := New(newSession(t, core), Config{TargetFPS: 1000, RewindCapacity: 32, RewindEvery: 1})

	done := make(chan error, 1)
	go func() { done <- rt.Run() }()
	defer func() {
		rt.Stop()
		<-done
	}()

	waitFrames(t, rt, 10)
	if err := rt.Rewind(3); err != nil {
		t.Fatalf("rewind: %v", err)
	}
	if core.restoreCount() != 1 {
		t.Errorf("core restored %d times, want 1", core.restoreCount())
	}
	if rt.IsPaused() {
		t.Error("runtime still paused after Rewind")
	}
}

func TestRewindDisabled(t *testing.T) {
	core := &fakeCore{stateSize: 1}
	rt := New(newSession(t, core), Config{TargetFPS: 1000, MaxFrames: 3})
	if err := rt.Run(); err != nil {
		t.Fatal(err)
	}
	if err := rt.Rewind(1); !errors.Is(err, snapshot.ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported with rewind disabled", err)
	}
}

func TestSnapshotSlotsDuringRun(t *testing.T) {
	core := &fakeCore{stateSize: 1}
	dir := t.TempDir()
	rt := New(newSession(t, core), Config{TargetFPS: 1000, SnapshotDir: dir})

	done := make(chan error, 1)
	go func() { done <- rt.Run() }()
	defer func() {
		rt.Stop()
		<-done
	}()

	waitFrames(t, rt, 5)
	if err := rt.SaveSlot(snapshot.Slot(0)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := rt.LoadSlot(snapshot.Slot(0)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if core.restoreCount() != 1 {
		t.Errorf("core restored %d times, want 1", core.restoreCount())
	}

	slots := rt.Snapshots().List()
	if len(slots) != 1 || slots[0] != snapshot.Slot(0) {
		t.Errorf("slots = %v, want [0]", slots)
	}
}

func TestSnapshotsDisabled(t *testing.T) {
	core := &fakeCore{stateSize: 1}
	rt := New(newSession(t, core), Config{TargetFPS: 1000, MaxFrames: 3})
	if err := rt.Run(); err != nil {
		t.Fatal(err)
	}
	if rt.Snapshots() != nil {
		t.Error("expected nil snapshot manager with no state dir")
	}
	if err := rt.SaveSlot(snapshot.Slot(0)); !errors.Is(err, snapshot.ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}
