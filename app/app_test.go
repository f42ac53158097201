package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/puterjam/arduboy-go/drivers"
	"github.com/puterjam/arduboy-go/emucore"
	"github.com/puterjam/arduboy-go/runtime"
)

type fakeCore struct {
	frames int
}

func (c *fakeCore) LoadContent(data []byte) error { return nil }

func (c *fakeCore) VideoInfo() emucore.VideoInfo {
	return emucore.VideoInfo{Width: 8, Height: 8, Format: emucore.PixelRGB565}
}

func (c *fakeCore) AudioInfo() emucore.AudioInfo {
	return emucore.AudioInfo{SampleRate: 16000}
}

func (c *fakeCore) RunFrame() { c.frames++ }

func (c *fakeCore) FrameBuffer() ([]byte, int) { return make([]byte, 8*8*2), 16 }

func (c *fakeCore) AudioSamples() []int16 { return []int16{0, 0} }

func (c *fakeCore) SetInput(state emucore.InputState) {}

func (c *fakeCore) SerializeSize() int { return 0 }

func (c *fakeCore) Serialize() ([]byte, error) { return nil, nil }

func (c *fakeCore) Deserialize(data []byte) error { return nil }

func (c *fakeCore) Close() {}

func testLoader(core *fakeCore) emucore.Loader {
	return emucore.LoaderFunc(func(path string) (emucore.Core, error) {
		return core, nil
	})
}

func gameFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "game.hex")
	if err := os.WriteFile(path, []byte(":00000001FF\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunHeadlessFrameLimit(t *testing.T) {
	core := &fakeCore{}
	args := []string{"core.so", gameFile(t),
		"--video", "none", "--audio", "none",
		"--frames", "5", "--fps", "1000"}

	if err := Run(testLoader(core), args); err != nil {
		t.Fatalf("run: %v", err)
	}
	if core.frames != 5 {
		t.Errorf("core ran %d frames, want 5", core.frames)
	}
}

func TestRunMissingGame(t *testing.T) {
	core := &fakeCore{}
	args := []string{"core.so", filepath.Join(t.TempDir(), "missing.hex"),
		"--video", "none", "--audio", "none", "--frames", "1"}

	if err := Run(testLoader(core), args); err == nil {
		t.Error("expected error for missing game file")
	}
}

func TestWindowedOptionWiring(t *testing.T) {
	// The window satisfies Video directly and Input through its facet;
	// this is the option set Run builds in window mode.
	win := drivers.NewWindow("test", 1, t.TempDir())
	opts := []runtime.Option{
		runtime.WithVideo(win),
		runtime.WithInput(win.Input()),
		runtime.WithAudio(&drivers.NullAudio{}),
	}
	if len(opts) != 3 {
		t.Fatalf("built %d options, want 3", len(opts))
	}
}

func TestRunRejectsBadFlags(t *testing.T) {
	core := &fakeCore{}
	game := gameFile(t)
	tests := []struct {
		name string
		args []string
	}{
		{"missing args", []string{}},
		{"unknown video driver", []string{"core.so", game, "--video", "hologram"}},
		{"volume out of range", []string{"core.so", game, "--video", "none", "--volume", "2.0"}},
		{"zero fps", []string{"core.so", game, "--video", "none", "--fps", "0"}},
		{"negative rewind", []string{"core.so", game, "--video", "none", "--rewind=-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Run(testLoader(core), tt.args); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}
