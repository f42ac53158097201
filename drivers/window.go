package drivers

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	xdraw "golang.org/x/image/draw"

	"github.com/puterjam/arduboy-go/emucore"
)

// sharedFramebuffer holds RGBA pixels written by the tick goroutine and
// read by ebiten's Draw. Separate write and read buffers let the tick
// goroutine publish a new frame while Draw uses the previous copy.
type sharedFramebuffer struct {
	mu        sync.Mutex
	writePix  []byte
	readPix   []byte
	published bool
}

func newSharedFramebuffer(width, height int) *sharedFramebuffer {
	size := width * height * 4
	return &sharedFramebuffer{
		writePix: make([]byte, size),
		readPix:  make([]byte, size),
	}
}

func (sf *sharedFramebuffer) update(pix []byte) {
	sf.mu.Lock()
	n := len(sf.writePix)
	if n > len(pix) {
		n = len(pix)
	}
	copy(sf.writePix[:n], pix[:n])
	sf.published = true
	sf.mu.Unlock()
}

// read snapshots the write buffer into the read buffer and returns it.
// The returned slice is safe to use without holding the lock.
func (sf *sharedFramebuffer) read() ([]byte, bool) {
	sf.mu.Lock()
	ok := sf.published
	if ok {
		copy(sf.readPix, sf.writePix)
	}
	sf.mu.Unlock()
	return sf.readPix, ok
}

// sharedInput holds the button state written by the ebiten thread and read
// by the tick goroutine's Poll.
type sharedInput struct {
	mu    sync.Mutex
	state emucore.InputState
}

func (si *sharedInput) set(state emucore.InputState) {
	si.mu.Lock()
	si.state = state
	si.mu.Unlock()
}

func (si *sharedInput) read() emucore.InputState {
	si.mu.Lock()
	s := si.state
	si.mu.Unlock()
	return s
}

// Window is a desktop display driver built on ebiten. It implements Video
// (frames are published to a shared framebuffer that the ebiten loop draws
// scaled with nearest-neighbor filtering) and exposes the keyboard through
// the Input facet returned by Input (the ebiten loop polls keys into
// shared state that the facet's Poll reads).
//
// Ebiten owns the main goroutine: call RunWindow from main while the frame
// pump runs elsewhere. RunWindow blocks until Init has provided the frame
// dimensions, then until the window closes.
//
// Keys: arrows/WASD d-pad, Z/J=A, X/K=B, H=Start, G=Select, R=reset,
// F11 fullscreen, F12 screenshot.
type Window struct {
	title string
	scale int

	shotDir string

	mu       sync.Mutex
	width    int
	height   int
	running  bool
	closed   bool
	resetReq bool
	shotReq  bool

	fb    *sharedFramebuffer
	in    sharedInput
	ready chan struct{}
	done  chan struct{}

	offscreen *ebiten.Image
}

// NewWindow creates a window driver with the given title and integer scale
// factor (minimum 1). Screenshots are written to shotDir ("." when empty).
func NewWindow(title string, scale int, shotDir string) *Window {
	if scale < 1 {
		scale = 1
	}
	if shotDir == "" {
		shotDir = "."
	}
	return &Window{
		title:   title,
		scale:   scale,
		shotDir: shotDir,
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Init implements Video.
func (w *Window) Init(width, height int) error {
	if width < 1 || height < 1 {
		return fmt.Errorf("invalid window dimensions %dx%d", width, height)
	}
	w.mu.Lock()
	w.width = width
	w.height = height
	w.fb = newSharedFramebuffer(width, height)
	w.running = true
	w.mu.Unlock()
	close(w.ready)
	return nil
}

// Render implements Video. It publishes the frame and returns immediately;
// the ebiten loop picks it up on its own schedule, so a slow display drops
// frames instead of stalling the tick loop.
func (w *Window) Render(frame *Frame) error {
	w.mu.Lock()
	fb := w.fb
	w.mu.Unlock()
	if fb == nil {
		return fmt.Errorf("window not initialized")
	}
	fb.update(frame.Pix)
	return nil
}

// ResetRequested reports whether the reset key was pressed since the last
// call, consuming the request.
func (w *Window) ResetRequested() bool {
	w.mu.Lock()
	r := w.resetReq
	w.resetReq = false
	w.mu.Unlock()
	return r
}

// Close implements Video. The first call asks the ebiten loop to
// terminate.
func (w *Window) Close() {
	w.mu.Lock()
	first := !w.closed
	w.closed = true
	w.running = false
	w.mu.Unlock()
	if first {
		close(w.done)
	}
}

// IsRunning implements Video.
func (w *Window) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Input returns the keyboard facet of the window. The facet shares the
// window's lifetime: closing either side closes the window.
func (w *Window) Input() *WindowInput {
	return &WindowInput{w: w}
}

// WindowInput adapts the window's keyboard state to the Input contract.
// The window itself is set up by the video facet's Init, so the input
// side has nothing of its own to initialize.
type WindowInput struct {
	w *Window
}

// Init implements Input.
func (wi *WindowInput) Init() error { return nil }

// Poll implements Input.
func (wi *WindowInput) Poll() emucore.InputState {
	return wi.w.in.read()
}

// Close implements Input.
func (wi *WindowInput) Close() {
	wi.w.Close()
}

// IsRunning implements Input.
func (wi *WindowInput) IsRunning() bool {
	return wi.w.IsRunning()
}

// ResetRequested reports whether the reset key was pressed since the last
// call, consuming the request.
func (wi *WindowInput) ResetRequested() bool {
	return wi.w.ResetRequested()
}

var (
	_ Video = (*Window)(nil)
	_ Input = (*WindowInput)(nil)
)

// RunWindow runs the ebiten game loop. It must be called from the main
// goroutine and blocks until the window closes or Close is called. If the
// driver is closed before Init ever runs, RunWindow returns without
// opening a window.
func (w *Window) RunWindow() error {
	select {
	case <-w.ready:
	case <-w.done:
		return nil
	}

	w.mu.Lock()
	width, height := w.width, w.height
	w.mu.Unlock()

	ebiten.SetWindowTitle(w.title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(width*w.scale, height*w.scale)
	ebiten.SetWindowSizeLimits(width, height, -1, -1)
	ebiten.SetTPS(60)

	err := ebiten.RunGame(w)

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return err
}

// Update implements ebiten.Game. It runs on the ebiten thread: polls the
// keyboard into the shared input state and handles the window-level keys.
func (w *Window) Update() error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ebiten.Termination
	}

	var state emucore.InputState
	state.Set(emucore.ButtonUp, ebiten.IsKeyPressed(ebiten.KeyArrowUp) || ebiten.IsKeyPressed(ebiten.KeyW))
	state.Set(emucore.ButtonDown, ebiten.IsKeyPressed(ebiten.KeyArrowDown) || ebiten.IsKeyPressed(ebiten.KeyS))
	state.Set(emucore.ButtonLeft, ebiten.IsKeyPressed(ebiten.KeyArrowLeft) || ebiten.IsKeyPressed(ebiten.KeyA))
	state.Set(emucore.ButtonRight, ebiten.IsKeyPressed(ebiten.KeyArrowRight) || ebiten.IsKeyPressed(ebiten.KeyD))
	state.Set(emucore.ButtonA, ebiten.IsKeyPressed(ebiten.KeyZ) || ebiten.IsKeyPressed(ebiten.KeyJ))
	state.Set(emucore.ButtonB, ebiten.IsKeyPressed(ebiten.KeyX) || ebiten.IsKeyPressed(ebiten.KeyK))
	state.Set(emucore.ButtonStart, ebiten.IsKeyPressed(ebiten.KeyH))
	state.Set(emucore.ButtonSelect, ebiten.IsKeyPressed(ebiten.KeyG))
	w.in.set(state)

	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		w.mu.Lock()
		w.resetReq = true
		w.mu.Unlock()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		w.mu.Lock()
		w.shotReq = true
		w.mu.Unlock()
	}
	return nil
}

// Draw implements ebiten.Game, scaling the published frame to the window
// with aspect-preserving nearest-neighbor filtering.
func (w *Window) Draw(screen *ebiten.Image) {
	pix, ok := w.fb.read()
	if !ok {
		return
	}

	if w.offscreen == nil {
		w.offscreen = ebiten.NewImage(w.width, w.height)
	}
	w.offscreen.WritePixels(pix)

	w.mu.Lock()
	shot := w.shotReq
	w.shotReq = false
	w.mu.Unlock()
	if shot {
		if err := w.saveScreenshot(pix); err != nil {
			fmt.Fprintf(os.Stderr, "screenshot failed: %v\n", err)
		}
	}

	screenW, screenH := screen.Bounds().Dx(), screen.Bounds().Dy()
	scaleX := float64(screenW) / float64(w.width)
	scaleY := float64(screenH) / float64(w.height)
	scale := scaleX
	if scaleY < scaleX {
		scale = scaleY
	}

	var opts ebiten.DrawImageOptions
	opts.GeoM.Scale(scale, scale)
	opts.GeoM.Translate(
		(float64(screenW)-float64(w.width)*scale)/2,
		(float64(screenH)-float64(w.height)*scale)/2,
	)
	opts.Filter = ebiten.FilterNearest
	screen.DrawImage(w.offscreen, &opts)
}

// Layout implements ebiten.Game.
func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	s := 1.0
	if m := ebiten.Monitor(); m != nil {
		s = m.DeviceScaleFactor()
	}
	return int(float64(outsideWidth) * s), int(float64(outsideHeight) * s)
}

// saveScreenshot writes the native frame as a PNG, scaled up by the window
// scale factor so tiny panels stay legible.
func (w *Window) saveScreenshot(pix []byte) error {
	src := &image.RGBA{
		Pix:    pix,
		Stride: w.width * 4,
		Rect:   image.Rect(0, 0, w.width, w.height),
	}
	dst := image.NewRGBA(image.Rect(0, 0, w.width*w.scale, w.height*w.scale))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)

	if err := os.MkdirAll(w.shotDir, 0755); err != nil {
		return fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	path := filepath.Join(w.shotDir, fmt.Sprintf("arduboy-%d.png", time.Now().Unix()))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create screenshot file: %w", err)
	}
	defer f.Close()
	return png.Encode(f, dst)
}
