package drivers

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Terminal renders frames into an ANSI terminal using 24-bit color
// half-block cells, two pixel rows per text row. Rendering happens on a
// background goroutine fed through a one-deep channel: when the terminal
// cannot keep up, Render drops the frame instead of stalling the tick
// loop.
type Terminal struct {
	out *os.File

	width  int
	height int

	frames  chan *Frame
	done    chan struct{}
	stopped chan struct{}

	mu      sync.Mutex
	running bool

	sb strings.Builder
}

// NewTerminal creates a terminal video driver writing to stdout.
func NewTerminal() *Terminal {
	return &Terminal{out: os.Stdout}
}

// Init implements Video. It fails when stdout is not a terminal.
func (t *Terminal) Init(width, height int) error {
	if !term.IsTerminal(int(t.out.Fd())) {
		return fmt.Errorf("stdout is not a terminal")
	}
	t.width = width
	t.height = height
	t.frames = make(chan *Frame, 1)
	t.done = make(chan struct{})
	t.stopped = make(chan struct{})

	t.mu.Lock()
	t.running = true
	t.mu.Unlock()

	// Hide the cursor and clear once; the writer repaints in place.
	fmt.Fprint(t.out, "\x1b[?25l\x1b[2J")
	go t.writeLoop()
	return nil
}

// Render implements Video. The frame is copied and handed to the writer;
// if the previous frame is still being drawn it is replaced unseen.
func (t *Terminal) Render(frame *Frame) error {
	t.mu.Lock()
	running := t.running
	t.mu.Unlock()
	if !running {
		return fmt.Errorf("terminal driver closed")
	}

	cp := &Frame{
		Width:  frame.Width,
		Height: frame.Height,
		Pix:    append([]byte(nil), frame.Pix...),
	}
	select {
	case t.frames <- cp:
	default:
		// Drain the stale frame and replace it with the fresh one.
		select {
		case <-t.frames:
		default:
		}
		select {
		case t.frames <- cp:
		default:
		}
	}
	return nil
}

// Close implements Video. It waits for the writer to finish its current
// frame before restoring the cursor, so the escapes do not interleave with
// a half-drawn repaint.
func (t *Terminal) Close() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	t.mu.Unlock()

	close(t.done)
	<-t.stopped
	fmt.Fprint(t.out, "\x1b[?25h\x1b[0m\n")
}

// IsRunning implements Video.
func (t *Terminal) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Terminal) writeLoop() {
	defer close(t.stopped)
	for {
		select {
		case <-t.done:
			return
		case frame := <-t.frames:
			t.draw(frame)
		}
	}
}

// draw paints one frame with U+2580 half blocks: foreground is the upper
// pixel row, background the lower, giving square-ish pixels on most fonts.
// The frame is downsampled by nearest pixel when larger than the terminal.
func (t *Terminal) draw(frame *Frame) {
	cols, rows, err := term.GetSize(int(t.out.Fd()))
	if err != nil || cols < 1 || rows < 1 {
		return
	}

	outW := frame.Width
	if outW > cols {
		outW = cols
	}
	outH := frame.Height
	if outH > rows*2 {
		outH = rows * 2
	}

	t.sb.Reset()
	t.sb.WriteString("\x1b[H")
	for y := 0; y < outH; y += 2 {
		for x := 0; x < outW; x++ {
			tr, tg, tb := t.sample(frame, x, y, outW, outH)
			br, bg, bb := t.sample(frame, x, y+1, outW, outH)
			fmt.Fprintf(&t.sb, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm▀", tr, tg, tb, br, bg, bb)
		}
		t.sb.WriteString("\x1b[0m\n")
	}
	t.out.WriteString(t.sb.String())
}

// sample returns the RGB of the source pixel nearest to the scaled
// coordinate.
func (t *Terminal) sample(frame *Frame, x, y, outW, outH int) (uint8, uint8, uint8) {
	sx := x * frame.Width / outW
	sy := y * frame.Height / outH
	if sy >= frame.Height {
		sy = frame.Height - 1
	}
	i := (sy*frame.Width + sx) * 4
	if i+2 >= len(frame.Pix) {
		return 0, 0, 0
	}
	return frame.Pix[i], frame.Pix[i+1], frame.Pix[i+2]
}
