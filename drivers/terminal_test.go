package drivers

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempOut(t *testing.T) *os.File {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestTerminalInitRequiresTerminal(t *testing.T) {
	term := &Terminal{out: tempOut(t)}
	if err := term.Init(64, 32); err == nil {
		t.Error("expected init to fail on a regular file")
	}
}

func TestTerminalCloseBeforeInit(t *testing.T) {
	term := NewTerminal()
	term.Close()
	if term.IsRunning() {
		t.Error("running after close")
	}
}

func TestTerminalCloseJoinsWriter(t *testing.T) {
	// Init refuses regular files, so assemble the driver the way Init
	// would and run the writer against a file-backed output.
	term := &Terminal{
		out:     tempOut(t),
		width:   4,
		height:  4,
		frames:  make(chan *Frame, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		running: true,
	}
	go term.writeLoop()

	frame := &Frame{Width: 4, Height: 4, Pix: make([]byte, 4*4*4)}
	if err := term.Render(frame); err != nil {
		t.Fatalf("render: %v", err)
	}

	// Close must wait for the writer to exit before restoring the cursor.
	closed := make(chan struct{})
	go func() {
		term.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}

	select {
	case <-term.stopped:
	default:
		t.Error("writer still running after Close returned")
	}
	if err := term.Render(frame); err == nil {
		t.Error("expected render to fail after close")
	}
}
