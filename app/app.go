// Package app wires a session, a runtime, and drivers into a runnable
// frontend. Cores are opaque plugins supplied by the embedding binary: a
// core adapter implements emucore.Loader and calls Run from its main.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"

	"github.com/puterjam/arduboy-go/drivers"
	"github.com/puterjam/arduboy-go/emucore"
	"github.com/puterjam/arduboy-go/runtime"
	"github.com/puterjam/arduboy-go/session"
)

// CLI is the command line surface. Kong tags drive parsing and help.
type CLI struct {
	Core string `arg:"" help:"Path to the core to load."`
	Game string `arg:"" help:"Path to the game file or archive."`

	Video string `help:"Video driver: window, terminal, or none." enum:"window,terminal,none" default:"window"`
	Audio string `help:"Audio driver: oto, wav, or none." enum:"oto,wav,none" default:"oto"`

	FPS    float64 `help:"Target frames per second." default:"60"`
	Frames uint64  `help:"Stop after this many frames (0 runs until closed)." default:"0"`
	Volume float64 `help:"Audio volume from 0.0 to 1.0." default:"1.0"`
	Scale  int     `help:"Window scale factor." default:"4"`

	Rewind      int    `help:"Rewind history capacity in captures (0 disables rewind)." default:"0"`
	RewindEvery int    `help:"Capture a rewind state every N frames." default:"6"`
	StateDir    string `help:"Directory for snapshot slots (empty disables)." default:""`
	WavOut      string `help:"Output path for the wav audio driver." default:"audio.wav"`
	ShotDir     string `help:"Directory for screenshots." default:"."`
}

// Validate implements kong's validation hook.
func (c *CLI) Validate() error {
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive")
	}
	if c.Volume < 0 || c.Volume > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0")
	}
	if c.Scale < 1 {
		return fmt.Errorf("scale must be at least 1")
	}
	if c.Rewind < 0 {
		return fmt.Errorf("rewind capacity must not be negative")
	}
	return nil
}

// Run parses args (excluding the program name), loads the core and game,
// and runs the session until the window closes, the frame limit is hit, or
// an interrupt arrives. This is the entry point core adapters call from
// main; it must run on the main goroutine because the window driver needs
// it.
func Run(loader emucore.Loader, args []string) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("arduboy-go"),
		kong.Description("Run a game on an emulated console core."),
		kong.UsageOnError(),
	)
	if err != nil {
		return err
	}
	if _, err := parser.Parse(args); err != nil {
		return err
	}

	sess := session.NewSession(loader)
	if err := sess.Initialize(cli.Core, cli.Game); err != nil {
		return err
	}
	defer sess.Cleanup()

	cfg := runtime.Config{
		TargetFPS:      cli.FPS,
		MaxFrames:      cli.Frames,
		AudioVolume:    cli.Volume,
		RewindCapacity: cli.Rewind,
		RewindEvery:    cli.RewindEvery,
		SnapshotDir:    cli.StateDir,
	}

	var opts []runtime.Option
	switch cli.Audio {
	case "oto":
		opts = append(opts, runtime.WithAudio(drivers.NewOtoAudio(1.0)))
	case "wav":
		opts = append(opts, runtime.WithAudio(drivers.NewWavAudio(cli.WavOut)))
	case "none":
		// Null audio is the runtime default.
	}

	switch cli.Video {
	case "window":
		title := fmt.Sprintf("arduboy-go - %s", filepath.Base(cli.Game))
		win := drivers.NewWindow(title, cli.Scale, cli.ShotDir)
		opts = append(opts, runtime.WithVideo(win), runtime.WithInput(win.Input()))
		return runWindowed(sess, cfg, win, opts)
	case "terminal":
		opts = append(opts, runtime.WithVideo(drivers.NewTerminal()))
	case "none":
		// Null video is the runtime default.
	}

	return runHeadless(sess, cfg, opts)
}

// runWindowed runs the tick loop on a goroutine while the window owns the
// main one. Whichever side finishes first stops the other.
func runWindowed(sess *session.Session, cfg runtime.Config, win *drivers.Window, opts []runtime.Option) error {
	rt := runtime.New(sess, cfg, opts...)

	var g errgroup.Group
	g.Go(func() error {
		defer win.Close()
		return rt.Run()
	})

	winErr := win.RunWindow()

	rt.Stop()
	if err := g.Wait(); err != nil {
		return err
	}
	return winErr
}

// runHeadless runs the tick loop with no window, stopping on SIGINT or
// SIGTERM.
func runHeadless(sess *session.Session, cfg runtime.Config, opts []runtime.Option) error {
	rt := runtime.New(sess, cfg, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		return rt.Run()
	})
	g.Go(func() error {
		<-ctx.Done()
		rt.Stop()
		return nil
	})
	return g.Wait()
}
