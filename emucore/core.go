// Package emucore defines the boundary between the session runtime and an
// opaque emulation core. The runtime never looks inside a core: it steps it
// one frame at a time, reads the native frame and audio buffers, feeds it
// input, and round-trips serialized state blobs.
package emucore

// PixelFormat identifies the native packed-pixel encoding of a core's
// framebuffer. The set mirrors the libretro pixel formats.
type PixelFormat int

const (
	// PixelXRGB1555 is 16-bit 0RGB 5-5-5 packing.
	PixelXRGB1555 PixelFormat = iota
	// PixelRGB565 is 16-bit RGB 5-6-5 packing.
	PixelRGB565
	// PixelXRGB8888 is 32-bit XRGB packing, 8 bits per channel.
	PixelXRGB8888
)

// BytesPerPixel returns the storage size of one packed pixel.
func (f PixelFormat) BytesPerPixel() int {
	if f == PixelXRGB8888 {
		return 4
	}
	return 2
}

// String returns the format name.
func (f PixelFormat) String() string {
	switch f {
	case PixelXRGB1555:
		return "XRGB1555"
	case PixelRGB565:
		return "RGB565"
	case PixelXRGB8888:
		return "XRGB8888"
	default:
		return "Unknown"
	}
}

// VideoInfo holds the core-reported video constants, queried once at
// initialization. Width and height are fixed for the core's lifetime.
type VideoInfo struct {
	Width  int
	Height int
	Format PixelFormat
}

// AudioInfo holds the core-reported audio constants.
type AudioInfo struct {
	SampleRate int
}

// Core is the opaque emulation core behind the session bridge. Exactly one
// goroutine drives a Core at a time; no call may be made before content is
// loaded or after Close.
type Core interface {
	// LoadContent loads game content into the core. A rejected or
	// malformed payload returns an error.
	LoadContent(data []byte) error

	// VideoInfo returns the core's native video constants.
	VideoInfo() VideoInfo

	// AudioInfo returns the core's native audio constants.
	AudioInfo() AudioInfo

	// RunFrame advances emulation by exactly one frame.
	RunFrame()

	// FrameBuffer returns the current frame as native packed pixels and
	// the buffer pitch in bytes per row. The buffer is valid until the
	// next RunFrame call.
	FrameBuffer() (buf []byte, pitch int)

	// AudioSamples returns the mono 16-bit samples produced by the most
	// recent frame. Length varies with emulated time, not wall time.
	AudioSamples() []int16

	// SetInput sets the instantaneous button state for the next frame.
	SetInput(state InputState)

	// SerializeSize returns the size in bytes of a serialized state
	// blob, or 0 when the core does not support snapshotting.
	SerializeSize() int

	// Serialize captures the complete core state.
	Serialize() ([]byte, error)

	// Deserialize restores core state from previously serialized data.
	// Blobs are not portable across core versions.
	Deserialize(data []byte) error

	// Close releases any resources held by the core.
	Close()
}

// Loader opens an opaque core by path. Concrete loaders live with the core
// implementations; the runtime only consumes this interface.
type Loader interface {
	Load(path string) (Core, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(path string) (Core, error)

// Load calls f.
func (f LoaderFunc) Load(path string) (Core, error) {
	return f(path)
}
