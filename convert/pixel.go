// Package convert provides pure, stateless conversion between a core's
// native pixel and sample encodings and the canonical formats drivers
// consume: tightly packed 8-bit-per-channel RGBA and int16/float32 PCM.
package convert

import (
	"encoding/binary"

	"github.com/puterjam/arduboy-go/emucore"
)

// expand5 widens a 5-bit channel value to 8 bits by bit replication.
// Replicating the top bits into the low bits maps full scale (31) to 255,
// which a plain left shift with zero fill does not.
func expand5(v uint8) uint8 {
	return v<<3 | v>>2
}

// expand6 widens a 6-bit channel value to 8 bits by bit replication.
func expand6(v uint8) uint8 {
	return v<<2 | v>>4
}

// ToRGBA unpacks src, a native packed-pixel buffer with the given row pitch
// in bytes, into tightly packed RGBA (alpha 0xFF, stride = width*4). dst is
// reused when it has sufficient capacity; the converted buffer is returned.
// Rows beyond the source length are left untouched.
func ToRGBA(dst, src []byte, info emucore.VideoInfo, pitch int) []byte {
	need := info.Width * info.Height * 4
	if cap(dst) < need {
		dst = make([]byte, need)
	}
	dst = dst[:need]

	bpp := info.Format.BytesPerPixel()
	if pitch <= 0 {
		pitch = info.Width * bpp
	}

	for y := 0; y < info.Height; y++ {
		row := y * pitch
		if row+info.Width*bpp > len(src) {
			break
		}
		out := y * info.Width * 4
		for x := 0; x < info.Width; x++ {
			var r, g, b uint8
			switch info.Format {
			case emucore.PixelRGB565:
				p := binary.LittleEndian.Uint16(src[row+x*2:])
				r = expand5(uint8(p >> 11 & 0x1F))
				g = expand6(uint8(p >> 5 & 0x3F))
				b = expand5(uint8(p & 0x1F))
			case emucore.PixelXRGB1555:
				p := binary.LittleEndian.Uint16(src[row+x*2:])
				r = expand5(uint8(p >> 10 & 0x1F))
				g = expand5(uint8(p >> 5 & 0x1F))
				b = expand5(uint8(p & 0x1F))
			case emucore.PixelXRGB8888:
				// Little-endian XRGB: byte order B, G, R, X.
				b = src[row+x*4]
				g = src[row+x*4+1]
				r = src[row+x*4+2]
			}
			dst[out+x*4] = r
			dst[out+x*4+1] = g
			dst[out+x*4+2] = b
			dst[out+x*4+3] = 0xFF
		}
	}

	return dst
}
