// Package pixel defines the pixel formats carried by SPICE LZ and GLZ
// frames and the row addressing helpers shared by the decoders.
//
// All decoded output is 32-bit BGRA, four bytes per pixel, row-major.
package pixel

import (
	"fmt"

	"github.com/tallenh/zlz/internal/pool"
)

// BytesPerPixel is the size of one decoded pixel. Every format in this
// package decodes to 32-bit BGRA.
const BytesPerPixel = 4

// Format identifies the pixel layout of an encoded frame. The numeric
// values are the SPICE wire tags and round-trip through frame headers
// unchanged.
type Format uint8

const (
	// RGB32 is opaque BGRA; the alpha byte of every decoded pixel is 0.
	RGB32 Format = 8
	// RGBA is BGRA with a meaningful alpha channel, decoded by a second
	// pass over a buffer already holding color.
	RGBA Format = 9
	// XXXA carries only an alpha channel; the three color bytes of each
	// decoded pixel are padding.
	XXXA Format = 10
)

// Valid reports whether f is one of the wire formats this decoder handles.
func (f Format) Valid() bool {
	switch f {
	case RGB32, RGBA, XXXA:
		return true
	}
	return false
}

func (f Format) String() string {
	switch f {
	case RGB32:
		return "RGB32"
	case RGBA:
		return "RGBA"
	case XXXA:
		return "XXXA"
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

// FlipRows exchanges row i and row height-1-i for every i < height/2,
// in place, using a one-row scratch. Applying it twice restores the
// input, so bottom-up frames become top-down and vice versa.
//
// pix must hold at least width*height*4 bytes.
func FlipRows(pix []byte, width, height int) {
	stride := width * BytesPerPixel
	if stride == 0 || height < 2 {
		return
	}
	scratch := pool.Get(stride)
	for i := 0; i < height/2; i++ {
		top := pix[i*stride : (i+1)*stride]
		bot := pix[(height-1-i)*stride : (height-i)*stride]
		copy(scratch, top)
		copy(top, bot)
		copy(bot, scratch)
	}
	pool.Put(scratch)
}
