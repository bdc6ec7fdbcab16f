// Package glz decodes SPICE GLZ frames: the LZ vocabulary extended
// with inter-image back-references into a window of retained frames.
package glz

import (
	"encoding/binary"
	"errors"

	"github.com/tallenh/zlz/internal/lz"
	"github.com/tallenh/zlz/internal/pixel"
	"github.com/tallenh/zlz/internal/window"
)

// Header errors.
var (
	ErrInvalidMagic      = errors.New("glz: bad magic")
	ErrInvalidVersion    = errors.New("glz: unsupported version")
	ErrInvalidImageType  = errors.New("glz: invalid image type")
	ErrInvalidFrameSize  = errors.New("glz: invalid frame size")
	ErrReferenceNotFound = errors.New("glz: referenced image not in window")
)

const (
	// HeaderSize is the fixed GLZ frame header length in bytes.
	HeaderSize = 33

	// Magic is the four ASCII bytes "  ZL" read big-endian.
	Magic = 0x20205A4C

	// Version is the only wire version this decoder accepts.
	Version = 0x00010001

	topDownFlag = 0x10

	// maxGrossPixels bounds declared dimensions so width*height*4
	// cannot overflow or demand absurd buffers: 2^28 pixels is a 1 GiB
	// frame, far past any real display surface.
	maxGrossPixels = 1 << 28
)

// Header is the fixed-layout big-endian GLZ frame header.
type Header struct {
	window.ImageHeader
	// Stride is parsed but not used by the decoder; output is always
	// packed at width*4 bytes per row.
	Stride int
}

// ParseHeader reads and validates the 33-byte GLZ frame header.
func ParseHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < HeaderSize {
		return h, ErrInvalidMagic
	}
	if binary.BigEndian.Uint32(data[0:4]) != Magic {
		return h, ErrInvalidMagic
	}
	if binary.BigEndian.Uint32(data[4:8]) != Version {
		return h, ErrInvalidVersion
	}

	typeFlags := data[8]
	h.Format = pixel.Format(typeFlags & 0x0F)
	if !h.Format.Valid() {
		return h, ErrInvalidImageType
	}
	h.TopDown = typeFlags&topDownFlag != 0

	h.Width = int(binary.BigEndian.Uint32(data[9:13]))
	h.Height = int(binary.BigEndian.Uint32(data[13:17]))
	h.Stride = int(binary.BigEndian.Uint32(data[17:21]))
	h.ID = binary.BigEndian.Uint64(data[21:29])
	h.WinHeadDist = binary.BigEndian.Uint32(data[29:33])

	if h.Width <= 0 || h.Height <= 0 {
		return h, ErrInvalidFrameSize
	}
	gross := uint64(h.Width) * uint64(h.Height)
	if gross > maxGrossPixels {
		return h, ErrInvalidFrameSize
	}
	h.GrossPixels = int(gross)

	// The encoder guarantees the retention hint never reaches past the
	// start of the stream; a hint that does is stream corruption.
	if uint64(h.WinHeadDist) > h.ID {
		return h, lz.ErrCorrupt
	}
	return h, nil
}
