package zlz

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/tallenh/zlz/internal/pixel"
)

// DecodeLZ4 decodes the SPICE LZ4 composite image payload: one
// orientation byte followed by length-prefixed LZ4 blocks of raw BGRA
// pixel data. Dimensions come from the enclosing image descriptor, so
// the caller supplies them. The block decoder itself is provided by
// github.com/pierrec/lz4.
//
// The output is row-flipped when the payload is bottom-up, so the
// returned image is always top-down.
func DecodeLZ4(width, height int, data, out []byte) (*Image, error) {
	need := width * height * pixel.BytesPerPixel
	if width <= 0 || height <= 0 || len(out) < need {
		return nil, fmt.Errorf("zlz: decoding lz4 image: %w", ErrInvalidFrameSize)
	}
	if len(data) < 1 {
		return nil, fmt.Errorf("zlz: decoding lz4 image: %w", ErrCorrupt)
	}
	topDown := data[0] != 0
	out = out[:need]

	at := 1
	o := 0
	for at < len(data) {
		if at+4 > len(data) {
			return nil, fmt.Errorf("zlz: decoding lz4 image: truncated block header: %w", ErrCorrupt)
		}
		n := int(binary.BigEndian.Uint32(data[at : at+4]))
		at += 4
		if n <= 0 || at+n > len(data) {
			return nil, fmt.Errorf("zlz: decoding lz4 image: bad block length %d: %w", n, ErrCorrupt)
		}
		written, err := lz4.UncompressBlock(data[at:at+n], out[o:])
		if err != nil {
			return nil, fmt.Errorf("zlz: decoding lz4 image: %w", err)
		}
		at += n
		o += written
	}
	if o != need {
		return nil, fmt.Errorf("zlz: decoding lz4 image: %d of %d bytes produced: %w", o, need, ErrCorrupt)
	}

	if !topDown {
		pixel.FlipRows(out, width, height)
	}
	return &Image{
		Width:   width,
		Height:  height,
		TopDown: true,
		Format:  FormatRGB32,
		Pix:     out,
	}, nil
}
