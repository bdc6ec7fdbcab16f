package zlz

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/tallenh/zlz/internal/glz"
	"github.com/tallenh/zlz/internal/pool"
)

// DecodeZlib decodes the SPICE zlib-wrapped GLZ payload: a big-endian
// size of the inner GLZ frame followed by a zlib stream containing it.
// The stream is inflated with github.com/klauspost/compress and the
// inner frame is decoded exactly like Decode, window registration
// included.
func (d *Decoder) DecodeZlib(data, out []byte) (*Image, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("zlz: decoding zlib glz frame: %w", ErrCorrupt)
	}
	glzSize := int(binary.BigEndian.Uint32(data[0:4]))
	if glzSize < glz.HeaderSize || glzSize > 1<<30 {
		return nil, fmt.Errorf("zlz: decoding zlib glz frame: declared size %d: %w", glzSize, ErrCorrupt)
	}

	zr, err := zlib.NewReader(bytes.NewReader(data[4:]))
	if err != nil {
		return nil, fmt.Errorf("zlz: decoding zlib glz frame: %w", err)
	}
	defer zr.Close()

	frame := pool.Get(glzSize)
	defer pool.Put(frame)
	if _, err := io.ReadFull(zr, frame); err != nil {
		return nil, fmt.Errorf("zlz: decoding zlib glz frame: %w", err)
	}
	return d.Decode(frame, out)
}
