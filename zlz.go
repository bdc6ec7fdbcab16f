package zlz

import (
	"encoding/binary"
	"fmt"

	"github.com/tallenh/zlz/internal/glz"
	"github.com/tallenh/zlz/internal/lz"
	"github.com/tallenh/zlz/internal/pixel"
	"github.com/tallenh/zlz/internal/window"
)

// Format identifies the pixel layout of an encoded frame. The values
// are the SPICE wire tags.
type Format = pixel.Format

const (
	FormatRGB32 = pixel.RGB32
	FormatRGBA  = pixel.RGBA
	FormatXXXA  = pixel.XXXA
)

// Errors surfaced by the decoders. Callers match with errors.Is; every
// error terminates the current frame and no partial output is valid.
var (
	ErrInvalidMagic      = glz.ErrInvalidMagic
	ErrInvalidVersion    = glz.ErrInvalidVersion
	ErrInvalidImageType  = glz.ErrInvalidImageType
	ErrInvalidFrameSize  = glz.ErrInvalidFrameSize
	ErrReferenceNotFound = glz.ErrReferenceNotFound
	ErrCorrupt           = lz.ErrCorrupt
	ErrOutputOverflow    = lz.ErrOutputOverflow
)

// Image describes one decoded frame. Pix is BGRA, four bytes per
// pixel, row-major; for GLZ frames it is in decode order and TopDown
// tells the caller whether a row flip is needed before display.
type Image struct {
	Width   int
	Height  int
	TopDown bool
	Format  Format
	ID      uint64 // GLZ frame id; zero for plain LZ frames
	Pix     []byte
}

// FlipRows reverses the row order of a BGRA buffer in place. Applying
// it twice restores the input. It must not be used on a buffer that a
// decoder window may still reference.
func FlipRows(pix []byte, width, height int) {
	pixel.FlipRows(pix, width, height)
}

// lzHeaderSize is the file-level LZ frame header: magic and version
// (little-endian in this variant), type+flags plus three padding
// bytes, then big-endian width, height and stride.
const lzHeaderSize = 24

func parseLZHeader(data []byte) (Image, error) {
	var img Image
	if len(data) < lzHeaderSize {
		return img, ErrInvalidMagic
	}
	if binary.LittleEndian.Uint32(data[0:4]) != 0x4C5A2020 {
		return img, ErrInvalidMagic
	}
	if binary.LittleEndian.Uint32(data[4:8]) != glz.Version {
		return img, ErrInvalidVersion
	}
	img.Format = Format(data[8] & 0x0F)
	if !img.Format.Valid() {
		return img, ErrInvalidImageType
	}
	img.TopDown = data[8]&0x10 != 0
	img.Width = int(binary.BigEndian.Uint32(data[12:16]))
	img.Height = int(binary.BigEndian.Uint32(data[16:20]))
	if img.Width <= 0 || img.Height <= 0 || uint64(img.Width)*uint64(img.Height) > 1<<28 {
		return img, ErrInvalidFrameSize
	}
	return img, nil
}

// DecodeConfig parses a frame header without decoding pixel data. It
// accepts both the LZ file layout and the GLZ frame layout, telling
// them apart by the byte order of the version field. The returned
// Image has a nil Pix.
func DecodeConfig(data []byte) (*Image, error) {
	if len(data) >= 8 && binary.BigEndian.Uint32(data[4:8]) == glz.Version {
		hdr, err := glz.ParseHeader(data)
		if err != nil {
			return nil, fmt.Errorf("zlz: parsing glz header: %w", err)
		}
		return &Image{
			Width:   hdr.Width,
			Height:  hdr.Height,
			TopDown: hdr.TopDown,
			Format:  hdr.Format,
			ID:      hdr.ID,
		}, nil
	}
	img, err := parseLZHeader(data)
	if err != nil {
		return nil, fmt.Errorf("zlz: parsing lz header: %w", err)
	}
	return &img, nil
}

// DecodeLZ decodes one self-contained LZ frame, header included, into
// a freshly allocated buffer. The result is always top-down.
func DecodeLZ(data []byte) (*Image, error) {
	img, err := parseLZHeader(data)
	if err != nil {
		return nil, fmt.Errorf("zlz: parsing lz header: %w", err)
	}
	img.Pix = make([]byte, img.Width*img.Height*pixel.BytesPerPixel)
	if err := DecodeLZInto(img.Width, img.Height, img.Format, img.TopDown, data[lzHeaderSize:], img.Pix); err != nil {
		return nil, err
	}
	img.TopDown = true
	return &img, nil
}

// DecodeLZInto decodes one LZ frame body into out, which must hold
// width*height*4 bytes. RGBA frames carry two passes in one stream:
// the color pass is decoded first and the alpha pass is chained at the
// byte offset where it ended. When topDown is false the rows are
// flipped afterwards, so the output is top-down either way.
func DecodeLZInto(width, height int, format Format, topDown bool, data []byte, out []byte) error {
	if !format.Valid() {
		return fmt.Errorf("zlz: decoding lz frame: %w", ErrInvalidImageType)
	}
	need := width * height * pixel.BytesPerPixel
	if width <= 0 || height <= 0 || len(out) < need {
		return fmt.Errorf("zlz: decoding lz frame: %w", ErrInvalidFrameSize)
	}
	out = out[:need]

	var err error
	switch format {
	case pixel.RGB32:
		_, err = lz.Decompress(data, 0, out, pixel.RGB32, false)
	case pixel.RGBA:
		var n int
		n, err = lz.Decompress(data, 0, out, pixel.RGB32, false)
		if err == nil {
			_, err = lz.Decompress(data, n, out, pixel.RGBA, false)
		}
	case pixel.XXXA:
		_, err = lz.Decompress(data, 0, out, pixel.XXXA, false)
	}
	if err != nil {
		return fmt.Errorf("zlz: decoding lz frame: %w", err)
	}

	if !topDown {
		pixel.FlipRows(out, width, height)
	}
	return nil
}

// Window is the dictionary of retained frames shared by a sequence of
// GLZ frames. It is owned by one Decoder and not safe for concurrent
// use.
type Window struct {
	win *window.Window
}

// NewWindow returns an empty decoder window.
func NewWindow() *Window {
	return &Window{win: window.New()}
}

// Clear evicts every retained frame and resets the window to its
// initial capacity, e.g. on session reset.
func (w *Window) Clear() {
	w.win.Clear()
}

// Close releases all retained frames. The window must not be used
// afterwards.
func (w *Window) Close() {
	w.win.Clear()
}

// Decoder decodes a sequence of GLZ frames against a shared window.
// Frames must be fed in monotonic id order.
type Decoder struct {
	dec *glz.Decoder
}

// NewDecoder returns a GLZ decoder bound to win. Passing nil creates a
// private window.
func NewDecoder(win *Window) *Decoder {
	if win == nil {
		win = NewWindow()
	}
	return &Decoder{dec: glz.NewDecoder(win.win)}
}

// Decode decodes one GLZ frame from data into out, which must hold at
// least gross_pixels*4 bytes, then registers the frame with the window
// and advances eviction.
//
// The returned image's Pix is out truncated to the frame size, in
// decode order (see Image.TopDown). When the frame's retention hint is
// zero the window borrows out directly, so the caller must keep out
// alive and unmodified until the next frame has been decoded. A failed
// decode leaves the window unchanged.
func (d *Decoder) Decode(data, out []byte) (*Image, error) {
	hdr, err := d.dec.Decode(data, out)
	if err != nil {
		return nil, fmt.Errorf("zlz: decoding glz frame: %w", err)
	}
	return &Image{
		Width:   hdr.Width,
		Height:  hdr.Height,
		TopDown: hdr.TopDown,
		Format:  hdr.Format,
		ID:      hdr.ID,
		Pix:     out[:hdr.GrossPixels*pixel.BytesPerPixel],
	}, nil
}
