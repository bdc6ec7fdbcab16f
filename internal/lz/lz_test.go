package lz

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tallenh/zlz/internal/pixel"
)

// px builds one BGRA pixel.
func px(b, g, r, a byte) []byte { return []byte{b, g, r, a} }

func pixels(ps ...[]byte) []byte {
	var out []byte
	for _, p := range ps {
		out = append(out, p...)
	}
	return out
}

// literalOp appends a literal run op for the given BGR triplets.
func literalOp(dst []byte, bgr ...byte) []byte {
	n := len(bgr) / 3
	dst = append(dst, byte(n-1))
	return append(dst, bgr...)
}

// refOp appends a back-reference op copying n pixels from ofs pixels
// behind the cursor, using the shortest encoding.
func refOp(dst []byte, n, ofs int) []byte {
	length := n - 1 // undo the decoder's +1 bias
	ofs--           // undo the +1 offset bias
	if length < 7 {
		dst = append(dst, byte(length<<5|ofs>>8))
	} else {
		dst = append(dst, byte(7<<5|ofs>>8))
		rem := length - 7
		for rem >= 255 {
			dst = append(dst, 255)
			rem -= 255
		}
		dst = append(dst, byte(rem))
	}
	return append(dst, byte(ofs&0xFF))
}

func decodeRGB(t *testing.T, src []byte, outPixels int) ([]byte, int) {
	t.Helper()
	dst := make([]byte, outPixels*4)
	n, err := Decompress(src, 0, dst, pixel.RGB32, false)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	return dst, n
}

func TestDecompress_TinyLiteral(t *testing.T) {
	src := []byte{0x02, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	got, n := decodeRGB(t, src, 3)
	want := pixels(px(1, 2, 3, 0), px(4, 5, 6, 0), px(7, 8, 9, 0))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if n != len(src) {
		t.Errorf("consumed %d bytes, want %d", n, len(src))
	}
}

func TestDecompress_DefaultAlpha(t *testing.T) {
	src := []byte{0x00, 0x11, 0x22, 0x33}
	dst := make([]byte, 4)
	if _, err := Decompress(src, 0, dst, pixel.RGB32, true); err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(dst, px(0x11, 0x22, 0x33, 0xFF)) {
		t.Errorf("got % x, want 11 22 33 ff", dst)
	}
}

func TestDecompress_RunLengthFromLastPixel(t *testing.T) {
	// Literal of one pixel, then a reference with length 2, offset 1:
	// the last pixel repeats twice.
	src := []byte{0x00, 0xAA, 0xBB, 0xCC, 0x20, 0x00}
	got, _ := decodeRGB(t, src, 3)
	p := px(0xAA, 0xBB, 0xCC, 0)
	want := pixels(p, p, p)
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestDecompress_OverlappingCopy(t *testing.T) {
	// Four-pixel prologue, then length=8 offset=4: the prologue repeats.
	var src []byte
	src = literalOp(src, 1, 1, 1, 2, 2, 2, 3, 3, 3, 4, 4, 4)
	src = refOp(src, 8, 4)
	got, _ := decodeRGB(t, src, 12)
	want := pixels(
		px(1, 1, 1, 0), px(2, 2, 2, 0), px(3, 3, 3, 0), px(4, 4, 4, 0),
		px(1, 1, 1, 0), px(2, 2, 2, 0), px(3, 3, 3, 0), px(4, 4, 4, 0),
		px(1, 1, 1, 0), px(2, 2, 2, 0), px(3, 3, 3, 0), px(4, 4, 4, 0),
	)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestDecompress_ForwardOverlap(t *testing.T) {
	// Offset 2, length 5 over a 2-pixel prologue: forward copy re-reads
	// pixels as they are written.
	var src []byte
	src = literalOp(src, 10, 10, 10, 20, 20, 20)
	src = refOp(src, 5, 2)
	got, _ := decodeRGB(t, src, 7)
	want := pixels(
		px(10, 10, 10, 0), px(20, 20, 20, 0),
		px(10, 10, 10, 0), px(20, 20, 20, 0), px(10, 10, 10, 0),
		px(20, 20, 20, 0), px(10, 10, 10, 0),
	)
	if !bytes.Equal(got, want) {
		t.Errorf("got % x\nwant % x", got, want)
	}
}

func TestDecompress_LongLiteralBatch(t *testing.T) {
	// 20 literal pixels exercises the 8-at-a-time expansion plus the
	// scalar remainder; values must land in exact positions.
	var bgr []byte
	for i := 0; i < 20; i++ {
		bgr = append(bgr, byte(3*i), byte(3*i+1), byte(3*i+2))
	}
	src := literalOp(nil, bgr...)
	got, n := decodeRGB(t, src, 20)
	for i := 0; i < 20; i++ {
		want := px(byte(3*i), byte(3*i+1), byte(3*i+2), 0)
		if !bytes.Equal(got[i*4:i*4+4], want) {
			t.Fatalf("pixel %d = % x, want % x", i, got[i*4:i*4+4], want)
		}
	}
	if n != 1+60 {
		t.Errorf("consumed %d bytes, want %d", n, 1+60)
	}
}

func TestDecompress_EscapedLongOffset(t *testing.T) {
	// Fill 8192 pixels, then an escaped far reference (16-bit value 0,
	// so offset 8191+1 after the bias) must reach back to pixel 0.
	var src []byte
	src = literalOp(src, 1, 2, 3, 4, 5, 6) // two distinct pixels
	src = refOp(src, 8190, 1)              // run-length fill to 8192 pixels
	// Control length 1, base offset field all ones, added byte 0xFF:
	// the escape reads a 16-bit value (0) and the offset becomes
	// 0 + 8191 + 1 = 8192, reaching back exactly to pixel 0.
	src = append(src, 1<<5|31, 0xFF, 0x00, 0x00)
	got, _ := decodeRGB(t, src, 8194)
	if !bytes.Equal(got[8192*4:8193*4], px(1, 2, 3, 0)) {
		t.Errorf("far copy pixel 8192 = % x, want first literal", got[8192*4:8193*4])
	}
	if !bytes.Equal(got[8193*4:8194*4], px(4, 5, 6, 0)) {
		t.Errorf("far copy pixel 8193 = % x, want second literal", got[8193*4:8194*4])
	}
	// Pixels 2..8191 are the run-length fill of the second literal.
	if !bytes.Equal(got[8191*4:8192*4], px(4, 5, 6, 0)) {
		t.Errorf("fill pixel 8191 = % x, want second literal", got[8191*4:8192*4])
	}
}

func TestDecompress_AlphaPassLiteral(t *testing.T) {
	// RGBA-format literal writes only the alpha byte, leaving color
	// from the first pass untouched.
	dst := pixels(px(1, 2, 3, 0), px(4, 5, 6, 0))
	src := []byte{0x01, 0x80, 0x90}
	n, err := Decompress(src, 0, dst, pixel.RGBA, false)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	want := pixels(px(1, 2, 3, 0x80), px(4, 5, 6, 0x90))
	if !bytes.Equal(dst, want) {
		t.Errorf("got % x, want % x", dst, want)
	}
	if n != 3 {
		t.Errorf("consumed %d bytes, want 3", n)
	}
}

func TestDecompress_AlphaPassReference(t *testing.T) {
	// Alpha-format references copy alpha bytes only and carry the +2
	// length bias: control length 1 decodes as 4 pixels.
	dst := make([]byte, 6*4)
	for i := 0; i < 6; i++ {
		dst[i*4] = byte(100 + i) // color sentinel from a first pass
	}
	src := []byte{0x01, 0x40, 0x41, 0x20, 0x01}
	if _, err := Decompress(src, 0, dst, pixel.RGBA, false); err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	wantAlpha := []byte{0x40, 0x41, 0x40, 0x41, 0x40, 0x41}
	for i, a := range wantAlpha {
		if dst[i*4+3] != a {
			t.Errorf("pixel %d alpha = %#x, want %#x", i, dst[i*4+3], a)
		}
		if dst[i*4] != byte(100+i) {
			t.Errorf("pixel %d color clobbered", i)
		}
	}
}

func TestDecompress_XXXA(t *testing.T) {
	// XXXA writes all four bytes: zero padding plus the alpha.
	dst := bytes.Repeat([]byte{0xEE}, 3*4)
	src := []byte{0x02, 0x10, 0x20, 0x30}
	if _, err := Decompress(src, 0, dst, pixel.XXXA, false); err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	want := pixels(px(0, 0, 0, 0x10), px(0, 0, 0, 0x20), px(0, 0, 0, 0x30))
	if !bytes.Equal(dst, want) {
		t.Errorf("got % x, want % x", dst, want)
	}
}

func TestDecompress_ChainedOffset(t *testing.T) {
	// The returned byte count lets a caller chain the alpha pass after
	// the color pass in one buffer.
	color := literalOp(nil, 9, 8, 7)
	alpha := []byte{0x00, 0x55}
	src := append(append([]byte{}, color...), alpha...)

	dst := make([]byte, 4)
	n, err := Decompress(src, 0, dst, pixel.RGB32, false)
	if err != nil {
		t.Fatalf("color pass: %v", err)
	}
	if n != len(color) {
		t.Fatalf("color pass consumed %d, want %d", n, len(color))
	}
	if _, err := Decompress(src, n, dst, pixel.RGBA, false); err != nil {
		t.Fatalf("alpha pass: %v", err)
	}
	if !bytes.Equal(dst, px(9, 8, 7, 0x55)) {
		t.Errorf("got % x, want 09 08 07 55", dst)
	}
}

func TestDecompress_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  []byte
		pix  int
		want error
	}{
		{"empty_input", nil, 1, ErrCorrupt},
		{"literal_past_input", []byte{0x05, 1, 2, 3}, 6, ErrCorrupt},
		{"literal_past_output", []byte{0x04, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}, 2, ErrOutputOverflow},
		{"offset_before_start", []byte{0x00, 1, 2, 3, 0x20, 0x05}, 8, ErrCorrupt},
		{"ref_past_output", []byte{0x00, 1, 2, 3, 0x60, 0x00}, 2, ErrOutputOverflow},
		{"truncated_ref", []byte{0x00, 1, 2, 3, 0x20}, 8, ErrCorrupt},
		{"truncated_length_ext", []byte{0x00, 1, 2, 3, 0xE0, 0xFF}, 4096, ErrCorrupt},
		{"truncated_escape", []byte{0x3F, 0xFF, 0x01}, 16, ErrCorrupt},
		{"input_ends_mid_stream", []byte{0x00, 1, 2, 3}, 2, ErrCorrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]byte, tt.pix*4)
			_, err := Decompress(tt.src, 0, dst, pixel.RGB32, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecompress_OffsetEqualsCursorAllowed(t *testing.T) {
	// offset == current pixel index means "start of buffer" and is not
	// corruption.
	var src []byte
	src = literalOp(src, 1, 2, 3, 4, 5, 6)
	src = refOp(src, 2, 2)
	got, _ := decodeRGB(t, src, 4)
	want := pixels(px(1, 2, 3, 0), px(4, 5, 6, 0), px(1, 2, 3, 0), px(4, 5, 6, 0))
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}
