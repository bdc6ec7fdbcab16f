// Package lz decodes the SPICE LZ byte stream: a sequence of literal
// runs and back-references with variable-length length/offset encoding,
// producing 32-bit BGRA pixels.
//
// The stream grammar is shared with the GLZ decoder, which extends the
// back-reference vocabulary with inter-image distances; the pixel copy
// primitives live here so both decoders resolve runs identically.
package lz

import (
	"errors"

	"github.com/tallenh/zlz/internal/pixel"
)

// Decoder errors.
var (
	ErrCorrupt        = errors.New("lz: corrupted stream")
	ErrOutputOverflow = errors.New("lz: output overflow")
)

const (
	// maxCopy is the smallest control byte that starts a back-reference;
	// anything below it is a literal run.
	maxCopy = 32

	// farOffsetBias is added to the escaped 16-bit long offset. Escapes
	// fire only when the 5-bit base field is all ones and the added
	// offset byte is 0xFF.
	farOffsetBias = 8191
)

// Decompress decodes one LZ frame body from src[at:] into dst, which
// must be sized width*height*4. It returns the number of input bytes
// consumed past at, so a caller can chain a second pass (the RGBA alpha
// pass) at the returned offset.
//
// The format selects the literal payload and copy width: RGB32 reads
// three color bytes per literal pixel and copies whole pixels; RGBA
// reads one alpha byte per literal pixel and copies only alpha bytes;
// XXXA reads one alpha byte but writes and copies all four bytes of
// each pixel, with zero padding. defaultAlpha applies to RGB32 only:
// literal pixels get alpha 255 when set, 0 otherwise.
func Decompress(src []byte, at int, dst []byte, format pixel.Format, defaultAlpha bool) (int, error) {
	total := len(dst) / pixel.BytesPerPixel
	ip := at
	op := 0

	defAlpha := byte(0)
	if defaultAlpha {
		defAlpha = 0xFF
	}

	for op < total {
		if ip >= len(src) {
			return ip - at, ErrCorrupt
		}
		ctrl := int(src[ip])
		ip++

		if ctrl < maxCopy {
			run := ctrl + 1
			if op+run > total {
				return ip - at, ErrOutputOverflow
			}
			var err error
			switch format {
			case pixel.RGB32:
				ip, err = ExpandLiteralRGB(src, ip, dst, op, run, defAlpha)
			case pixel.RGBA:
				ip, err = ExpandLiteralAlpha(src, ip, dst, op, run, false)
			case pixel.XXXA:
				ip, err = ExpandLiteralAlpha(src, ip, dst, op, run, true)
			}
			if err != nil {
				return ip - at, err
			}
			op += run
			continue
		}

		length := ctrl >> 5
		ofs := (ctrl & 31) << 8

		if length == 7 {
			for {
				if ip >= len(src) {
					return ip - at, ErrCorrupt
				}
				code := int(src[ip])
				ip++
				length += code
				if code != 255 {
					break
				}
			}
		}

		if ip >= len(src) {
			return ip - at, ErrCorrupt
		}
		code := int(src[ip])
		ip++
		ofs += code
		if code == 255 && ofs-code == 31<<8 {
			// Escaped long offset: 16-bit big-endian plus the far bias.
			if ip+2 > len(src) {
				return ip - at, ErrCorrupt
			}
			ofs = int(src[ip])<<8 | int(src[ip+1])
			ip += 2
			ofs += farOffsetBias
		}

		length++
		if format != pixel.RGB32 {
			length += 2
		}
		ofs++

		// Bounds are settled once per op; the copy loops below are
		// free of per-pixel checks.
		if ofs > op {
			return ip - at, ErrCorrupt
		}
		if op+length > total {
			return ip - at, ErrOutputOverflow
		}

		CopyWithin(dst, op, ofs, length, format == pixel.RGBA)
		op += length
	}

	return ip - at, nil
}

// ExpandLiteralRGB expands run BGR triplets from src[ip:] into BGRA
// pixels at dst[op*4:], filling alpha with defAlpha. Expansion is
// batched eight pixels at a time; the remainder takes the scalar path.
// Returns the advanced input position.
func ExpandLiteralRGB(src []byte, ip int, dst []byte, op, run int, defAlpha byte) (int, error) {
	if ip+run*3 > len(src) {
		return ip, ErrCorrupt
	}
	o := op * pixel.BytesPerPixel
	for run >= 8 {
		in := src[ip : ip+24 : ip+24]
		out := dst[o : o+32 : o+32]
		out[0], out[1], out[2], out[3] = in[0], in[1], in[2], defAlpha
		out[4], out[5], out[6], out[7] = in[3], in[4], in[5], defAlpha
		out[8], out[9], out[10], out[11] = in[6], in[7], in[8], defAlpha
		out[12], out[13], out[14], out[15] = in[9], in[10], in[11], defAlpha
		out[16], out[17], out[18], out[19] = in[12], in[13], in[14], defAlpha
		out[20], out[21], out[22], out[23] = in[15], in[16], in[17], defAlpha
		out[24], out[25], out[26], out[27] = in[18], in[19], in[20], defAlpha
		out[28], out[29], out[30], out[31] = in[21], in[22], in[23], defAlpha
		ip += 24
		o += 32
		run -= 8
	}
	for ; run > 0; run-- {
		dst[o] = src[ip]
		dst[o+1] = src[ip+1]
		dst[o+2] = src[ip+2]
		dst[o+3] = defAlpha
		ip += 3
		o += 4
	}
	return ip, nil
}

// ExpandLiteralAlpha reads run alpha bytes from src[ip:]. In alpha-pass
// mode (pad == false) only the alpha byte of each pixel is written,
// leaving color from the first pass untouched. For XXXA frames
// (pad == true) the three padding bytes are zeroed as well, so every
// byte of the output is written during decode.
func ExpandLiteralAlpha(src []byte, ip int, dst []byte, op, run int, pad bool) (int, error) {
	if ip+run > len(src) {
		return ip, ErrCorrupt
	}
	o := op * pixel.BytesPerPixel
	for i := 0; i < run; i++ {
		if pad {
			dst[o] = 0
			dst[o+1] = 0
			dst[o+2] = 0
		}
		dst[o+3] = src[ip+i]
		o += 4
	}
	return ip + run, nil
}

// CopyWithin copies n pixels inside dst from pixel position op-ofs to
// op. An offset of 1 repeats the previous pixel; other offsets may
// overlap the destination and are resolved by a forward copy, so the
// source region is re-read as it is being written. With alphaOnly set,
// only the alpha byte of each pixel moves.
//
// The caller has already established ofs <= op and op+n within dst.
func CopyWithin(dst []byte, op, ofs, n int, alphaOnly bool) {
	d := op * pixel.BytesPerPixel
	s := (op - ofs) * pixel.BytesPerPixel

	if alphaOnly {
		for i := 0; i < n; i++ {
			dst[d+i*4+3] = dst[s+i*4+3]
		}
		return
	}

	if ofs == 1 {
		b, g, r, a := dst[s], dst[s+1], dst[s+2], dst[s+3]
		for i := 0; i < n; i++ {
			dst[d] = b
			dst[d+1] = g
			dst[d+2] = r
			dst[d+3] = a
			d += 4
		}
		return
	}

	nb := n * pixel.BytesPerPixel
	if ofs >= n {
		// Regions are disjoint.
		copy(dst[d:d+nb], dst[s:s+nb])
		return
	}
	for i := 0; i < nb; i++ {
		dst[d+i] = dst[s+i]
	}
}

// CopyAcross copies n pixels from another frame's buffer ref, starting
// at pixel refOfs, into dst at pixel op. The buffers never alias: ref
// is a retained window entry and dst is the in-progress output. With
// alphaOnly set, only the alpha byte of each pixel moves.
//
// The caller has already established both ranges in bounds.
func CopyAcross(dst []byte, op int, ref []byte, refOfs, n int, alphaOnly bool) {
	d := op * pixel.BytesPerPixel
	s := refOfs * pixel.BytesPerPixel

	if alphaOnly {
		for i := 0; i < n; i++ {
			dst[d+i*4+3] = ref[s+i*4+3]
		}
		return
	}
	copy(dst[d:d+n*pixel.BytesPerPixel], ref[s:s+n*pixel.BytesPerPixel])
}
