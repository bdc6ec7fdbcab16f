package glz

import (
	"github.com/tallenh/zlz/internal/lz"
	"github.com/tallenh/zlz/internal/pixel"
	"github.com/tallenh/zlz/internal/window"
)

// pass selects what a body walk writes: color (BGR, alpha zeroed),
// alpha only (second RGBA pass), or alpha with zeroed padding (XXXA).
type pass int

const (
	passColor pass = iota
	passAlpha
	passPadAlpha
)

// Decoder decodes a sequence of GLZ frames against a shared window of
// retained images. Frames must arrive in monotonic id order. A Decoder
// is not safe for concurrent use.
type Decoder struct {
	win *window.Window

	// Reference cache: consecutive references usually share an image
	// distance, so the last distance resolution is kept across ops.
	curID     uint64
	lastDist  uint64
	lastPix   []byte
	lastGross int
}

// NewDecoder returns a decoder bound to win, which it owns from then
// on.
func NewDecoder(win *window.Window) *Decoder {
	return &Decoder{win: win}
}

// Window exposes the decoder's dictionary window.
func (d *Decoder) Window() *window.Window { return d.win }

// Decode decodes one GLZ frame from data into out, which must hold at
// least gross_pixels*4 bytes, then registers the frame with the window
// and applies the retention policy. Output is produced in decode order;
// callers consult Header.TopDown for orientation.
//
// When the frame's retention hint is zero the window entry borrows out
// directly, so the caller must keep out alive and unmodified until the
// next frame has been decoded. A failed decode leaves the window
// unchanged.
func (d *Decoder) Decode(data, out []byte) (Header, error) {
	hdr, err := ParseHeader(data)
	if err != nil {
		return hdr, err
	}
	need := hdr.GrossPixels * pixel.BytesPerPixel
	if len(out) < need {
		return hdr, ErrInvalidFrameSize
	}
	out = out[:need]
	body := data[HeaderSize:]

	d.curID = hdr.ID
	d.lastDist = 0
	d.lastPix = nil

	switch hdr.Format {
	case pixel.RGB32:
		_, err = d.decodeBody(body, out, passColor)
	case pixel.RGBA:
		if _, err = d.decodeBody(body, out, passColor); err == nil {
			// The alpha pass restarts at the beginning of the body and
			// walks the grammar again, writing only alpha bytes.
			_, err = d.decodeBody(body, out, passAlpha)
		}
	case pixel.XXXA:
		_, err = d.decodeBody(body, out, passPadAlpha)
	}
	if err != nil {
		return hdr, err
	}

	d.win.Add(window.NewEntry(hdr.ImageHeader, out, hdr.WinHeadDist == 0))
	d.win.Prune()
	return hdr, nil
}

// decodeBody walks the GLZ op grammar over src, writing len(dst)/4
// pixels. It returns the number of input bytes consumed.
func (d *Decoder) decodeBody(src, dst []byte, p pass) (int, error) {
	total := len(dst) / pixel.BytesPerPixel
	ip := 0
	op := 0

	for op < total {
		if ip >= len(src) {
			return ip, lz.ErrCorrupt
		}
		ctrl := int(src[ip])
		ip++

		if ctrl < 32 {
			run := ctrl + 1
			if op+run > total {
				return ip, lz.ErrOutputOverflow
			}
			var err error
			switch p {
			case passColor:
				ip, err = lz.ExpandLiteralRGB(src, ip, dst, op, run, 0)
			case passAlpha:
				ip, err = lz.ExpandLiteralAlpha(src, ip, dst, op, run, false)
			case passPadAlpha:
				ip, err = lz.ExpandLiteralAlpha(src, ip, dst, op, run, true)
			}
			if err != nil {
				return ip, err
			}
			op += run
			continue
		}

		length := ctrl >> 5
		pixelFlag := (ctrl >> 4) & 1
		pixelOfs := ctrl & 0x0F

		if length == 7 {
			for {
				if ip >= len(src) {
					return ip, lz.ErrCorrupt
				}
				code := int(src[ip])
				ip++
				length += code
				if code != 255 {
					break
				}
			}
		}

		if ip+2 > len(src) {
			return ip, lz.ErrCorrupt
		}
		pixelOfs += int(src[ip]) << 4
		c2 := int(src[ip+1])
		ip += 2
		imageFlag := (c2 >> 6) & 3

		var imageDist uint64
		if pixelFlag == 0 {
			// Short pixel offset; the image distance starts in c2 and
			// extends low-to-high from bit 6.
			imageDist = uint64(c2 & 0x3F)
			if ip+imageFlag > len(src) {
				return ip, lz.ErrCorrupt
			}
			for i := 0; i < imageFlag; i++ {
				imageDist += uint64(src[ip+i]) << (6 + 8*i)
			}
			ip += imageFlag
		} else {
			// Long pixel offset; any image distance is carried wholly
			// by the extension bytes.
			pixelFlag2 := (c2 >> 5) & 1
			pixelOfs += (c2 & 0x1F) << 12
			if ip+imageFlag > len(src) {
				return ip, lz.ErrCorrupt
			}
			for i := 0; i < imageFlag; i++ {
				imageDist += uint64(src[ip+i]) << (8 * i)
			}
			ip += imageFlag
			if pixelFlag2 == 1 {
				if ip >= len(src) {
					return ip, lz.ErrCorrupt
				}
				pixelOfs += int(src[ip]) << 17
				ip++
			}
		}

		length++
		if p != passColor {
			length += 2
		}

		// Bounds are settled once per op, as in the plain LZ decoder.
		if op+length > total {
			return ip, lz.ErrOutputOverflow
		}
		if imageDist == 0 {
			pixelOfs++
			if pixelOfs > op {
				return ip, lz.ErrCorrupt
			}
			lz.CopyWithin(dst, op, pixelOfs, length, p == passAlpha)
		} else {
			ref, err := d.resolve(imageDist, pixelOfs, length)
			if err != nil {
				return ip, err
			}
			lz.CopyAcross(dst, op, ref, pixelOfs, length, p == passAlpha)
		}
		op += length
	}

	return ip, nil
}

// resolve maps an inter-image reference to the target frame's pixels,
// reusing the previous resolution when the distance repeats.
func (d *Decoder) resolve(dist uint64, ofs, length int) ([]byte, error) {
	if dist != d.lastDist || d.lastPix == nil {
		e := d.win.Find(d.curID, dist)
		if e == nil {
			return nil, ErrReferenceNotFound
		}
		d.lastDist = dist
		d.lastPix = e.Pixels()
		d.lastGross = e.GrossPixels
	}
	if ofs > d.lastGross {
		return nil, ErrReferenceNotFound
	}
	if ofs+length > d.lastGross {
		return nil, lz.ErrCorrupt
	}
	return d.lastPix, nil
}
