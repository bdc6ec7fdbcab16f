// Command zlzdec decodes captured SPICE LZ/GLZ frames from the command
// line.
//
// Usage:
//
//	zlzdec dec [options] <input...>   LZ/GLZ frame file(s) → PNG (use "-" for stdin)
//	zlzdec info <input...>            Display frame metadata
//
// GLZ inputs are decoded in argument order against one shared window,
// so a differential sequence can be replayed by listing its frames.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/tallenh/zlz"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "dec":
		err = runDec(os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	case "-h", "-help", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "zlzdec: unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "zlzdec: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage:
  zlzdec dec [options] <input...>   Decode LZ/GLZ frame files to PNG
  zlzdec info <input...>            Display frame metadata

Use "-" as input to read from stdin.

Run "zlzdec <command> -h" for command-specific options.
`)
}

// readInput returns the contents of the given path, or stdin for "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// isGLZ distinguishes the two frame layouts by the byte order of the
// version field: GLZ headers are big-endian, LZ file headers are
// little-endian.
func isGLZ(data []byte) bool {
	return len(data) >= 8 && binary.BigEndian.Uint32(data[4:8]) == 0x00010001
}

func runDec(args []string) error {
	fs := flag.NewFlagSet("dec", flag.ExitOnError)
	output := fs.String("o", "", "output file (default: input name with .png; single input only)")
	fs.Parse(args)
	if fs.NArg() == 0 {
		return fmt.Errorf("dec: no input files")
	}
	if *output != "" && fs.NArg() > 1 {
		return fmt.Errorf("dec: -o is only valid with a single input")
	}

	win := zlz.NewWindow()
	defer win.Close()
	dec := zlz.NewDecoder(win)

	for _, path := range fs.Args() {
		data, err := readInput(path)
		if err != nil {
			return err
		}

		var img *zlz.Image
		if isGLZ(data) {
			cfg, err := zlz.DecodeConfig(data)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			out := make([]byte, cfg.Width*cfg.Height*4)
			img, err = dec.Decode(data, out)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		} else {
			img, err = zlz.DecodeLZ(data)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}

		dst := *output
		if dst == "" {
			dst = strings.TrimSuffix(path, ".lz")
			dst = strings.TrimSuffix(dst, ".glz") + ".png"
			if path == "-" {
				dst = "out.png"
			}
		}
		if err := writePNG(dst, img); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintf(os.Stderr, "%s: %dx%d %v -> %s\n", path, img.Width, img.Height, img.Format, dst)
	}
	return nil
}

// writePNG converts the BGRA buffer to NRGBA and writes it out. GLZ
// output may be bottom-up; rows are walked in reverse rather than
// flipped in place, since the decoder window may still hold a view of
// the buffer.
func writePNG(path string, img *zlz.Image) error {
	dst := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	stride := img.Width * 4
	for y := 0; y < img.Height; y++ {
		src := y
		if !img.TopDown {
			src = img.Height - 1 - y
		}
		row := img.Pix[src*stride : (src+1)*stride]
		out := dst.Pix[y*dst.Stride : y*dst.Stride+stride]
		for x := 0; x < img.Width; x++ {
			b, g, r, a := row[x*4], row[x*4+1], row[x*4+2], row[x*4+3]
			if img.Format == zlz.FormatRGB32 {
				a = 0xFF
			}
			out[x*4], out[x*4+1], out[x*4+2], out[x*4+3] = r, g, b, a
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, dst)
}

func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() == 0 {
		return fmt.Errorf("info: no input files")
	}

	for _, path := range fs.Args() {
		data, err := readInput(path)
		if err != nil {
			return err
		}
		img, err := zlz.DecodeConfig(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		kind := "LZ"
		if isGLZ(data) {
			kind = "GLZ"
		}
		fmt.Printf("%s: %s %dx%d format=%v top_down=%v", path, kind, img.Width, img.Height, img.Format, img.TopDown)
		if kind == "GLZ" {
			fmt.Printf(" id=%d", img.ID)
		}
		fmt.Println()
	}
	return nil
}
