// Package zlz decodes image frames transported over the SPICE
// remote-desktop protocol: self-contained LZ frames and differentially
// encoded GLZ frames that reference pixels from previously decoded
// frames through a shared sliding dictionary.
//
// The package supports:
//   - LZ frame decoding (RGB32, RGBA with split alpha pass, XXXA)
//   - GLZ frame decoding with inter-image references
//   - A slot-hashed decoder window with retention-hint eviction
//   - The LZ4 and zlib-wrapped-GLZ composite image payloads
//
// All output is 32-bit BGRA, four bytes per pixel, written into
// caller-owned buffers.
//
// Basic usage for a GLZ frame sequence:
//
//	win := zlz.NewWindow()
//	dec := zlz.NewDecoder(win)
//	img, err := dec.Decode(frame, out)
//
// A decoder and its window are single-threaded; independent decoders
// with disjoint windows may run in parallel.
package zlz
