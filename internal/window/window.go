// Package window implements the GLZ decoder's dictionary of retained
// frames: a slot-hashed store of decoded images that later frames
// reference by (id distance, pixel offset).
//
// Identifiers are dense and monotonic, so the slot hash is simply
// id mod capacity. The window keeps two cursors: oldest, below which
// every id has been evicted, and the tail gap, the first id past the
// densely populated prefix.
package window

import (
	"github.com/tallenh/zlz/internal/pixel"
	"github.com/tallenh/zlz/internal/pool"
)

// ImageHeader is the identity and retention metadata of one decoded
// frame, as carried by the GLZ wire header.
type ImageHeader struct {
	ID          uint64
	Format      pixel.Format
	TopDown     bool
	Width       int
	Height      int
	GrossPixels int
	// WinHeadDist is the retention hint: how far back any future frame
	// may reference from this frame's position. Zero marks a terminal
	// frame that no later frame will reference.
	WinHeadDist uint32
}

// Entry is a retained frame. While live, the pixels it exposes stay
// valid and immutable; that is the invariant everything else here
// serves.
type Entry struct {
	ImageHeader
	pix   []byte
	owned bool
}

// NewEntry builds a window entry over the decoded pixels. When borrow
// is set, the entry keeps a view of pix itself (zero-copy; the caller
// must keep the buffer alive and unmodified while the entry is live).
// Otherwise the pixels are copied into a pooled buffer owned by the
// entry.
func NewEntry(hdr ImageHeader, pix []byte, borrow bool) *Entry {
	if borrow {
		return &Entry{ImageHeader: hdr, pix: pix}
	}
	buf := pool.Get(len(pix))
	copy(buf, pix)
	return &Entry{ImageHeader: hdr, pix: buf, owned: true}
}

// Pixels returns the entry's decoded BGRA bytes.
func (e *Entry) Pixels() []byte { return e.pix }

// Owned reports whether the entry owns its buffer (false for zero-copy
// entries borrowing the caller's output).
func (e *Entry) Owned() bool { return e.owned }

func (e *Entry) destroy() {
	if e.owned {
		pool.Put(e.pix)
	}
	e.pix = nil
}

const minCapacity = 16

// Window is the slot-hashed store of retained frames. It is owned by a
// single GLZ decoder and is not safe for concurrent use.
type Window struct {
	slots   []*Entry // len is a power of two, never below minCapacity
	oldest  uint64
	tailGap uint64
}

// New returns an empty window at the minimum capacity.
func New() *Window {
	return &Window{slots: make([]*Entry, minCapacity)}
}

func (w *Window) slot(id uint64) int { return int(id % uint64(len(w.slots))) }

// Capacity returns the current slot count.
func (w *Window) Capacity() int { return len(w.slots) }

// Oldest returns the eviction cursor: every id below it is gone.
func (w *Window) Oldest() uint64 { return w.oldest }

// TailGap returns the first id past the densely populated prefix.
func (w *Window) TailGap() uint64 { return w.tailGap }

// Add inserts an entry at id mod capacity. A collision doubles the
// table and rehashes; if the slot is still taken after doubling (a
// duplicate id, which only a misbehaving encoder produces) the
// newcomer replaces the displaced entry, which is destroyed.
func (w *Window) Add(e *Entry) {
	s := w.slot(e.ID)
	if w.slots[s] != nil {
		w.grow()
		s = w.slot(e.ID)
		if old := w.slots[s]; old != nil {
			old.destroy()
		}
	}
	w.slots[s] = e
	for w.tailGap <= e.ID {
		// The slot must hold the id itself, not a sparse id that maps
		// to the same slot; the gap cursor tracks genuine density.
		next := w.slots[w.slot(w.tailGap)]
		if next == nil || next.ID != w.tailGap {
			break
		}
		w.tailGap++
	}
}

func (w *Window) grow() {
	old := w.slots
	w.slots = make([]*Entry, 2*len(old))
	// Live ids never collide mod the doubled capacity: two ids congruent
	// mod the new size are congruent mod the old one, and those could
	// not have coexisted.
	for _, e := range old {
		if e != nil {
			w.slots[w.slot(e.ID)] = e
		}
	}
}

// Find returns the live entry dist frames behind currentID, or nil.
func (w *Window) Find(currentID, dist uint64) *Entry {
	if dist == 0 || dist > currentID {
		return nil
	}
	target := currentID - dist
	e := w.slots[w.slot(target)]
	if e == nil || e.ID != target {
		return nil
	}
	return e
}

// Bits resolves an inter-image reference: the pixel view of the frame
// dist behind currentID, starting offset pixels in. Returns nil when
// the frame is missing or smaller than the requested offset.
func (w *Window) Bits(currentID, dist uint64, offset int) []byte {
	e := w.Find(currentID, dist)
	if e == nil || e.GrossPixels < offset {
		return nil
	}
	return e.pix[offset*pixel.BytesPerPixel:]
}

// Release evicts every entry with id below newOldest and advances the
// oldest cursor to it.
func (w *Window) Release(newOldest uint64) {
	for w.oldest < newOldest {
		s := w.slot(w.oldest)
		if e := w.slots[s]; e != nil {
			e.destroy()
			w.slots[s] = nil
		}
		w.oldest++
	}
}

// Prune applies the retention policy after an insert: the entry just
// before the tail gap declares, via its own retention hint, how far
// back any future frame may reference, and everything older is
// evicted. Using the tail entry's hint rather than the newcomer's
// makes eviction lag one frame behind insertion.
func (w *Window) Prune() {
	if w.tailGap == 0 {
		return
	}
	e := w.slots[w.slot(w.tailGap-1)]
	if e == nil || uint64(e.WinHeadDist) > e.ID {
		return
	}
	w.Release(e.ID - uint64(e.WinHeadDist))
}

// Clear destroys all live entries and resets the window to its initial
// capacity and cursors, e.g. on session reset.
func (w *Window) Clear() {
	for i, e := range w.slots {
		if e != nil {
			e.destroy()
			w.slots[i] = nil
		}
	}
	w.slots = make([]*Entry, minCapacity)
	w.oldest = 0
	w.tailGap = 0
}
