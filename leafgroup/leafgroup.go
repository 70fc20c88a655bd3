// Package leafgroup implements the fixed-capacity, bit-packed sparse
// container that SparseIndex groups positions into: 64 slots tracked by a
// presence bitmap, backed by a value slice sized to exactly the populated
// subset, rounded up to the next even count.
//
// Bit i of the bitmap records whether slot i holds a value. The value for
// slot p lives at offset popcount(bitmap & ((1<<p)-1)) in the value slice —
// values are kept in ascending slot order with no gaps, so insertion at an
// interior slot shifts the suffix one position toward the end.
package leafgroup

import (
	"math/bits"

	"github.com/colinmarc/sparsedb/dberr"
)

// Size is the number of positions a single Group covers.
const Size = 64

// MaxPos is the highest legal intra-group slot.
const MaxPos = Size - 1

// Value is the set of integer widths a Group may store.
type Value interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Group is a 64-slot position->value map. The zero Group is empty and
// ready to use. A Group reconstructed from a bitmap via FromBitmap
// allocates storage for its declared population immediately, leaving
// values uninitialized until a subsequent bulk fill (see sparseindex.Read).
type Group[T Value] struct {
	bitmap uint64
	values []T
}

// FromBitmap reconstructs a Group with the given presence bitmap,
// allocating (but not initializing) storage for exactly its population.
// Used by SparseIndex.Read: the caller fills Values() in one vectored pass
// immediately afterward.
func FromBitmap[T Value](bitmap uint64) *Group[T] {
	g := &Group[T]{bitmap: bitmap}
	if pop := bits.OnesCount64(bitmap); pop > 0 {
		g.values = make([]T, pop, roundUpEven(pop))
	}
	return g
}

// Has reports whether pos is populated. Precondition: pos < Size.
func (g *Group[T]) Has(pos int) bool {
	assertInRange(pos)
	return g.bitmap&(uint64(1)<<uint(pos)) != 0
}

// Get returns the value at pos and whether it was present. No side effects.
// Precondition: pos < Size.
func (g *Group[T]) Get(pos int) (value T, present bool) {
	assertInRange(pos)
	if !g.Has(pos) {
		return 0, false
	}
	return g.values[offset(g.bitmap, pos)], true
}

// Insert stores value at pos, returning the previous value and whether one
// existed. On first insertion at an empty slot, the allocation grows in
// even-numbered steps (invariant: allocated length is always
// roundup_even(popcount)) and the suffix after the new slot's offset is
// shifted up by one. Precondition: pos < Size.
func (g *Group[T]) Insert(pos int, value T) (previous T, existed bool) {
	assertInRange(pos)

	off := offset(g.bitmap, pos)
	if g.Has(pos) {
		previous = g.values[off]
		g.values[off] = value
		return previous, true
	}

	count := len(g.values)
	if count%2 == 0 {
		g.grow(count + 2)
	}
	g.values = g.values[:count+1]
	for i := count; i > off; i-- {
		g.values[i] = g.values[i-1]
	}
	g.bitmap |= uint64(1) << uint(pos)
	g.values[off] = value
	return previous, false
}

// grow reallocates the backing array to hold at least n entries, by
// allocating a fresh slice of the target capacity and copying the
// current contents across. n is always even or zero per the caller's
// invariant.
func (g *Group[T]) grow(n int) {
	next := make([]T, len(g.values), n)
	copy(next, g.values)
	g.values = next
}

// Clear releases the value array and zeros the bitmap.
func (g *Group[T]) Clear() {
	g.bitmap = 0
	g.values = nil
}

// NumNonEmpty returns popcount(bitmap): the number of populated slots.
func (g *Group[T]) NumNonEmpty() int {
	return bits.OnesCount64(g.bitmap)
}

// Bitmap returns the raw 64-bit presence bitmap.
func (g *Group[T]) Bitmap() uint64 {
	return g.bitmap
}

// Values returns the densely packed value slice, logical length
// NumNonEmpty(). Callers must not retain it across a mutating call.
func (g *Group[T]) Values() []T {
	return g.values
}

// ByteSize returns the byte length of the populated value region:
// NumNonEmpty() * sizeof(T). This excludes the even-rounding pad slot,
// matching spec.md's equality semantics (padding is allocator bookkeeping,
// not logical content).
func (g *Group[T]) ByteSize() int {
	var zero T
	return g.NumNonEmpty() * sizeOf(zero)
}

func offset(bitmap uint64, pos int) int {
	mask := uint64(1)<<uint(pos) - 1
	return bits.OnesCount64(bitmap & mask)
}

func roundUpEven(n int) int {
	if n%2 != 0 {
		return n + 1
	}
	return n
}

func assertInRange(pos int) {
	if pos < 0 || pos > MaxPos {
		panic(dberr.ErrPreconditionViolation)
	}
}

func sizeOf[T Value](v T) int {
	// ^T(0) is T's all-ones value, so its bit length is T's width in bits;
	// this also covers named types whose underlying type is a uint width.
	return bits.Len64(uint64(^T(0))) / 8
}
