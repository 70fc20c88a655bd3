// Package sparseindex implements the two-level sparse integer index: a
// fixed-length array of 64-slot leafgroup.Group values covering a
// pre-declared universe [0, N), plus the binary serialization format that
// streams it to and from a blob.File using batched, vectored I/O.
//
// Wire format, host byte order (spec.md §6.1 — intentionally not portable
// across endianness; this is the format's documented limitation, not a bug):
//
//	[ N             : 8 bytes ]   declared universe size
//	[ G             : 8 bytes ]   == ceil(N/64); group count
//	[ bitmap[0..G)  : 8*G bytes ] one 64-bit bitmap per group
//	[ values        : sum_i(popcount(bitmap[i]) * sizeof(T)) bytes ]
//	                              groups' value arrays, concatenated in
//	                              ascending group order
//
// Value arrays are transferred by reinterpreting each group's backing
// array directly as bytes (see valueBytes) rather than encoding element by
// element, so the scatter/gather batching in Write/Read is genuine
// zero-copy vectored I/O, not a convert-then-copy loop. The value width T
// is not self-describing in the file; reader and writer must agree on it
// out of band, as spec.md §3/§6.1 require.
package sparseindex

import (
	"encoding/binary"
	"unsafe"

	"github.com/colinmarc/sparsedb/blob"
	"github.com/colinmarc/sparsedb/dberr"
	"github.com/colinmarc/sparsedb/leafgroup"
)

// bitmapBatch is the number of bitmaps streamed per I/O call on both the
// write and read paths (spec.md §4.2: "buffer ~1,048,576 bitmaps at a time").
const bitmapBatch = 1 << 20

// descriptorBatch is the number of (ptr, len) value-array descriptors
// accumulated per vectored I/O call (spec.md §4.2: "up to 1,024").
const descriptorBatch = 1024

// Index is a fixed-length ordered array of leafgroup.Group values covering
// a declared universe of N positions, T-valued.
type Index[T leafgroup.Value] struct {
	n      uint64
	groups []*leafgroup.Group[T]
}

// New creates an Index with universe size n. All ceil(n/64) groups start
// empty.
func New[T leafgroup.Value](n uint64) *Index[T] {
	groupCount := (n + leafgroup.Size - 1) / leafgroup.Size
	groups := make([]*leafgroup.Group[T], groupCount)
	for i := range groups {
		groups[i] = &leafgroup.Group[T]{}
	}
	return &Index[T]{n: n, groups: groups}
}

// N returns the declared universe size.
func (idx *Index[T]) N() uint64 {
	return idx.n
}

// Insert routes pos to its owning group and slot. Precondition: pos < N.
func (idx *Index[T]) Insert(pos uint64, value T) (previous T, existed bool) {
	group, slot := idx.locate(pos)
	return group.Insert(slot, value)
}

// Get mirrors Insert. Precondition: pos < N.
func (idx *Index[T]) Get(pos uint64) (value T, present bool) {
	group, slot := idx.locate(pos)
	return group.Get(slot)
}

// Has reports whether pos is populated. Precondition: pos < N.
func (idx *Index[T]) Has(pos uint64) bool {
	group, slot := idx.locate(pos)
	return group.Has(slot)
}

// Clear returns every group to the empty state.
func (idx *Index[T]) Clear() {
	for _, g := range idx.groups {
		g.Clear()
	}
}

// NumNonEmpty returns the sum of NumNonEmpty across all groups.
func (idx *Index[T]) NumNonEmpty() int {
	total := 0
	for _, g := range idx.groups {
		total += g.NumNonEmpty()
	}
	return total
}

// Equal reports whether idx and other have the same N and element-wise
// byte-equal groups (bitmap equal and value bytes equal, ignoring
// even-rounding padding).
func (idx *Index[T]) Equal(other *Index[T]) bool {
	if idx.n != other.n || len(idx.groups) != len(other.groups) {
		return false
	}
	for i, g := range idx.groups {
		og := other.groups[i]
		if g.Bitmap() != og.Bitmap() {
			return false
		}
		va, vb := g.Values(), og.Values()
		if len(va) != len(vb) {
			return false
		}
		for j := range va {
			if va[j] != vb[j] {
				return false
			}
		}
	}
	return true
}

func (idx *Index[T]) locate(pos uint64) (*leafgroup.Group[T], int) {
	if pos >= idx.n {
		panic(dberr.ErrPreconditionViolation)
	}
	return idx.groups[pos/leafgroup.Size], int(pos % leafgroup.Size)
}

// Write serializes the index to b: the 16-byte header, then bitmaps in
// batches of bitmapBatch words, then every non-empty group's value array
// via scatter/gather writes batched at descriptorBatch descriptors.
func (idx *Index[T]) Write(b *blob.File) error {
	header := make([]byte, 16)
	binary.NativeEndian.PutUint64(header[0:8], idx.n)
	binary.NativeEndian.PutUint64(header[8:16], uint64(len(idx.groups)))
	if err := b.Write(header); err != nil {
		return err
	}

	bitmaps := make([]byte, 0, bitmapBatch*8)
	flushBitmaps := func() error {
		if len(bitmaps) == 0 {
			return nil
		}
		err := b.Write(bitmaps)
		bitmaps = bitmaps[:0]
		return err
	}
	for _, g := range idx.groups {
		var word [8]byte
		binary.NativeEndian.PutUint64(word[:], g.Bitmap())
		bitmaps = append(bitmaps, word[:]...)
		if len(bitmaps) == bitmapBatch*8 {
			if err := flushBitmaps(); err != nil {
				return err
			}
		}
	}
	if err := flushBitmaps(); err != nil {
		return err
	}

	descriptors := make([]blob.Vector, 0, descriptorBatch)
	flushValues := func() error {
		if len(descriptors) == 0 {
			return nil
		}
		err := b.ScatterWrite(descriptors)
		descriptors = descriptors[:0]
		return err
	}
	for _, g := range idx.groups {
		if g.NumNonEmpty() == 0 {
			continue
		}
		descriptors = append(descriptors, blob.Vector{Bytes: valueBytes(g.Values())})
		if len(descriptors) == descriptorBatch {
			if err := flushValues(); err != nil {
				return err
			}
		}
	}
	return flushValues()
}

// Read replaces idx's contents with the contents of b: header, bitmaps
// (each reconstructing a group pre-sized to its population), then a
// gather-fill of every group's value array in descriptorBatch-sized
// passes. On any read error, idx is left in the cleared state.
func (idx *Index[T]) Read(b *blob.File) error {
	header := make([]byte, 16)
	if err := b.Read(header); err != nil {
		idx.reset(0, nil)
		return err
	}
	n := binary.NativeEndian.Uint64(header[0:8])
	groupCount := binary.NativeEndian.Uint64(header[8:16])

	groups := make([]*leafgroup.Group[T], 0, groupCount)
	bitmaps := make([]byte, bitmapBatch*8)
	var read uint64
	for read < groupCount {
		batch := groupCount - read
		if batch > bitmapBatch {
			batch = bitmapBatch
		}
		window := bitmaps[:batch*8]
		if err := b.Read(window); err != nil {
			idx.reset(0, nil)
			return err
		}
		for i := uint64(0); i < batch; i++ {
			word := binary.NativeEndian.Uint64(window[i*8 : i*8+8])
			groups = append(groups, leafgroup.FromBitmap[T](word))
		}
		read += batch
	}

	descriptors := make([]blob.Vector, 0, descriptorBatch)
	flush := func() error {
		if len(descriptors) == 0 {
			return nil
		}
		err := b.GatherRead(descriptors)
		descriptors = descriptors[:0]
		return err
	}
	for _, g := range groups {
		if g.NumNonEmpty() == 0 {
			continue
		}
		descriptors = append(descriptors, blob.Vector{Bytes: valueBytes(g.Values())})
		if len(descriptors) == descriptorBatch {
			if err := flush(); err != nil {
				idx.reset(0, nil)
				return err
			}
		}
	}
	if err := flush(); err != nil {
		idx.reset(0, nil)
		return err
	}

	idx.reset(n, groups)
	return nil
}

func (idx *Index[T]) reset(n uint64, groups []*leafgroup.Group[T]) {
	idx.n = n
	idx.groups = groups
}

// valueBytes reinterprets a group's value slice in place as a byte slice
// of the same backing array, for use as a zero-copy scatter/gather
// descriptor: writes read straight from it, reads fill straight into it.
func valueBytes[T leafgroup.Value](values []T) []byte {
	if len(values) == 0 {
		return nil
	}
	var zero T
	width := int(unsafe.Sizeof(zero))
	return unsafe.Slice((*byte)(unsafe.Pointer(&values[0])), len(values)*width)
}
