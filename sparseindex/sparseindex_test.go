package sparseindex

import (
	"path/filepath"
	"testing"

	"github.com/colinmarc/sparsedb/blob"
	"github.com/colinmarc/sparsedb/rng"
)

func tempIndexBlob(t *testing.T) (*blob.File, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	f, err := blob.Open(path, blob.OpenTruncate)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f, path
}

// reopenForRead closes w (flushing it) and opens a fresh, non-truncating
// handle on the same path positioned at the start, mirroring
// tools/bench.cc's close-then-reopen pattern between a write pass and a
// read pass.
func reopenForRead(t *testing.T, w *blob.File, path string) *blob.File {
	t.Helper()
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	r, err := blob.Open(path, blob.OpenReadWrite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestInsertAndGetWithinSingleGroup(t *testing.T) {
	idx := New[uint64](64)
	for i := uint64(0); i < 64; i++ {
		_, existed := idx.Insert(i, i)
		if existed {
			t.Fatalf("pos %d: expected not existed", i)
		}
	}
	for i := uint64(0); i < 64; i++ {
		v, present := idx.Get(i)
		if !present || v != i {
			t.Fatalf("pos %d: expected (%d, true), got (%d, %v)", i, i, v, present)
		}
	}
	if idx.NumNonEmpty() != 64 {
		t.Fatalf("expected NumNonEmpty=64, got %d", idx.NumNonEmpty())
	}
}

func TestInsertAcrossMultipleGroups(t *testing.T) {
	const n = 1000
	idx := New[uint64](n)

	for i := uint64(0); i < n; i += 7 {
		idx.Insert(i, i*2)
	}

	for i := uint64(0); i < n; i += 7 {
		v, present := idx.Get(i)
		if !present || v != i*2 {
			t.Fatalf("pos %d: expected (%d, true), got (%d, %v)", i, i*2, v, present)
		}
	}
}

func TestOutOfRangePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for out-of-range position")
		}
	}()
	idx := New[uint64](64)
	idx.Get(64)
}

func TestClearZeroesEveryGroup(t *testing.T) {
	idx := New[uint64](256)
	for i := uint64(0); i < 256; i += 3 {
		idx.Insert(i, i)
	}
	idx.Clear()

	if idx.NumNonEmpty() != 0 {
		t.Fatalf("expected NumNonEmpty=0 after clear, got %d", idx.NumNonEmpty())
	}
	for i := uint64(0); i < 256; i++ {
		if _, present := idx.Get(i); present {
			t.Fatalf("pos %d: expected not present after clear", i)
		}
	}
}

func TestEmptyRoundtrip(t *testing.T) {
	const n = 1 << 16
	w, path := tempIndexBlob(t)

	idx := New[uint64](n)
	if err := idx.Write(w); err != nil {
		t.Fatalf("Write: %v", err)
	}

	size, err := w.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	groupCount := uint64((n + 63) / 64)
	wantSize := int64(16 + groupCount*8)
	if size != wantSize {
		t.Fatalf("expected blob size %d (header+zero bitmaps only), got %d", wantSize, size)
	}

	r := reopenForRead(t, w, path)
	other := New[uint64](n)
	if err := other.Read(r); err != nil {
		t.Fatalf("Read: %v", err)
	}

	if !idx.Equal(other) {
		t.Fatal("expected empty index to roundtrip equal")
	}
	if other.NumNonEmpty() != 0 {
		t.Fatalf("expected NumNonEmpty=0, got %d", other.NumNonEmpty())
	}
}

func TestRoundtripPreservesPopulatedIndex(t *testing.T) {
	const n = 1 << 14
	const factor = 4

	w, path := tempIndexBlob(t)

	idx := New[uint64](n)
	gen, err := rng.New(1234)
	if err != nil {
		t.Fatalf("rng.New: %v", err)
	}
	for i := uint64(0); i < n/factor; i++ {
		pos := gen.Uint64() % n
		idx.Insert(pos, i)
	}

	if err := idx.Write(w); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r := reopenForRead(t, w, path)
	got := New[uint64](n)
	if err := got.Read(r); err != nil {
		t.Fatalf("Read: %v", err)
	}

	if !idx.Equal(got) {
		t.Fatal("expected roundtrip index to be byte-equal group by group")
	}
}

func TestFailedReadLeavesIndexCleared(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truncated.db")
	b, err := blob.Open(path, blob.OpenTruncate)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close()

	// Write a header claiming more groups than bitmap bytes actually follow.
	if err := b.Write([]byte{8, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	idx := New[uint64](8)
	if err := idx.Read(b); err == nil {
		t.Fatal("expected short-read error from truncated blob")
	}
	if idx.N() != 0 {
		t.Fatalf("expected index cleared on failed read, N=%d", idx.N())
	}
	if idx.NumNonEmpty() != 0 {
		t.Fatalf("expected NumNonEmpty=0 on failed read, got %d", idx.NumNonEmpty())
	}
}
