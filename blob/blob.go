// Package blob implements PersistentBlob: a byte-addressable, exclusively
// owned persistent container backed by a single *os.File, including true
// vectored scatter/gather transfers via golang.org/x/sys/unix (the
// standard library's os package exposes no Readv/Writev equivalent).
//
// A File is held exclusively by its caller for the duration of a read or
// write pass; there is no internal caching or background I/O, matching
// spec.md §5's shared-resource policy.
package blob

import (
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/colinmarc/sparsedb/dberr"
)

// OpenMode selects one of the four flag combinations spec.md §4.3 names.
type OpenMode int

const (
	// OpenReadWrite creates the blob if absent and opens it read-write.
	OpenReadWrite OpenMode = iota
	// OpenTruncate creates (or truncates) the blob and opens it read-write.
	OpenTruncate
	// OpenAppend creates the blob if absent and opens it for append-only writes.
	OpenAppend
	// OpenSync is OpenReadWrite with every write synchronously durable (O_SYNC).
	OpenSync
)

// Vector is one (pointer, length) region of a scatter/gather transfer,
// named after the original's FileVector.
type Vector struct {
	Bytes []byte
}

// File is an *os.File-backed PersistentBlob. The zero File is not usable;
// construct one with Open.
type File struct {
	mu   sync.Mutex
	f    *os.File
	name string
}

// Open opens (creating if necessary) the blob at name under mode.
func Open(name string, mode OpenMode) (*File, error) {
	flags := os.O_RDWR | os.O_CREATE
	switch mode {
	case OpenTruncate:
		flags |= os.O_TRUNC
	case OpenAppend:
		flags |= os.O_APPEND
	case OpenSync:
		flags |= os.O_SYNC
	}

	f, err := os.OpenFile(name, flags, 0o644)
	if err != nil {
		return nil, err
	}

	return &File{f: f, name: name}, nil
}

// Close flushes all buffered data to durable storage and releases the
// handle.
func (b *File) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.f.Sync(); err != nil {
		_ = b.f.Close()
		return dberr.ErrBadCommit
	}
	return b.f.Close()
}

// Sync flushes without closing.
func (b *File) Sync() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.f.Sync(); err != nil {
		return dberr.ErrBadCommit
	}
	return nil
}

// Truncate resets the blob's length to zero.
func (b *File) Truncate() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.f.Truncate(0)
}

// Remove removes the blob from persistent storage. The handle must not be
// used afterward.
func (b *File) Remove() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return os.Remove(b.name)
}

// Read reads exactly len(dst) bytes sequentially. A short read is
// surfaced as dberr.ErrShortRead.
func (b *File) Read(dst []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, err := io.ReadFull(b.f, dst)
	return checkIOErr(n, len(dst), err, dberr.ErrShortRead)
}

// ReadAt reads exactly len(dst) bytes starting at pos, without disturbing
// the sequential cursor.
func (b *File) ReadAt(pos int64, dst []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, err := b.f.ReadAt(dst, pos)
	return checkIOErr(n, len(dst), err, dberr.ErrShortRead)
}

// Write writes exactly len(src) bytes sequentially. A short write is
// surfaced as dberr.ErrShortWrite.
func (b *File) Write(src []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, err := b.f.Write(src)
	return checkIOErr(n, len(src), err, dberr.ErrShortWrite)
}

// WriteAt writes exactly len(src) bytes starting at pos.
func (b *File) WriteAt(pos int64, src []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, err := b.f.WriteAt(src, pos)
	return checkIOErr(n, len(src), err, dberr.ErrShortWrite)
}

// GatherRead performs a single vectored read across vecs, filling each
// region in order as one logical transfer. A total-bytes mismatch is
// surfaced as dberr.ErrShortRead.
func (b *File) GatherRead(vecs []Vector) error {
	if len(vecs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	iovs, want := toIOVecs(vecs)
	n, err := unix.Readv(int(b.f.Fd()), iovs)
	return checkIOErr(n, want, err, dberr.ErrShortRead)
}

// ScatterWrite performs a single vectored write across vecs, as one
// logical transfer. A total-bytes mismatch is surfaced as
// dberr.ErrShortWrite.
func (b *File) ScatterWrite(vecs []Vector) error {
	if len(vecs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	iovs, want := toIOVecs(vecs)
	n, err := unix.Writev(int(b.f.Fd()), iovs)
	return checkIOErr(n, want, err, dberr.ErrShortWrite)
}

// Size returns the blob's current length in bytes.
func (b *File) Size() (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	info, err := b.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func toIOVecs(vecs []Vector) ([][]byte, int) {
	iovs := make([][]byte, 0, len(vecs))
	total := 0
	for _, v := range vecs {
		if len(v.Bytes) == 0 {
			continue
		}
		iovs = append(iovs, v.Bytes)
		total += len(v.Bytes)
	}
	return iovs, total
}

func checkIOErr(n int, want int, err error, short error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return short
	}
	if err != nil {
		return err
	}
	if n != want {
		return short
	}
	return nil
}
