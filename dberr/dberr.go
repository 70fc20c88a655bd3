// Package dberr defines the error taxonomy shared by every sparsedb
// component: precondition violations, blob I/O failures, and allocation
// failures. Key-not-found is intentionally absent here — Get surfaces it
// through its bool return, never as an error.
package dberr

import "errors"

var (
	// ErrShortRead is returned when a blob read returned fewer bytes than requested.
	ErrShortRead = errors.New("dberr: short read")

	// ErrShortWrite is returned when a blob write wrote fewer bytes than requested.
	ErrShortWrite = errors.New("dberr: short write")

	// ErrBadCommit is returned when a sync or close failed to durably persist a blob.
	ErrBadCommit = errors.New("dberr: bad commit")

	// ErrAllocationFailure names the allocation-failure kind of the taxonomy.
	// No code path returns it: leaf groups grow with make, which does not
	// report failure through an error.
	ErrAllocationFailure = errors.New("dberr: allocation failure")

	// ErrPreconditionViolation is returned for a zero RNG seed and is the
	// panic value for out-of-range positions. A value-width mismatch between
	// writer and reader is not detected, since the width is not stored.
	ErrPreconditionViolation = errors.New("dberr: precondition violation")
)
