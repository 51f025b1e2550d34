// Package memview implements the guest-memory abstraction: a uniform
// "read N bytes at a guest physical offset" contract, fronted by variants
// for sparse-window host-backed memory (FDView) and a plain in-memory
// buffer for tests (BytesView).
package memview

import (
	"fmt"

	"ptdump/errs"
)

// Reader is the single capability every walker depends on. ReadInto fills
// a caller-supplied buffer and is mandatory on the walker's hot path: the
// DFS recycles one scratch page per level and must not allocate per entry.
// Read is a convenience that allocates and returns an owned buffer.
type Reader interface {
	ReadInto(buf []byte, gpa uint64) error
	Read(gpa, n uint64) ([]byte, error)
}

// RamRange describes one window of guest physical address space backed by
// host memory: [GPAStart, GPAStart+GPAExtent) maps to host addresses
// starting at HostVA. The core receives these sorted ascending by GPAStart
// with no two windows overlapping in their GPA extents; every lookup in
// this package relies on that precondition instead of re-validating it.
type RamRange struct {
	GPAStart  uint64
	GPAExtent uint64
	HostVA    uintptr
}

// GPAEnd returns GPAStart+GPAExtent.
func (r RamRange) GPAEnd() uint64 {
	return r.GPAStart + r.GPAExtent
}

func readErr(gpa, n uint64, reason string) error {
	return errs.New(errs.FailedToReadBlock, "memview", fmt.Sprintf("%s (gpa=0x%x, n=%d)", reason, gpa, n))
}
