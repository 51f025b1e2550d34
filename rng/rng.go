// Package rng defines the architecture-neutral range model that every
// walker produces and that filter and search consume. Concrete ranges live
// in arch/x86 and arch/arm64; this package only fixes the shared shape.
package rng

import "fmt"

// PhysRange is an immutable (base, extent) pair of guest physical addresses
// in byte units. Extent is always > 0 and Base+Extent never wraps a 64-bit
// unsigned; callers that construct one directly are responsible for that
// invariant, walkers enforce it by construction.
type PhysRange struct {
	Base   uint64
	Extent uint64
}

// End returns Base+Extent.
func (p PhysRange) End() uint64 {
	return p.Base + p.Extent
}

// Abuts reports whether p immediately precedes other in physical address
// space, i.e. p.End() == other.Base.
func (p PhysRange) Abuts(other PhysRange) bool {
	return p.End() == other.Base
}

// Contains reports whether addr lies within [p.Base, p.End()).
func (p PhysRange) Contains(addr uint64) bool {
	return addr >= p.Base && addr < p.End()
}

func (p PhysRange) String() string {
	return fmt.Sprintf("[0x%x, 0x%x)", p.Base, p.End())
}

// ExecLevel distinguishes the two privilege levels attribute predicates can
// be evaluated at. x86 has a single user/supervisor bit and ignores the
// distinction; ARM64 has independent EL0 (User) and EL1 (Kernel) behavior.
type ExecLevel int

const (
	User ExecLevel = iota
	Kernel
)

// PageRange is the capability every concrete per-architecture range
// implements. filter and search are written entirely against this
// interface and never need to know which architecture produced a range.
type PageRange interface {
	// VA returns the canonical start virtual address of this range.
	VA() uint64
	// Extent returns the size in bytes of the virtual range.
	Extent() uint64
	// PhysRanges returns the ordered physical backing of this range. The
	// sum of every PhysRange.Extent equals Extent().
	PhysRanges() []PhysRange
	// Writeable reports whether the range is writeable at the given level.
	Writeable(ExecLevel) bool
	// Executable reports whether the range is executable at the given level.
	Executable(ExecLevel) bool
	// Accessible reports whether the range is reachable at all (read,
	// write, or execute) at the given level.
	Accessible(ExecLevel) bool
	// Contiguous reports whether every adjacent pair of PhysRanges abuts,
	// i.e. the virtual range is backed by a single contiguous physical
	// extent.
	Contiguous() bool
	// TranslateVA maps an address within [VA(), VA()+Extent()) to its
	// guest-physical address. ok is false if va falls outside the range.
	TranslateVA(va uint64) (gpa uint64, ok bool)
}

// Contiguous is a helper concrete range types can embed/call to implement
// PageRange.Contiguous without duplicating the adjacency scan.
func Contiguous(phys []PhysRange) bool {
	for i := 1; i < len(phys); i++ {
		if !phys[i-1].Abuts(phys[i]) {
			return false
		}
	}
	return true
}

// TranslateVA is a helper concrete range types can call to implement
// PageRange.TranslateVA generically once they know their own VA/Extent.
func TranslateVA(va, rangeVA, rangeExtent uint64, phys []PhysRange) (uint64, bool) {
	if va < rangeVA || va >= rangeVA+rangeExtent {
		return 0, false
	}
	off := va - rangeVA
	for _, p := range phys {
		if off < p.Extent {
			return p.Base + off, true
		}
		off -= p.Extent
	}
	return 0, false
}
