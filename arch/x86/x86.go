// Package x86 implements the x86 (32-bit legacy, 32-bit PAE, and IA-32e)
// page-table walker and its coalesced range model.
package x86

import (
	"fmt"

	"ptdump/rng"
)

// Flavor selects the overall paging mode.
type Flavor int

const (
	// X86 is the 32-bit (legacy or PAE) paging mode.
	X86 Flavor = iota
	// X64 is IA-32e (64-bit) paging.
	X64
)

func (f Flavor) String() string {
	if f == X64 {
		return "x64"
	}
	return "x86"
}

// Config selects the paging mode the walker decodes: flavor × pae × pse.
type Config struct {
	Flavor Flavor
	PAE    bool
	PSE    bool
}

// hugeEnabled reports whether the PS bit in an intermediate entry is
// honored at all: always for X64 and for X86 PAE, optionally for plain
// X86 depending on PSE.
func (c Config) hugeEnabled() bool {
	if c.Flavor == X64 || c.PAE {
		return true
	}
	return c.PSE
}

// Attributes are the independent per-leaf flags decoded from a page-table
// entry. Only {Writeable, User, NX} participate in coalescing.
type Attributes struct {
	Accessed  bool
	Dirty     bool
	Writeable bool
	User      bool
	PWT       bool
	PCD       bool
	PAT       bool
	Global    bool
	NX        bool
}

func (a Attributes) coalescable(o Attributes) bool {
	return a.Writeable == o.Writeable && a.User == o.User && a.NX == o.NX
}

// Range is the concrete x86 PageRange.
type Range struct {
	va     uint64
	extent uint64
	attr   Attributes
	phys   []rng.PhysRange
}

// VA implements rng.PageRange.
func (r *Range) VA() uint64 { return r.va }

// Extent implements rng.PageRange.
func (r *Range) Extent() uint64 { return r.extent }

// PhysRanges implements rng.PageRange.
func (r *Range) PhysRanges() []rng.PhysRange { return r.phys }

// Attributes returns the decoded leaf flags for this range.
func (r *Range) Attributes() Attributes { return r.attr }

// Writeable implements rng.PageRange. x86 has a single writeable bit; the
// execution level is irrelevant.
func (r *Range) Writeable(rng.ExecLevel) bool { return r.attr.Writeable }

// Executable implements rng.PageRange.
func (r *Range) Executable(rng.ExecLevel) bool { return !r.attr.NX }

// Accessible implements rng.PageRange. Accessible(User) is attr.User
// directly; Accessible(Kernel) is !attr.User (x86's single supervisor bit
// makes the two levels complementary).
func (r *Range) Accessible(level rng.ExecLevel) bool {
	if level == rng.User {
		return r.attr.User
	}
	return !r.attr.User
}

// Contiguous implements rng.PageRange.
func (r *Range) Contiguous() bool { return rng.Contiguous(r.phys) }

// TranslateVA implements rng.PageRange.
func (r *Range) TranslateVA(va uint64) (uint64, bool) {
	return rng.TranslateVA(va, r.va, r.extent, r.phys)
}

func (r *Range) String() string {
	return fmt.Sprintf("x86.Range{va=0x%x, extent=0x%x, attr=%+v, phys=%v}", r.va, r.extent, r.attr, r.phys)
}

// extend folds a newly decoded leaf into r: the VA extent always grows;
// the physical backing grows, is left alone (duplicate identity mapping
// already covered), or gains a new entry.
func (r *Range) extend(extent, physBase uint64) {
	r.extent += extent
	last := &r.phys[len(r.phys)-1]
	switch {
	case last.Base+last.Extent == physBase:
		last.Extent += extent
	case last.Base <= physBase && physBase+extent <= last.Base+last.Extent:
		// Already covered by the last phys-range; don't inflate it.
	default:
		r.phys = append(r.phys, rng.PhysRange{Base: physBase, Extent: extent})
	}
}
