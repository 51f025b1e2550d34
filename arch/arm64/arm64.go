// Package arm64 implements the ARMv8-A page-table walker and its coalesced
// range model. Arm32 is out of scope: the walker only ever decodes the
// 8-byte Arm64 descriptor format.
package arm64

import (
	"fmt"

	"ptdump/rng"
)

// Granule selects the base page size, which in turn determines the number
// of VA bits each paging level consumes.
type Granule int

const (
	// G4K is the 4 KiB granule (bits_per_level = 9).
	G4K Granule = iota
	// G16K is the 16 KiB granule (bits_per_level = 11).
	G16K
	// G64K is the 64 KiB granule (bits_per_level = 13).
	G64K
)

func (g Granule) String() string {
	switch g {
	case G4K:
		return "4k"
	case G16K:
		return "16k"
	case G64K:
		return "64k"
	default:
		return "unknown"
	}
}

// bitStart is log2(granule size in bytes): the low bit of the VA slice the
// final paging level indexes.
func (g Granule) bitStart() uint8 {
	switch g {
	case G16K:
		return 14
	case G64K:
		return 16
	default:
		return 12
	}
}

// bitsPerLevel is the number of VA bits each non-top level consumes.
func (g Granule) bitsPerLevel() uint8 {
	switch g {
	case G16K:
		return 11
	case G64K:
		return 13
	default:
		return 9
	}
}

// Config selects the translation regime the walker decodes: granule,
// VA-space width, and which translation-table base register (TTBR0 vs
// TTBR1) the root belongs to.
type Config struct {
	Granule     Granule
	VASpaceSize uint8
	// TopBit is 0 for a lower-half (TTBR0) root, 1 for an upper-half
	// (TTBR1) root.
	TopBit uint8
}

// rootVA returns the fixed high bits a TTBR1 root's virtual addresses
// begin with.
func (c Config) rootVA() uint64 {
	if c.TopBit == 1 {
		return ^((uint64(1) << c.VASpaceSize) - 1)
	}
	return 0
}

// Attributes are the decoded ARM64 leaf flags. PermissionBits holds the
// raw 2-bit AP field; the derived predicates below reproduce the
// AArch64 access-permission encoding exactly.
type Attributes struct {
	XN             bool
	PXN            bool
	PermissionBits uint8
}

// UserReadable reports whether EL0 can read through this mapping.
func (a Attributes) UserReadable() bool {
	return a.PermissionBits == 0b01 || a.PermissionBits == 0b11
}

// UserWriteable reports whether EL0 can write through this mapping.
func (a Attributes) UserWriteable() bool {
	return a.PermissionBits == 0b01
}

// KernelReadable is always true: EL1 can always read a present mapping.
func (a Attributes) KernelReadable() bool { return true }

// KernelWriteable reports whether EL1 can write through this mapping.
func (a Attributes) KernelWriteable() bool {
	return a.PermissionBits == 0b00 || a.PermissionBits == 0b01
}

// UserExecutable reports whether EL0 can execute from this mapping.
func (a Attributes) UserExecutable() bool { return !a.XN }

// KernelExecutable reports whether EL1 can execute from this mapping.
func (a Attributes) KernelExecutable() bool { return !a.PXN }

func (a Attributes) coalescable(o Attributes) bool { return a == o }

// Range is the concrete ARM64 PageRange.
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

// Writeable implements rng.PageRange: user writeability for rng.User,
// kernel writeability for rng.Kernel.
func (r *Range) Writeable(level rng.ExecLevel) bool {
	if level == rng.User {
		return r.attr.UserWriteable()
	}
	return r.attr.KernelWriteable()
}

// Executable implements rng.PageRange.
func (r *Range) Executable(level rng.ExecLevel) bool {
	if level == rng.User {
		return r.attr.UserExecutable()
	}
	return r.attr.KernelExecutable()
}

// Accessible implements rng.PageRange: reachable at level if readable,
// writeable, or executable there.
func (r *Range) Accessible(level rng.ExecLevel) bool {
	if level == rng.User {
		return r.attr.UserReadable() || r.attr.UserWriteable() || r.attr.UserExecutable()
	}
	return r.attr.KernelReadable() || r.attr.KernelWriteable() || r.attr.KernelExecutable()
}

// AttrLevelDependent implements filter's optional EL-narrowing capability:
// ARM64 permissions genuinely differ between EL0 (User) and EL1 (Kernel).
func (r *Range) AttrLevelDependent() bool { return true }

// Contiguous implements rng.PageRange.
func (r *Range) Contiguous() bool { return rng.Contiguous(r.phys) }

// TranslateVA implements rng.PageRange.
func (r *Range) TranslateVA(va uint64) (uint64, bool) {
	return rng.TranslateVA(va, r.va, r.extent, r.phys)
}

func (r *Range) String() string {
	return fmt.Sprintf("arm64.Range{va=0x%x, extent=0x%x, attr=%+v, phys=%v}", r.va, r.extent, r.attr, r.phys)
}

// extend folds a newly decoded leaf into r, using the same three-way
// physical-backing merge rule as the x86 walker.
func (r *Range) extend(extent, physBase uint64) {
	r.extent += extent
	last := &r.phys[len(r.phys)-1]
	switch {
	case last.Base+last.Extent == physBase:
		last.Extent += extent
	case last.Base <= physBase && physBase+extent <= last.Base+last.Extent:
	default:
		r.phys = append(r.phys, rng.PhysRange{Base: physBase, Extent: extent})
	}
}
