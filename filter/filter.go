// Package filter returns the subset of a range list satisfying a
// conjunction of independently-settable attribute predicates. It is
// written entirely against rng.PageRange and needs only the optional
// AttrLevelDependent capability to tell ARM64's EL-split permissions apart
// from x86's single level-independent bit.
package filter

import (
	"math"

	"ptdump/rng"
)

// Spec is a struct-of-options filter configuration: each setter corresponds
// 1:1 to one recognized filter option. An option that was never set behaves
// as a wildcard.
type Spec struct {
	writeable               *bool
	executable              *bool
	userAccessible          *bool
	onlySuperuserAccessible *bool
	hasAddress              *uint64
	vaRangeSet              bool
	vaLo, vaHi              uint64
}

// New returns an empty Spec matching every range.
func New() *Spec {
	return &Spec{}
}

// WithWriteable requires w to match the writeable bit at User or Kernel
// level (either one). On EL-dependent ranges, setting
// WithUserAccessible/WithOnlySuperuserAccessible alongside this adds a
// further requirement that the respective option's own value matches the
// writeable bit at its level.
func (s *Spec) WithWriteable(w bool) *Spec {
	s.writeable = &w
	return s
}

// WithExecutable is WithWriteable's counterpart for the executable bit.
func (s *Spec) WithExecutable(x bool) *Spec {
	s.executable = &x
	return s
}

// WithUserAccessible requires Accessible(User) == u, and on EL-dependent
// ranges additionally requires u to match the writeable/executable bit at
// User level when WithWriteable/WithExecutable is also set.
func (s *Spec) WithUserAccessible(u bool) *Spec {
	s.userAccessible = &u
	return s
}

// WithOnlySuperuserAccessible is WithUserAccessible's counterpart for
// Kernel level.
func (s *Spec) WithOnlySuperuserAccessible(v bool) *Spec {
	s.onlySuperuserAccessible = &v
	return s
}

// WithAddress requires a to fall within [range.VA(), range.VA()+Extent()).
func (s *Spec) WithAddress(a uint64) *Spec {
	s.hasAddress = &a
	return s
}

// WithVARange requires lo < range.VA() < hi. Both bounds are strict,
// matching the original filter's behavior rather than loosening it to an
// inclusive lower bound. Pass 0 or MaxVA for an open side; a range starting
// exactly at VA 0 is still excluded by the strict lower bound.
func (s *Spec) WithVARange(lo, hi uint64) *Spec {
	s.vaRangeSet = true
	s.vaLo, s.vaHi = lo, hi
	return s
}

// Apply returns the subsequence of ranges satisfying every set predicate, in
// their original order.
func (s *Spec) Apply(ranges []rng.PageRange) []rng.PageRange {
	out := make([]rng.PageRange, 0, len(ranges))
	for _, r := range ranges {
		if s.matches(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s *Spec) matches(r rng.PageRange) bool {
	return s.matchWriteable(r) &&
		s.matchExecutable(r) &&
		s.matchUserAccessible(r) &&
		s.matchOnlySuperuserAccessible(r) &&
		s.matchAddress(r) &&
		s.matchVARange(r)
}

// matchWriteable requires Writeable(level) == w. Absent any EL narrowing,
// level ranges over both User and Kernel (a range matches if either level
// agrees with w). When the range is EL-dependent and WithUserAccessible
// or WithOnlySuperuserAccessible is also set, that option's own target
// value is additionally required to agree with the writeable bit at its
// level — on top of, not instead of, the either-level check above.
func (s *Spec) matchWriteable(r rng.PageRange) bool {
	if s.writeable == nil {
		return true
	}
	w := *s.writeable
	uw, kw := r.Writeable(rng.User), r.Writeable(rng.Kernel)
	ok := w == uw || w == kw
	if !attrLevelDependent(r) {
		return ok
	}
	if s.userAccessible != nil {
		ok = ok && *s.userAccessible == uw
	}
	if s.onlySuperuserAccessible != nil {
		ok = ok && *s.onlySuperuserAccessible == kw
	}
	return ok
}

// matchExecutable is matchWriteable's counterpart for Executable.
func (s *Spec) matchExecutable(r rng.PageRange) bool {
	if s.executable == nil {
		return true
	}
	x := *s.executable
	ux, kx := r.Executable(rng.User), r.Executable(rng.Kernel)
	ok := x == ux || x == kx
	if !attrLevelDependent(r) {
		return ok
	}
	if s.userAccessible != nil {
		ok = ok && *s.userAccessible == ux
	}
	if s.onlySuperuserAccessible != nil {
		ok = ok && *s.onlySuperuserAccessible == kx
	}
	return ok
}

func (s *Spec) matchUserAccessible(r rng.PageRange) bool {
	if s.userAccessible == nil {
		return true
	}
	return *s.userAccessible == r.Accessible(rng.User)
}

func (s *Spec) matchOnlySuperuserAccessible(r rng.PageRange) bool {
	if s.onlySuperuserAccessible == nil {
		return true
	}
	return *s.onlySuperuserAccessible == r.Accessible(rng.Kernel)
}

func (s *Spec) matchAddress(r rng.PageRange) bool {
	if s.hasAddress == nil {
		return true
	}
	a := *s.hasAddress
	return r.VA() <= a && a < r.VA()+r.Extent()
}

func (s *Spec) matchVARange(r rng.PageRange) bool {
	if !s.vaRangeSet {
		return true
	}
	return s.vaLo < r.VA() && r.VA() < s.vaHi
}

// levelDependentRange is an optional PageRange capability: implementations
// whose Writeable/Executable results genuinely differ between User and
// Kernel (ARM64's EL0 vs EL1 permissions) implement it. x86's single
// permission bit is the same at both levels and has nothing to narrow, so
// it doesn't.
type levelDependentRange interface {
	AttrLevelDependent() bool
}

// attrLevelDependent reports whether r supports EL narrowing.
func attrLevelDependent(r rng.PageRange) bool {
	ld, ok := r.(levelDependentRange)
	return ok && ld.AttrLevelDependent()
}

// MaxVA is the unbounded upper bound for WithVARange.
const MaxVA = uint64(math.MaxUint64)
