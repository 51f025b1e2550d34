// Package kaslr implements an x86 Linux KASLR probe: a filter+search
// composition that locates the kernel image and the physmap by their
// characteristic executable/non-executable 2 MiB-aligned byte patterns.
package kaslr

import (
	"ptdump/filter"
	"ptdump/memview"
	"ptdump/rng"
	"ptdump/search"
)

// probeAlignment is the 2 MiB huge-page alignment the probe searches at.
const probeAlignment = 2 * 1024 * 1024

// probeNeedle is the single byte both passes search for.
var probeNeedle = []byte{0x48}

// Result holds whatever the two probe passes managed to locate. A zero
// Found* flag means that value is "unset".
type Result struct {
	FoundImage bool
	ImageVirt  uint64
	ImagePhys  uint64

	FoundPhysmap bool
	PhysmapVirt  uint64

	// KnownBase and Slide are populated by WithKnownBase: Slide is the
	// observed displacement of the kernel image from its documented
	// link-time base address.
	HasSlide  bool
	KnownBase uint64
	Slide     uint64
}

// Probe runs two filter+search passes over ranges: the first for an
// executable, kernel-only range containing the image; the second for a
// non-executable, kernel-only range containing the physmap.
func Probe(view memview.Reader, ranges []rng.PageRange) (Result, error) {
	var res Result

	imageRanges := filter.New().
		WithExecutable(true).
		WithOnlySuperuserAccessible(true).
		Apply(ranges)
	imageHits, err := search.Search(view, imageRanges, probeNeedle, search.Options{Alignment: probeAlignment, MaxHits: 1})
	if err != nil {
		return Result{}, err
	}
	if len(imageHits) > 0 {
		hit := imageHits[0]
		r := imageRanges[hit.RangeIndex]
		if phys, ok := r.TranslateVA(hit.VA); ok {
			res.FoundImage = true
			res.ImageVirt = hit.VA
			res.ImagePhys = phys
		}
	}

	physmapRanges := filter.New().
		WithExecutable(false).
		WithOnlySuperuserAccessible(true).
		Apply(ranges)
	physmapHits, err := search.Search(view, physmapRanges, probeNeedle, search.Options{Alignment: probeAlignment, MaxHits: 1})
	if err != nil {
		return Result{}, err
	}
	if len(physmapHits) > 0 {
		res.FoundPhysmap = true
		res.PhysmapVirt = physmapHits[0].VA
	}

	return res, nil
}

// WithKnownBase enriches res with the kernel's KASLR slide, given the
// documented (non-randomized) link-time virtual base address. This is a
// supplementary convenience beyond the two probe passes: a caller that
// already knows a target's build-time base can derive the runtime slide
// without a second probe.
func (r Result) WithKnownBase(base uint64) Result {
	r.KnownBase = base
	if r.FoundImage {
		r.HasSlide = true
		r.Slide = r.ImageVirt - base
	}
	return r
}
