// Package ptdump is the facade the four core operations are built from:
// parse_x86, parse_arm64, filter, and search. It owns nothing the lower
// packages don't already provide — it exists only to wire a
// caller-supplied host descriptor and RAM map into a memview.FDView and
// hand back architecture-neutral rng.PageRange slices.
package ptdump

import (
	"ptdump/arch/arm64"
	"ptdump/arch/x86"
	"ptdump/filter"
	"ptdump/memview"
	"ptdump/rng"
	"ptdump/search"
)

// ParseX86 walks the x86 page tables rooted at cr3, reading guest memory
// through a view built from hostFD and windows. The caller retains
// ownership of hostFD; ParseX86 duplicates it internally and releases the
// duplicate before returning.
func ParseX86(hostFD int, cr3 uint64, flavor x86.Flavor, pae, pse bool, windows []memview.RamRange) ([]rng.PageRange, error) {
	view, err := memview.NewFDView(hostFD, windows, 0)
	if err != nil {
		return nil, err
	}
	defer view.Close()

	ranges, err := x86.Parse(view, cr3, x86.Config{Flavor: flavor, PAE: pae, PSE: pse})
	if err != nil {
		return nil, err
	}
	return x86PageRanges(ranges), nil
}

// ParseARM64 walks the ARMv8-A page tables rooted at rootPA, reading guest
// memory through a view built from hostFD and windows.
func ParseARM64(hostFD int, rootPA uint64, granule arm64.Granule, vaSpaceSize, topBit uint8, windows []memview.RamRange) ([]rng.PageRange, error) {
	view, err := memview.NewFDView(hostFD, windows, 0)
	if err != nil {
		return nil, err
	}
	defer view.Close()

	ranges, err := arm64.Parse(view, rootPA, arm64.Config{Granule: granule, VASpaceSize: vaSpaceSize, TopBit: topBit})
	if err != nil {
		return nil, err
	}
	return arm64PageRanges(ranges), nil
}

// Filter applies spec to ranges. It is a one-line wrapper; callers that
// already import package filter can just call spec.Apply directly.
func Filter(ranges []rng.PageRange, spec *filter.Spec) []rng.PageRange {
	return spec.Apply(ranges)
}

// Search locates needle within ranges' physically-backed bytes, read
// through view. It is a one-line wrapper over package search.
func Search(view memview.Reader, ranges []rng.PageRange, needle []byte, opts search.Options) ([]search.Hit, error) {
	return search.Search(view, ranges, needle, opts)
}

func x86PageRanges(ranges []*x86.Range) []rng.PageRange {
	out := make([]rng.PageRange, len(ranges))
	for i, r := range ranges {
		out[i] = r
	}
	return out
}

func arm64PageRanges(ranges []*arm64.Range) []rng.PageRange {
	out := make([]rng.PageRange, len(ranges))
	for i, r := range ranges {
		out[i] = r
	}
	return out
}
