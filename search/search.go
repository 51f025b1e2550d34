// Package search locates a byte needle within the physically-backed bytes
// of a range list and reports the virtual addresses it occurs at.
package search

import (
	"bytes"

	"ptdump/memview"
	"ptdump/rng"
)

// Hit is one located occurrence: the virtual address it was found at and
// the index, within the input range list, of the range it falls in.
type Hit struct {
	VA         uint64
	RangeIndex int
}

// Options configures a search. An Alignment of 0 is treated as 1 (every
// address accepted). A MaxHits of 0 returns no hits at all; a negative
// MaxHits means unbounded. New returns alignment 1 with unbounded hits.
type Options struct {
	Alignment uint64
	MaxHits   int
}

// New returns Options with the default search behavior: alignment 1,
// unbounded hits.
func New() Options {
	return Options{Alignment: 1, MaxHits: -1}
}

// Search iterates ranges in order and, within each, its phys_ranges in
// order, reading each as a contiguous block via view and locating every
// non-overlapping, left-to-right occurrence of needle. Hits are reported in
// ascending (range_index, va) order, which is also search's iteration
// order, so no sort is required.
func Search(view memview.Reader, ranges []rng.PageRange, needle []byte, opts Options) ([]Hit, error) {
	if len(needle) == 0 {
		return nil, nil
	}
	if opts.MaxHits == 0 {
		return nil, nil
	}
	align := opts.Alignment
	if align == 0 {
		align = 1
	}

	var hits []Hit
	for ri, r := range ranges {
		var vaOff uint64
		for _, p := range r.PhysRanges() {
			block, err := view.Read(p.Base, p.Extent)
			if err != nil {
				return nil, err
			}

			for searchOff := 0; ; {
				idx := bytes.Index(block[searchOff:], needle)
				if idx < 0 {
					break
				}
				o := searchOff + idx
				va := r.VA() + vaOff + uint64(o)
				searchOff = o + len(needle)

				if va%align != 0 {
					continue
				}
				hits = append(hits, Hit{VA: va, RangeIndex: ri})
				if opts.MaxHits > 0 && len(hits) >= opts.MaxHits {
					return hits, nil
				}
			}

			vaOff += p.Extent
		}
	}

	return hits, nil
}
