package arm64

import (
	"encoding/binary"

	"github.com/sirupsen/logrus"

	"ptdump/errs"
	"ptdump/memview"
	"ptdump/rng"
)

// level describes one generated paging level's VA bit slice. Levels are
// generated from the granule and VA-space size rather than tabulated,
// since ARM64's per-level width is configuration-dependent.
type level struct {
	bitLow  uint8
	entries int
	final   bool
}

func (l level) tableBytes() int { return l.entries * 8 }

// levelsFor generates the top-to-bottom level list for cfg. The bottom
// (final) level always owns the full bitsPerLevel-sized slice starting at
// the granule's bitStart; remaining VA bits are consumed bitsPerLevel at a
// time working upward, and whatever is left over — possibly fewer than
// bitsPerLevel bits — becomes the top level.
func levelsFor(cfg Config) []level {
	bitStart := cfg.Granule.bitStart()
	bpl := cfg.Granule.bitsPerLevel()
	remaining := cfg.VASpaceSize - bitStart

	var bottomUp []level
	cur := bitStart
	for remaining > 0 {
		bits := bpl
		if remaining < bits {
			bits = remaining
		}
		bottomUp = append(bottomUp, level{bitLow: cur, entries: 1 << bits})
		cur += bits
		remaining -= bits
	}

	levels := make([]level, len(bottomUp))
	for i, l := range bottomUp {
		levels[len(bottomUp)-1-i] = l
	}
	levels[len(levels)-1].final = true
	return levels
}

// maskBits returns a mask with bits [lo, hi] (inclusive) set.
func maskBits(lo, hi uint8) uint64 {
	if hi >= 63 {
		return ^uint64(0) << lo
	}
	return (uint64(1)<<(hi+1) - 1) &^ (uint64(1)<<lo - 1)
}

// outputAddressMask is the fixed descriptor bit range [12:47] the
// output-address field occupies, masked in place with no shift.
var outputAddressMask = maskBits(12, 47)

type walker struct {
	r       memview.Reader
	cfg     Config
	levels  []level
	scratch [][]byte
	out     []*Range
	log     *logrus.Entry
}

// Parse walks the ARMv8-A translation table rooted at rootPA per cfg and
// returns the coalesced range list in ascending virtual-address order. A
// read failure at any depth aborts the whole walk rather than skipping the
// affected subtree.
func Parse(r memview.Reader, rootPA uint64, cfg Config) ([]*Range, error) {
	levels := levelsFor(cfg)

	w := &walker{
		r:       r,
		cfg:     cfg,
		levels:  levels,
		scratch: make([][]byte, len(levels)),
		log:     logrus.WithFields(logrus.Fields{"component": "arm64", "granule": cfg.Granule.String()}),
	}
	for i, lvl := range levels {
		w.scratch[i] = make([]byte, lvl.tableBytes())
	}

	if err := r.ReadInto(w.scratch[0], rootPA); err != nil {
		return nil, errs.Wrap(errs.FailedToReadBlock, "arm64", "failed to read root table", err)
	}
	if err := w.walk(0, cfg.rootVA(), false, false); err != nil {
		return nil, err
	}

	return w.out, nil
}

// walk decodes levelIdx's table (already loaded into w.scratch[levelIdx])
// and recurses into table-shaped, non-contiguous entries. xn/pxn are the
// execute-never bits propagated down from every ancestor table descriptor.
func (w *walker) walk(levelIdx int, va uint64, xn, pxn bool) error {
	lvl := w.levels[levelIdx]
	buf := w.scratch[levelIdx]

	for i := 0; i < lvl.entries; i++ {
		off := i * 8
		raw := binary.LittleEndian.Uint64(buf[off : off+8])
		if raw&1 == 0 {
			continue
		}

		entryVA := va | (uint64(i) << lvl.bitLow)
		tableShaped := (raw>>1)&1 == 1
		contiguous := (raw>>52)&1 == 1
		isLeaf := lvl.final || !tableShaped || (tableShaped && contiguous)

		if isLeaf {
			w.emitLeaf(entryVA, lvl, raw, xn, pxn)
			continue
		}

		childXN := xn || (raw>>60)&1 == 1
		childPXN := pxn || (raw>>59)&1 == 1

		nextIdx := levelIdx + 1
		nextPA := raw & outputAddressMask
		if err := w.r.ReadInto(w.scratch[nextIdx], nextPA); err != nil {
			return errs.Wrap(errs.FailedToReadBlock, "arm64", "failed to read sub-table", err)
		}
		if err := w.walk(nextIdx, entryVA, childXN, childPXN); err != nil {
			return err
		}
	}

	return nil
}

// emitLeaf decodes a leaf entry's permission/execute-never attributes and
// physical base, and either extends the last emitted range or appends a
// new one.
func (w *walker) emitLeaf(va uint64, lvl level, raw uint64, xn, pxn bool) {
	attr := Attributes{
		XN:             xn || (raw>>54)&1 == 1,
		PXN:            pxn || (raw>>53)&1 == 1,
		PermissionBits: uint8((raw >> 6) & 0b11),
	}

	extent := uint64(1) << lvl.bitLow
	physBase := raw & outputAddressMask

	if n := len(w.out); n > 0 {
		last := w.out[n-1]
		if last.va+last.extent == va && last.attr.coalescable(attr) {
			last.extend(extent, physBase)
			return
		}
	}

	w.out = append(w.out, &Range{
		va:     va,
		extent: extent,
		attr:   attr,
		phys:   []rng.PhysRange{{Base: physBase, Extent: extent}},
	})
}
