package x86

import (
	"encoding/binary"

	"github.com/sirupsen/logrus"

	"ptdump/errs"
	"ptdump/memview"
	"ptdump/rng"
)

// level describes one paging level's fixed bit layout. Unlike the ARM64
// walker, x86 level geometry is a small closed set driven entirely by
// (Flavor, PAE), so it is tabulated rather than generated.
type level struct {
	name         string
	bitLow       uint8 // low bit (inclusive) of the VA slice this level indexes / the leaf extent shift
	entrySize    int   // 4 or 8 bytes
	entries      int   // entries in this level's table
	final        bool  // PT: always a leaf, huge-page bit is irrelevant
	hugeEligible bool  // PD or PDP: bit 7 may mark a leaf when huge pages are enabled
}

func (l level) tableBytes() int { return l.entrySize * l.entries }

// levelsFor returns the ordered (root-first) level table for cfg: the
// paging-level layout differs by flavor and PAE (legacy 32-bit, PAE, or
// IA-32e). Whether huge pages are honored is decided separately, by
// Config.hugeEnabled.
func levelsFor(cfg Config) []level {
	switch {
	case cfg.Flavor == X86 && !cfg.PAE:
		return []level{
			{name: "PD", bitLow: 22, entrySize: 4, entries: 1024, hugeEligible: true},
			{name: "PT", bitLow: 12, entrySize: 4, entries: 1024, final: true},
		}
	case cfg.Flavor == X86 && cfg.PAE:
		return []level{
			{name: "PDP", bitLow: 30, entrySize: 8, entries: 4, hugeEligible: true},
			{name: "PD", bitLow: 21, entrySize: 8, entries: 512, hugeEligible: true},
			{name: "PT", bitLow: 12, entrySize: 8, entries: 512, final: true},
		}
	default: // X64
		return []level{
			{name: "PML4", bitLow: 39, entrySize: 8, entries: 512},
			{name: "PDP", bitLow: 30, entrySize: 8, entries: 512, hugeEligible: true},
			{name: "PD", bitLow: 21, entrySize: 8, entries: 512, hugeEligible: true},
			{name: "PT", bitLow: 12, entrySize: 8, entries: 512, final: true},
		}
	}
}

// maskBits returns a mask with bits [lo, hi] (inclusive) set.
func maskBits(lo, hi uint8) uint64 {
	if hi >= 63 {
		return ^uint64(0) << lo
	}
	return (uint64(1)<<(hi+1) - 1) &^ (uint64(1)<<lo - 1)
}

// walker holds the per-Parse-call mutable state: the scratch page per
// level (one dedicated buffer each — recursion never reuses a parent's
// buffer) and the output range list.
type walker struct {
	r       memview.Reader
	cfg     Config
	levels  []level
	huge    bool
	scratch [][]byte
	out     []*Range
	log     *logrus.Entry
}

// Parse walks the page tables rooted at rootPA per cfg and returns the
// coalesced range list in ascending virtual-address order. Root read
// failures are fatal; a sub-table read failure is absorbed and that
// subtree is simply omitted from the result.
func Parse(r memview.Reader, rootPA uint64, cfg Config) ([]*Range, error) {
	levels := levelsFor(cfg)

	w := &walker{
		r:       r,
		cfg:     cfg,
		levels:  levels,
		huge:    cfg.hugeEnabled(),
		scratch: make([][]byte, len(levels)),
		log:     logrus.WithFields(logrus.Fields{"component": "x86", "flavor": cfg.Flavor.String()}),
	}
	for i, lvl := range levels {
		w.scratch[i] = make([]byte, lvl.tableBytes())
	}

	if err := r.ReadInto(w.scratch[0], rootPA); err != nil {
		return nil, errs.Wrap(errs.FailedToReadBlock, "x86", "failed to read root table", err)
	}
	w.walk(0, 0)

	return w.out, nil
}

// walk decodes levelIdx's table (already loaded into w.scratch[levelIdx])
// and recurses into present, non-leaf entries.
func (w *walker) walk(levelIdx int, va uint64) {
	lvl := w.levels[levelIdx]
	buf := w.scratch[levelIdx]

	for i := 0; i < lvl.entries; i++ {
		off := i * lvl.entrySize
		raw := readEntry(buf[off:off+lvl.entrySize], lvl.entrySize)
		if raw&1 == 0 {
			continue
		}

		entryVA := va | (uint64(i) << lvl.bitLow)
		isHuge := w.huge && lvl.hugeEligible && (raw>>7)&1 == 1
		if lvl.final || isHuge {
			w.emitLeaf(entryVA, lvl, raw)
			continue
		}

		nextIdx := levelIdx + 1
		nextPA := raw & maskBits(12, 51)
		nextBuf := w.scratch[nextIdx]
		if err := w.r.ReadInto(nextBuf, nextPA); err != nil {
			w.log.WithFields(logrus.Fields{"level": w.levels[nextIdx].name, "pa": nextPA}).
				Debug("absorbing sub-table read failure")
			continue
		}
		w.walk(nextIdx, entryVA)
	}
}

func readEntry(b []byte, size int) uint64 {
	if size == 4 {
		return uint64(binary.LittleEndian.Uint32(b))
	}
	return binary.LittleEndian.Uint64(b)
}

// emitLeaf decodes a leaf entry's attributes and physical base, canonicalizes
// X64 virtual addresses, and either extends the last emitted range or
// appends a new one.
func (w *walker) emitLeaf(va uint64, lvl level, raw uint64) {
	attr := Attributes{
		Accessed:  raw&(1<<5) != 0,
		Dirty:     raw&(1<<6) != 0,
		Writeable: raw&(1<<1) != 0,
		User:      raw&(1<<2) != 0,
		PWT:       raw&(1<<3) != 0,
		PCD:       raw&(1<<4) != 0,
		PAT:       !lvl.final && raw&(1<<12) != 0,
		Global:    raw&(1<<8) != 0,
		NX:        raw&(1<<63) != 0,
	}

	if w.cfg.Flavor == X64 && (va>>47)&1 == 1 {
		va |= 0xFFFF_0000_0000_0000
	}

	extent := uint64(1) << lvl.bitLow
	physBase := raw & maskBits(lvl.bitLow, 51)

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
