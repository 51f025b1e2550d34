package arm64

import (
	"encoding/binary"
	"testing"

	"ptdump/memview"
)

// A 39-bit VA space with a 4 KiB granule produces exactly three 9-bit
// levels (bitLow 30, 21, 12), none of them shrunk, which keeps these
// fixtures simple while still exercising the full recursive descent.
const testVASpaceSize = 39

func putEntry(buf []byte, index int, val uint64) {
	binary.LittleEndian.PutUint64(buf[index*8:], val)
}

func TestParseARM64LeafCoalescing(t *testing.T) {
	const (
		level1Phys = 0x2000
		level2Phys = 0x4000
		leafAPhys  = 0x9000
		leafBPhys  = 0xA000
		leafCPhys  = 0xC000
	)

	mem := make([]byte, 0x5000)
	putEntry(mem, 0, level1Phys|0b11)           // root[0] -> level1 table
	putEntry(mem[level1Phys:], 0, level2Phys|0b11) // level1[0] -> level2 (final) table
	putEntry(mem[level2Phys:], 0, leafAPhys|(0b01<<6)|0b11) // PT[0]: AP=01 leaf
	putEntry(mem[level2Phys:], 1, leafBPhys|(0b01<<6)|0b11) // PT[1]: AP=01, phys abuts leaf A
	putEntry(mem[level2Phys:], 3, leafCPhys|(0b00<<6)|0b1)  // PT[3]: AP=00, gap at index 2

	view := memview.NewBytesView(mem)
	ranges, err := Parse(view, 0, Config{Granule: G4K, VASpaceSize: testVASpaceSize})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(ranges) != 2 {
		t.Fatalf("got %d ranges; want 2", len(ranges))
	}

	r0 := ranges[0]
	if r0.VA() != 0 || r0.Extent() != 0x2000 {
		t.Fatalf("range[0] = {va=0x%x, extent=0x%x}; want {0, 0x2000}", r0.VA(), r0.Extent())
	}
	if phys := r0.PhysRanges(); len(phys) != 1 || phys[0].Base != leafAPhys || phys[0].Extent != 0x2000 {
		t.Fatalf("range[0] phys = %v; want [(0x%x, 0x2000)]", phys, leafAPhys)
	}
	if r0.Attributes().PermissionBits != 0b01 {
		t.Fatalf("range[0] permission bits = %b; want 01", r0.Attributes().PermissionBits)
	}

	r1 := ranges[1]
	if r1.VA() != 0x3000 || r1.Extent() != 0x1000 {
		t.Fatalf("range[1] = {va=0x%x, extent=0x%x}; want {0x3000, 0x1000}", r1.VA(), r1.Extent())
	}
	if phys := r1.PhysRanges(); len(phys) != 1 || phys[0].Base != leafCPhys {
		t.Fatalf("range[1] phys = %v; want [(0x%x, ...)]", phys, leafCPhys)
	}
}

func TestParseARM64XNPropagation(t *testing.T) {
	const (
		level1Phys = 0x2000
		level2Phys = 0x4000
		leafPhys   = 0x9000
	)

	mem := make([]byte, 0x5000)
	// root[0] -> level1 table, with the table-descriptor XN bit (60) set.
	putEntry(mem, 0, level1Phys|0b11|(uint64(1)<<60))
	putEntry(mem[level1Phys:], 0, level2Phys|0b11)
	putEntry(mem[level2Phys:], 0, leafPhys|(0b11<<6)|0b11)

	view := memview.NewBytesView(mem)
	ranges, err := Parse(view, 0, Config{Granule: G4K, VASpaceSize: testVASpaceSize})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ranges) != 1 {
		t.Fatalf("got %d ranges; want 1", len(ranges))
	}
	attr := ranges[0].Attributes()
	if !attr.XN {
		t.Fatalf("expected XN propagated true from ancestor table descriptor")
	}
	if attr.PXN {
		t.Fatalf("expected PXN false; no ancestor or leaf set it")
	}
}

func TestParseARM64ContiguousBitForcesLeaf(t *testing.T) {
	const blockPhys = 0x40000000

	mem := make([]byte, 0x1000)
	// root[0]: table-shaped (bit1 set) but contiguous (bit52 set) -> treated
	// as a leaf rather than recursed into.
	putEntry(mem, 0, blockPhys|(0b10<<6)|(uint64(1)<<52)|0b11)

	view := memview.NewBytesView(mem)
	ranges, err := Parse(view, 0, Config{Granule: G4K, VASpaceSize: testVASpaceSize})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ranges) != 1 {
		t.Fatalf("got %d ranges; want 1", len(ranges))
	}
	if got, want := ranges[0].Extent(), uint64(1)<<30; got != want {
		t.Fatalf("extent = 0x%x; want 0x%x (top-level block size)", got, want)
	}
	if phys := ranges[0].PhysRanges(); len(phys) != 1 || phys[0].Base != blockPhys {
		t.Fatalf("phys = %v; want [(0x%x, ...)]", phys, blockPhys)
	}
}

func TestParseARM64UpperHalfRootPrefix(t *testing.T) {
	const (
		level1Phys = 0x2000
		level2Phys = 0x4000
		leafPhys   = 0x9000
	)

	mem := make([]byte, 0x5000)
	putEntry(mem, 0, level1Phys|0b11)
	putEntry(mem[level1Phys:], 0, level2Phys|0b11)
	putEntry(mem[level2Phys:], 0, leafPhys|(0b01<<6)|0b11)

	view := memview.NewBytesView(mem)
	ranges, err := Parse(view, 0, Config{Granule: G4K, VASpaceSize: testVASpaceSize, TopBit: 1})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ranges) != 1 {
		t.Fatalf("got %d ranges; want 1", len(ranges))
	}
	if got, want := ranges[0].VA(), uint64(0xFFFFFF8000000000); got != want {
		t.Fatalf("va = 0x%x; want 0x%x", got, want)
	}
}
