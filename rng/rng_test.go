package rng

import "testing"

func TestPhysRangeAbutsAndContains(t *testing.T) {
	a := PhysRange{Base: 0x1000, Extent: 0x1000}
	b := PhysRange{Base: 0x2000, Extent: 0x1000}
	c := PhysRange{Base: 0x3000, Extent: 0x1000}

	if !a.Abuts(b) {
		t.Fatalf("expected a to abut b")
	}
	if a.Abuts(c) {
		t.Fatalf("expected a not to abut c")
	}
	if !a.Contains(0x1000) || a.Contains(0x2000) {
		t.Fatalf("Contains boundary check failed")
	}
}

func TestContiguousHelper(t *testing.T) {
	contig := []PhysRange{{Base: 0, Extent: 0x1000}, {Base: 0x1000, Extent: 0x1000}}
	if !Contiguous(contig) {
		t.Fatalf("expected contiguous phys ranges to report true")
	}

	gappy := []PhysRange{{Base: 0, Extent: 0x1000}, {Base: 0x2000, Extent: 0x1000}}
	if Contiguous(gappy) {
		t.Fatalf("expected gappy phys ranges to report false")
	}

	if !Contiguous(nil) {
		t.Fatalf("expected zero/one element phys ranges to be trivially contiguous")
	}
}

func TestTranslateVAHelper(t *testing.T) {
	phys := []PhysRange{{Base: 0x5000, Extent: 0x1000}, {Base: 0x9000, Extent: 0x1000}}

	cases := []struct {
		va      uint64
		wantGPA uint64
		wantOK  bool
	}{
		{va: 0x1000, wantGPA: 0x5000, wantOK: true},
		{va: 0x1FFF, wantGPA: 0x5FFF, wantOK: true},
		{va: 0x2000, wantGPA: 0x9000, wantOK: true},
		{va: 0x2FFF, wantGPA: 0x9FFF, wantOK: true},
		{va: 0x3000, wantOK: false},
		{va: 0xFFF, wantOK: false},
	}

	for _, c := range cases {
		gpa, ok := TranslateVA(c.va, 0x1000, 0x2000, phys)
		if ok != c.wantOK {
			t.Errorf("TranslateVA(0x%x) ok = %v; want %v", c.va, ok, c.wantOK)
			continue
		}
		if ok && gpa != c.wantGPA {
			t.Errorf("TranslateVA(0x%x) = 0x%x; want 0x%x", c.va, gpa, c.wantGPA)
		}
	}
}
