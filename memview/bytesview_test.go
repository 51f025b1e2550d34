package memview

import "testing"

func TestBytesViewReadInto(t *testing.T) {
	v := NewBytesView([]byte{0, 1, 2, 3, 4, 5, 6, 7})

	buf := make([]byte, 4)
	if err := v.ReadInto(buf, 2); err != nil {
		t.Fatalf("ReadInto: %v", err)
	}
	want := []byte{2, 3, 4, 5}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("buf[%d] = %d; want %d", i, buf[i], want[i])
		}
	}
}

func TestBytesViewReadPastEndFails(t *testing.T) {
	v := NewBytesView([]byte{0, 1, 2, 3})
	if _, err := v.Read(2, 4); err == nil {
		t.Fatalf("expected error reading past end of buffer")
	}
}

func TestBytesViewZeroLengthRead(t *testing.T) {
	v := NewBytesView([]byte{0, 1, 2, 3})
	buf, err := v.Read(100, 0)
	if err != nil || buf != nil {
		t.Fatalf("Read(100, 0) = (%v, %v); want (nil, nil)", buf, err)
	}
}
