package errs

import (
	"errors"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	err := New(GenericParsingError, "x86", "malformed root table")
	if got, want := err.Error(), "x86: malformed root table"; got != want {
		t.Fatalf("Error() = %q; want %q", got, want)
	}
}

func TestErrorWrap(t *testing.T) {
	cause := errors.New("short read")
	err := Wrap(FailedToReadBlock, "memview", "read at 0x1000", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is(err, cause) to hold")
	}
	if got, want := errors.Unwrap(err), cause; got != want {
		t.Fatalf("Unwrap() = %v; want %v", got, want)
	}
}

func TestErrorIsByKind(t *testing.T) {
	err := New(InvalidBlock, "arm64", "reserved bits set")

	if !errors.Is(err, InvalidBlock.Sentinel()) {
		t.Fatalf("expected errors.Is to match on Kind")
	}
	if errors.Is(err, ResourceError.Sentinel()) {
		t.Fatalf("expected errors.Is to reject a different Kind")
	}
}

func TestKindString(t *testing.T) {
	cases := []struct {
		k    Kind
		want string
	}{
		{FailedToReadBlock, "failed to read block"},
		{GenericParsingError, "generic parsing error"},
		{InvalidBlock, "invalid block"},
		{ResourceError, "resource error"},
		{Kind(99), "unknown error kind"},
	}
	for _, c := range cases {
		if got := c.k.String(); got != c.want {
			t.Errorf("Kind(%d).String() = %q; want %q", c.k, got, c.want)
		}
	}
}
