package transport

import (
	"errors"
	"testing"
)

func TestConnectErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &ConnectError{Category: ErrTimeout, Err: inner}
	if !errors.Is(err, inner) {
		t.Fatal("ConnectError does not unwrap to its inner error")
	}
	if got := err.Category.String(); got != "Timeout" {
		t.Fatalf("Category.String() = %q, want Timeout", got)
	}
}

func TestErrorCategoryStrings(t *testing.T) {
	cases := map[ErrorCategory]string{
		ErrOther:             "Other",
		ErrTimeout:           "Timeout",
		ErrStreamIDConflict:  "StreamIdConflict",
		ErrStreamIDForbidden: "StreamIdForbidden",
		ErrAddressResolution: "AddressResolution",
		ErrSocketCreate:      "SocketCreate",
		ErrOptionSet:         "OptionSet",
	}
	for cat, want := range cases {
		if got := cat.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", cat, got, want)
		}
	}
}
