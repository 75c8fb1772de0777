package h5

import (
	"context"
	"testing"
)

func TestAddressSpaceExhausted(t *testing.T) {
	e := NewEngine(nil)
	e.next = 1
	if _, err := e.AllocateBytes(1); err != nil {
		t.Fatal(err)
	}
	if _, err := e.AllocateBytes(1); err != ErrAddressSpaceExhausted {
		t.Errorf("got error %v, want %v", err, ErrAddressSpaceExhausted)
	}
	if _, err := e.Allocate(context.Background(), BytesType, &DefaultSizing); err == nil {
		t.Error("allocating a type with no maximum size succeeded")
	}
}
