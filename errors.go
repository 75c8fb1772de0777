package h5

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrAddressSpaceExhausted is returned when an Engine runs out of virtual addresses.
	ErrAddressSpaceExhausted = errors.New("virtual address space exhausted")

	// ErrReadOnly is returned by stores that cannot be written.
	ErrReadOnly = errors.New("read-only store")

	// ErrShortRead is returned when a Store holds fewer bytes than requested.
	ErrShortRead = errors.New("short read")

	// ErrNodeFull is returned when an index node has no room for another entry.
	ErrNodeFull = errors.New("node full")
)

// FormatError reports a record whose encoding is inconsistent:
// a self-reported size that is zero, negative, or larger than the bytes available for it.
type FormatError struct {
	Addr Address
	Size int    // the size requested or reported
	Type string // the name of the record type
	Msg  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format error in %s at %s (size %d): %s", e.Type, e.Addr, e.Size, e.Msg)
}

// DuplicateNameError is returned when inserting a name that is already present in an index.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate name %q", e.Name)
}

// UnsupportedWidthError is returned for an offset or length field
// whose byte width is not 1, 2, 4, or 8.
type UnsupportedWidthError struct {
	Field string
	Width int
}

func (e *UnsupportedWidthError) Error() string {
	return fmt.Sprintf("unsupported width %d for %s", e.Width, e.Field)
}
