package h5

import (
	"fmt"
	"math"
)

// Address is the location of a record.
// It is either real,
// a byte offset already committed to a Store,
// or virtual,
// a placeholder for a record that is staged in an Engine and not yet placed.
// The two kinds never compare equal.
type Address struct {
	n       uint64
	virtual bool
}

const nilOffset = math.MaxUint64

// Nil is the address meaning "no reference."
// On disk it is encoded as all ones at the width of the field that holds it.
var Nil = Address{n: nilOffset}

// Real produces the real address for byte offset off.
func Real(off uint64) Address {
	return Address{n: off}
}

// IsVirtual tells whether a is a virtual address.
func (a Address) IsVirtual() bool {
	return a.virtual
}

// IsNil tells whether a is Nil.
func (a Address) IsNil() bool {
	return a == Nil
}

// Offset is the byte offset of a real address.
// It panics on a virtual address.
func (a Address) Offset() uint64 {
	if a.virtual {
		panic(fmt.Sprintf("offset of virtual address %s", a))
	}
	return a.n
}

func (a Address) String() string {
	switch {
	case a.virtual:
		return fmt.Sprintf("virtual:%x", math.MaxUint64-a.n)
	case a.IsNil():
		return "nil"
	default:
		return fmt.Sprintf("0x%x", a.n)
	}
}

// Undefined is the all-ones value at the given byte width.
func Undefined(width int) uint64 {
	if width >= 8 {
		return math.MaxUint64
	}
	return 1<<(8*uint(width)) - 1
}
