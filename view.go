package h5

import (
	"encoding/binary"
	"fmt"
)

// View is a bounded little-endian window over a byte slice.
// Offsets are relative to the start of the window.
// Accessors panic on out-of-range offsets and on widths other than 1, 2, 4, and 8;
// record decoders validate widths once, up front, with SizingContext.Validate.
type View struct {
	b []byte
}

// NewView produces a View over b.
func NewView(b []byte) *View {
	return &View{b: b}
}

// Len is the number of bytes in the window.
func (v *View) Len() int { return len(v.b) }

// Bytes returns the window's bytes.
// The result aliases the View.
func (v *View) Bytes() []byte { return v.b }

// Slice returns a sub-window sharing v's memory.
func (v *View) Slice(off, n int) *View {
	return &View{b: v.b[off : off+n : off+n]}
}

// Resize changes the length of the window,
// preserving its first min(n, v.Len()) bytes.
// Bytes added at the end are zero.
func (v *View) Resize(n int) {
	if n <= cap(v.b) {
		old := len(v.b)
		v.b = v.b[:n]
		for i := old; i < n; i++ {
			v.b[i] = 0
		}
		return
	}
	b := make([]byte, n)
	copy(b, v.b)
	v.b = b
}

// Move copies n bytes from src to dst within the window.
// The ranges may overlap.
func (v *View) Move(dst, src, n int) {
	copy(v.b[dst:dst+n], v.b[src:src+n])
}

// Zero clears n bytes at off.
func (v *View) Zero(off, n int) {
	for i := off; i < off+n; i++ {
		v.b[i] = 0
	}
}

func (v *View) Uint8(off int) uint8   { return v.b[off] }
func (v *View) Uint16(off int) uint16 { return binary.LittleEndian.Uint16(v.b[off:]) }
func (v *View) Uint32(off int) uint32 { return binary.LittleEndian.Uint32(v.b[off:]) }
func (v *View) Uint64(off int) uint64 { return binary.LittleEndian.Uint64(v.b[off:]) }

func (v *View) PutUint8(off int, x uint8)   { v.b[off] = x }
func (v *View) PutUint16(off int, x uint16) { binary.LittleEndian.PutUint16(v.b[off:], x) }
func (v *View) PutUint32(off int, x uint32) { binary.LittleEndian.PutUint32(v.b[off:], x) }
func (v *View) PutUint64(off int, x uint64) { binary.LittleEndian.PutUint64(v.b[off:], x) }

// Uint reads an unsigned integer of the given byte width.
func (v *View) Uint(off, width int) uint64 {
	switch width {
	case 1:
		return uint64(v.Uint8(off))
	case 2:
		return uint64(v.Uint16(off))
	case 4:
		return uint64(v.Uint32(off))
	case 8:
		return v.Uint64(off)
	}
	panic(fmt.Sprintf("unsupported width %d", width))
}

// Int reads a sign-extended integer of the given byte width.
func (v *View) Int(off, width int) int64 {
	switch width {
	case 1:
		return int64(int8(v.Uint8(off)))
	case 2:
		return int64(int16(v.Uint16(off)))
	case 4:
		return int64(int32(v.Uint32(off)))
	case 8:
		return int64(v.Uint64(off))
	}
	panic(fmt.Sprintf("unsupported width %d", width))
}

// PutUint writes the low width bytes of x.
func (v *View) PutUint(off, width int, x uint64) {
	switch width {
	case 1:
		v.PutUint8(off, uint8(x))
	case 2:
		v.PutUint16(off, uint16(x))
	case 4:
		v.PutUint32(off, uint32(x))
	case 8:
		v.PutUint64(off, x)
	default:
		panic(fmt.Sprintf("unsupported width %d", width))
	}
}

// Addr reads an offset field.
// All ones at the field's width decodes as Nil.
func (v *View) Addr(off, width int) Address {
	x := v.Uint(off, width)
	if x == Undefined(width) {
		return Nil
	}
	return Real(x)
}

// PutAddr writes an offset field.
// Nil and virtual addresses are written as all ones;
// a virtual address is a placeholder until its holder is patched.
func (v *View) PutAddr(off, width int, a Address) {
	if a.IsVirtual() || a.IsNil() {
		v.PutUint(off, width, Undefined(width))
		return
	}
	v.PutUint(off, width, a.Offset())
}

// Get copies n bytes at off.
func (v *View) Get(off, n int) []byte {
	out := make([]byte, n)
	copy(out, v.b[off:off+n])
	return out
}

// Put copies b into the window at off.
func (v *View) Put(off int, b []byte) {
	copy(v.b[off:off+len(b)], b)
}
