// Package format defines the on-disk record types of an h5 file:
// the superblock,
// version-1 B-tree nodes,
// symbol-table nodes and their entries,
// local heaps,
// and version-1 object headers with their messages.
//
// Every type here implements h5.Record and can be allocated with h5.Engine.Allocate
// and resolved with h5.Engine.Resolve.
package format

import (
	"context"

	"github.com/bobg/h5"
)

type record interface {
	h5.Record
	h5.Listener
}

// Base holds the byte window of a record
// and keeps track of the offset fields in it
// that still hold placeholders for staged records.
// Record types embed it.
//
// Each pending reference occupies a slot.
// The slot's index is the param given to AddListener,
// and it stays valid however the record's entries are shifted,
// so a patch always lands on the field's current position.
type Base struct {
	owner record
	e     *h5.Engine
	v     *h5.View
	sc    *h5.SizingContext
	slots []slot
}

type slot struct {
	off  int
	r    *h5.Resolvable
	live bool
}

func (b *Base) init(owner record, e *h5.Engine, v *h5.View, sc *h5.SizingContext) {
	b.owner = owner
	b.e = e
	b.v = v
	b.sc = sc
}

// Bytes implements h5.Record.
func (b *Base) Bytes() []byte { return b.v.Bytes() }

// View is the record's byte window.
func (b *Base) View() *h5.View { return b.v }

// Sizing is the SizingContext the record was decoded with.
func (b *Base) Sizing() *h5.SizingContext { return b.sc }

// OnResolved implements h5.Listener.
func (b *Base) OnResolved(_ context.Context, r *h5.Resolvable, param int) error {
	s := &b.slots[param]
	if !s.live {
		return nil
	}
	b.v.PutAddr(s.off, b.sc.OffsetWidth, r.Addr())
	s.live = false
	return nil
}

// Pending is the number of offset fields still waiting for their targets to be placed.
func (b *Base) Pending() int {
	var n int
	for _, s := range b.slots {
		if s.live {
			n++
		}
	}
	return n
}

func (b *Base) touch() {
	b.e.Touch(b.owner)
}

func (b *Base) pending(off int) *h5.Resolvable {
	for _, s := range b.slots {
		if s.live && s.off == off {
			return s.r
		}
	}
	return nil
}

func (b *Base) kill(off int) {
	for i := range b.slots {
		if b.slots[i].off == off {
			b.slots[i].live = false
		}
	}
}

// Reads the offset field at off as a reference to a record of type typ.
// A field still waiting on a staged record yields that record's Resolvable,
// or its replacement if it has since been committed.
func (b *Base) ref(off, size int, typ *h5.Type, sc *h5.SizingContext) *h5.Resolvable {
	if r := b.pending(off); r != nil {
		return b.e.Current(r)
	}
	return b.e.Ref(b.v.Addr(off, b.sc.OffsetWidth), size, typ, sc)
}

// Writes r into the offset field at off.
// A staged r gets a placeholder and a slot,
// patched when r is committed.
func (b *Base) setRef(off int, r *h5.Resolvable) {
	b.kill(off)
	defer b.touch()

	if r == nil {
		b.v.PutAddr(off, b.sc.OffsetWidth, h5.Nil)
		return
	}
	r = b.e.Current(r)
	b.v.PutAddr(off, b.sc.OffsetWidth, r.Addr())
	if !r.Addr().IsVirtual() {
		return
	}
	b.slots = append(b.slots, slot{off: off, r: r, live: true})
	r.AddListener(b.owner, len(b.slots)-1)
}

func (b *Base) putUint(off, width int, x uint64) {
	b.v.PutUint(off, width, x)
	b.touch()
}

// Moves n bytes from src to dst,
// carrying pending slots in the source range along
// and dropping those the move overwrites.
func (b *Base) move(dst, src, n int) {
	b.v.Move(dst, src, n)
	for i := range b.slots {
		s := &b.slots[i]
		if !s.live {
			continue
		}
		switch {
		case s.off >= src && s.off < src+n:
			s.off += dst - src
		case s.off >= dst && s.off < dst+n:
			s.live = false
		}
	}
	b.touch()
}

// Clears n bytes at off and drops the pending slots there.
func (b *Base) zero(off, n int) {
	b.v.Zero(off, n)
	for i := range b.slots {
		if b.slots[i].off >= off && b.slots[i].off < off+n {
			b.slots[i].live = false
		}
	}
	b.touch()
}

func align8(n int) int {
	return (n + 7) &^ 7
}
