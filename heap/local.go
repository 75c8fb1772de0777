// Package heap manages local heaps,
// which hold the link names of a group.
package heap

import (
	"bytes"
	"context"

	"github.com/pkg/errors"

	"github.com/bobg/h5"
	"github.com/bobg/h5/format"
)

// Local manages a local heap:
// the fixed-size header and its growing data segment.
// Names are NUL-terminated and padded to a multiple of 8 bytes.
// Offset 0 always holds the empty string.
//
// The data segment is staged while it grows.
// Once placed it cannot grow in an append-only store,
// so the next Add copies it to a new, larger staged segment.
// Local is itself a dirty item:
// flushing it commits the segment first
// and then rewrites the header that refers to it.
type Local struct {
	e   *h5.Engine
	res *h5.Resolvable
	hdr *format.LocalHeap
}

var _ h5.Flusher = &Local{}

const initialSegment = 8

// Create allocates a new local heap.
func Create(ctx context.Context, e *h5.Engine, sc *h5.SizingContext) (*Local, error) {
	res, err := e.Allocate(ctx, format.LocalHeapType, sc)
	if err != nil {
		return nil, errors.Wrap(err, "allocating local heap")
	}
	hdr, err := h5.ResolveAs[*format.LocalHeap](ctx, res)
	if err != nil {
		return nil, err
	}
	seg, err := e.AllocateBytes(initialSegment)
	if err != nil {
		return nil, errors.Wrap(err, "allocating local heap segment")
	}
	hdr.SetSegment(seg, initialSegment)

	l := &Local{e: e, res: res, hdr: hdr}
	e.MarkDirty(l)
	return l, nil
}

// Open produces a Local for the existing heap at r.
func Open(ctx context.Context, r *h5.Resolvable) (*Local, error) {
	hdr, err := h5.ResolveAs[*format.LocalHeap](ctx, r)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving local heap at %s", r.Addr())
	}
	return &Local{e: r.Engine(), res: r, hdr: hdr}, nil
}

// Ref refers to the heap header.
func (l *Local) Ref() *h5.Resolvable { return l.res }

// Header is the heap header record.
func (l *Local) Header() *format.LocalHeap { return l.hdr }

// Add stores name in the heap and returns its offset.
func (l *Local) Add(ctx context.Context, name string) (uint64, error) {
	if name == "" {
		return 0, nil
	}
	if bytes.IndexByte([]byte(name), 0) >= 0 {
		return 0, errors.Errorf("name %q contains NUL", name)
	}

	var (
		off  = l.hdr.SegmentSize()
		size = off + align8(len(name)+1)
		seg  = l.hdr.Segment()
	)

	old, err := h5.ResolveAs[*h5.Bytes](ctx, seg)
	if err != nil {
		return 0, errors.Wrap(err, "resolving heap segment")
	}

	if seg.Addr().IsVirtual() {
		old.Grow(size)
		copy(old.Bytes()[off:], name)
		l.hdr.SetSegmentSize(size)
		return uint64(off), nil
	}

	nr, err := l.e.AllocateBytes(size)
	if err != nil {
		return 0, errors.Wrap(err, "relocating heap segment")
	}
	nb, err := h5.ResolveAs[*h5.Bytes](ctx, nr)
	if err != nil {
		return 0, err
	}
	copy(nb.Bytes(), old.Bytes()[:off])
	copy(nb.Bytes()[off:], name)
	l.hdr.SetSegment(nr, size)
	l.e.MarkDirty(l)
	return uint64(off), nil
}

// Name returns the string at off.
func (l *Local) Name(ctx context.Context, off uint64) (string, error) {
	return l.hdr.String(ctx, off)
}

// Flush implements h5.Flusher.
func (l *Local) Flush(ctx context.Context) error {
	if _, err := l.e.Commit(ctx, l.hdr.Segment()); err != nil {
		return errors.Wrap(err, "committing heap segment")
	}
	l.e.Touch(l.hdr)
	return nil
}

func align8(n int) int {
	return (n + 7) &^ 7
}
