package format

import (
	"bytes"
	"context"

	"github.com/pkg/errors"

	"github.com/bobg/h5"
)

const heapSignature = "HEAP"

// LocalHeap is the header of a local heap,
// which stores the link names of one group.
// The names themselves live in a separate data segment,
// a raw byte range the header refers to.
//
//	signature      4
//	version        1
//	reserved       3
//	segment size   L
//	free list      L
//	segment        O
type LocalHeap struct {
	Base
}

// LocalHeapSize is the encoded size of a LocalHeap.
func LocalHeapSize(sc *h5.SizingContext) int {
	return 8 + 2*sc.LengthWidth + sc.OffsetWidth
}

// LocalHeapType is the Type of LocalHeap.
var LocalHeapType = &h5.Type{
	Name:    "local heap",
	MinSize: LocalHeapSize,
	MaxSize: LocalHeapSize,
	New: func(e *h5.Engine, v *h5.View, sc *h5.SizingContext) (h5.Record, error) {
		h := new(LocalHeap)
		h.init(h, e, v, sc)
		return h, nil
	},
}

// EncodedSize implements h5.Record.
func (h *LocalHeap) EncodedSize() int { return LocalHeapSize(h.sc) }

// Initialize implements h5.Mutable.
func (h *LocalHeap) Initialize() {
	h.v.Zero(0, h.v.Len())
	h.v.Put(0, []byte(heapSignature))
	h.v.PutUint(8+h.sc.LengthWidth, h.sc.LengthWidth, h5.Undefined(h.sc.LengthWidth))
	h.v.PutAddr(8+2*h.sc.LengthWidth, h.sc.OffsetWidth, h5.Nil)
}

// Pack implements h5.Mutable.
func (h *LocalHeap) Pack() {}

// Validate implements h5.Validator.
func (h *LocalHeap) Validate() error {
	if string(h.v.Get(0, 4)) != heapSignature {
		return errors.New("bad local heap signature")
	}
	if got := h.v.Uint8(4); got != 0 {
		return errors.Errorf("unsupported local heap version %d", got)
	}
	return nil
}

// SegmentSize is the size of the data segment in bytes.
func (h *LocalHeap) SegmentSize() int {
	return int(h.v.Uint(8, h.sc.LengthWidth))
}

// Segment refers to the data segment.
func (h *LocalHeap) Segment() *h5.Resolvable {
	return h.ref(8+2*h.sc.LengthWidth, h.SegmentSize(), h5.BytesType, h.sc)
}

// SetSegment points the heap at a data segment of the given size.
func (h *LocalHeap) SetSegment(r *h5.Resolvable, size int) {
	h.putUint(8, h.sc.LengthWidth, uint64(size))
	h.setRef(8+2*h.sc.LengthWidth, r)
}

// SetSegmentSize records a new size for the current data segment.
func (h *LocalHeap) SetSegmentSize(size int) {
	h.putUint(8, h.sc.LengthWidth, uint64(size))
}

// String reads the NUL-terminated string at off in the data segment.
func (h *LocalHeap) String(ctx context.Context, off uint64) (string, error) {
	seg, err := h5.ResolveAs[*h5.Bytes](ctx, h.Segment())
	if err != nil {
		return "", errors.Wrap(err, "resolving heap data segment")
	}
	b := seg.Bytes()
	if size := uint64(h.SegmentSize()); size < uint64(len(b)) {
		b = b[:size]
	}
	if off >= uint64(len(b)) {
		return "", errors.Errorf("heap offset %d out of range (segment size %d)", off, len(b))
	}
	b = b[off:]
	end := bytes.IndexByte(b, 0)
	if end < 0 {
		return "", errors.Errorf("unterminated string at heap offset %d", off)
	}
	return string(b[:end]), nil
}
