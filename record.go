package h5

import "context"

// Record is a decoded, typed view over the bytes of one on-disk structure.
type Record interface {
	// EncodedSize is the number of bytes the record occupies.
	EncodedSize() int

	// Bytes returns the record's encoding.
	// Only the first EncodedSize bytes are significant.
	Bytes() []byte
}

// Mutable is a Record that can be created fresh and changes size as it is edited.
type Mutable interface {
	Record

	// Initialize writes a default, empty encoding into the record's window.
	Initialize()

	// Pack shrinks the record's window to its minimal size.
	Pack()
}

// Validator is implemented by records that can check a decoded encoding
// (for a signature or version, say).
// It is called only on the read path, never on freshly allocated records.
type Validator interface {
	Validate() error
}

// Type describes a Record type:
// how large its encoding can be
// and how to construct an instance over a window of bytes.
type Type struct {
	Name string

	// MinSize and MaxSize bound the encoded size of the record under a given SizingContext.
	// A type whose bounds are equal is fixed-size.
	MinSize func(*SizingContext) int
	MaxSize func(*SizingContext) int

	// New constructs a record over v.
	// The Engine passes itself so that the record can produce Resolvables
	// for the offset fields it holds.
	New func(e *Engine, v *View, sc *SizingContext) (Record, error)
}

// Fixed tells whether records of type t always have the same size under sc.
func (t *Type) Fixed(sc *SizingContext) bool {
	return t.MinSize(sc) == t.MaxSize(sc)
}

// Listener is notified when a virtual address it refers to becomes real.
// It is registered with Resolvable.AddListener by a record that stores,
// in one of its own fields,
// a reference to a record that is not yet committed.
type Listener interface {
	// OnResolved must write r.Addr() into the listener's own field identified by param.
	OnResolved(ctx context.Context, r *Resolvable, param int) error
}

// Flusher is an item in an Engine's dirty queue.
// Resolvables are Flushers;
// so are composite managers that own several related allocations
// and must commit them in a particular order.
type Flusher interface {
	Flush(context.Context) error
}
