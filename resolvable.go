package h5

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Resolvable is a typed reference to a record that may not have been decoded,
// or even placed, yet.
// It is immutable.
// Committing a virtual Resolvable produces a new, real one;
// the virtual one remains usable and is redirected to its replacement.
type Resolvable struct {
	e    *Engine
	addr Address
	size int // 0 means unknown
	typ  *Type
	sc   *SizingContext
}

var _ Flusher = &Resolvable{}

// Addr is the address of the referenced record.
func (r *Resolvable) Addr() Address { return r.addr }

// Size returns the declared size of the referenced record, if known.
// When it is not known the record must be decoded to learn it.
func (r *Resolvable) Size() (int, bool) { return r.size, r.size > 0 }

// Type is the Type of the referenced record.
func (r *Resolvable) Type() *Type { return r.typ }

// Sizing is the SizingContext used to decode the referenced record.
func (r *Resolvable) Sizing() *SizingContext { return r.sc }

// Engine is the Engine that owns r.
func (r *Resolvable) Engine() *Engine { return r.e }

// Equal tells whether r and other refer to the same address in the same Engine.
func (r *Resolvable) Equal(other *Resolvable) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.e == other.e && r.addr == other.addr
}

// Resolve produces the referenced record.
// A virtual Resolvable yields the staged instance directly.
// A real one yields the cached instance for its address,
// decoding it from the Store on first use.
func (r *Resolvable) Resolve(ctx context.Context) (Record, error) {
	return r.e.resolve(ctx, r)
}

// AddListener registers l to be notified,
// with the given param,
// when r's virtual address is replaced by a real one.
// It does nothing if r is already real.
func (r *Resolvable) AddListener(l Listener, param int) {
	if !r.addr.IsVirtual() {
		return
	}
	r.e.addListener(r.addr, l, param)
}

// Unlink releases the referenced record.
// It does nothing at present;
// space in the store is never reclaimed.
func (r *Resolvable) Unlink() {}

// Flush implements Flusher by committing r.
func (r *Resolvable) Flush(ctx context.Context) error {
	_, err := r.e.Commit(ctx, r)
	return err
}

func (r *Resolvable) String() string {
	name := "?"
	if r.typ != nil {
		name = r.typ.Name
	}
	if r.size > 0 {
		return fmt.Sprintf("%s@%s[%d]", name, r.addr, r.size)
	}
	return fmt.Sprintf("%s@%s", name, r.addr)
}

// ResolveAs resolves r and asserts that the result has type T.
func ResolveAs[T Record](ctx context.Context, r *Resolvable) (T, error) {
	var zero T
	if r == nil {
		return zero, errors.New("resolving nil reference")
	}
	rec, err := r.Resolve(ctx)
	if err != nil {
		return zero, err
	}
	t, ok := rec.(T)
	if !ok {
		return zero, fmt.Errorf("record at %s is a %T, not a %T", r.addr, rec, zero)
	}
	return t, nil
}
