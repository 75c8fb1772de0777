package h5

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Engine allocates, resolves, and commits the records of one file.
// It owns the virtual-address counter,
// the staging area for records not yet placed,
// the listeners waiting on those records,
// the dirty queue,
// and the identity cache of records already decoded.
//
// An Engine assumes a single writer.
// Its internal state is guarded by a mutex,
// so reads of independent subtrees may proceed concurrently.
type Engine struct {
	s Store

	mu        sync.Mutex
	next      uint64                   // the next virtual address; counts down
	staged    map[uint64]*stagedRecord // virtual address -> staged record
	committed map[uint64]*Resolvable   // virtual address -> its real replacement
	cache     map[uint64]Record        // real offset -> the one decoded instance
	placed    map[Record]*Resolvable   // inverse of cache
	dirty     []Flusher
	writeback map[uint64]struct{} // offsets of placed records to rewrite
}

type stagedRecord struct {
	rec       Record
	res       *Resolvable
	listeners []registration
}

type registration struct {
	l     Listener
	param int
}

// NewEngine produces a new Engine over s.
func NewEngine(s Store) *Engine {
	return &Engine{
		s:         s,
		next:      math.MaxUint64 - 1,
		staged:    make(map[uint64]*stagedRecord),
		committed: make(map[uint64]*Resolvable),
		cache:     make(map[uint64]Record),
		placed:    make(map[Record]*Resolvable),
		writeback: make(map[uint64]struct{}),
	}
}

// Store is the Engine's backing store.
func (e *Engine) Store() Store { return e.s }

// Caller must hold e.mu.
func (e *Engine) reserve() (Address, error) {
	if e.next == 0 {
		return Address{}, ErrAddressSpaceExhausted
	}
	a := Address{n: e.next, virtual: true}
	e.next--
	return a, nil
}

// Ref produces a Resolvable for an address decoded from an offset field.
// It returns nil for Nil.
// A size of 0 means the size must be discovered by decoding.
func (e *Engine) Ref(addr Address, size int, typ *Type, sc *SizingContext) *Resolvable {
	if addr.IsNil() {
		return nil
	}
	return &Resolvable{e: e, addr: addr, size: size, typ: typ, sc: sc}
}

// AllocateBytes stages a zeroed byte range of length n under a new virtual address
// and marks it dirty.
func (e *Engine) AllocateBytes(n int) (*Resolvable, error) {
	if n <= 0 {
		return nil, fmt.Errorf("cannot allocate %d bytes", n)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	addr, err := e.reserve()
	if err != nil {
		return nil, err
	}
	r := &Resolvable{e: e, addr: addr, size: n, typ: BytesType, sc: &DefaultSizing}
	e.staged[addr.n] = &stagedRecord{rec: &Bytes{v: NewView(make([]byte, n))}, res: r}
	e.dirty = append(e.dirty, r)
	return r, nil
}

// Allocate creates a default-initialized record of type typ.
// The record is constructed over a scratch buffer of typ's maximum size.
// If typ is fixed-size the record is committed immediately
// and the result is real;
// callers that change it afterwards must call Touch.
// Otherwise the record is staged under a virtual address and marked dirty,
// and callers may keep changing it until it is committed.
func (e *Engine) Allocate(ctx context.Context, typ *Type, sc *SizingContext) (*Resolvable, error) {
	max := typ.MaxSize(sc)
	if max <= 0 {
		return nil, fmt.Errorf("type %s has no maximum size", typ.Name)
	}
	rec, err := typ.New(e, NewView(make([]byte, max)), sc)
	if err != nil {
		return nil, errors.Wrapf(err, "constructing %s", typ.Name)
	}
	if m, ok := rec.(Mutable); ok {
		m.Initialize()
	}

	fixed := typ.Fixed(sc)

	e.mu.Lock()
	addr, err := e.reserve()
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	r := &Resolvable{e: e, addr: addr, typ: typ, sc: sc}
	e.staged[addr.n] = &stagedRecord{rec: rec, res: r}
	if !fixed {
		e.dirty = append(e.dirty, r)
	}
	e.mu.Unlock()

	if fixed {
		nr, err := e.Commit(ctx, r)
		if err != nil && nr == nil {
			// Nothing else refers to r, so nothing could retry the commit.
			e.mu.Lock()
			delete(e.staged, addr.n)
			e.mu.Unlock()
		}
		return nr, err
	}
	return r, nil
}

// Commit places the record staged under r's virtual address.
// It packs the record (if it is Mutable),
// appends its bytes to the Store,
// and notifies every Listener registered on r
// with the new, real Resolvable,
// which it returns.
//
// Commit is a no-op returning r if r is already real
// or if nothing is staged under its address.
// Committing the same virtual Resolvable twice returns the same real one.
//
// If a Listener fails,
// the remaining listeners are still notified
// and the first error is returned.
// The record is placed regardless.
func (e *Engine) Commit(ctx context.Context, r *Resolvable) (*Resolvable, error) {
	if !r.addr.IsVirtual() {
		return r, nil
	}

	e.mu.Lock()
	if nr, ok := e.committed[r.addr.n]; ok {
		e.mu.Unlock()
		return nr, nil
	}
	st, ok := e.staged[r.addr.n]
	e.mu.Unlock()
	if !ok {
		return r, nil
	}

	if m, ok := st.rec.(Mutable); ok {
		m.Pack()
	}
	size := st.rec.EncodedSize()
	b := st.rec.Bytes()
	if size <= 0 || size > len(b) {
		return nil, &FormatError{Addr: r.addr, Size: size, Type: st.res.typ.Name, Msg: fmt.Sprintf("encoded size out of range (have %d bytes)", len(b))}
	}

	off, n, err := e.s.Append(ctx, b[:size])
	if err != nil {
		return nil, errors.Wrapf(err, "appending %d bytes for %s", size, r)
	}
	if n != uint64(size) {
		return nil, fmt.Errorf("appended %d bytes for %s, want %d", n, r, size)
	}

	nr := &Resolvable{e: e, addr: Real(off), size: size, typ: st.res.typ, sc: st.res.sc}

	e.mu.Lock()
	delete(e.staged, r.addr.n)
	e.committed[r.addr.n] = nr
	e.cache[off] = st.rec
	e.placed[st.rec] = nr
	listeners := st.listeners
	e.mu.Unlock()

	var firstErr error
	for _, reg := range listeners {
		err := reg.l.OnResolved(ctx, nr, reg.param)
		if err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "notifying listener of %s", nr)
		}
		if rec, ok := reg.l.(Record); ok {
			// A holder that was itself placed must be rewritten with the patched field.
			e.Touch(rec)
		}
	}
	return nr, firstErr
}

// Current returns the real replacement of r if r has been committed,
// and r otherwise.
func (e *Engine) Current(r *Resolvable) *Resolvable {
	if r == nil || !r.addr.IsVirtual() {
		return r
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if nr, ok := e.committed[r.addr.n]; ok {
		return nr
	}
	return r
}

// MarkDirty adds f to the dirty queue.
func (e *Engine) MarkDirty(f Flusher) {
	e.mu.Lock()
	e.dirty = append(e.dirty, f)
	e.mu.Unlock()
}

// Dirty is the number of items in the dirty queue.
func (e *Engine) Dirty() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.dirty)
}

// Touch records that rec,
// a placed record,
// has changed and must be rewritten in place at the next CommitAll.
// It does nothing for a staged record,
// whose current contents are written when it is committed.
func (e *Engine) Touch(rec Record) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if r, ok := e.placed[rec]; ok {
		e.writeback[r.addr.Offset()] = struct{}{}
	}
}

// CommitAll commits every item in the dirty queue,
// most recently added first,
// until the queue is empty.
// Items added while committing
// (a record whose packing allocates another, say)
// are committed too.
// If an item fails,
// it stays in the queue and CommitAll returns the error;
// calling CommitAll again retries it.
//
// Once the queue is empty,
// records changed since they were placed are rewritten in place.
func (e *Engine) CommitAll(ctx context.Context) error {
	for {
		e.mu.Lock()
		if len(e.dirty) == 0 {
			e.mu.Unlock()
			break
		}
		f := e.dirty[len(e.dirty)-1]
		e.mu.Unlock()

		if err := f.Flush(ctx); err != nil {
			return errors.Wrap(err, "committing dirty item")
		}

		e.mu.Lock()
		for i := len(e.dirty) - 1; i >= 0; i-- {
			if e.dirty[i] == f {
				e.dirty = append(e.dirty[:i], e.dirty[i+1:]...)
				break
			}
		}
		e.mu.Unlock()
	}

	return e.flushWriteback(ctx)
}

func (e *Engine) flushWriteback(ctx context.Context) error {
	e.mu.Lock()
	offs := make([]uint64, 0, len(e.writeback))
	for off := range e.writeback {
		offs = append(offs, off)
	}
	e.writeback = make(map[uint64]struct{})
	e.mu.Unlock()

	sort.Slice(offs, func(i, j int) bool { return offs[i] < offs[j] })

	for i, off := range offs {
		err := e.rewrite(ctx, off)
		if err != nil {
			e.mu.Lock()
			for _, o := range offs[i:] {
				e.writeback[o] = struct{}{}
			}
			e.mu.Unlock()
			return errors.Wrapf(err, "rewriting record at 0x%x", off)
		}
	}
	return nil
}

func (e *Engine) rewrite(ctx context.Context, off uint64) error {
	e.mu.Lock()
	rec := e.cache[off]
	r := e.placed[rec]
	e.mu.Unlock()

	size := rec.EncodedSize()
	if size > r.size {
		return &FormatError{Addr: r.addr, Size: size, Type: r.typ.Name, Msg: fmt.Sprintf("record grew past its placed size %d", r.size)}
	}
	return e.s.WriteAt(ctx, off, rec.Bytes()[:size])
}

// Caller must not hold e.mu.
func (e *Engine) addListener(addr Address, l Listener, param int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if st, ok := e.staged[addr.n]; ok {
		st.listeners = append(st.listeners, registration{l: l, param: param})
	}
}

// Resolve produces the record of type typ at addr.
// A size of 0 means the size must be discovered by decoding.
func (e *Engine) Resolve(ctx context.Context, addr Address, size int, typ *Type, sc *SizingContext) (Record, error) {
	r := e.Ref(addr, size, typ, sc)
	if r == nil {
		return nil, errors.New("resolving nil address")
	}
	return e.resolve(ctx, r)
}

// ResolveBytes produces the byte range of length size at addr.
func (e *Engine) ResolveBytes(ctx context.Context, addr Address, size int) (*Bytes, error) {
	return ResolveAs[*Bytes](ctx, e.Ref(addr, size, BytesType, &DefaultSizing))
}

func (e *Engine) resolve(ctx context.Context, r *Resolvable) (Record, error) {
	if r.addr.IsNil() {
		return nil, errors.New("resolving nil address")
	}

	e.mu.Lock()
	if r.addr.IsVirtual() {
		if st, ok := e.staged[r.addr.n]; ok {
			e.mu.Unlock()
			return st.rec, nil
		}
		nr, ok := e.committed[r.addr.n]
		if !ok {
			e.mu.Unlock()
			return nil, fmt.Errorf("unknown virtual address %s", r.addr)
		}
		r = nr
	}
	off := r.addr.Offset()
	if rec, ok := e.cache[off]; ok {
		e.mu.Unlock()
		return rec, nil
	}
	e.mu.Unlock()

	rec, size, err := e.decode(ctx, r)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.cache[off]; ok {
		// Another reader got here first.
		return existing, nil
	}
	e.cache[off] = rec
	e.placed[rec] = &Resolvable{e: e, addr: r.addr, size: size, typ: r.typ, sc: r.sc}
	return rec, nil
}

func (e *Engine) decode(ctx context.Context, r *Resolvable) (Record, int, error) {
	var (
		off  = r.addr.Offset()
		name = r.typ.Name
		n    = r.size
	)

	if n == 0 {
		total, err := e.s.Size(ctx)
		if err != nil {
			return nil, 0, errors.Wrap(err, "getting store size")
		}
		if off >= total {
			return nil, 0, &FormatError{Addr: r.addr, Type: name, Msg: fmt.Sprintf("beyond end of store (size %d)", total)}
		}
		n = r.typ.MaxSize(r.sc)
		if rem := total - off; uint64(n) > rem {
			n = int(rem)
		}
		if min := r.typ.MinSize(r.sc); n < min {
			return nil, 0, &FormatError{Addr: r.addr, Size: n, Type: name, Msg: fmt.Sprintf("truncated (minimum size %d)", min)}
		}
	}
	if n <= 0 {
		return nil, 0, &FormatError{Addr: r.addr, Size: n, Type: name, Msg: "size unknown"}
	}

	b, err := e.s.ReadAt(ctx, off, n)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "reading %d bytes of %s at %s", n, name, r.addr)
	}

	rec, err := r.typ.New(e, NewView(b), r.sc)
	if err != nil {
		return nil, 0, &FormatError{Addr: r.addr, Size: n, Type: name, Msg: err.Error()}
	}
	if v, ok := rec.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, 0, &FormatError{Addr: r.addr, Size: n, Type: name, Msg: err.Error()}
		}
	}

	size := rec.EncodedSize()
	if size <= 0 || size > n {
		return nil, 0, &FormatError{Addr: r.addr, Size: size, Type: name, Msg: fmt.Sprintf("encoded size exceeds window of %d bytes", n)}
	}
	return rec, size, nil
}

// Stats describes the state of an Engine.
type Stats struct {
	Staged    int // records awaiting placement
	Cached    int // placed records in the identity cache
	Dirty     int // items in the dirty queue
	Writeback int // placed records awaiting rewrite
}

// Stats reports the current state of e.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Stats{
		Staged:    len(e.staged),
		Cached:    len(e.cache),
		Dirty:     len(e.dirty),
		Writeback: len(e.writeback),
	}
}
