package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/bobg/h5"
)

// Objects is a flat namespace of named byte objects,
// such as a cloud storage bucket.
type Objects interface {
	// List calls f on each object whose name has the given prefix,
	// in lexicographic name order.
	List(ctx context.Context, prefix string, f func(name string, size int64) error) error

	// Get reads n bytes at offset off of the named object.
	Get(ctx context.Context, name string, off, n int64) ([]byte, error)

	// Put creates or replaces the named object.
	Put(ctx context.Context, name string, b []byte) error
}

var _ h5.Store = &ObjectStore{}

// ObjectStore is an h5.Store kept as a sequence of extent objects.
// Each Append writes one object
// named by the store offset of its first byte,
// as 16 hex digits after the prefix.
// The extent index is listed on first use and kept in memory after that,
// so only one ObjectStore at a time may write a given prefix.
type ObjectStore struct {
	objs   Objects
	prefix string

	mu      sync.Mutex
	loaded  bool
	extents []extent
}

type extent struct {
	pos, n uint64
}

func (x extent) end() uint64 { return x.pos + x.n }

// NewObjectStore produces an ObjectStore keeping its objects in objs under prefix.
func NewObjectStore(objs Objects, prefix string) *ObjectStore {
	return &ObjectStore{objs: objs, prefix: prefix}
}

func (s *ObjectStore) name(pos uint64) string {
	return fmt.Sprintf("%s%016x", s.prefix, pos)
}

// Must be called with s.mu held.
func (s *ObjectStore) load(ctx context.Context) error {
	if s.loaded {
		return nil
	}

	var (
		extents []extent
		end     uint64
	)
	err := s.objs.List(ctx, s.prefix, func(name string, size int64) error {
		pos, err := strconv.ParseUint(strings.TrimPrefix(name, s.prefix), 16, 64)
		if err != nil {
			return errors.Wrapf(err, "parsing object name %s", name)
		}
		if pos != end {
			return fmt.Errorf("extent at %d does not follow the one ending at %d", pos, end)
		}
		x := extent{pos: pos, n: uint64(size)}
		extents = append(extents, x)
		end = x.end()
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "listing extents")
	}

	s.extents = extents
	s.loaded = true
	return nil
}

// Must be called with s.mu held.
func (s *ObjectStore) size() uint64 {
	if len(s.extents) == 0 {
		return 0
	}
	return s.extents[len(s.extents)-1].end()
}

// Must be called with s.mu held.
// Returns the extents overlapping [off, end).
func (s *ObjectStore) overlapping(off, end uint64) []extent {
	i := sort.Search(len(s.extents), func(i int) bool {
		return s.extents[i].end() > off
	})
	j := i
	for j < len(s.extents) && s.extents[j].pos < end {
		j++
	}
	return s.extents[i:j]
}

// Size implements h5.Reader.
func (s *ObjectStore) Size(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return 0, err
	}
	return s.size(), nil
}

// ReadAt implements h5.Reader.
func (s *ObjectStore) ReadAt(ctx context.Context, off uint64, n int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return nil, err
	}
	end := off + uint64(n)
	if end > s.size() {
		return nil, h5.ErrShortRead
	}

	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	for _, x := range s.overlapping(off, end) {
		lo, hi := x.pos, x.end()
		if lo < off {
			lo = off
		}
		if hi > end {
			hi = end
		}
		name := s.name(x.pos)
		b, err := s.objs.Get(ctx, name, int64(lo-x.pos), int64(hi-lo))
		if err != nil {
			return nil, errors.Wrapf(err, "reading object %s", name)
		}
		if len(b) != int(hi-lo) {
			return nil, errors.Wrapf(h5.ErrShortRead, "got %d bytes from object %s, want %d", len(b), name, hi-lo)
		}
		copy(buf[lo-off:], b)
	}
	return buf, nil
}

// Append implements h5.Store.
func (s *ObjectStore) Append(ctx context.Context, b []byte) (off, n uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return 0, 0, err
	}
	off = s.size()
	if len(b) == 0 {
		return off, 0, nil
	}
	name := s.name(off)
	if err := s.objs.Put(ctx, name, b); err != nil {
		return 0, 0, errors.Wrapf(err, "writing object %s", name)
	}
	s.extents = append(s.extents, extent{pos: off, n: uint64(len(b))})
	return off, uint64(len(b)), nil
}

// WriteAt implements h5.Store.
// Each extent object it touches is read and rewritten whole.
func (s *ObjectStore) WriteAt(ctx context.Context, off uint64, b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return err
	}
	end := off + uint64(len(b))
	if sz := s.size(); end > sz {
		return errors.Wrapf(h5.ErrShortRead, "writing %d bytes at offset %d of %d", len(b), off, sz)
	}
	if len(b) == 0 {
		return nil
	}

	for _, x := range s.overlapping(off, end) {
		name := s.name(x.pos)
		data, err := s.objs.Get(ctx, name, 0, int64(x.n))
		if err != nil {
			return errors.Wrapf(err, "reading object %s", name)
		}
		if len(data) != int(x.n) {
			return errors.Wrapf(h5.ErrShortRead, "got %d bytes from object %s, want %d", len(data), name, x.n)
		}
		Overlay(data, x.pos, b, off)
		if err := s.objs.Put(ctx, name, data); err != nil {
			return errors.Wrapf(err, "writing object %s", name)
		}
	}
	return nil
}
