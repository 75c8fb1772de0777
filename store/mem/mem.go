// Package mem implements an in-memory h5.Store.
package mem

import (
	"context"
	"sync"

	"github.com/bobg/h5"
	"github.com/bobg/h5/store"
)

var _ h5.Store = &Store{}

// Store is a memory-based implementation of h5.Store.
type Store struct {
	mu  sync.Mutex
	buf []byte
}

// New produces a new, empty Store.
func New() *Store {
	return &Store{}
}

// NewFrom produces a Store holding a copy of b.
func NewFrom(b []byte) *Store {
	return &Store{buf: append([]byte(nil), b...)}
}

// ReadAt implements h5.Reader.
func (s *Store) ReadAt(_ context.Context, off uint64, n int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if off+uint64(n) > uint64(len(s.buf)) {
		return nil, h5.ErrShortRead
	}
	out := make([]byte, n)
	copy(out, s.buf[off:])
	return out, nil
}

// Size implements h5.Reader.
func (s *Store) Size(context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint64(len(s.buf)), nil
}

// Append implements h5.Store.
func (s *Store) Append(_ context.Context, b []byte) (off, n uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	off = uint64(len(s.buf))
	s.buf = append(s.buf, b...)
	return off, uint64(len(b)), nil
}

// WriteAt implements h5.Store.
func (s *Store) WriteAt(_ context.Context, off uint64, b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if off+uint64(len(b)) > uint64(len(s.buf)) {
		return h5.ErrShortRead
	}
	copy(s.buf[off:], b)
	return nil
}

// Bytes returns a copy of the store's contents.
func (s *Store) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.buf...)
}

func init() {
	store.Register("mem", func(context.Context, map[string]interface{}) (h5.Store, error) {
		return New(), nil
	})
}
