// Package lru implements an h5.Store that acts as a least-recently-used page cache for a nested store.
package lru

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/bobg/h5"
	"github.com/bobg/h5/store"
)

var _ h5.Store = &Store{}

// PageSize is the unit in which the Store caches bytes.
const PageSize = 4096

// Store implements a memory-based least-recently-used cache for an h5.Store.
// Reads are served from fixed-size pages.
// Writes pass through to the nested store
// and evict the pages they touch.
type Store struct {
	c *lru.Cache // page index -> []byte
	s h5.Store

	mu    sync.Mutex // protects size, known, gen, and additions to c
	size  uint64
	known bool
	gen   uint64 // incremented by every write
}

// New produces a new Store backed by `s` and caching up to `size` pages.
func New(s h5.Store, size int) (*Store, error) {
	c, err := lru.New(size)
	return &Store{s: s, c: c}, err
}

// Size implements h5.Reader.
// The nested store's size is fetched once and tracked through Append after that.
func (s *Store) Size(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.known {
		size, err := s.s.Size(ctx)
		if err != nil {
			return 0, err
		}
		s.size, s.known = size, true
	}
	return s.size, nil
}

func (s *Store) page(ctx context.Context, i, size uint64) ([]byte, error) {
	if got, ok := s.c.Get(i); ok {
		return got.([]byte), nil
	}
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	pos := i * PageSize
	n := uint64(PageSize)
	if size-pos < n {
		n = size - pos
	}
	p, err := s.s.ReadAt(ctx, pos, int(n))
	if err != nil {
		return nil, errors.Wrapf(err, "reading page %d", i)
	}

	// A write during the read may already have evicted this page.
	s.mu.Lock()
	if s.gen == gen {
		s.c.Add(i, p)
	}
	s.mu.Unlock()
	return p, nil
}

// ReadAt implements h5.Reader.
func (s *Store) ReadAt(ctx context.Context, off uint64, n int) ([]byte, error) {
	size, err := s.Size(ctx)
	if err != nil {
		return nil, err
	}
	end := off + uint64(n)
	if end > size {
		return nil, h5.ErrShortRead
	}
	buf := make([]byte, n)
	for i := off / PageSize; i*PageSize < end; i++ {
		p, err := s.page(ctx, i, size)
		if err != nil {
			return nil, err
		}
		store.Overlay(buf, off, p, i*PageSize)
	}
	return buf, nil
}

func (s *Store) evict(off, n uint64) {
	if n == 0 {
		return
	}
	for i := off / PageSize; i <= (off+n-1)/PageSize; i++ {
		s.c.Remove(i)
	}
}

// Append implements h5.Store.
func (s *Store) Append(ctx context.Context, b []byte) (off, n uint64, err error) {
	off, n, err = s.s.Append(ctx, b)
	if err != nil {
		return off, n, err
	}

	s.mu.Lock()
	s.size, s.known = off+n, true
	s.gen++
	s.mu.Unlock()

	// The page holding off may be cached short.
	s.evict(off, n)
	return off, n, nil
}

// WriteAt implements h5.Store.
func (s *Store) WriteAt(ctx context.Context, off uint64, b []byte) error {
	if err := s.s.WriteAt(ctx, off, b); err != nil {
		return err
	}
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
	s.evict(off, uint64(len(b)))
	return nil
}

func init() {
	store.Register("lru", func(ctx context.Context, conf map[string]interface{}) (h5.Store, error) {
		size, err := store.Int(conf, "size", 1024)
		if err != nil {
			return nil, err
		}
		nested, err := store.Nested(ctx, conf, "nested")
		if err != nil {
			return nil, errors.Wrap(err, "creating nested store")
		}
		return New(nested, size)
	})
}
