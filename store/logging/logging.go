// Package logging implements a store that delegates everything to a nested store,
// logging operations as they happen.
package logging

import (
	"context"
	"log"

	"github.com/pkg/errors"

	"github.com/bobg/h5"
	"github.com/bobg/h5/store"
)

var _ h5.Store = &Store{}

type Store struct {
	s h5.Store
}

func New(s h5.Store) *Store {
	return &Store{s: s}
}

func (s *Store) ReadAt(ctx context.Context, off uint64, n int) ([]byte, error) {
	b, err := s.s.ReadAt(ctx, off, n)
	if err != nil {
		log.Printf("ERROR ReadAt %d+%d: %s", off, n, err)
	} else {
		log.Printf("ReadAt %d+%d", off, n)
	}
	return b, err
}

func (s *Store) Size(ctx context.Context) (uint64, error) {
	size, err := s.s.Size(ctx)
	if err != nil {
		log.Printf("ERROR in Size: %s", err)
	} else {
		log.Printf("Size %d", size)
	}
	return size, err
}

func (s *Store) Append(ctx context.Context, b []byte) (off, n uint64, err error) {
	off, n, err = s.s.Append(ctx, b)
	if err != nil {
		log.Printf("ERROR in Append (%d bytes): %s", len(b), err)
	} else {
		log.Printf("Append %d bytes at %d", n, off)
	}
	return off, n, err
}

func (s *Store) WriteAt(ctx context.Context, off uint64, b []byte) error {
	err := s.s.WriteAt(ctx, off, b)
	if err != nil {
		log.Printf("ERROR WriteAt %d+%d: %s", off, len(b), err)
	} else {
		log.Printf("WriteAt %d+%d", off, len(b))
	}
	return err
}

func init() {
	store.Register("logging", func(ctx context.Context, conf map[string]interface{}) (h5.Store, error) {
		nested, err := store.Nested(ctx, conf, "nested")
		if err != nil {
			return nil, errors.Wrap(err, "creating nested store")
		}
		return New(nested), nil
	})
}
