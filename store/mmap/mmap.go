// Package mmap implements a read-only h5.Store over a memory-mapped file.
// Opening an existing file this way avoids a system call per record read.
package mmap

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"

	"github.com/bobg/h5"
	"github.com/bobg/h5/store"
)

var _ h5.Store = &Store{}

// Store is a read-only h5.Store backed by a memory-mapped file.
// Append and WriteAt return h5.ErrReadOnly.
type Store struct {
	path string
	r    *mmap.ReaderAt
}

// New maps the file at path.
func New(path string) (*Store, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "mapping %s", path)
	}
	return &Store{path: path, r: r}, nil
}

// Close unmaps the file.
func (s *Store) Close() error {
	return s.r.Close()
}

// ReadAt implements h5.Reader.
func (s *Store) ReadAt(_ context.Context, off uint64, n int) ([]byte, error) {
	if off+uint64(n) > uint64(s.r.Len()) {
		return nil, h5.ErrShortRead
	}
	buf := make([]byte, n)
	_, err := s.r.ReadAt(buf, int64(off))
	return buf, errors.Wrapf(err, "reading %d bytes at offset %d of %s", n, off, s.path)
}

// Size implements h5.Reader.
func (s *Store) Size(context.Context) (uint64, error) {
	return uint64(s.r.Len()), nil
}

// Append implements h5.Store.
func (s *Store) Append(context.Context, []byte) (uint64, uint64, error) {
	return 0, 0, h5.ErrReadOnly
}

// WriteAt implements h5.Store.
func (s *Store) WriteAt(context.Context, uint64, []byte) error {
	return h5.ErrReadOnly
}

func init() {
	store.Register("mmap", func(_ context.Context, conf map[string]interface{}) (h5.Store, error) {
		path, err := store.String(conf, "path")
		if err != nil {
			return nil, err
		}
		return New(path)
	})
}
