// Package file implements an h5.Store as a single file in the local filesystem.
package file

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/bobg/flock"
	"github.com/pkg/errors"

	"github.com/bobg/h5"
	"github.com/bobg/h5/store"
)

var _ h5.Store = &Store{}

// Store is a file-based implementation of h5.Store.
// Appends take an advisory lock on a sibling file named path+".lock",
// so separate processes appending to the same file do not interleave.
type Store struct {
	path    string
	flocker flock.Locker

	mu sync.Mutex // protects f
	f  *os.File
}

// New opens the file at path, creating it if necessary.
func New(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	return &Store{path: path, f: f}, nil
}

func (s *Store) lockPath() string {
	return s.path + ".lock"
}

// Close closes the underlying file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// ReadAt implements h5.Reader.
func (s *Store) ReadAt(_ context.Context, off uint64, n int) ([]byte, error) {
	buf := make([]byte, n)
	_, err := s.f.ReadAt(buf, int64(off))
	if errors.Is(err, io.EOF) {
		return nil, h5.ErrShortRead
	}
	return buf, errors.Wrapf(err, "reading %d bytes at offset %d of %s", n, off, s.path)
}

// Size implements h5.Reader.
func (s *Store) Size(context.Context) (uint64, error) {
	info, err := s.f.Stat()
	if err != nil {
		return 0, errors.Wrapf(err, "statting %s", s.path)
	}
	return uint64(info.Size()), nil
}

// Append implements h5.Store.
func (s *Store) Append(ctx context.Context, b []byte) (off, n uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flocker.Lock(s.lockPath()); err != nil {
		return 0, 0, errors.Wrapf(err, "locking %s", s.lockPath())
	}
	defer s.flocker.Unlock(s.lockPath())

	off, err = s.Size(ctx)
	if err != nil {
		return 0, 0, err
	}
	nn, err := s.f.WriteAt(b, int64(off))
	return off, uint64(nn), errors.Wrapf(err, "appending to %s", s.path)
}

// WriteAt implements h5.Store.
func (s *Store) WriteAt(ctx context.Context, off uint64, b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	size, err := s.Size(ctx)
	if err != nil {
		return err
	}
	if off+uint64(len(b)) > size {
		return errors.Wrapf(h5.ErrShortRead, "writing %d bytes at offset %d of %d-byte %s", len(b), off, size, s.path)
	}
	_, err = s.f.WriteAt(b, int64(off))
	return errors.Wrapf(err, "writing at offset %d of %s", off, s.path)
}

// Sync commits the file's contents to stable storage.
func (s *Store) Sync() error {
	return s.f.Sync()
}

func init() {
	store.Register("file", func(_ context.Context, conf map[string]interface{}) (h5.Store, error) {
		path, err := store.String(conf, "path")
		if err != nil {
			return nil, err
		}
		return New(path)
	})
}
