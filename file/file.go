// Package file implements h5 files:
// a superblock at offset 0,
// a root group,
// and a tree of groups and datasets beneath it.
package file

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/bobg/h5"
	"github.com/bobg/h5/format"
)

// ErrNotFound is returned when a path names nothing.
var ErrNotFound = errors.New("not found")

// ErrNotGroup is returned when a path component names a dataset.
var ErrNotGroup = errors.New("not a group")

// File is an open h5 file.
type File struct {
	e    *h5.Engine
	sc   *h5.SizingContext
	sb   *format.Superblock
	root *Group
}

// Create writes a new file with an empty root group to s,
// which must be empty.
// Nothing is durable until Flush or Close.
func Create(ctx context.Context, s h5.Store, sc *h5.SizingContext) (*File, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	size, err := s.Size(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting store size")
	}
	if size != 0 {
		return nil, errors.Errorf("store is not empty (%d bytes)", size)
	}

	e := h5.NewEngine(s)
	sbRes, err := e.Allocate(ctx, format.SuperblockType, sc)
	if err != nil {
		return nil, errors.Wrap(err, "allocating superblock")
	}
	if sbRes.Addr() != h5.Real(0) {
		return nil, errors.Errorf("superblock placed at %s", sbRes.Addr())
	}
	sb, err := h5.ResolveAs[*format.Superblock](ctx, sbRes)
	if err != nil {
		return nil, err
	}

	f := &File{e: e, sc: sc, sb: sb}
	root, err := f.createGroup(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "creating root group")
	}
	ent := sb.Root()
	ent.SetHeader(root.hdr)
	ent.SetSymbolTable(root.tree.Root(), root.heap.Ref())
	f.root = root
	return f, nil
}

// Open opens the file in s.
// A file opened from a read-only store can be read
// and closed but not changed.
func Open(ctx context.Context, s h5.Store) (*File, error) {
	prefix, err := s.ReadAt(ctx, 0, format.SuperblockPrefix)
	if err != nil {
		return nil, errors.Wrap(err, "reading superblock")
	}
	sc, err := format.ReadSizing(prefix, &h5.DefaultSizing)
	if err != nil {
		return nil, err
	}

	e := h5.NewEngine(s)
	sb, err := h5.ResolveAs[*format.Superblock](ctx, e.Ref(h5.Real(0), format.SuperblockSize(sc), format.SuperblockType, sc))
	if err != nil {
		return nil, errors.Wrap(err, "resolving superblock")
	}

	f := &File{e: e, sc: sc, sb: sb}
	hdr := sb.Root().Header()
	if hdr == nil {
		return nil, errors.New("no root group")
	}
	f.root, err = f.openGroup(ctx, hdr)
	if err != nil {
		return nil, errors.Wrap(err, "opening root group")
	}
	return f, nil
}

// Engine is the file's engine.
func (f *File) Engine() *h5.Engine { return f.e }

// Sizing is the file's SizingContext.
func (f *File) Sizing() *h5.SizingContext { return f.sc }

// Root is the root group.
func (f *File) Root() *Group { return f.root }

// EOF is the end-of-file address recorded in the superblock.
func (f *File) EOF() uint64 { return f.sb.EOF() }

// Flush commits everything staged
// and records the new end of file in the superblock.
func (f *File) Flush(ctx context.Context) error {
	if err := f.e.CommitAll(ctx); err != nil {
		return err
	}
	size, err := f.e.Store().Size(ctx)
	if err != nil {
		return errors.Wrap(err, "getting store size")
	}
	if size != f.sb.EOF() {
		f.sb.SetEOF(size)
	}
	return f.e.CommitAll(ctx)
}

// Close flushes the file.
// The underlying store is not closed.
func (f *File) Close(ctx context.Context) error {
	return f.Flush(ctx)
}

// Walk follows path from the root group,
// returning the group holding the last element and that element's name.
// Path elements are separated by slashes;
// leading, trailing, and repeated slashes are ignored.
// The empty path yields the root group and an empty name.
func (f *File) Walk(ctx context.Context, path string) (*Group, string, error) {
	var elems []string
	for _, elem := range strings.Split(path, "/") {
		if elem != "" {
			elems = append(elems, elem)
		}
	}
	if len(elems) == 0 {
		return f.root, "", nil
	}

	g := f.root
	for i, elem := range elems[:len(elems)-1] {
		sub, err := g.Group(ctx, elem)
		if err != nil {
			return nil, "", errors.Wrapf(err, "walking %s", strings.Join(elems[:i+1], "/"))
		}
		g = sub
	}
	return g, elems[len(elems)-1], nil
}
