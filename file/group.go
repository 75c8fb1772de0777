package file

import (
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/bobg/h5"
	"github.com/bobg/h5/btree"
	"github.com/bobg/h5/format"
	"github.com/bobg/h5/heap"
	"github.com/bobg/h5/split"
)

// Group is a group:
// an object header with a symbol table message,
// a group B-tree of its members,
// and a local heap of their names.
type Group struct {
	f    *File
	hdr  *h5.Resolvable
	tree *btree.GroupTree
	heap *heap.Local
}

// Member describes one member of a group.
type Member struct {
	Name    string
	IsGroup bool
}

func (f *File) createGroup(ctx context.Context) (*Group, error) {
	h, err := heap.Create(ctx, f.e, f.sc)
	if err != nil {
		return nil, err
	}
	tree, err := btree.CreateGroup(ctx, f.e, f.sc, h.Ref())
	if err != nil {
		return nil, err
	}
	hdrRes, err := f.e.Allocate(ctx, format.ObjectHeaderType, f.sc)
	if err != nil {
		return nil, errors.Wrap(err, "allocating group header")
	}
	hdr, err := h5.ResolveAs[*format.ObjectHeader](ctx, hdrRes)
	if err != nil {
		return nil, err
	}
	if err := hdr.SetSymbolTable(tree.Root(), h.Ref()); err != nil {
		return nil, err
	}
	return &Group{f: f, hdr: hdrRes, tree: tree, heap: h}, nil
}

func (f *File) openGroup(ctx context.Context, hdrRes *h5.Resolvable) (*Group, error) {
	hdr, err := h5.ResolveAs[*format.ObjectHeader](ctx, hdrRes)
	if err != nil {
		return nil, errors.Wrap(err, "resolving object header")
	}
	treeRes, heapRes, ok := hdr.SymbolTable()
	if !ok {
		return nil, ErrNotGroup
	}
	h, err := heap.Open(ctx, heapRes)
	if err != nil {
		return nil, err
	}
	tree, err := btree.OpenGroup(ctx, treeRes, heapRes)
	if err != nil {
		return nil, err
	}
	return &Group{f: f, hdr: hdrRes, tree: tree, heap: h}, nil
}

// Header refers to the group's object header.
func (g *Group) Header() *h5.Resolvable { return g.hdr }

func checkName(name string) error {
	if name == "" {
		return errors.New("empty name")
	}
	if strings.ContainsAny(name, "/\x00") {
		return errors.Errorf("invalid name %q", name)
	}
	return nil
}

// Checks that name is valid and not yet in use.
func (g *Group) checkNew(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if _, ok, err := g.tree.Lookup(ctx, name); err != nil {
		return err
	} else if ok {
		return &h5.DuplicateNameError{Name: name}
	}
	return nil
}

// Adds a link named name to the object header hdr.
func (g *Group) link(ctx context.Context, name string, hdr *h5.Resolvable) (*format.Entry, error) {
	if err := g.checkNew(ctx, name); err != nil {
		return nil, err
	}
	off, err := g.heap.Add(ctx, name)
	if err != nil {
		return nil, errors.Wrapf(err, "adding %s to heap", name)
	}
	ent, err := g.tree.Add(ctx, off, name)
	if err != nil {
		return nil, errors.Wrapf(err, "adding %s to group", name)
	}
	ent.SetHeader(hdr)
	return ent, nil
}

func (g *Group) lookup(ctx context.Context, name string) (*format.Entry, error) {
	ent, ok, err := g.tree.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	return ent, nil
}

// CreateGroup adds a new, empty group named name.
func (g *Group) CreateGroup(ctx context.Context, name string) (*Group, error) {
	if err := g.checkNew(ctx, name); err != nil {
		return nil, err
	}
	sub, err := g.f.createGroup(ctx)
	if err != nil {
		return nil, err
	}
	ent, err := g.link(ctx, name, sub.hdr)
	if err != nil {
		return nil, err
	}
	ent.SetSymbolTable(sub.tree.Root(), sub.heap.Ref())
	return sub, nil
}

// Group opens the member group named name.
func (g *Group) Group(ctx context.Context, name string) (*Group, error) {
	ent, err := g.lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	sub, err := g.f.openGroup(ctx, ent.Header())
	return sub, errors.Wrap(err, name)
}

// CreateDataset adds a dataset named name holding the contents of r.
// The bytes are split into content-defined chunks,
// optionally filtered (see split.Filter),
// and indexed by a chunk B-tree.
func (g *Group) CreateDataset(ctx context.Context, name string, r io.Reader, opts ...split.Option) (*Dataset, error) {
	if err := g.checkNew(ctx, name); err != nil {
		return nil, err
	}

	w := split.NewWriter(ctx, g.f.e, g.f.sc, opts...)
	if _, err := io.Copy(w, r); err != nil {
		return nil, errors.Wrap(err, "splitting dataset")
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	hdrRes, err := g.f.e.Allocate(ctx, format.ObjectHeaderType, g.f.sc)
	if err != nil {
		return nil, errors.Wrap(err, "allocating dataset header")
	}
	hdr, err := h5.ResolveAs[*format.ObjectHeader](ctx, hdrRes)
	if err != nil {
		return nil, err
	}
	if err := hdr.SetDataspace([]uint64{w.Size()}); err != nil {
		return nil, err
	}
	if f := w.Filter(); f != nil {
		if err := hdr.SetFilters([]uint16{f.ID()}); err != nil {
			return nil, err
		}
	}
	chunk := w.MaxChunk()
	if chunk == 0 {
		chunk = 1
	}
	if err := hdr.SetChunkedLayout(w.Root, []uint32{uint32(chunk), 1}); err != nil {
		return nil, err
	}

	if _, err := g.link(ctx, name, hdrRes); err != nil {
		return nil, err
	}
	return &Dataset{hdr: hdr}, nil
}

// Dataset opens the member dataset named name.
func (g *Group) Dataset(ctx context.Context, name string) (*Dataset, error) {
	ent, err := g.lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if ent.CacheType() == format.CacheSymbolTable {
		return nil, errors.Errorf("%s is a group", name)
	}
	return OpenDataset(ctx, ent.Header())
}

// List describes the members of the group in name order.
func (g *Group) List(ctx context.Context) ([]Member, error) {
	var members []Member
	err := g.tree.Each(ctx, func(name string, ent *format.Entry) error {
		members = append(members, Member{Name: name, IsGroup: ent.CacheType() == format.CacheSymbolTable})
		return nil
	})
	return members, err
}
