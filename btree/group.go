package btree

import (
	"context"

	"github.com/pkg/errors"

	"github.com/bobg/h5"
	"github.com/bobg/h5/format"
)

// GroupTree is a group B-tree:
// its leaves refer to symbol-table nodes holding a group's entries,
// and its keys are names stored in the group's local heap.
//
// Insertion never splits a node.
// A leaf whose children are exhausted,
// or a symbol-table node whose entries are,
// makes Add fail with h5.ErrNodeFull.
type GroupTree struct {
	root *h5.Resolvable
	heap *format.LocalHeap
}

// CreateGroup allocates an empty group tree whose names live in heap.
func CreateGroup(ctx context.Context, e *h5.Engine, sc *h5.SizingContext, heap *h5.Resolvable) (*GroupTree, error) {
	r, err := e.Allocate(ctx, format.GroupNodeType, sc)
	if err != nil {
		return nil, errors.Wrap(err, "allocating group B-tree root")
	}
	return OpenGroup(ctx, r, heap)
}

// OpenGroup produces a GroupTree for the tree rooted at root
// whose names live in heap.
func OpenGroup(ctx context.Context, root, heap *h5.Resolvable) (*GroupTree, error) {
	h, err := h5.ResolveAs[*format.LocalHeap](ctx, heap)
	if err != nil {
		return nil, errors.Wrap(err, "resolving group heap")
	}
	return &GroupTree{root: root, heap: h}, nil
}

// Root refers to the root node.
func (t *GroupTree) Root() *h5.Resolvable { return t.root }

// Name is the name at heap offset off.
func (t *GroupTree) Name(ctx context.Context, off uint64) (string, error) {
	return t.heap.String(ctx, off)
}

// Finds the child of n whose bracket holds name:
// the first i with name < key[i+1],
// or n.Entries() if name is past every key.
// Exact tells whether name equals key[i+1],
// the last name under child i.
func (t *GroupTree) search(ctx context.Context, n *format.Node, name string) (i int, exact bool, err error) {
	for j := 0; j < n.Entries(); j++ {
		k, err := t.Name(ctx, n.GroupKey(j+1))
		if err != nil {
			return 0, false, errors.Wrapf(err, "resolving key %d", j+1)
		}
		if name == k {
			return j, true, nil
		}
		if name < k {
			return j, false, nil
		}
	}
	return n.Entries(), false, nil
}

// Finds the position of name among the entries of s.
func (t *GroupTree) searchNode(ctx context.Context, s *format.SymbolNode, name string) (pos int, found bool, err error) {
	for p := 0; p < s.Count(); p++ {
		k, err := t.Name(ctx, s.Entry(p).NameOffset())
		if err != nil {
			return 0, false, errors.Wrapf(err, "resolving name of entry %d", p)
		}
		if name == k {
			return p, true, nil
		}
		if name < k {
			return p, false, nil
		}
	}
	return s.Count(), false, nil
}

// Add inserts a new entry for name,
// whose heap offset is nameRef,
// and returns it.
// The caller links the entry to its object.
// Adding a name already present yields a *h5.DuplicateNameError.
func (t *GroupTree) Add(ctx context.Context, nameRef uint64, name string) (*format.Entry, error) {
	n, err := h5.ResolveAs[*format.Node](ctx, t.root)
	if err != nil {
		return nil, errors.Wrap(err, "resolving group B-tree root")
	}
	return t.add(ctx, n, nameRef, name)
}

func (t *GroupTree) add(ctx context.Context, n *format.Node, nameRef uint64, name string) (*format.Entry, error) {
	i, exact, err := t.search(ctx, n, name)
	if err != nil {
		return nil, err
	}
	if exact {
		return nil, &h5.DuplicateNameError{Name: name}
	}
	entries := n.Entries()

	if n.Level() > 0 {
		if entries == 0 {
			return nil, errors.New("empty internal group B-tree node")
		}
		last := i == entries
		if last {
			i = entries - 1
		}
		child, err := h5.ResolveAs[*format.Node](ctx, n.Child(i))
		if err != nil {
			return nil, err
		}
		ent, err := t.add(ctx, child, nameRef, name)
		if err != nil {
			return nil, err
		}
		if last {
			n.SetGroupKey(i+1, nameRef)
		}
		return ent, nil
	}

	if i == entries {
		if n.Full() {
			return nil, h5.ErrNodeFull
		}
		r, err := t.root.Engine().Allocate(ctx, format.SymbolNodeType, n.Sizing())
		if err != nil {
			return nil, errors.Wrap(err, "allocating symbol table node")
		}
		n.SetChild(entries, r)
		n.SetEntries(entries + 1)
	}

	s, err := h5.ResolveAs[*format.SymbolNode](ctx, n.Child(i))
	if err != nil {
		return nil, err
	}
	pos, found, err := t.searchNode(ctx, s, name)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, &h5.DuplicateNameError{Name: name}
	}
	ent, err := s.Insert(pos)
	if err != nil {
		return nil, err
	}
	ent.SetNameOffset(nameRef)
	n.SetGroupKey(i+1, s.Entry(s.Count()-1).NameOffset())
	return ent, nil
}

// Lookup finds the entry for name.
func (t *GroupTree) Lookup(ctx context.Context, name string) (*format.Entry, bool, error) {
	n, err := h5.ResolveAs[*format.Node](ctx, t.root)
	if err != nil {
		return nil, false, errors.Wrap(err, "resolving group B-tree root")
	}
	for {
		i, exact, err := t.search(ctx, n, name)
		if err != nil {
			return nil, false, err
		}
		if i == n.Entries() && !exact {
			return nil, false, nil
		}
		if n.Level() == 0 {
			s, err := h5.ResolveAs[*format.SymbolNode](ctx, n.Child(i))
			if err != nil {
				return nil, false, err
			}
			pos, found, err := t.searchNode(ctx, s, name)
			if err != nil || !found {
				return nil, false, err
			}
			return s.Entry(pos), true, nil
		}
		n, err = h5.ResolveAs[*format.Node](ctx, n.Child(i))
		if err != nil {
			return nil, false, err
		}
	}
}

// Each calls f on every entry of the group, in name order.
func (t *GroupTree) Each(ctx context.Context, f func(name string, ent *format.Entry) error) error {
	it := t.Nodes(ctx)
	for it.Next() {
		s := it.Node().Node
		for p := 0; p < s.Count(); p++ {
			ent := s.Entry(p)
			name, err := t.Name(ctx, ent.NameOffset())
			if err != nil {
				return err
			}
			if err := f(name, ent); err != nil {
				return err
			}
		}
	}
	return it.Err()
}

// GroupNode is one leaf entry of a group tree:
// a symbol-table node and the names bracketing it,
// with their heap offsets.
type GroupNode struct {
	Left, Right         uint64
	LeftName, RightName string
	Node                *format.SymbolNode
}

// GroupIterator is a single-pass iterator over the symbol-table nodes of a GroupTree, in key order.
type GroupIterator struct {
	t   *GroupTree
	w   walker
	cur GroupNode
	err error
}

// Nodes produces an iterator over the tree's symbol-table nodes.
func (t *GroupTree) Nodes(ctx context.Context) *GroupIterator {
	return &GroupIterator{t: t, w: walker{ctx: ctx, root: t.root}}
}

// Next advances the iterator and tells whether there is a current node.
func (it *GroupIterator) Next() bool {
	if it.err != nil {
		return false
	}
	n, i, ok := it.w.next()
	if !ok {
		return false
	}
	s, err := h5.ResolveAs[*format.SymbolNode](it.w.ctx, n.Child(i))
	if err != nil {
		it.err = err
		return false
	}
	cur := GroupNode{Left: n.GroupKey(i), Right: n.GroupKey(i + 1), Node: s}
	if cur.LeftName, err = it.t.Name(it.w.ctx, cur.Left); err != nil {
		it.err = err
		return false
	}
	if cur.RightName, err = it.t.Name(it.w.ctx, cur.Right); err != nil {
		it.err = err
		return false
	}
	it.cur = cur
	return true
}

// Node is the current node.
func (it *GroupIterator) Node() GroupNode { return it.cur }

// Err is the error, if any, that stopped the iteration.
func (it *GroupIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.w.err
}
