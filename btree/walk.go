// Package btree implements the read and insert algorithms over version-1 B-trees:
// chunk trees, which index the chunks of a dataset,
// and group trees, which index the symbol-table nodes of a group.
package btree

import (
	"context"
	"fmt"

	"github.com/bobg/h5"
	"github.com/bobg/h5/format"
)

// walker visits the entries of a tree's leaves in key order.
// It holds one node per level,
// so only the path to the current leaf is materialized.
type walker struct {
	ctx   context.Context
	root  *h5.Resolvable
	stack []frame
	err   error
	done  bool
}

type frame struct {
	n *format.Node
	i int
}

// Advances to the next leaf entry,
// returning its node and index.
func (w *walker) next() (*format.Node, int, bool) {
	if w.err != nil || w.done {
		return nil, 0, false
	}
	if w.stack == nil {
		n, err := h5.ResolveAs[*format.Node](w.ctx, w.root)
		if err != nil {
			w.err = err
			return nil, 0, false
		}
		w.stack = []frame{{n: n}}
	}
	for len(w.stack) > 0 {
		top := &w.stack[len(w.stack)-1]
		if top.i >= top.n.Entries() {
			w.stack = w.stack[:len(w.stack)-1]
			continue
		}
		n, i := top.n, top.i
		top.i++
		if n.Level() == 0 {
			return n, i, true
		}
		child, err := h5.ResolveAs[*format.Node](w.ctx, n.Child(i))
		if err != nil {
			w.err = err
			return nil, 0, false
		}
		if child.Level() != n.Level()-1 {
			r := n.Child(i)
			w.err = &h5.FormatError{Addr: r.Addr(), Size: child.EncodedSize(), Type: r.Type().Name, Msg: fmt.Sprintf("level %d under level %d", child.Level(), n.Level())}
			return nil, 0, false
		}
		w.stack = append(w.stack, frame{n: child})
	}
	w.done = true
	return nil, 0, false
}
