package btree

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/bobg/h5"
	"github.com/bobg/h5/format"
)

// DataTree is a chunk B-tree:
// its leaves refer to the raw bytes of a dataset's chunks.
type DataTree struct {
	root *h5.Resolvable
}

// OpenData produces a DataTree for the chunk B-tree rooted at root.
func OpenData(root *h5.Resolvable) *DataTree {
	return &DataTree{root: root}
}

// Root refers to the root node.
func (t *DataTree) Root() *h5.Resolvable { return t.root }

// ChunkCount is the number of chunks in the tree.
// Subtrees are counted concurrently.
func (t *DataTree) ChunkCount(ctx context.Context) (uint64, error) {
	return chunkCount(ctx, t.root)
}

func chunkCount(ctx context.Context, r *h5.Resolvable) (uint64, error) {
	n, err := h5.ResolveAs[*format.Node](ctx, r)
	if err != nil {
		return 0, errors.Wrapf(err, "resolving chunk node at %s", r.Addr())
	}
	if n.Level() == 0 {
		return uint64(n.Entries()), nil
	}

	var total uint64
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n.Entries(); i++ {
		child := n.Child(i)
		g.Go(func() error {
			c, err := chunkCount(gctx, child)
			if err != nil {
				return err
			}
			atomic.AddUint64(&total, c)
			return nil
		})
	}
	err = g.Wait()
	return total, err
}

// IsSingleChunk tells whether the tree is a single leaf holding one chunk.
func (t *DataTree) IsSingleChunk(ctx context.Context) (bool, error) {
	n, err := h5.ResolveAs[*format.Node](ctx, t.root)
	if err != nil {
		return false, err
	}
	return n.Level() == 0 && n.Entries() == 1, nil
}

// Chunk is one leaf entry of a chunk tree:
// the chunk's bytes and the keys bracketing it.
// Left describes the chunk itself.
type Chunk struct {
	Left  format.ChunkKey
	Data  *h5.Resolvable
	Right format.ChunkKey
}

// ChunkIterator is a single-pass iterator over the chunks of a DataTree, in key order.
type ChunkIterator struct {
	w   walker
	cur Chunk
}

// Chunks produces an iterator over the tree's chunks.
// Call Next to advance it, Chunk to get the current chunk, and Err at the end.
func (t *DataTree) Chunks(ctx context.Context) *ChunkIterator {
	return &ChunkIterator{w: walker{ctx: ctx, root: t.root}}
}

// Next advances the iterator and tells whether there is a current chunk.
func (it *ChunkIterator) Next() bool {
	n, i, ok := it.w.next()
	if !ok {
		return false
	}
	it.cur = Chunk{Left: n.ChunkKey(i), Data: n.Child(i), Right: n.ChunkKey(i + 1)}
	return true
}

// Chunk is the current chunk.
func (it *ChunkIterator) Chunk() Chunk { return it.cur }

// Err is the error, if any, that stopped the iteration.
func (it *ChunkIterator) Err() error { return it.w.err }

// ReadChunks calls f on each chunk and its bytes, in key order.
// Up to parallel chunks at a time are read concurrently.
// The bytes passed to f belong to the engine's cache and must not be modified.
func (t *DataTree) ReadChunks(ctx context.Context, parallel int, f func(Chunk, []byte) error) error {
	if parallel < 1 {
		parallel = 1
	}

	it := t.Chunks(ctx)
	for {
		var batch []Chunk
		for len(batch) < parallel && it.Next() {
			batch = append(batch, it.Chunk())
		}
		if err := it.Err(); err != nil {
			return errors.Wrap(err, "iterating over chunks")
		}
		if len(batch) == 0 {
			return nil
		}

		bufs := make([][]byte, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, c := range batch {
			i, c := i, c
			g.Go(func() error {
				b, err := h5.ResolveAs[*h5.Bytes](gctx, c.Data)
				if err != nil {
					return errors.Wrapf(err, "reading chunk at %s", c.Data.Addr())
				}
				bufs[i] = b.Bytes()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for i, c := range batch {
			if err := f(c, bufs[i]); err != nil {
				return err
			}
		}
	}
}

// ReadAll writes the bytes of every chunk to w, in key order.
func (t *DataTree) ReadAll(ctx context.Context, w io.Writer, parallel int) error {
	return t.ReadChunks(ctx, parallel, func(_ Chunk, b []byte) error {
		_, err := w.Write(b)
		return err
	})
}

// Build bulk-loads a chunk tree bottom-up.
// Chunk i is datas[i], described by keys[i];
// keys has one more element than datas,
// the key bracketing the end of the last chunk.
// Leaves are filled to capacity,
// and every level after the first holds nodes referring to the level below.
func Build(ctx context.Context, e *h5.Engine, sc *h5.SizingContext, datas []*h5.Resolvable, keys []format.ChunkKey) (*DataTree, error) {
	if len(keys) != len(datas)+1 {
		return nil, errors.Errorf("%d keys for %d chunks", len(keys), len(datas))
	}

	children := datas
	for level := 0; ; level++ {
		nodes, nodeKeys, err := buildLevel(ctx, e, sc, level, children, keys)
		if err != nil {
			return nil, errors.Wrapf(err, "building level %d", level)
		}
		if len(nodes) == 1 {
			return OpenData(nodes[0]), nil
		}
		children, keys = nodes, nodeKeys
	}
}

func buildLevel(ctx context.Context, e *h5.Engine, sc *h5.SizingContext, level int, children []*h5.Resolvable, keys []format.ChunkKey) ([]*h5.Resolvable, []format.ChunkKey, error) {
	var (
		per      = 2 * sc.ChunkInternalK
		nodes    []*h5.Resolvable
		nodeKeys []format.ChunkKey
		prev     *format.Node
		prevRes  *h5.Resolvable
	)

	for start := 0; ; start += per {
		end := start + per
		if end > len(children) {
			end = len(children)
		}

		r, err := e.Allocate(ctx, format.ChunkNodeType, sc)
		if err != nil {
			return nil, nil, err
		}
		n, err := h5.ResolveAs[*format.Node](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		n.SetLevel(level)
		n.SetEntries(end - start)
		for i := start; i < end; i++ {
			n.SetChunkKey(i-start, keys[i])
			n.SetChild(i-start, children[i])
		}
		n.SetChunkKey(end-start, keys[end])
		if prev != nil {
			prev.SetSiblings(prev.LeftSibling(), r)
			n.SetSiblings(prevRes, nil)
		}

		nodes = append(nodes, r)
		nodeKeys = append(nodeKeys, keys[start])
		prev, prevRes = n, r

		if end >= len(children) {
			break
		}
	}

	nodeKeys = append(nodeKeys, keys[len(children)])
	return nodes, nodeKeys, nil
}
