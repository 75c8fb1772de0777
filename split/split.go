// Package split divides a byte stream into content-defined chunks
// and stores them in a chunk B-tree.
// See github.com/bobg/hashsplit for more information.
package split

import (
	"context"
	"io"

	"github.com/bobg/hashsplit"
	"github.com/pkg/errors"

	"github.com/bobg/h5"
	"github.com/bobg/h5/btree"
	"github.com/bobg/h5/filter"
	"github.com/bobg/h5/format"
)

// Writer is an io.WriteCloser that splits its input with a hashsplit.Splitter,
// staging each chunk as a byte range in an h5.Engine.
// On Close it assembles the chunks into a chunk B-tree,
// whose root is then available as Writer.Root.
//
// If the Writer has a Filter,
// each chunk is passed through it,
// unless that does not make the chunk smaller;
// bit 0 of the chunk's filter mask records that the filter was skipped.
type Writer struct {
	Ctx  context.Context
	Root *h5.Resolvable // populated by Close

	e      *h5.Engine
	sc     *h5.SizingContext
	spl    *hashsplit.Splitter
	filter filter.Filter

	datas    []*h5.Resolvable
	keys     []format.ChunkKey
	size     uint64
	maxChunk int
	closed   bool
}

// NewWriter produces a new Writer staging chunks in e.
// The given context object is stored in the Writer and used in subsequent calls to Write and Close.
// This is an antipattern but acceptable when an object must adhere to a context-free stdlib interface
// (https://github.com/golang/go/wiki/CodeReviewComments#contexts).
func NewWriter(ctx context.Context, e *h5.Engine, sc *h5.SizingContext, opts ...Option) *Writer {
	w := &Writer{
		Ctx: ctx,
		e:   e,
		sc:  sc.WithDims(1),
	}
	spl := hashsplit.NewSplitter(func(bytes []byte, _ uint) error {
		return w.addChunk(bytes)
	})
	spl.MinSize = 1024
	spl.SplitBits = 14
	w.spl = spl
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Writer) addChunk(chunk []byte) error {
	var (
		data = chunk
		mask uint32
	)
	if w.filter != nil {
		out, err := w.filter.In(w.Ctx, chunk)
		if err != nil {
			return errors.Wrap(err, "filtering chunk")
		}
		if len(out) < len(chunk) {
			data = out
		} else {
			mask = 1
		}
	}

	r, err := w.e.AllocateBytes(len(data))
	if err != nil {
		return errors.Wrap(err, "allocating chunk")
	}
	b, err := h5.ResolveAs[*h5.Bytes](w.Ctx, r)
	if err != nil {
		return err
	}
	copy(b.Bytes(), data)

	w.datas = append(w.datas, r)
	w.keys = append(w.keys, format.ChunkKey{
		Size:       uint32(len(data)),
		FilterMask: mask,
		Offsets:    []uint64{w.size, 0},
	})
	w.size += uint64(len(chunk))
	if len(chunk) > w.maxChunk {
		w.maxChunk = len(chunk)
	}
	return nil
}

// Write implements io.Writer.
func (w *Writer) Write(inp []byte) (int, error) {
	return w.spl.Write(inp)
}

// Close implements io.Closer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	if err := w.spl.Close(); err != nil {
		return err
	}
	w.closed = true

	keys := append(w.keys, format.ChunkKey{Offsets: []uint64{w.size, 0}})
	tree, err := btree.Build(w.Ctx, w.e, w.sc, w.datas, keys)
	if err != nil {
		return errors.Wrap(err, "building chunk tree")
	}
	w.Root = tree.Root()
	return nil
}

// Size is the number of bytes written.
func (w *Writer) Size() uint64 { return w.size }

// MaxChunk is the size of the largest chunk, before filtering.
func (w *Writer) MaxChunk() int { return w.maxChunk }

// Sizing is the SizingContext of the chunk tree.
func (w *Writer) Sizing() *h5.SizingContext { return w.sc }

// Option is the type of an option passed to NewWriter.
type Option func(*Writer)

// Bits sets the number of trailing zero bits in the rolling checksum that mark a chunk boundary.
func Bits(n uint) Option {
	return func(w *Writer) {
		w.spl.SplitBits = n
	}
}

// MinSize sets the minimum chunk size.
func MinSize(n int) Option {
	return func(w *Writer) {
		w.spl.MinSize = n
	}
}

// Filter sets the filter chunks pass through.
func Filter(f filter.Filter) Option {
	return func(w *Writer) {
		w.filter = f
	}
}

// Write splits the contents of r into a new chunk tree in e
// and returns its root and the number of bytes read.
func Write(ctx context.Context, e *h5.Engine, sc *h5.SizingContext, r io.Reader, opts ...Option) (*h5.Resolvable, uint64, error) {
	w := NewWriter(ctx, e, sc, opts...)
	if _, err := io.Copy(w, r); err != nil {
		return nil, 0, errors.Wrap(err, "splitting input")
	}
	if err := w.Close(); err != nil {
		return nil, 0, err
	}
	return w.Root, w.Size(), nil
}

// Read writes the contents of the chunk tree to out,
// undoing f on every chunk whose filter mask does not say it was skipped.
// Up to parallel chunks are read at a time.
func Read(ctx context.Context, tree *btree.DataTree, f filter.Filter, out io.Writer, parallel int) error {
	return tree.ReadChunks(ctx, parallel, func(c btree.Chunk, b []byte) error {
		if f != nil && c.Left.FilterMask&1 == 0 {
			var err error
			b, err = f.Out(ctx, b)
			if err != nil {
				return errors.Wrapf(err, "unfiltering chunk at offset %d", c.Left.Offsets[0])
			}
		}
		_, err := out.Write(b)
		return err
	})
}

// Filter is the filter chunks pass through, if any.
func (w *Writer) Filter() filter.Filter { return w.filter }
