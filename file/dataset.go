package file

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/bobg/h5"
	"github.com/bobg/h5/btree"
	"github.com/bobg/h5/filter"
	"github.com/bobg/h5/format"
	"github.com/bobg/h5/split"
)

// Parallel is the number of chunks Dataset.Read fetches at a time.
var Parallel = 8

// Dataset is a one-dimensional dataset of bytes
// stored in a chunk B-tree.
type Dataset struct {
	hdr *format.ObjectHeader
}

// OpenDataset opens the dataset whose object header is at r.
func OpenDataset(ctx context.Context, r *h5.Resolvable) (*Dataset, error) {
	hdr, err := h5.ResolveAs[*format.ObjectHeader](ctx, r)
	if err != nil {
		return nil, errors.Wrap(err, "resolving dataset header")
	}
	if hdr.IsGroup() {
		return nil, errors.New("object is a group")
	}
	return &Dataset{hdr: hdr}, nil
}

// Size is the number of bytes in the dataset.
func (d *Dataset) Size() uint64 {
	dims, ok := d.hdr.Dataspace()
	if !ok || len(dims) == 0 {
		return 0
	}
	return dims[0]
}

// Tree is the dataset's chunk B-tree.
func (d *Dataset) Tree() (*btree.DataTree, error) {
	root, _, err := d.hdr.ChunkedLayout()
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, errors.New("no chunk tree")
	}
	return btree.OpenData(root), nil
}

// Filter is the dataset's filter, if any.
func (d *Dataset) Filter() (filter.Filter, error) {
	ids := d.hdr.Filters()
	switch len(ids) {
	case 0:
		return nil, nil
	case 1:
		return filter.ByID(ids[0])
	}
	return nil, errors.Errorf("%d filters in pipeline, only one supported", len(ids))
}

// Read writes the contents of the dataset to w.
func (d *Dataset) Read(ctx context.Context, w io.Writer) error {
	tree, err := d.Tree()
	if err != nil {
		return err
	}
	f, err := d.Filter()
	if err != nil {
		return err
	}
	return split.Read(ctx, tree, f, w, Parallel)
}

// ChunkCount is the number of chunks in the dataset.
func (d *Dataset) ChunkCount(ctx context.Context) (uint64, error) {
	tree, err := d.Tree()
	if err != nil {
		return 0, err
	}
	return tree.ChunkCount(ctx)
}
