// Package gc reclaims the space in a file that nothing refers to any more.
//
// A store only grows.
// Relocated heap segments, allocations abandoned after an error,
// and everything else unreachable from the superblock stay where they are.
// Run copies what is reachable into a new store.
package gc

import (
	"bytes"
	"context"

	"github.com/pkg/errors"

	"github.com/bobg/h5"
	"github.com/bobg/h5/file"
	"github.com/bobg/h5/split"
)

// Run copies every group and dataset reachable from the root of src
// into a new file in dst, which must be empty,
// and returns the new file, flushed.
// Datasets keep their filters.
// Opts control how their contents are re-chunked.
func Run(ctx context.Context, src *file.File, dst h5.Store, opts ...split.Option) (*file.File, error) {
	out, err := file.Create(ctx, dst, src.Sizing())
	if err != nil {
		return nil, errors.Wrap(err, "creating destination file")
	}
	if err := copyGroup(ctx, src.Root(), out.Root(), 2*src.Sizing().GroupLeafK, opts); err != nil {
		return nil, err
	}
	return out, out.Close(ctx)
}

func copyGroup(ctx context.Context, from, to *file.Group, leafCap int, opts []split.Option) error {
	members, err := from.List(ctx)
	if err != nil {
		return errors.Wrap(err, "listing group")
	}
	for _, i := range packOrder(len(members), leafCap) {
		m := members[i]
		if m.IsGroup {
			sub, err := from.Group(ctx, m.Name)
			if err != nil {
				return err
			}
			newSub, err := to.CreateGroup(ctx, m.Name)
			if err != nil {
				return errors.Wrapf(err, "creating group %s", m.Name)
			}
			if err := copyGroup(ctx, sub, newSub, leafCap, opts); err != nil {
				return errors.Wrapf(err, "copying group %s", m.Name)
			}
			continue
		}

		ds, err := from.Dataset(ctx, m.Name)
		if err != nil {
			return err
		}
		flt, err := ds.Filter()
		if err != nil {
			return errors.Wrapf(err, "dataset %s", m.Name)
		}
		buf := new(bytes.Buffer)
		if err := ds.Read(ctx, buf); err != nil {
			return errors.Wrapf(err, "reading dataset %s", m.Name)
		}
		dsOpts := opts
		if flt != nil {
			dsOpts = append(dsOpts[:len(dsOpts):len(dsOpts)], split.Filter(flt))
		}
		if _, err := to.CreateDataset(ctx, m.Name, buf, dsOpts...); err != nil {
			return errors.Wrapf(err, "creating dataset %s", m.Name)
		}
	}
	return nil
}

// Orders the insertion of n sorted names so that symbol-table nodes fill up.
// A group tree never splits:
// a name sorting after every existing key gets a new symbol-table node,
// and any other name goes into the node whose key bounds it.
// So the last name of each run of leafCap is inserted first, in order,
// and the rest of each run after that.
func packOrder(n, leafCap int) []int {
	var order, rest []int
	for start := 0; start < n; start += leafCap {
		end := start + leafCap
		if end > n {
			end = n
		}
		order = append(order, end-1)
		for i := start; i < end-1; i++ {
			rest = append(rest, i)
		}
	}
	return append(order, rest...)
}
