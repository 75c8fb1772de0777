package store

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/bobg/h5"
)

// SyncBlockSize is the unit in which Sync compares stores.
const SyncBlockSize = 64 * 1024

// Sync makes two or more stores identical.
// The largest store is the source;
// ties go to the earliest in the list.
// Every block of another store that differs from the source is overwritten,
// and whatever the source has past its end is appended.
// Each store is brought up to date concurrently.
//
// Records only ever grow a store at its end,
// but rewriting a record in place can change bytes anywhere,
// so the whole of every store is compared.
func Sync(ctx context.Context, stores []h5.Store) error {
	if len(stores) < 2 {
		return nil
	}

	sizes := make([]uint64, len(stores))
	src := 0
	for i, s := range stores {
		size, err := s.Size(ctx)
		if err != nil {
			return errors.Wrapf(err, "getting size of store %d", i)
		}
		sizes[i] = size
		if size > sizes[src] {
			src = i
		}
	}

	eg, ctx := errgroup.WithContext(ctx)
	for i, s := range stores {
		if i == src {
			continue
		}
		i, s := i, s
		eg.Go(func() error {
			return errors.Wrapf(syncOne(ctx, stores[src], sizes[src], s, sizes[i]), "syncing store %d", i)
		})
	}
	return eg.Wait()
}

func syncOne(ctx context.Context, src h5.Reader, srcSize uint64, dst h5.Store, dstSize uint64) error {
	for pos := uint64(0); pos < srcSize; pos += SyncBlockSize {
		n := uint64(SyncBlockSize)
		if srcSize-pos < n {
			n = srcSize - pos
		}
		want, err := src.ReadAt(ctx, pos, int(n))
		if err != nil {
			return errors.Wrapf(err, "reading source at %d", pos)
		}

		// The part of this block dst already has.
		var have []byte
		if pos < dstSize {
			m := n
			if dstSize-pos < m {
				m = dstSize - pos
			}
			have, err = dst.ReadAt(ctx, pos, int(m))
			if err != nil {
				return errors.Wrapf(err, "reading destination at %d", pos)
			}
			if !bytes.Equal(have, want[:m]) {
				if err := dst.WriteAt(ctx, pos, want[:m]); err != nil {
					return errors.Wrapf(err, "rewriting destination at %d", pos)
				}
			}
		}

		if tail := want[len(have):]; len(tail) > 0 {
			off, _, err := dst.Append(ctx, tail)
			if err != nil {
				return errors.Wrapf(err, "appending to destination at %d", pos+uint64(len(have)))
			}
			if off != pos+uint64(len(have)) {
				return errors.Errorf("destination appended at %d, want %d", off, pos+uint64(len(have)))
			}
		}
	}
	return nil
}
