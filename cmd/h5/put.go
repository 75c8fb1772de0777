package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/bobg/h5/file"
	"github.com/bobg/h5/filter"
	"github.com/bobg/h5/split"
)

func (c maincmd) put(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		filterName = fs.String("filter", "", "chunk filter (deflate, lzw, snappy, or none)")
		bits       = fs.Uint("bits", 14, "chunk boundaries fall where this many low bits of the rolling checksum are zero")
		minSize    = fs.Int("min", 1024, "minimum chunk size")
	)
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	args = fs.Args()
	if len(args) != 1 {
		return errors.New("usage: put [-filter NAME] [-bits N] [-min N] PATH < DATA")
	}

	flt, err := filter.ByName(*filterName)
	if err != nil {
		return err
	}
	opts := []split.Option{split.Bits(*bits), split.MinSize(*minSize)}
	if flt != nil {
		opts = append(opts, split.Filter(flt))
	}

	return c.withFile(ctx, true, func(f *file.File) error {
		g, name, err := f.Walk(ctx, args[0])
		if err != nil {
			return err
		}
		if name == "" {
			return errors.New("missing dataset name")
		}

		start := time.Now()
		ds, err := g.CreateDataset(ctx, name, os.Stdin, opts...)
		if err != nil {
			return errors.Wrapf(err, "creating dataset %s", args[0])
		}
		n, err := ds.ChunkCount(ctx)
		if err != nil {
			return errors.Wrap(err, "counting chunks")
		}
		log.Printf("wrote %d bytes in %d chunks in %s", ds.Size(), n, time.Since(start))
		return nil
	})
}
