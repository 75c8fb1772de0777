package main

import (
	"context"
	"flag"
	"os"

	"github.com/pkg/errors"

	"github.com/bobg/h5/file"
)

func (c maincmd) get(ctx context.Context, fs *flag.FlagSet, args []string) error {
	parallel := fs.Int("parallel", file.Parallel, "number of chunks to fetch at a time")
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	args = fs.Args()
	if len(args) != 1 {
		return errors.New("usage: get PATH")
	}
	file.Parallel = *parallel

	return c.withFile(ctx, false, func(f *file.File) error {
		g, name, err := f.Walk(ctx, args[0])
		if err != nil {
			return err
		}
		ds, err := g.Dataset(ctx, name)
		if err != nil {
			return errors.Wrapf(err, "opening dataset %s", args[0])
		}
		return errors.Wrap(ds.Read(ctx, os.Stdout), "writing dataset to stdout")
	})
}
