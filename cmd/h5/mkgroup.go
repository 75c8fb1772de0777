package main

import (
	"context"
	"flag"

	"github.com/pkg/errors"

	"github.com/bobg/h5/file"
)

func (c maincmd) mkgroup(ctx context.Context, fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	args = fs.Args()
	if len(args) != 1 {
		return errors.New("usage: mkgroup PATH")
	}

	return c.withFile(ctx, true, func(f *file.File) error {
		g, name, err := f.Walk(ctx, args[0])
		if err != nil {
			return err
		}
		if name == "" {
			return errors.New("missing group name")
		}
		_, err = g.CreateGroup(ctx, name)
		return errors.Wrapf(err, "creating group %s", args[0])
	})
}
