package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/pkg/errors"

	"github.com/bobg/h5/file"
)

func (c maincmd) ls(ctx context.Context, fs *flag.FlagSet, args []string) error {
	long := fs.Bool("l", false, "show dataset sizes and chunk counts")
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	var path string
	switch args = fs.Args(); len(args) {
	case 0:
	case 1:
		path = args[0]
	default:
		return errors.New("usage: ls [-l] [PATH]")
	}

	return c.withFile(ctx, false, func(f *file.File) error {
		g, name, err := f.Walk(ctx, path)
		if err != nil {
			return err
		}
		if name != "" {
			g, err = g.Group(ctx, name)
			if err != nil {
				return errors.Wrapf(err, "opening group %s", path)
			}
		}

		members, err := g.List(ctx)
		if err != nil {
			return errors.Wrap(err, "listing group")
		}
		for _, m := range members {
			if m.IsGroup {
				fmt.Printf("%s/\n", m.Name)
				continue
			}
			if !*long {
				fmt.Println(m.Name)
				continue
			}
			ds, err := g.Dataset(ctx, m.Name)
			if err != nil {
				return errors.Wrapf(err, "opening dataset %s", m.Name)
			}
			n, err := ds.ChunkCount(ctx)
			if err != nil {
				return errors.Wrapf(err, "counting chunks of %s", m.Name)
			}
			fmt.Printf("%s\t%d bytes\t%d chunks\n", m.Name, ds.Size(), n)
		}
		return nil
	})
}
