package main

import (
	"context"
	"flag"
	"log"

	"github.com/pkg/errors"

	"github.com/bobg/h5/file"
	"github.com/bobg/h5/gc"
)

// Copies the reachable contents of c's file into the empty store named by a config file.
func (c maincmd) repack(ctx context.Context, fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	args = fs.Args()
	if len(args) != 1 {
		return errors.New("usage: repack DEST-CONFIG")
	}
	dst, _, err := storeFromConfig(ctx, args[0])
	if err != nil {
		return errors.Wrapf(err, "reading %s", args[0])
	}

	return c.withFile(ctx, false, func(f *file.File) error {
		out, err := gc.Run(ctx, f, dst)
		if err != nil {
			return err
		}
		log.Printf("repacked %d bytes into %d", f.EOF(), out.EOF())
		return nil
	})
}
