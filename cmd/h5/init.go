package main

import (
	"context"
	"flag"
	"log"

	"github.com/pkg/errors"

	"github.com/bobg/h5/file"
)

func (c maincmd) initFile(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}

	f, err := file.Create(ctx, c.s, c.sc)
	if err != nil {
		return errors.Wrap(err, "creating file")
	}
	if err := f.Close(ctx); err != nil {
		return errors.Wrap(err, "flushing file")
	}
	log.Printf("created file, %d bytes", f.EOF())
	return nil
}
