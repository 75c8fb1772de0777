package main

import (
	"context"
	"flag"

	"github.com/pkg/errors"

	"github.com/bobg/h5"
	"github.com/bobg/h5/store"
)

// Brings the stores named by the config files in args into agreement with c's store.
func (c maincmd) sync(ctx context.Context, fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	stores := []h5.Store{c.s}
	for _, arg := range fs.Args() {
		s, _, err := storeFromConfig(ctx, arg)
		if err != nil {
			return errors.Wrapf(err, "reading %s", arg)
		}
		stores = append(stores, s)
	}

	return store.Sync(ctx, stores)
}
