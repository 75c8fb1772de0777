package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/bobg/h5"
	"github.com/bobg/h5/store"
)

// Reads the store config in filename,
// which is YAML if its extension is .yaml or .yml and JSON otherwise.
// Its optional "sizing" object sets the SizingContext for new files.
func storeFromConfig(ctx context.Context, filename string) (h5.Store, *h5.SizingContext, error) {
	var conf map[string]interface{}
	f, err := os.Open(filename)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening config file %s", filename)
	}
	defer f.Close()

	switch filepath.Ext(filename) {
	case ".yaml", ".yml":
		err = yaml.NewDecoder(f).Decode(&conf)
	default:
		dec := json.NewDecoder(f)
		dec.UseNumber()
		err = dec.Decode(&conf)
	}
	if err != nil {
		return nil, nil, errors.Wrapf(err, "decoding config file %s", filename)
	}

	sc := &h5.DefaultSizing
	if sizing, ok := conf["sizing"].(map[string]interface{}); ok {
		sc, err = h5.SizingFromConfig(sizing)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "in config file %s", filename)
		}
	}

	s, err := store.FromConfig(ctx, conf)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "creating store from config file %s", filename)
	}
	return s, sc, nil
}
