// Command h5 is a general purpose CLI interface to h5 files.
package main

import (
	"context"
	"flag"
	"io"
	"log"

	"github.com/bobg/subcmd"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bobg/h5"
	"github.com/bobg/h5/file"
	_ "github.com/bobg/h5/store/file"
	_ "github.com/bobg/h5/store/gcs"
	_ "github.com/bobg/h5/store/logging"
	_ "github.com/bobg/h5/store/lru"
	_ "github.com/bobg/h5/store/mem"
	"github.com/bobg/h5/store/metrics"
	_ "github.com/bobg/h5/store/mmap"
	_ "github.com/bobg/h5/store/pg"
	_ "github.com/bobg/h5/store/replica"
	_ "github.com/bobg/h5/store/s3"
	_ "github.com/bobg/h5/store/sqlite3"
)

type maincmd struct {
	s  h5.Store
	sc *h5.SizingContext
}

func main() {
	var (
		config      = flag.String("config", "h5conf.json", "path to config file (JSON or YAML)")
		metricsFile = flag.String("metrics", "", "on exit, write store metrics in Prometheus text format to this file")
	)
	flag.Parse()

	if *config == "" {
		log.Fatal("Config value not set")
	}

	ctx := context.Background()

	s, sc, err := storeFromConfig(ctx, *config)
	if err != nil {
		log.Fatal(err)
	}
	if c, ok := s.(io.Closer); ok {
		defer c.Close()
	}

	var reg *prometheus.Registry
	if *metricsFile != "" {
		reg = prometheus.NewRegistry()
		s, err = metrics.New(s, reg)
		if err != nil {
			log.Fatal(err)
		}
	}

	err = subcmd.Run(ctx, maincmd{s: s, sc: sc}, flag.Args())
	if reg != nil {
		if err := prometheus.WriteToTextfile(*metricsFile, reg); err != nil {
			log.Printf("writing metrics: %s", err)
		}
	}
	if err != nil {
		log.Fatal(err)
	}
}

func (c maincmd) Subcmds() map[string]subcmd.Subcmd {
	return map[string]subcmd.Subcmd{
		"get":     withFlagSet("get", c.get),
		"info":    withFlagSet("info", c.info),
		"init":    withFlagSet("init", c.initFile),
		"ls":      withFlagSet("ls", c.ls),
		"mkgroup": withFlagSet("mkgroup", c.mkgroup),
		"put":     withFlagSet("put", c.put),
		"repack":  withFlagSet("repack", c.repack),
		"sync":    withFlagSet("sync", c.sync),
	}
}

// Adapts a handler that parses its own flags to subcmd.Subcmd,
// which passes the unparsed args through when no Params are declared.
func withFlagSet(name string, f func(context.Context, *flag.FlagSet, []string) error) subcmd.Subcmd {
	return subcmd.Subcmd{
		F: func(ctx context.Context, args []string) error {
			return f(ctx, flag.NewFlagSet(name, flag.ContinueOnError), args)
		},
	}
}

// Runs f on the file in c's store, flushing it afterwards if write is true.
func (c maincmd) withFile(ctx context.Context, write bool, f func(*file.File) error) error {
	h, err := file.Open(ctx, c.s)
	if err != nil {
		return errors.Wrap(err, "opening file")
	}
	if err := f(h); err != nil {
		return err
	}
	if !write {
		return nil
	}
	return errors.Wrap(h.Close(ctx), "flushing file")
}
