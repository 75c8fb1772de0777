// Package gcs implements an h5.Store as a sequence of extent objects in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	stderrs "errors"
	"io"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/bobg/h5"
	"github.com/bobg/h5/store"
)

var _ h5.Store = &Store{}

// Store is a Google Cloud Storage-based h5.Store.
// See store.ObjectStore for the layout of its objects.
type Store struct {
	*store.ObjectStore
}

// New produces a new Store keeping its objects in bucket under prefix.
func New(bucket *storage.BucketHandle, prefix string) *Store {
	return newStore(&objects{bucket: bucket}, prefix)
}

func newStore(objs store.Objects, prefix string) *Store {
	return &Store{ObjectStore: store.NewObjectStore(objs, prefix)}
}

type objects struct {
	bucket *storage.BucketHandle
}

func (o *objects) List(ctx context.Context, prefix string, f func(string, int64) error) error {
	iter := o.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		obj, err := iter.Next()
		if stderrs.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := f(obj.Name, obj.Size); err != nil {
			return err
		}
	}
}

func (o *objects) Get(ctx context.Context, name string, off, n int64) ([]byte, error) {
	r, err := o.bucket.Object(name).NewRangeReader(ctx, off, n)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	b := make([]byte, n)
	_, err = io.ReadFull(r, b)
	return b, err
}

func (o *objects) Put(ctx context.Context, name string, b []byte) error {
	w := o.bucket.Object(name).NewWriter(ctx)
	if _, err := w.Write(b); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func init() {
	store.Register("gcs", func(ctx context.Context, conf map[string]interface{}) (h5.Store, error) {
		creds, err := store.String(conf, "creds")
		if err != nil {
			return nil, err
		}
		bucketName, err := store.String(conf, "bucket")
		if err != nil {
			return nil, err
		}
		prefix, _ := conf["prefix"].(string)

		c, err := storage.NewClient(ctx, option.WithCredentialsFile(creds))
		if err != nil {
			return nil, errors.Wrap(err, "creating cloud storage client")
		}
		return New(c.Bucket(bucketName), prefix), nil
	})
}
