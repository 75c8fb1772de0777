// Package s3 implements an h5.Store as a sequence of extent objects in an Amazon S3 bucket
// (or any service speaking its protocol).
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"github.com/bobg/h5"
	"github.com/bobg/h5/store"
)

var _ h5.Store = &Store{}

// Client is the subset of *s3.Client that Store uses.
type Client interface {
	s3.ListObjectsV2APIClient
	GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store is an S3-based h5.Store.
// See store.ObjectStore for the layout of its objects.
type Store struct {
	*store.ObjectStore
}

// New produces a new Store keeping its objects in bucket under prefix.
func New(client Client, bucket, prefix string) *Store {
	return &Store{ObjectStore: store.NewObjectStore(&objects{client: client, bucket: bucket}, prefix)}
}

type objects struct {
	client Client
	bucket string
}

func (o *objects) List(ctx context.Context, prefix string, f func(string, int64) error) error {
	p := s3.NewListObjectsV2Paginator(o.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(o.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return errors.Wrapf(err, "listing objects in %s", o.bucket)
		}
		for _, obj := range page.Contents {
			if err := f(aws.ToString(obj.Key), aws.ToInt64(obj.Size)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *objects) Get(ctx context.Context, name string, off, n int64) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	out, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(name),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, off+n-1)),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()

	b := make([]byte, n)
	_, err = io.ReadFull(out.Body, b)
	return b, err
}

func (o *objects) Put(ctx context.Context, name string, b []byte) error {
	_, err := o.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(o.bucket),
		Key:           aws.String(name),
		Body:          bytes.NewReader(b),
		ContentLength: aws.Int64(int64(len(b))),
	})
	return err
}

func init() {
	store.Register("s3", func(ctx context.Context, conf map[string]interface{}) (h5.Store, error) {
		bucket, err := store.String(conf, "bucket")
		if err != nil {
			return nil, err
		}
		prefix, _ := conf["prefix"].(string)

		var opts []func(*config.LoadOptions) error
		if region, ok := conf["region"].(string); ok {
			opts = append(opts, config.WithRegion(region))
		}
		if id, ok := conf["access_key_id"].(string); ok {
			secret, err := store.String(conf, "secret_access_key")
			if err != nil {
				return nil, err
			}
			opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(id, secret, "")))
		}
		cfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, errors.Wrap(err, "loading AWS config")
		}

		client := s3.NewFromConfig(cfg, func(o *s3.Options) {
			if endpoint, ok := conf["endpoint"].(string); ok {
				o.BaseEndpoint = aws.String(endpoint)
				o.UsePathStyle = true
			}
		})
		return New(client, bucket, prefix), nil
	})
}
