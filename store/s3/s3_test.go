package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/bobg/h5/testutil"
)

// An in-memory bucket.
// Listings come back two objects per page.
type fakeClient struct {
	mu   sync.Mutex
	objs map[string][]byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{objs: make(map[string][]byte)}
}

func (c *fakeClient) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		prefix = aws.ToString(in.Prefix)
		after  = aws.ToString(in.ContinuationToken)
		keys   []string
	)
	for k := range c.objs {
		if strings.HasPrefix(k, prefix) && k > after {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := new(s3.ListObjectsV2Output)
	if len(keys) > 2 {
		keys = keys[:2]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[1])
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{
			Key:  aws.String(k),
			Size: aws.Int64(int64(len(c.objs[k]))),
		})
	}
	return out, nil
}

func (c *fakeClient) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := aws.ToString(in.Key)
	b, ok := c.objs[key]
	if !ok {
		return nil, fmt.Errorf("no such key %s", key)
	}
	if r := aws.ToString(in.Range); r != "" {
		var lo, hi int
		if _, err := fmt.Sscanf(r, "bytes=%d-%d", &lo, &hi); err != nil {
			return nil, err
		}
		if lo > hi || hi >= len(b) {
			return nil, fmt.Errorf("bad range %s for %d-byte object", r, len(b))
		}
		b = b[lo : hi+1]
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(append([]byte(nil), b...)))}, nil
}

func (c *fakeClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.objs[aws.ToString(in.Key)] = b
	return new(s3.PutObjectOutput), nil
}

func TestRaw(t *testing.T) {
	testutil.Raw(context.Background(), t, New(newFakeClient(), "bucket", "raw/"))
}

func TestStore(t *testing.T) {
	testutil.ReadWrite(context.Background(), t, New(newFakeClient(), "bucket", "h5/"), testutil.Data(6, 50000))
}

func TestReload(t *testing.T) {
	var (
		ctx    = context.Background()
		client = newFakeClient()
		s      = New(client, "bucket", "a/")
	)
	for _, word := range strings.Fields("the quick brown fox jumps") {
		if _, _, err := s.Append(ctx, []byte(word)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.WriteAt(ctx, 4, []byte("QUICKB")); err != nil {
		t.Fatal(err)
	}

	// A store with another prefix in the same bucket is empty.
	other := New(client, "bucket", "b/")
	if size, err := other.Size(ctx); err != nil {
		t.Fatal(err)
	} else if size != 0 {
		t.Errorf("got size %d for an empty prefix", size)
	}

	s2 := New(client, "bucket", "a/")
	size, err := s2.Size(ctx)
	if err != nil {
		t.Fatal(err)
	}
	const want = "theQUICKBrownfoxjumps"
	if size != uint64(len(want)) {
		t.Fatalf("got size %d, want %d", size, len(want))
	}
	got, err := s2.ReadAt(ctx, 0, len(want))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestGap(t *testing.T) {
	client := newFakeClient()
	client.objs["x/0000000000000000"] = []byte("abc")
	client.objs["x/0000000000000005"] = []byte("def")

	if _, err := New(client, "bucket", "x/").Size(context.Background()); err == nil {
		t.Error("loading extents with a gap succeeded")
	}
}
