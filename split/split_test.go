package split

import (
	"bytes"
	"context"
	"math/rand"
	"testing"

	"github.com/bobg/h5"
	"github.com/bobg/h5/btree"
	"github.com/bobg/h5/filter"
	"github.com/bobg/h5/format"
	"github.com/bobg/h5/store/mem"
)

func testData(n int) []byte {
	// Compressible but not trivially so.
	rnd := rand.New(rand.NewSource(1))
	words := []string{"alpha ", "bravo ", "charlie ", "delta ", "echo ", "foxtrot "}
	buf := new(bytes.Buffer)
	for buf.Len() < n {
		buf.WriteString(words[rnd.Intn(len(words))])
	}
	return buf.Bytes()[:n]
}

func TestSplitEmpty(t *testing.T) {
	ctx := context.Background()
	e := h5.NewEngine(mem.New())

	root, size, err := Write(ctx, e, &h5.DefaultSizing, bytes.NewReader(nil))
	if err != nil {
		t.Fatal(err)
	}
	if size != 0 {
		t.Errorf("got size %d, want 0", size)
	}
	count, err := btree.OpenData(root).ChunkCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("got %d chunks, want 0", count)
	}
}

func TestSplitRoundTrip(t *testing.T) {
	data := testData(200000)

	cases := []struct {
		name string
		f    filter.Filter
	}{
		{"none", nil},
		{"deflate", filter.Deflate{Level: -1}},
		{"snappy", filter.Snappy{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ctx := context.Background()
			s := mem.New()
			e := h5.NewEngine(s)

			w := NewWriter(ctx, e, &h5.DefaultSizing, Filter(c.f), Bits(12), MinSize(512))
			if _, err := w.Write(data); err != nil {
				t.Fatal(err)
			}
			if err := w.Close(); err != nil {
				t.Fatal(err)
			}
			if w.Size() != uint64(len(data)) {
				t.Errorf("got size %d, want %d", w.Size(), len(data))
			}
			if err := e.CommitAll(ctx); err != nil {
				t.Fatal(err)
			}

			e2 := h5.NewEngine(s)
			sc := w.Sizing()
			tree := btree.OpenData(e2.Ref(w.Root.Addr(), format.ChunkNodeSize(sc), format.ChunkNodeType, sc))

			count, err := tree.ChunkCount(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if count < 2 {
				t.Errorf("got %d chunks, want several", count)
			}

			buf := new(bytes.Buffer)
			if err := Read(ctx, tree, c.f, buf, 4); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(buf.Bytes(), data) {
				t.Error("mismatch")
			}

			stored, _ := s.Size(ctx)
			t.Logf("%d bytes in %d chunks, %d bytes stored", len(data), count, stored)
			if c.f != nil && stored >= uint64(len(data)) {
				t.Errorf("filtered file holds %d bytes for %d bytes of data", stored, len(data))
			}
		})
	}
}
