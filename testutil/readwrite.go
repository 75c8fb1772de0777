// Package testutil holds conformance tests shared by the h5.Store implementations.
package testutil

import (
	"bytes"
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/bobg/h5"
	"github.com/bobg/h5/btree"
	"github.com/bobg/h5/split"
)

// Data produces n bytes of deterministic pseudorandom text,
// compressible enough to exercise the filters.
func Data(seed int64, n int) []byte {
	words := []string{"yub", "nub", "chunk", "heap", "node", "tree", "group", "set", "\n"}
	rng := rand.New(rand.NewSource(seed))
	buf := new(bytes.Buffer)
	for buf.Len() < n {
		buf.WriteString(words[rng.Intn(len(words))])
		buf.WriteByte(byte('a' + rng.Intn(26)))
	}
	return buf.Bytes()[:n]
}

// ReadWrite permits testing a Store implementation
// by split-writing some data to it through an Engine,
// then reading it back out through a fresh Engine to make sure it's the same.
func ReadWrite(ctx context.Context, t *testing.T, s h5.Store, data []byte) {
	t.Helper()

	sc := &h5.DefaultSizing
	e := h5.NewEngine(s)

	t1 := time.Now()
	root, n, err := split.Write(ctx, e, sc, bytes.NewReader(data), split.MinSize(512), split.Bits(11))
	if err != nil {
		t.Fatal(err)
	}
	if err := e.CommitAll(ctx); err != nil {
		t.Fatal(err)
	}
	t.Logf("wrote %d bytes in %s", n, time.Since(t1))

	var (
		e2  = h5.NewEngine(s)
		sc2 = sc.WithDims(1)
		buf = new(bytes.Buffer)
	)
	root = e.Current(root)
	size, _ := root.Size()
	tree := btree.OpenData(e2.Ref(root.Addr(), size, root.Type(), sc2))

	t2 := time.Now()
	if err := split.Read(ctx, tree, nil, buf, 4); err != nil {
		t.Fatal(err)
	}
	got := buf.Bytes()
	t.Logf("read %d bytes in %s", len(got), time.Since(t2))

	if len(got) != len(data) {
		t.Errorf("got length %d, want %d", len(got), len(data))
	} else {
		for i := 0; i < len(got); i++ {
			if got[i] != data[i] {
				t.Fatalf("mismatch at position %d (of %d)", i, len(got))
			}
		}
	}
}
