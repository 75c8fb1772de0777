package store_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/h5"
	. "github.com/bobg/h5/store"
	"github.com/bobg/h5/store/mem"
)

func TestSync(t *testing.T) {
	var (
		ctx  = context.Background()
		full = bytes.Repeat([]byte("abcdefghij"), 2*SyncBlockSize/10+7)
	)

	// A prefix of full, one with a rewritten block, and an empty store.
	stale := append([]byte(nil), full[:SyncBlockSize+3]...)
	stale[5] = 'X'
	short := append([]byte(nil), full[:100]...)

	var (
		m0     = mem.NewFrom(short)
		m1     = mem.NewFrom(full)
		m2     = mem.NewFrom(stale)
		m3     = mem.New()
		stores = []h5.Store{m0, m1, m2, m3}
	)
	if err := Sync(ctx, stores); err != nil {
		t.Fatal(err)
	}

	for i, m := range []*mem.Store{m0, m1, m2, m3} {
		if diff := cmp.Diff(full, m.Bytes()); diff != "" {
			t.Errorf("store %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}
