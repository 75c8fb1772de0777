package mem

import (
	"context"
	"testing"

	"github.com/bobg/h5/store"
	"github.com/bobg/h5/testutil"
)

func TestRaw(t *testing.T) {
	testutil.Raw(context.Background(), t, New())
}

func TestStore(t *testing.T) {
	testutil.ReadWrite(context.Background(), t, New(), testutil.Data(1, 100000))
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	s, err := store.FromConfig(ctx, map[string]interface{}{"type": "mem"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*Store); !ok {
		t.Errorf("got %T, want *Store", s)
	}
	if _, err := store.FromConfig(ctx, map[string]interface{}{"type": "nonesuch"}); err == nil {
		t.Error("unknown store type accepted")
	}
}
