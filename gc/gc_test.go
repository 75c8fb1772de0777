package gc

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/h5"
	"github.com/bobg/h5/file"
	"github.com/bobg/h5/filter"
	"github.com/bobg/h5/split"
	"github.com/bobg/h5/store/mem"
	"github.com/bobg/h5/testutil"
)

func TestPackOrder(t *testing.T) {
	got := packOrder(7, 3)
	want := []int{2, 5, 6, 0, 1, 3, 4}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if got := packOrder(0, 3); len(got) != 0 {
		t.Errorf("got %v for no names", got)
	}
}

func TestRun(t *testing.T) {
	var (
		ctx  = context.Background()
		src  = mem.New()
		data = testutil.Data(8, 30000)
		sc   = h5.DefaultSizing
	)
	sc.GroupLeafK = 1
	sc.GroupInternalK = 2

	f, err := file.Create(ctx, src, &sc)
	if err != nil {
		t.Fatal(err)
	}
	g, err := f.Root().CreateGroup(ctx, "g")
	if err != nil {
		t.Fatal(err)
	}
	// Fills all four symbol-table nodes of g.
	for _, name := range strings.Fields("b d f h a c e g") {
		if _, err := g.CreateGroup(ctx, name); err != nil {
			t.Fatalf("creating %s: %s", name, err)
		}
	}
	if _, err := f.Root().CreateDataset(ctx, "d", bytes.NewReader(data), split.Filter(filter.Deflate{Level: -1})); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(ctx); err != nil {
		t.Fatal(err)
	}

	dst := mem.New()
	out, err := Run(ctx, f, dst, split.MinSize(512), split.Bits(10))
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Sizing().GroupLeafK; got != 1 {
		t.Errorf("got group leaf K %d, want 1", got)
	}

	f2, err := file.Open(ctx, dst)
	if err != nil {
		t.Fatal(err)
	}
	g2, err := f2.Root().Group(ctx, "g")
	if err != nil {
		t.Fatal(err)
	}
	members, err := g2.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, m := range members {
		names = append(names, m.Name)
	}
	if diff := cmp.Diff(strings.Fields("a b c d e f g h"), names); diff != "" {
		t.Errorf("members mismatch (-want +got):\n%s", diff)
	}

	ds, err := f2.Root().Dataset(ctx, "d")
	if err != nil {
		t.Fatal(err)
	}
	flt, err := ds.Filter()
	if err != nil {
		t.Fatal(err)
	}
	if flt == nil || flt.ID() != filter.DeflateID {
		t.Errorf("got filter %v, want deflate", flt)
	}
	buf := new(bytes.Buffer)
	if err := ds.Read(ctx, buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Bytes(), data) {
		t.Errorf("dataset mismatch: got %d bytes, want %d", buf.Len(), len(data))
	}
}
