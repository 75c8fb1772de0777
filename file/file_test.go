package file

import (
	"bytes"
	"context"
	stderrs "errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/h5"
	"github.com/bobg/h5/filter"
	"github.com/bobg/h5/split"
	"github.com/bobg/h5/store/mem"
)

func randBytes(seed int64, n int) []byte {
	rnd := rand.New(rand.NewSource(seed))
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte('a' + rnd.Intn(4))
	}
	return buf
}

func readDataset(ctx context.Context, t *testing.T, f *File, path string) []byte {
	t.Helper()

	g, name, err := f.Walk(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	d, err := g.Dataset(ctx, name)
	if err != nil {
		t.Fatal(err)
	}
	buf := new(bytes.Buffer)
	if err := d.Read(ctx, buf); err != nil {
		t.Fatal(err)
	}
	if got := d.Size(); got != uint64(buf.Len()) {
		t.Errorf("%s: dataspace says %d bytes, read %d", path, got, buf.Len())
	}
	return buf.Bytes()
}

func TestFile(t *testing.T) {
	for _, width := range []int{4, 8} {
		t.Run(fmt.Sprintf("width%d", width), func(t *testing.T) {
			testFile(t, width)
		})
	}
}

func testFile(t *testing.T, width int) {
	ctx := context.Background()
	s := mem.New()
	sc := h5.DefaultSizing
	sc.OffsetWidth = width

	f, err := Create(ctx, s, &sc)
	if err != nil {
		t.Fatal(err)
	}

	var (
		top    = randBytes(1, 50000)
		nested = randBytes(2, 70000)
	)

	a, err := f.Root().CreateGroup(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.CreateGroup(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.CreateDataset(ctx, "x", bytes.NewReader(nested), split.Filter(filter.Deflate{Level: 6}), split.Bits(12)); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Root().CreateDataset(ctx, "top", bytes.NewReader(top)); err != nil {
		t.Fatal(err)
	}

	// Everything is readable before it is committed.
	if !bytes.Equal(readDataset(ctx, t, f, "a/x"), nested) {
		t.Error("staged a/x mismatch")
	}

	_, err = f.Root().CreateGroup(ctx, "a")
	var dup *h5.DuplicateNameError
	if !stderrs.As(err, &dup) {
		t.Errorf("got error %v, want DuplicateNameError", err)
	}
	if _, err := f.Root().Group(ctx, "nope"); !stderrs.Is(err, ErrNotFound) {
		t.Errorf("got error %v, want %v", err, ErrNotFound)
	}
	if _, err := f.Root().Group(ctx, "top"); !stderrs.Is(err, ErrNotGroup) {
		t.Errorf("got error %v, want %v", err, ErrNotGroup)
	}
	if _, err := f.Root().CreateGroup(ctx, "x/y"); err == nil {
		t.Error("name with slash accepted")
	}

	if err := f.Close(ctx); err != nil {
		t.Fatal(err)
	}
	size, _ := s.Size(ctx)
	if f.EOF() != size {
		t.Errorf("got EOF %d, want %d", f.EOF(), size)
	}
	if st := f.Engine().Stats(); st.Staged != 0 || st.Dirty != 0 || st.Writeback != 0 {
		t.Errorf("engine not drained after Close: %+v", st)
	}

	f2, err := Open(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(sc, *f2.Sizing(), cmp.AllowUnexported(h5.Resolvable{})); diff != "" {
		t.Errorf("sizing mismatch (-want +got):\n%s", diff)
	}

	members, err := f2.Root().List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []Member{{Name: "a", IsGroup: true}, {Name: "top"}}
	if diff := cmp.Diff(want, members); diff != "" {
		t.Errorf("root members mismatch (-want +got):\n%s", diff)
	}

	g, name, err := f2.Walk(ctx, "/a/b/")
	if err != nil {
		t.Fatal(err)
	}
	if name != "b" {
		t.Errorf("walk ended at %q, want b", name)
	}
	members, err = g.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want = []Member{{Name: "b", IsGroup: true}, {Name: "x"}}
	if diff := cmp.Diff(want, members); diff != "" {
		t.Errorf("a members mismatch (-want +got):\n%s", diff)
	}

	if !bytes.Equal(readDataset(ctx, t, f2, "top"), top) {
		t.Error("top mismatch")
	}
	if !bytes.Equal(readDataset(ctx, t, f2, "a/x"), nested) {
		t.Error("a/x mismatch")
	}

	// Reopened files accept new members.
	b, err := g.Group(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.CreateDataset(ctx, "late", bytes.NewReader([]byte("late data"))); err != nil {
		t.Fatal(err)
	}
	if err := f2.Close(ctx); err != nil {
		t.Fatal(err)
	}

	f3, err := Open(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if got := readDataset(ctx, t, f3, "a/b/late"); string(got) != "late data" {
		t.Errorf("got %q, want %q", got, "late data")
	}
	if !bytes.Equal(readDataset(ctx, t, f3, "a/x"), nested) {
		t.Error("a/x mismatch after reopening")
	}
}

func TestCreateNonEmpty(t *testing.T) {
	ctx := context.Background()
	if _, err := Create(ctx, mem.NewFrom([]byte("x")), &h5.DefaultSizing); err == nil {
		t.Error("created a file over a non-empty store")
	}
	if _, err := Open(ctx, mem.NewFrom(make([]byte, 64))); err == nil {
		t.Error("opened a file with no signature")
	}
}
