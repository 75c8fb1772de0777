package format

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/h5"
	"github.com/bobg/h5/store/mem"
)

func allocate[T h5.Record](ctx context.Context, t *testing.T, e *h5.Engine, typ *h5.Type, sc *h5.SizingContext) (*h5.Resolvable, T) {
	t.Helper()

	r, err := e.Allocate(ctx, typ, sc)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := h5.ResolveAs[T](ctx, r)
	if err != nil {
		t.Fatal(err)
	}
	return r, rec
}

func TestSymbolNodeShift(t *testing.T) {
	ctx := context.Background()
	s := mem.New()
	e := h5.NewEngine(s)
	sc := &h5.DefaultSizing

	snodRes, snod := allocate[*SymbolNode](ctx, t, e, SymbolNodeType, sc)
	if snodRes.Addr().IsVirtual() {
		t.Fatal("symbol table node was not committed at allocation")
	}

	h1, _ := allocate[*ObjectHeader](ctx, t, e, ObjectHeaderType, sc)
	h2, _ := allocate[*ObjectHeader](ctx, t, e, ObjectHeaderType, sc)

	ent, err := snod.Insert(0)
	if err != nil {
		t.Fatal(err)
	}
	ent.SetNameOffset(16)
	ent.SetHeader(h1)

	ent, err = snod.Insert(0)
	if err != nil {
		t.Fatal(err)
	}
	ent.SetNameOffset(8)
	ent.SetHeader(h2)

	if got := snod.Pending(); got != 2 {
		t.Fatalf("got %d pending refs, want 2", got)
	}
	if err := e.CommitAll(ctx); err != nil {
		t.Fatal(err)
	}
	if got := snod.Pending(); got != 0 {
		t.Fatalf("got %d pending refs after commit, want 0", got)
	}

	e2 := h5.NewEngine(s)
	snod2, err := h5.ResolveAs[*SymbolNode](ctx, e2.Ref(snodRes.Addr(), SymbolNodeSize(sc), SymbolNodeType, sc))
	if err != nil {
		t.Fatal(err)
	}
	if snod2.Count() != 2 {
		t.Fatalf("got count %d, want 2", snod2.Count())
	}

	want := []struct {
		name uint64
		hdr  h5.Address
	}{
		{8, e.Current(h2).Addr()},
		{16, e.Current(h1).Addr()},
	}
	for i, w := range want {
		ent := snod2.Entry(i)
		if got := ent.NameOffset(); got != w.name {
			t.Errorf("entry %d: got name offset %d, want %d", i, got, w.name)
		}
		if got := ent.Header().Addr(); got != w.hdr {
			t.Errorf("entry %d: got header %s, want %s", i, got, w.hdr)
		}
	}
}

func TestSymbolNodeFull(t *testing.T) {
	ctx := context.Background()
	e := h5.NewEngine(mem.New())
	sc := h5.DefaultSizing
	sc.GroupLeafK = 1

	_, snod := allocate[*SymbolNode](ctx, t, e, SymbolNodeType, &sc)
	for i := 0; i < 2; i++ {
		if _, err := snod.Insert(i); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := snod.Insert(0); err != h5.ErrNodeFull {
		t.Errorf("got error %v, want %v", err, h5.ErrNodeFull)
	}
}

func TestObjectHeader(t *testing.T) {
	ctx := context.Background()
	s := mem.New()
	e := h5.NewEngine(s)
	sc := &h5.DefaultSizing

	treeRes, _ := allocate[*Node](ctx, t, e, ChunkNodeType, sc)
	hRes, h := allocate[*ObjectHeader](ctx, t, e, ObjectHeaderType, sc)
	if !hRes.Addr().IsVirtual() {
		t.Fatal("object header was committed at allocation")
	}

	if err := h.SetDataspace([]uint64{1000}); err != nil {
		t.Fatal(err)
	}
	if err := h.SetFilters([]uint16{1}); err != nil {
		t.Fatal(err)
	}
	if err := h.SetChunkedLayout(treeRes, []uint32{4096, 1}); err != nil {
		t.Fatal(err)
	}

	committed, err := e.Commit(ctx, hRes)
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := committed.Size(); !ok || got != h.EncodedSize() {
		t.Errorf("got committed size %d, want %d", got, h.EncodedSize())
	}

	e2 := h5.NewEngine(s)
	rec, err := e2.Resolve(ctx, committed.Addr(), 0, ObjectHeaderType, sc)
	if err != nil {
		t.Fatal(err)
	}
	h2 := rec.(*ObjectHeader)

	dims, ok := h2.Dataspace()
	if !ok {
		t.Fatal("no dataspace")
	}
	if diff := cmp.Diff([]uint64{1000}, dims); diff != "" {
		t.Errorf("dataspace mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint16{1}, h2.Filters()); diff != "" {
		t.Errorf("filters mismatch (-want +got):\n%s", diff)
	}
	tree, chunkDims, err := h2.ChunkedLayout()
	if err != nil {
		t.Fatal(err)
	}
	if tree.Addr() != treeRes.Addr() {
		t.Errorf("got tree %s, want %s", tree.Addr(), treeRes.Addr())
	}
	if diff := cmp.Diff([]uint32{4096, 1}, chunkDims); diff != "" {
		t.Errorf("chunk dims mismatch (-want +got):\n%s", diff)
	}
	if h2.IsGroup() {
		t.Error("dataset header reports being a group")
	}
}

func TestObjectHeaderForwardRef(t *testing.T) {
	ctx := context.Background()
	s := mem.New()
	e := h5.NewEngine(s)
	sc := &h5.DefaultSizing

	hRes, h := allocate[*ObjectHeader](ctx, t, e, ObjectHeaderType, sc)
	tree, err := e.Allocate(ctx, GroupNodeType, sc)
	if err != nil {
		t.Fatal(err)
	}
	heapRes, err := e.AllocateBytes(8)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.SetSymbolTable(tree, heapRes); err != nil {
		t.Fatal(err)
	}

	if err := e.CommitAll(ctx); err != nil {
		t.Fatal(err)
	}

	e2 := h5.NewEngine(s)
	h2, err := h5.ResolveAs[*ObjectHeader](ctx, e2.Ref(e.Current(hRes).Addr(), 0, ObjectHeaderType, sc))
	if err != nil {
		t.Fatal(err)
	}
	gotTree, gotHeap, ok := h2.SymbolTable()
	if !ok {
		t.Fatal("no symbol table message")
	}
	if gotTree.Addr() != tree.Addr() {
		t.Errorf("got tree %s, want %s", gotTree.Addr(), tree.Addr())
	}
	if want := e.Current(heapRes).Addr(); gotHeap.Addr() != want {
		t.Errorf("got heap %s, want %s", gotHeap.Addr(), want)
	}
}

func TestLocalHeapString(t *testing.T) {
	ctx := context.Background()
	s := mem.New()
	e := h5.NewEngine(s)
	sc := &h5.DefaultSizing

	hRes, h := allocate[*LocalHeap](ctx, t, e, LocalHeapType, sc)
	seg, err := e.AllocateBytes(16)
	if err != nil {
		t.Fatal(err)
	}
	b, err := h5.ResolveAs[*h5.Bytes](ctx, seg)
	if err != nil {
		t.Fatal(err)
	}
	copy(b.Bytes()[8:], "abc")
	h.SetSegment(seg, 16)

	check := func(h *LocalHeap) {
		t.Helper()
		for off, want := range map[uint64]string{0: "", 8: "abc", 9: "bc"} {
			got, err := h.String(ctx, off)
			if err != nil {
				t.Fatal(err)
			}
			if got != want {
				t.Errorf("offset %d: got %q, want %q", off, got, want)
			}
		}
		if _, err := h.String(ctx, 16); err == nil {
			t.Error("offset past the segment succeeded")
		}
	}
	check(h)

	if err := e.CommitAll(ctx); err != nil {
		t.Fatal(err)
	}

	e2 := h5.NewEngine(s)
	h2, err := h5.ResolveAs[*LocalHeap](ctx, e2.Ref(hRes.Addr(), LocalHeapSize(sc), LocalHeapType, sc))
	if err != nil {
		t.Fatal(err)
	}
	check(h2)
}

func TestSuperblock(t *testing.T) {
	ctx := context.Background()
	s := mem.New()
	e := h5.NewEngine(s)
	sc := h5.DefaultSizing
	sc.OffsetWidth = 4

	sbRes, sb := allocate[*Superblock](ctx, t, e, SuperblockType, &sc)
	if sbRes.Addr() != h5.Real(0) {
		t.Fatalf("superblock placed at %s", sbRes.Addr())
	}
	hdr, err := e.Allocate(ctx, ObjectHeaderType, &sc)
	if err != nil {
		t.Fatal(err)
	}
	sb.Root().SetHeader(hdr)
	sb.SetEOF(1234)
	if err := e.CommitAll(ctx); err != nil {
		t.Fatal(err)
	}

	rsc, err := ReadSizing(s.Bytes(), &h5.DefaultSizing)
	if err != nil {
		t.Fatal(err)
	}
	if rsc.OffsetWidth != 4 || rsc.LengthWidth != 8 {
		t.Fatalf("got widths %d, %d; want 4, 8", rsc.OffsetWidth, rsc.LengthWidth)
	}

	e2 := h5.NewEngine(s)
	sb2, err := h5.ResolveAs[*Superblock](ctx, e2.Ref(h5.Real(0), SuperblockSize(rsc), SuperblockType, rsc))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(sc, *sb2.Sizing(), cmp.AllowUnexported(h5.Resolvable{})); diff != "" {
		t.Errorf("sizing mismatch (-want +got):\n%s", diff)
	}
	if got := sb2.EOF(); got != 1234 {
		t.Errorf("got EOF %d, want 1234", got)
	}
	if got, want := sb2.Root().Header().Addr(), e.Current(hdr).Addr(); got != want {
		t.Errorf("got root header %s, want %s", got, want)
	}

	if _, err := ReadSizing([]byte("not a file at all, not at all"), &h5.DefaultSizing); err == nil {
		t.Error("bad signature accepted")
	}
}
