package heap

import (
	"context"
	"testing"

	"github.com/bobg/h5"
	"github.com/bobg/h5/store/mem"
)

func TestLocal(t *testing.T) {
	ctx := context.Background()
	s := mem.New()
	e := h5.NewEngine(s)

	l, err := Create(ctx, e, &h5.DefaultSizing)
	if err != nil {
		t.Fatal(err)
	}

	offs := make(map[string]uint64)
	add := func(names ...string) {
		t.Helper()
		for _, name := range names {
			off, err := l.Add(ctx, name)
			if err != nil {
				t.Fatal(err)
			}
			if off%8 != 0 {
				t.Errorf("%q placed at unaligned offset %d", name, off)
			}
			offs[name] = off
		}
	}
	check := func(l *Local) {
		t.Helper()
		for name, off := range offs {
			got, err := l.Name(ctx, off)
			if err != nil {
				t.Fatal(err)
			}
			if got != name {
				t.Errorf("offset %d: got %q, want %q", off, got, name)
			}
		}
	}

	add("", "alpha", "a name longer than eight bytes")
	if offs[""] != 0 || offs["alpha"] != 8 || offs["a name longer than eight bytes"] != 16 {
		t.Errorf("unexpected offsets %v", offs)
	}
	check(l)

	if err := e.CommitAll(ctx); err != nil {
		t.Fatal(err)
	}
	placed := l.Header().Segment().Addr()
	if placed.IsVirtual() {
		t.Fatal("segment still virtual after CommitAll")
	}

	// The placed segment cannot grow, so this relocates it.
	add("omega")
	check(l)
	if err := e.CommitAll(ctx); err != nil {
		t.Fatal(err)
	}
	if got := l.Header().Segment().Addr(); got == placed || got.IsVirtual() {
		t.Errorf("segment at %s after relocation (was %s)", got, placed)
	}

	e2 := h5.NewEngine(s)
	l2, err := Open(ctx, e2.Ref(l.Ref().Addr(), 0, l.Ref().Type(), &h5.DefaultSizing))
	if err != nil {
		t.Fatal(err)
	}
	check(l2)

	if _, err := l.Add(ctx, "a\x00b"); err == nil {
		t.Error("name with NUL accepted")
	}
}
