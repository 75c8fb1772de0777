package testutil

import (
	"context"
	stderrs "errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/h5"
)

// Raw tests the byte-level contract of an empty Store:
// appends land at the current size,
// reads and in-place writes must stay inside the store,
// and reads see earlier writes.
func Raw(ctx context.Context, t *testing.T, s h5.Store) {
	t.Helper()

	size, err := s.Size(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if size != 0 {
		t.Fatalf("got initial size %d, want 0", size)
	}

	for i, chunk := range []string{"hello", "world", ""} {
		off, n, err := s.Append(ctx, []byte(chunk))
		if err != nil {
			t.Fatal(err)
		}
		if off != uint64(5*i) && chunk != "" {
			t.Errorf("append %d: got offset %d, want %d", i, off, 5*i)
		}
		if n != uint64(len(chunk)) {
			t.Errorf("append %d: got length %d, want %d", i, n, len(chunk))
		}
	}

	if size, err = s.Size(ctx); err != nil {
		t.Fatal(err)
	}
	if size != 10 {
		t.Fatalf("got size %d, want 10", size)
	}

	check := func(off uint64, n int, want string) {
		t.Helper()
		got, err := s.ReadAt(ctx, off, n)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(want, string(got)); diff != "" {
			t.Errorf("read at %d mismatch (-want +got):\n%s", off, diff)
		}
	}
	check(0, 10, "helloworld")
	check(3, 4, "lowo")
	check(10, 0, "")

	if err := s.WriteAt(ctx, 0, []byte("J")); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteAt(ctx, 4, []byte("OW")); err != nil {
		t.Fatal(err)
	}
	check(0, 10, "JellOWorld")

	if _, err := s.ReadAt(ctx, 8, 3); !stderrs.Is(err, h5.ErrShortRead) {
		t.Errorf("read past the end: got error %v, want %v", err, h5.ErrShortRead)
	}
	if err := s.WriteAt(ctx, 9, []byte("xx")); err == nil {
		t.Error("write past the end succeeded")
	}
	check(0, 10, "JellOWorld")
}
