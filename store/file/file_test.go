package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bobg/h5/testutil"
)

func withStore(t *testing.T, f func(*Store)) {
	dirname, err := os.MkdirTemp("", "h5filestore")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dirname)

	s, err := New(filepath.Join(dirname, "test.h5"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	f(s)
}

func TestRaw(t *testing.T) {
	withStore(t, func(s *Store) {
		testutil.Raw(context.Background(), t, s)
	})
}

func TestStore(t *testing.T) {
	withStore(t, func(s *Store) {
		testutil.ReadWrite(context.Background(), t, s, testutil.Data(2, 100000))
	})
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	withStore(t, func(s *Store) {
		if _, _, err := s.Append(ctx, []byte("persistent")); err != nil {
			t.Fatal(err)
		}
		s2, err := New(s.path)
		if err != nil {
			t.Fatal(err)
		}
		defer s2.Close()

		got, err := s2.ReadAt(ctx, 0, 10)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "persistent" {
			t.Errorf("got %q, want %q", got, "persistent")
		}
		off, _, err := s2.Append(ctx, []byte("!"))
		if err != nil {
			t.Fatal(err)
		}
		if off != 10 {
			t.Errorf("got offset %d, want 10", off)
		}
	})
}
