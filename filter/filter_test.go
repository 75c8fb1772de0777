package filter

import (
	"bytes"
	"context"
	"testing"
	"testing/quick"
)

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()

	for _, name := range Names() {
		f, err := ByName(name)
		if err != nil {
			t.Fatal(err)
		}
		t.Run(name, func(t *testing.T) {
			check := func(inp []byte) bool {
				in, err := f.In(ctx, inp)
				if err != nil {
					t.Fatal(err)
				}
				out, err := f.Out(ctx, in)
				if err != nil {
					t.Fatal(err)
				}
				return bytes.Equal(inp, out)
			}
			if err := quick.Check(check, nil); err != nil {
				t.Error(err)
			}

			g, err := ByID(f.ID())
			if err != nil {
				t.Fatal(err)
			}
			if g.ID() != f.ID() {
				t.Errorf("ByID(%d) produced filter %d", f.ID(), g.ID())
			}

			// Repetitive input must shrink.
			inp := bytes.Repeat([]byte("hdf5"), 1024)
			in, err := f.In(ctx, inp)
			if err != nil {
				t.Fatal(err)
			}
			if len(in) >= len(inp) {
				t.Errorf("compressed %d bytes to %d", len(inp), len(in))
			}
		})
	}

	if f, err := ByName("none"); err != nil || f != nil {
		t.Errorf("none: got %v, %v", f, err)
	}
	if _, err := ByName("bogus"); err == nil {
		t.Error("unknown filter accepted")
	}
	if _, err := ByID(9999); err == nil {
		t.Error("unknown filter ID accepted")
	}
}
