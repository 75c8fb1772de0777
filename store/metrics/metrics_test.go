package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bobg/h5/store/mem"
	"github.com/bobg/h5/testutil"
)

func TestRaw(t *testing.T) {
	s, err := New(mem.New(), prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	testutil.Raw(context.Background(), t, s)
}

func TestCounts(t *testing.T) {
	var (
		ctx = context.Background()
		reg = prometheus.NewRegistry()
	)
	s, err := New(mem.New(), reg)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := s.Append(ctx, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Append(ctx, []byte("world")); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteAt(ctx, 0, []byte("J")); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteAt(ctx, 9, []byte("xx")); err == nil {
		t.Fatal("writing past the end succeeded")
	}
	if _, err := s.ReadAt(ctx, 2, 6); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"appends", s.ops.WithLabelValues("append", "ok"), 2},
		{"writes", s.ops.WithLabelValues("write", "ok"), 1},
		{"write errors", s.ops.WithLabelValues("write", "error"), 1},
		{"reads", s.ops.WithLabelValues("read", "ok"), 1},
		{"appended bytes", s.bytes.WithLabelValues("append"), 10},
		{"written bytes", s.bytes.WithLabelValues("write"), 1},
		{"read bytes", s.bytes.WithLabelValues("read"), 6},
		{"size", s.size, 10},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := promtest.ToFloat64(c.c); got != c.want {
				t.Errorf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestShared(t *testing.T) {
	reg := prometheus.NewRegistry()
	s1, err := New(mem.New(), reg)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := New(mem.New(), reg)
	if err != nil {
		t.Fatal(err)
	}
	if s1.ops != s2.ops {
		t.Error("second store did not share the first store's collectors")
	}

	ctx := context.Background()
	if _, _, err := s1.Append(ctx, []byte("abc")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s2.Append(ctx, []byte("de")); err != nil {
		t.Fatal(err)
	}
	if got := promtest.ToFloat64(s1.bytes.WithLabelValues("append")); got != 5 {
		t.Errorf("got %v appended bytes, want 5", got)
	}
}
