package store

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestOverlay(t *testing.T) {
	cases := []struct {
		dstPos, srcPos uint64
		src            string
		want           string
	}{
		{10, 10, "abcdef", "abcd"},
		{10, 12, "ab", "..ab"},
		{10, 8, "abcdef", "cdef"},
		{10, 13, "abc", "...a"},
		{10, 2, "abc", "...."},
		{10, 14, "abc", "...."},
	}
	for _, c := range cases {
		dst := []byte("....")
		Overlay(dst, c.dstPos, []byte(c.src), c.srcPos)
		if diff := cmp.Diff(c.want, string(dst)); diff != "" {
			t.Errorf("dst at %d, src %q at %d: mismatch (-want +got):\n%s", c.dstPos, c.src, c.srcPos, diff)
		}
	}
}
