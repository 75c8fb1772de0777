package h5

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// SizingContext holds the format-wide parameters needed to decode records:
// the byte widths of offsets and lengths
// and the fan-out of the B-trees.
// Derived contexts narrow it for particular record types
// (see WithHeap and WithDims).
// The Engine never interprets these fields;
// it only passes them through to record constructors.
type SizingContext struct {
	OffsetWidth int // width of file offsets, in bytes
	LengthWidth int // width of lengths, in bytes

	GroupLeafK     int // symbol-table nodes hold up to 2*GroupLeafK entries
	GroupInternalK int // group B-tree nodes hold up to 2*GroupInternalK children
	ChunkInternalK int // chunk B-tree nodes hold up to 2*ChunkInternalK children

	Heap *Resolvable // the active local heap, if any
	Dims int         // dataset dimensionality for chunk B-tree keys
}

// DefaultSizing is the SizingContext used when none is configured.
var DefaultSizing = SizingContext{
	OffsetWidth:    8,
	LengthWidth:    8,
	GroupLeafK:     4,
	GroupInternalK: 16,
	ChunkInternalK: 32,
	Dims:           1,
}

// Validate checks the widths and fan-outs of sc.
func (sc *SizingContext) Validate() error {
	if !validWidth(sc.OffsetWidth) {
		return &UnsupportedWidthError{Field: "offset", Width: sc.OffsetWidth}
	}
	if !validWidth(sc.LengthWidth) {
		return &UnsupportedWidthError{Field: "length", Width: sc.LengthWidth}
	}
	if sc.GroupLeafK < 1 || sc.GroupInternalK < 1 || sc.ChunkInternalK < 1 {
		return fmt.Errorf("B-tree K values must be positive (leaf %d, internal %d, chunk %d)", sc.GroupLeafK, sc.GroupInternalK, sc.ChunkInternalK)
	}
	if sc.Dims < 1 {
		return fmt.Errorf("dimensionality %d must be positive", sc.Dims)
	}
	return nil
}

func validWidth(w int) bool {
	switch w {
	case 1, 2, 4, 8:
		return true
	}
	return false
}

// WithHeap returns a copy of sc whose active heap is h.
func (sc *SizingContext) WithHeap(h *Resolvable) *SizingContext {
	out := *sc
	out.Heap = h
	return &out
}

// WithDims returns a copy of sc with the given dimensionality.
func (sc *SizingContext) WithDims(dims int) *SizingContext {
	out := *sc
	out.Dims = dims
	return &out
}

// SizingFromConfig produces a SizingContext from the "sizing" section of a config map,
// starting from DefaultSizing.
// Recognized keys are offset_width, length_width, group_leaf_k, group_internal_k, and chunk_internal_k.
func SizingFromConfig(conf map[string]interface{}) (*SizingContext, error) {
	sc := DefaultSizing
	fields := []struct {
		key string
		dst *int
	}{
		{"offset_width", &sc.OffsetWidth},
		{"length_width", &sc.LengthWidth},
		{"group_leaf_k", &sc.GroupLeafK},
		{"group_internal_k", &sc.GroupInternalK},
		{"chunk_internal_k", &sc.ChunkInternalK},
	}
	for _, f := range fields {
		val, ok := conf[f.key]
		if !ok {
			continue
		}
		n, err := configInt(val)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", f.key)
		}
		*f.dst = n
	}
	return &sc, sc.Validate()
}

func configInt(val interface{}) (int, error) {
	switch v := val.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		return int(n), err
	}
	return 0, fmt.Errorf("%v is a %T, not a number", val, val)
}
