package h5

import "github.com/pkg/errors"

// Bytes is a raw byte range treated as a Record.
// It is what AllocateBytes stages and what ResolveBytes returns.
type Bytes struct {
	v *View
}

var _ Record = &Bytes{}

// BytesType is the Type of raw byte ranges.
// Its size must always be declared;
// it has no encoding from which a size could be discovered.
var BytesType = &Type{
	Name:    "bytes",
	MinSize: func(*SizingContext) int { return 1 },
	MaxSize: func(*SizingContext) int { return 0 },
	New: func(_ *Engine, v *View, _ *SizingContext) (Record, error) {
		if v.Len() == 0 {
			return nil, errors.New("empty byte range")
		}
		return &Bytes{v: v}, nil
	},
}

// EncodedSize implements Record.
func (b *Bytes) EncodedSize() int { return b.v.Len() }

// Bytes implements Record.
func (b *Bytes) Bytes() []byte { return b.v.Bytes() }

// View returns the underlying View.
func (b *Bytes) View() *View { return b.v }

// Grow extends the range to n bytes.
// It has no effect if the range is already at least that long.
// Only staged byte ranges should be grown;
// a placed range cannot change size.
func (b *Bytes) Grow(n int) {
	if n > b.v.Len() {
		b.v.Resize(n)
	}
}
