package format

import (
	"github.com/pkg/errors"

	"github.com/bobg/h5"
)

const symbolNodeSignature = "SNOD"

// SymbolNode is a symbol-table node:
// up to 2*GroupLeafK entries,
// kept in ascending order of name.
//
//	signature  4
//	version    1
//	reserved   1
//	count      2
//	entries    2*GroupLeafK * (2O+24)
type SymbolNode struct {
	Base
}

// SymbolNodeSize is the encoded size of a SymbolNode.
func SymbolNodeSize(sc *h5.SizingContext) int {
	return 8 + 2*sc.GroupLeafK*EntrySize(sc)
}

// SymbolNodeType is the Type of SymbolNode.
var SymbolNodeType = &h5.Type{
	Name:    "symbol table node",
	MinSize: SymbolNodeSize,
	MaxSize: SymbolNodeSize,
	New: func(e *h5.Engine, v *h5.View, sc *h5.SizingContext) (h5.Record, error) {
		s := new(SymbolNode)
		s.init(s, e, v, sc)
		return s, nil
	},
}

// EncodedSize implements h5.Record.
func (s *SymbolNode) EncodedSize() int { return SymbolNodeSize(s.sc) }

// Initialize implements h5.Mutable.
func (s *SymbolNode) Initialize() {
	s.v.Zero(0, s.v.Len())
	s.v.Put(0, []byte(symbolNodeSignature))
	s.v.PutUint8(4, 1)
	for i := 0; i < s.Capacity(); i++ {
		s.Entry(i).clear()
	}
}

// Pack implements h5.Mutable.
func (s *SymbolNode) Pack() {}

// Validate implements h5.Validator.
func (s *SymbolNode) Validate() error {
	if string(s.v.Get(0, 4)) != symbolNodeSignature {
		return errors.New("bad symbol table node signature")
	}
	if got := s.v.Uint8(4); got != 1 {
		return errors.Errorf("unsupported symbol table node version %d", got)
	}
	if s.Count() > s.Capacity() {
		return errors.Errorf("%d entries exceed capacity %d", s.Count(), s.Capacity())
	}
	return nil
}

// Count is the number of entries in use.
func (s *SymbolNode) Count() int { return int(s.v.Uint16(6)) }

// Capacity is the maximum number of entries.
func (s *SymbolNode) Capacity() int { return 2 * s.sc.GroupLeafK }

// Entry is entry i.
func (s *SymbolNode) Entry(i int) *Entry {
	return &Entry{b: &s.Base, off: 8 + i*EntrySize(s.sc)}
}

// Insert opens a cleared entry at position i,
// shifting entries i and later one place up.
func (s *SymbolNode) Insert(i int) (*Entry, error) {
	count := s.Count()
	if count >= s.Capacity() {
		return nil, h5.ErrNodeFull
	}
	if i < 0 || i > count {
		return nil, errors.Errorf("insert position %d out of range [0, %d]", i, count)
	}
	size := EntrySize(s.sc)
	if i < count {
		s.move(8+(i+1)*size, 8+i*size, (count-i)*size)
	}
	ent := s.Entry(i)
	ent.clear()
	s.putUint(6, 2, uint64(count+1))
	return ent, nil
}
