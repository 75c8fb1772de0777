package format

import (
	"github.com/pkg/errors"

	"github.com/bobg/h5"
)

// Signature is the format signature at the start of every file.
const Signature = "\x89HDF\r\n\x1a\n"

// SuperblockVersion is the only superblock version supported.
const SuperblockVersion = 1

// Superblock is the version-1 superblock at offset 0 of a file.
//
//	 0  signature                 8
//	 8  versions, widths, reserved 8
//	16  group leaf K              2
//	18  group internal K          2
//	20  consistency flags         4
//	24  indexed storage K         2
//	26  reserved                  2
//	28  base address              O
//	    free-space address        O
//	    end-of-file address       O
//	    driver info address       O
//	    root group entry     2O+24
type Superblock struct {
	Base
}

// SuperblockSize is the encoded size of a Superblock.
func SuperblockSize(sc *h5.SizingContext) int {
	return 28 + 4*sc.OffsetWidth + EntrySize(sc)
}

// SuperblockType is the Type of Superblock.
var SuperblockType = &h5.Type{
	Name:    "superblock",
	MinSize: SuperblockSize,
	MaxSize: SuperblockSize,
	New: func(e *h5.Engine, v *h5.View, sc *h5.SizingContext) (h5.Record, error) {
		s := new(Superblock)
		s.init(s, e, v, sc)
		return s, nil
	},
}

// SuperblockPrefix is the number of leading superblock bytes ReadSizing needs.
const SuperblockPrefix = 28

// ReadSizing reads the widths and B-tree parameters from the start of a file,
// so that the superblock and everything under it can be decoded with them.
// It starts from base and replaces the fields the superblock records.
func ReadSizing(prefix []byte, base *h5.SizingContext) (*h5.SizingContext, error) {
	if len(prefix) < SuperblockPrefix {
		return nil, errors.New("file too short")
	}
	if string(prefix[:8]) != Signature {
		return nil, errors.New("bad signature")
	}
	if prefix[8] != SuperblockVersion {
		return nil, errors.Errorf("unsupported superblock version %d", prefix[8])
	}
	v := h5.NewView(prefix)
	sc := *base
	sc.OffsetWidth = int(v.Uint8(13))
	sc.LengthWidth = int(v.Uint8(14))
	sc.GroupLeafK = int(v.Uint16(16))
	sc.GroupInternalK = int(v.Uint16(18))
	sc.ChunkInternalK = int(v.Uint16(24))
	return &sc, sc.Validate()
}

// EncodedSize implements h5.Record.
func (s *Superblock) EncodedSize() int { return SuperblockSize(s.sc) }

// Initialize implements h5.Mutable.
func (s *Superblock) Initialize() {
	v := s.v
	v.Zero(0, v.Len())
	v.Put(0, []byte(Signature))
	v.PutUint8(8, SuperblockVersion)
	v.PutUint8(13, uint8(s.sc.OffsetWidth))
	v.PutUint8(14, uint8(s.sc.LengthWidth))
	v.PutUint16(16, uint16(s.sc.GroupLeafK))
	v.PutUint16(18, uint16(s.sc.GroupInternalK))
	v.PutUint16(24, uint16(s.sc.ChunkInternalK))
	v.PutAddr(28, s.sc.OffsetWidth, h5.Real(0))
	v.PutAddr(s.addrField(1), s.sc.OffsetWidth, h5.Nil)
	v.PutAddr(s.addrField(2), s.sc.OffsetWidth, h5.Real(0))
	v.PutAddr(s.addrField(3), s.sc.OffsetWidth, h5.Nil)
	s.Root().clear()
}

// Pack implements h5.Mutable.
func (s *Superblock) Pack() {}

// Validate implements h5.Validator.
func (s *Superblock) Validate() error {
	if string(s.v.Get(0, 8)) != Signature {
		return errors.New("bad signature")
	}
	if got := s.v.Uint8(8); got != SuperblockVersion {
		return errors.Errorf("unsupported superblock version %d", got)
	}
	if got := int(s.v.Uint8(13)); got != s.sc.OffsetWidth {
		return errors.Errorf("offset width %d does not match sizing %d", got, s.sc.OffsetWidth)
	}
	if got := int(s.v.Uint8(14)); got != s.sc.LengthWidth {
		return errors.Errorf("length width %d does not match sizing %d", got, s.sc.LengthWidth)
	}
	return nil
}

func (s *Superblock) addrField(n int) int {
	return 28 + n*s.sc.OffsetWidth
}

// Sizing produces the SizingContext described by the superblock.
func (s *Superblock) Sizing() *h5.SizingContext {
	sc, _ := ReadSizing(s.v.Get(0, SuperblockPrefix), s.sc)
	return sc
}

// EOF is the recorded end-of-file address.
func (s *Superblock) EOF() uint64 {
	return s.v.Uint(s.addrField(2), s.sc.OffsetWidth)
}

// SetEOF records the end-of-file address.
func (s *Superblock) SetEOF(eof uint64) {
	s.putUint(s.addrField(2), s.sc.OffsetWidth, eof)
}

// Root is the symbol-table entry of the root group.
func (s *Superblock) Root() *Entry {
	return &Entry{b: &s.Base, off: s.addrField(4)}
}
