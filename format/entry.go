package format

import "github.com/bobg/h5"

// Cache types of a symbol-table entry.
const (
	CacheNone        = 0
	CacheSymbolTable = 1
)

// EntrySize is the encoded size of a symbol-table entry.
func EntrySize(sc *h5.SizingContext) int {
	return 2*sc.OffsetWidth + 24
}

// Entry is a symbol-table entry:
// a link name (as an offset into the group's local heap)
// and the address of the linked object's header.
// Entries live inside other records
// (a SymbolNode, or the Superblock for the root group),
// so an Entry is an accessor over its holder's bytes.
// For groups, the scratch area caches the addresses of the group's B-tree and heap.
//
//	name offset      O
//	header address   O
//	cache type       4
//	reserved         4
//	scratch         16
type Entry struct {
	b   *Base
	off int
}

func (e *Entry) field(n int) int {
	return e.off + n*e.b.sc.OffsetWidth
}

// NameOffset is the offset of the entry's name in the local heap.
func (e *Entry) NameOffset() uint64 {
	return e.b.v.Uint(e.off, e.b.sc.OffsetWidth)
}

// SetNameOffset sets the heap offset of the entry's name.
func (e *Entry) SetNameOffset(off uint64) {
	e.b.putUint(e.off, e.b.sc.OffsetWidth, off)
}

// Header refers to the object header of the linked object.
// It is nil if unset.
func (e *Entry) Header() *h5.Resolvable {
	return e.b.ref(e.field(1), 0, ObjectHeaderType, e.b.sc)
}

// SetHeader links the entry to an object header.
func (e *Entry) SetHeader(r *h5.Resolvable) {
	e.b.setRef(e.field(1), r)
}

// CacheType is CacheNone or CacheSymbolTable.
func (e *Entry) CacheType() uint32 {
	return e.b.v.Uint32(e.field(2))
}

// SetSymbolTable marks the entry as a group
// and caches the addresses of its B-tree and local heap.
func (e *Entry) SetSymbolTable(tree, heap *h5.Resolvable) {
	e.b.putUint(e.field(2), 4, CacheSymbolTable)
	scratch := e.field(2) + 8
	e.b.setRef(scratch, tree)
	e.b.setRef(scratch+e.b.sc.OffsetWidth, heap)
}

// SymbolTable returns the cached B-tree and heap of a group entry.
// Both are nil unless CacheType is CacheSymbolTable.
func (e *Entry) SymbolTable() (tree, heap *h5.Resolvable) {
	if e.CacheType() != CacheSymbolTable {
		return nil, nil
	}
	scratch := e.field(2) + 8
	return e.b.ref(scratch, GroupNodeSize(e.b.sc), GroupNodeType, e.b.sc),
		e.b.ref(scratch+e.b.sc.OffsetWidth, LocalHeapSize(e.b.sc), LocalHeapType, e.b.sc)
}

func (e *Entry) clear() {
	e.b.zero(e.off, EntrySize(e.b.sc))
	e.b.v.PutAddr(e.field(1), e.b.sc.OffsetWidth, h5.Nil)
}
