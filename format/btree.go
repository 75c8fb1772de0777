package format

import (
	"github.com/pkg/errors"

	"github.com/bobg/h5"
)

// Node types of a version-1 B-tree.
const (
	GroupNode = 0
	ChunkNode = 1
)

const nodeSignature = "TREE"

// Node is a version-1 B-tree node.
// A node at level 0 is a leaf.
// Its entries children are bracketed by entries+1 keys:
// key[i] <= every key under child[i] < key[i+1].
//
// In a group tree the keys are local-heap offsets of names,
// and leaf children are SymbolNodes.
// In a chunk tree the keys are ChunkKeys,
// and leaf children are raw chunk bytes.
//
//	signature      4
//	node type      1
//	level          1
//	entries        2
//	left sibling   O
//	right sibling  O
//	key[0] child[0] key[1] ... child[2K-1] key[2K]
type Node struct {
	Base
	kind int
}

// GroupNodeSize is the encoded size of a group B-tree node.
func GroupNodeSize(sc *h5.SizingContext) int {
	return nodeSize(sc, sc.GroupInternalK, sc.LengthWidth)
}

// ChunkNodeSize is the encoded size of a chunk B-tree node.
func ChunkNodeSize(sc *h5.SizingContext) int {
	return nodeSize(sc, sc.ChunkInternalK, chunkKeySize(sc))
}

func nodeSize(sc *h5.SizingContext, k, keySize int) int {
	return 8 + 2*sc.OffsetWidth + (2*k+1)*keySize + 2*k*sc.OffsetWidth
}

// GroupNodeType is the Type of group B-tree nodes.
var GroupNodeType = &h5.Type{
	Name:    "group B-tree node",
	MinSize: GroupNodeSize,
	MaxSize: GroupNodeSize,
	New:     newNode(GroupNode),
}

// ChunkNodeType is the Type of chunk B-tree nodes.
// Its size depends on SizingContext.Dims.
var ChunkNodeType = &h5.Type{
	Name:    "chunk B-tree node",
	MinSize: ChunkNodeSize,
	MaxSize: ChunkNodeSize,
	New:     newNode(ChunkNode),
}

func newNode(kind int) func(*h5.Engine, *h5.View, *h5.SizingContext) (h5.Record, error) {
	return func(e *h5.Engine, v *h5.View, sc *h5.SizingContext) (h5.Record, error) {
		n := &Node{kind: kind}
		n.init(n, e, v, sc)
		return n, nil
	}
}

// EncodedSize implements h5.Record.
func (n *Node) EncodedSize() int {
	if n.kind == GroupNode {
		return GroupNodeSize(n.sc)
	}
	return ChunkNodeSize(n.sc)
}

// Initialize implements h5.Mutable.
func (n *Node) Initialize() {
	n.v.Zero(0, n.v.Len())
	n.v.Put(0, []byte(nodeSignature))
	n.v.PutUint8(4, uint8(n.kind))
	n.v.PutAddr(8, n.sc.OffsetWidth, h5.Nil)
	n.v.PutAddr(8+n.sc.OffsetWidth, n.sc.OffsetWidth, h5.Nil)
	for i := 0; i < n.Capacity(); i++ {
		n.v.PutAddr(n.childOff(i), n.sc.OffsetWidth, h5.Nil)
	}
}

// Pack implements h5.Mutable.
func (n *Node) Pack() {}

// Validate implements h5.Validator.
func (n *Node) Validate() error {
	if string(n.v.Get(0, 4)) != nodeSignature {
		return errors.New("bad B-tree node signature")
	}
	if got := int(n.v.Uint8(4)); got != n.kind {
		return errors.Errorf("node type %d, want %d", got, n.kind)
	}
	if n.Entries() > n.Capacity() {
		return errors.Errorf("%d entries exceed capacity %d", n.Entries(), n.Capacity())
	}
	return nil
}

// Kind is GroupNode or ChunkNode.
func (n *Node) Kind() int { return n.kind }

// Level is the node's height above the leaves.
func (n *Node) Level() int { return int(n.v.Uint8(5)) }

// SetLevel sets the node's level.
func (n *Node) SetLevel(level int) { n.putUint(5, 1, uint64(level)) }

// Entries is the number of children in use.
func (n *Node) Entries() int { return int(n.v.Uint16(6)) }

// SetEntries sets the number of children in use.
func (n *Node) SetEntries(entries int) { n.putUint(6, 2, uint64(entries)) }

// Capacity is the maximum number of children, 2K.
func (n *Node) Capacity() int {
	if n.kind == GroupNode {
		return 2 * n.sc.GroupInternalK
	}
	return 2 * n.sc.ChunkInternalK
}

// Full tells whether the node has no room for another child.
func (n *Node) Full() bool { return n.Entries() >= n.Capacity() }

func (n *Node) keySize() int {
	if n.kind == GroupNode {
		return n.sc.LengthWidth
	}
	return chunkKeySize(n.sc)
}

func (n *Node) keyOff(i int) int {
	return 8 + 2*n.sc.OffsetWidth + i*(n.keySize()+n.sc.OffsetWidth)
}

func (n *Node) childOff(i int) int {
	return n.keyOff(i) + n.keySize()
}

// LeftSibling and RightSibling refer to the neighboring nodes at the same level.
func (n *Node) LeftSibling() *h5.Resolvable {
	return n.ref(8, n.EncodedSize(), n.selfType(), n.sc)
}

// RightSibling is the node to the right of n at the same level.
func (n *Node) RightSibling() *h5.Resolvable {
	return n.ref(8+n.sc.OffsetWidth, n.EncodedSize(), n.selfType(), n.sc)
}

// SetSiblings sets the left and right siblings.
func (n *Node) SetSiblings(left, right *h5.Resolvable) {
	n.setRef(8, left)
	n.setRef(8+n.sc.OffsetWidth, right)
}

func (n *Node) selfType() *h5.Type {
	if n.kind == GroupNode {
		return GroupNodeType
	}
	return ChunkNodeType
}

// Child refers to child i.
// Below a leaf of a group tree that is a SymbolNode;
// below a leaf of a chunk tree it is the chunk's bytes,
// whose size comes from key i.
func (n *Node) Child(i int) *h5.Resolvable {
	off := n.childOff(i)
	switch {
	case n.Level() > 0:
		return n.ref(off, n.EncodedSize(), n.selfType(), n.sc)
	case n.kind == GroupNode:
		return n.ref(off, SymbolNodeSize(n.sc), SymbolNodeType, n.sc)
	default:
		return n.ref(off, int(n.ChunkKey(i).Size), h5.BytesType, n.sc)
	}
}

// SetChild sets child i.
func (n *Node) SetChild(i int, r *h5.Resolvable) {
	n.setRef(n.childOff(i), r)
}

// GroupKey is key i of a group node:
// the heap offset of a name.
func (n *Node) GroupKey(i int) uint64 {
	return n.v.Uint(n.keyOff(i), n.sc.LengthWidth)
}

// SetGroupKey sets key i of a group node.
func (n *Node) SetGroupKey(i int, off uint64) {
	n.putUint(n.keyOff(i), n.sc.LengthWidth, off)
}

// ChunkKey is key i of a chunk node.
func (n *Node) ChunkKey(i int) ChunkKey {
	off := n.keyOff(i)
	k := ChunkKey{
		Size:       n.v.Uint32(off),
		FilterMask: n.v.Uint32(off + 4),
		Offsets:    make([]uint64, n.sc.Dims+1),
	}
	for j := range k.Offsets {
		k.Offsets[j] = n.v.Uint64(off + 8 + 8*j)
	}
	return k
}

// SetChunkKey sets key i of a chunk node.
// Missing offsets are written as zero.
func (n *Node) SetChunkKey(i int, k ChunkKey) {
	off := n.keyOff(i)
	n.v.PutUint32(off, k.Size)
	n.v.PutUint32(off+4, k.FilterMask)
	for j := 0; j <= n.sc.Dims; j++ {
		var x uint64
		if j < len(k.Offsets) {
			x = k.Offsets[j]
		}
		n.v.PutUint64(off+8+8*j, x)
	}
	n.touch()
}

// ChunkKey is a key of a chunk B-tree.
// The key to the left of a chunk describes it:
// its stored size in bytes,
// a mask whose set bits name the filters that were skipped for it,
// and its offset in each dimension (plus a final zero for the element).
// The key after the last chunk holds only the end offsets.
type ChunkKey struct {
	Size       uint32
	FilterMask uint32
	Offsets    []uint64
}

func chunkKeySize(sc *h5.SizingContext) int {
	return 8 + 8*(sc.Dims+1)
}
