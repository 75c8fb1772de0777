package format

import (
	"github.com/pkg/errors"

	"github.com/bobg/h5"
)

// Message types understood by ObjectHeader.
const (
	MsgDataspace   = 0x0001
	MsgLayout      = 0x0008
	MsgFilters     = 0x000B
	MsgSymbolTable = 0x0011
)

const (
	headerPrefix  = 16
	msgPrefix     = 8
	maxHeaderSize = 4096
	layoutChunked = 2
	layoutVersion = 3
)

// ObjectHeader is a version-1 object header:
// a list of typed messages describing one object.
// Messages are only ever added,
// so a header grows while it is staged
// and is packed to its final size when committed.
//
//	version          1
//	reserved         1
//	message count    2
//	reference count  4
//	header size      4
//	reserved         4
//	messages: type 2, size 2, flags 1, reserved 3, data padded to 8
type ObjectHeader struct {
	Base
}

// ObjectHeaderType is the Type of ObjectHeader.
var ObjectHeaderType = &h5.Type{
	Name:    "object header",
	MinSize: func(*h5.SizingContext) int { return headerPrefix },
	MaxSize: func(*h5.SizingContext) int { return maxHeaderSize },
	New: func(e *h5.Engine, v *h5.View, sc *h5.SizingContext) (h5.Record, error) {
		h := new(ObjectHeader)
		h.init(h, e, v, sc)
		return h, nil
	},
}

// EncodedSize implements h5.Record.
func (h *ObjectHeader) EncodedSize() int {
	return headerPrefix + int(h.v.Uint32(8))
}

// Initialize implements h5.Mutable.
func (h *ObjectHeader) Initialize() {
	h.v.Zero(0, headerPrefix)
	h.v.PutUint8(0, 1)
	h.v.PutUint32(4, 1)
}

// Pack implements h5.Mutable.
func (h *ObjectHeader) Pack() {
	h.v.Resize(h.EncodedSize())
}

// Validate implements h5.Validator.
func (h *ObjectHeader) Validate() error {
	if got := h.v.Uint8(0); got != 1 {
		return errors.Errorf("unsupported object header version %d", got)
	}
	if h.EncodedSize() > h.v.Len() {
		return nil // reported by the engine with the size
	}
	off := headerPrefix
	for i := 0; i < h.NumMessages(); i++ {
		if off+msgPrefix > h.EncodedSize() {
			return errors.Errorf("message %d overruns header", i)
		}
		off += msgPrefix + int(h.v.Uint16(off+2))
	}
	if off != h.EncodedSize() {
		return errors.Errorf("messages occupy %d bytes, header size says %d", off-headerPrefix, h.EncodedSize()-headerPrefix)
	}
	return nil
}

// NumMessages is the number of messages in the header.
func (h *ObjectHeader) NumMessages() int { return int(h.v.Uint16(2)) }

// Message describes one message in an ObjectHeader.
type Message struct {
	Type  uint16
	Flags uint8
	Off   int // offset of the message data in the header
	Size  int // size of the message data
}

// Messages lists the header's messages.
func (h *ObjectHeader) Messages() []Message {
	var (
		out []Message
		off = headerPrefix
	)
	for i := 0; i < h.NumMessages(); i++ {
		m := Message{
			Type:  h.v.Uint16(off),
			Size:  int(h.v.Uint16(off + 2)),
			Flags: h.v.Uint8(off + 4),
			Off:   off + msgPrefix,
		}
		out = append(out, m)
		off = m.Off + m.Size
	}
	return out
}

// Find returns the first message of the given type.
func (h *ObjectHeader) Find(typ uint16) (Message, bool) {
	for _, m := range h.Messages() {
		if m.Type == typ {
			return m, true
		}
	}
	return Message{}, false
}

// AddMessage appends a message of the given type with size bytes of zeroed data,
// rounded up to a multiple of 8.
// Only a staged header can grow.
func (h *ObjectHeader) AddMessage(typ uint16, size int) (Message, error) {
	size = align8(size)
	if size > 0xffff {
		return Message{}, errors.Errorf("message size %d too large", size)
	}
	off := h.EncodedSize()
	if off+msgPrefix+size > h.v.Len() {
		return Message{}, errors.Errorf("no room for %d-byte message in object header", size)
	}
	h.v.Zero(off, msgPrefix+size)
	h.v.PutUint16(off, typ)
	h.v.PutUint16(off+2, uint16(size))
	h.v.PutUint16(2, uint16(h.NumMessages()+1))
	h.v.PutUint32(8, uint32(off+msgPrefix+size-headerPrefix))
	h.touch()
	return Message{Type: typ, Off: off + msgPrefix, Size: size}, nil
}

// SetDataspace adds a simple dataspace message with the given dimensions.
func (h *ObjectHeader) SetDataspace(dims []uint64) error {
	lw := h.sc.LengthWidth
	m, err := h.AddMessage(MsgDataspace, 8+len(dims)*lw)
	if err != nil {
		return err
	}
	h.v.PutUint8(m.Off, 1)
	h.v.PutUint8(m.Off+1, uint8(len(dims)))
	for i, d := range dims {
		h.v.PutUint(m.Off+8+i*lw, lw, d)
	}
	return nil
}

// Dataspace returns the dimensions from the dataspace message.
func (h *ObjectHeader) Dataspace() ([]uint64, bool) {
	m, ok := h.Find(MsgDataspace)
	if !ok {
		return nil, false
	}
	lw := h.sc.LengthWidth
	dims := make([]uint64, h.v.Uint8(m.Off+1))
	for i := range dims {
		dims[i] = h.v.Uint(m.Off+8+i*lw, lw)
	}
	return dims, true
}

// SetChunkedLayout adds a chunked layout message
// referring to the chunk B-tree root tree.
// The chunk dimensions include a final element size.
func (h *ObjectHeader) SetChunkedLayout(tree *h5.Resolvable, chunkDims []uint32) error {
	ow := h.sc.OffsetWidth
	m, err := h.AddMessage(MsgLayout, 3+ow+4*len(chunkDims))
	if err != nil {
		return err
	}
	h.v.PutUint8(m.Off, layoutVersion)
	h.v.PutUint8(m.Off+1, layoutChunked)
	h.v.PutUint8(m.Off+2, uint8(len(chunkDims)))
	h.setRef(m.Off+3, tree)
	for i, d := range chunkDims {
		h.v.PutUint32(m.Off+3+ow+4*i, d)
	}
	return nil
}

// ChunkedLayout returns the chunk B-tree root and chunk dimensions from the layout message.
// The root is decoded with a SizingContext whose Dims is the dataset's rank.
func (h *ObjectHeader) ChunkedLayout() (*h5.Resolvable, []uint32, error) {
	m, ok := h.Find(MsgLayout)
	if !ok {
		return nil, nil, errors.New("no layout message")
	}
	if v := h.v.Uint8(m.Off); v != layoutVersion {
		return nil, nil, errors.Errorf("unsupported layout version %d", v)
	}
	if c := h.v.Uint8(m.Off + 1); c != layoutChunked {
		return nil, nil, errors.Errorf("unsupported layout class %d", c)
	}
	ow := h.sc.OffsetWidth
	dims := make([]uint32, h.v.Uint8(m.Off+2))
	for i := range dims {
		dims[i] = h.v.Uint32(m.Off + 3 + ow + 4*i)
	}
	if len(dims) < 2 {
		return nil, nil, errors.Errorf("layout has %d dimensions", len(dims))
	}
	sc := h.sc.WithDims(len(dims) - 1)
	return h.ref(m.Off+3, ChunkNodeSize(sc), ChunkNodeType, sc), dims, nil
}

// SetFilters adds a filter pipeline message naming the given filters in order.
func (h *ObjectHeader) SetFilters(ids []uint16) error {
	m, err := h.AddMessage(MsgFilters, 8+8*len(ids))
	if err != nil {
		return err
	}
	h.v.PutUint8(m.Off, 1)
	h.v.PutUint8(m.Off+1, uint8(len(ids)))
	for i, id := range ids {
		h.v.PutUint16(m.Off+8+8*i, id)
	}
	return nil
}

// Filters returns the filter IDs from the filter pipeline message, if any.
func (h *ObjectHeader) Filters() []uint16 {
	m, ok := h.Find(MsgFilters)
	if !ok {
		return nil
	}
	ids := make([]uint16, h.v.Uint8(m.Off+1))
	for i := range ids {
		ids[i] = h.v.Uint16(m.Off + 8 + 8*i)
	}
	return ids
}

// SetSymbolTable adds a symbol table message,
// which makes the object a group.
func (h *ObjectHeader) SetSymbolTable(tree, heap *h5.Resolvable) error {
	ow := h.sc.OffsetWidth
	m, err := h.AddMessage(MsgSymbolTable, 2*ow)
	if err != nil {
		return err
	}
	h.setRef(m.Off, tree)
	h.setRef(m.Off+ow, heap)
	return nil
}

// SymbolTable returns the group B-tree root and local heap from the symbol table message.
func (h *ObjectHeader) SymbolTable() (tree, heap *h5.Resolvable, ok bool) {
	m, ok := h.Find(MsgSymbolTable)
	if !ok {
		return nil, nil, false
	}
	ow := h.sc.OffsetWidth
	return h.ref(m.Off, GroupNodeSize(h.sc), GroupNodeType, h.sc),
		h.ref(m.Off+ow, LocalHeapSize(h.sc), LocalHeapType, h.sc),
		true
}

// IsGroup tells whether the header has a symbol table message.
func (h *ObjectHeader) IsGroup() bool {
	_, ok := h.Find(MsgSymbolTable)
	return ok
}
