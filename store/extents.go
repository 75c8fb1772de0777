package store

// Overlay copies into dst, which begins at store offset dstPos,
// the part of src, which begins at store offset srcPos, that overlaps it.
// Backends that keep a store as a set of extents use it both to assemble reads
// and to patch extents for in-place writes.
func Overlay(dst []byte, dstPos uint64, src []byte, srcPos uint64) {
	if srcPos >= dstPos {
		if srcPos-dstPos < uint64(len(dst)) {
			copy(dst[srcPos-dstPos:], src)
		}
		return
	}
	if dstPos-srcPos < uint64(len(src)) {
		copy(dst, src[dstPos-srcPos:])
	}
}
