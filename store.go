package h5

import "context"

// Reader is a read-only Store (qv).
type Reader interface {
	// ReadAt reads n bytes beginning at offset off.
	// It returns ErrShortRead if the store ends before off+n.
	ReadAt(ctx context.Context, off uint64, n int) ([]byte, error)

	// Size is the number of bytes in the store,
	// which is also the offset at which the next Append will place its bytes.
	Size(context.Context) (uint64, error)
}

// Store is the backing store of an Engine.
// It holds a growing sequence of bytes.
// New records are only ever appended;
// nothing is moved once placed.
type Store interface {
	Reader

	// Append adds b to the end of the store.
	// It returns the offset at which b was placed and the number of bytes written.
	Append(ctx context.Context, b []byte) (off, n uint64, err error)

	// WriteAt overwrites bytes that were placed earlier.
	// It must not extend the store.
	// The Engine uses it only to rewrite records in place
	// after their contents (but not their sizes) have changed.
	WriteAt(ctx context.Context, off uint64, b []byte) error
}
