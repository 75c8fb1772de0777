// Package h5 is a lazy object graph over an append-only byte store.
//
// A file in the h5 format is a tree of typed, versioned records
// (a superblock, B-tree nodes, heaps, object headers, symbol-table nodes)
// that refer to one another by byte offset.
// This package supplies the machinery that every record type shares:
// resolving an offset to a decoded record,
// and placing newly created records into the store.
//
// Reading is lazy.
// A Resolvable is a typed reference to a record that may not have been decoded yet.
// Calling Resolve reads the record's bytes from the Store,
// decodes them with the record's Type,
// and caches the result by address,
// so resolving the same address twice yields the same instance.
// That identity guarantee is what lets cyclic graphs
// (a group that refers to one of its own ancestors, say)
// be walked without infinite recursion.
//
// Writing is deferred.
// A newly allocated record gets a virtual address
// and lives in the Engine's staging area,
// where callers may keep mutating it.
// Commit packs the record to its final size,
// appends it to the Store,
// and notifies every Listener that stored a reference to the virtual address,
// so each holder can patch its own offset field with the real one.
// This is how a linker resolves forward references:
// each holder is patched once, in place, the moment its target is placed.
//
// The Store is append-only as far as commits are concerned.
// Records that were placed and later changed
// (fixed-size records are placed as soon as they are allocated)
// are marked with Engine.Touch and rewritten in place during CommitAll.
//
// The format subpackage defines the record types,
// the btree and heap subpackages build indexes on top of the Engine,
// and the file subpackage puts it all together as a container of groups and datasets.
package h5
