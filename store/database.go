// Package store defines the key-value storage contract the index layer
// (C5/C6) persists through, plus the in-memory and on-disk (LevelDB)
// backends that implement it (spec.md §6 on-disk layout; spec.md §5's
// single-writer/multi-reader resource policy).
package store

import "io"

// KeyValueReader wraps the read side of a key-value store.
type KeyValueReader interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
}

// KeyValueWriter wraps the write side of a key-value store.
type KeyValueWriter interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Batcher creates write batches for this store.
type Batcher interface {
	NewBatch() Batch
}

// Iteratee creates key-range iterators over this store.
type Iteratee interface {
	// NewIterator creates an iterator over a subset of the store's key
	// space, restricted to keys with the given prefix, starting at the
	// given start position.
	NewIterator(prefix []byte, start []byte) Iterator
}

// KeyValueStore is the full contract every backend implements: reads,
// writes, batches, range iteration, and lifecycle.
type KeyValueStore interface {
	KeyValueReader
	KeyValueWriter
	Batcher
	Iteratee
	io.Closer
}

// Database is the persistent store handed to the index layer; today it is
// exactly KeyValueStore, kept as a distinct name so C5/C6 can later layer
// index-specific helpers (prefix codecs, snapshot handles) without
// disturbing the backend contract.
type Database interface {
	KeyValueStore
}

// Iterator iterates over a database's key-value pairs in ascending key
// order. Must be released after use.
type Iterator interface {
	Next() bool
	Error() error
	Key() []byte
	Value() []byte
	Release()
}

// Batch is a write-only buffer accumulating writes for atomic, ordered
// application.
type Batch interface {
	KeyValueWriter
	// ValueSize returns the amount of data queued for writing.
	ValueSize() int
	// Write flushes any accumulated data to disk.
	Write() error
	// Reset resets the batch for reuse.
	Reset()
	// Replay replays the batch contents onto a KeyValueWriter.
	Replay(w KeyValueWriter) error
}
