// Package leveldb implements store.Database on top of goleveldb, the
// durable backend used for a running node's on-disk indices (spec.md §6:
// "<currency>/ ... the serialised indices and block archive").
package leveldb

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/dunitrust/dunitrust/store"
)

// Database is a persistent key-value store backed by a goleveldb instance.
type Database struct {
	db *leveldb.DB
}

// New opens (creating if absent) a LevelDB database at path.
func New(path string, cache, handles int) (*Database, error) {
	options := &opt.Options{
		OpenFilesCacheCapacity: handles,
		BlockCacheCapacity:     cache / 2 * opt.MiB,
		WriteBuffer:            cache / 4 * opt.MiB,
	}
	db, err := leveldb.OpenFile(path, options)
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, err
	}
	return &Database{db: db}, nil
}

// NewMemStorage opens an ephemeral LevelDB instance backed by an in-memory
// storage layer, used by tests that want LevelDB's exact semantics without
// touching disk.
func NewMemStorage() (*Database, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &Database{db: db}, nil
}

func (d *Database) Has(key []byte) (bool, error) {
	return d.db.Has(key, nil)
}

func (d *Database) Get(key []byte) ([]byte, error) {
	return d.db.Get(key, nil)
}

func (d *Database) Put(key, value []byte) error {
	return d.db.Put(key, value, nil)
}

func (d *Database) Delete(key []byte) error {
	return d.db.Delete(key, nil)
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) NewBatch() store.Batch {
	return &batch{db: d.db, b: new(leveldb.Batch)}
}

func (d *Database) NewIterator(prefix []byte, start []byte) store.Iterator {
	rng := util.BytesPrefix(prefix)
	rng.Start = append(append([]byte{}, prefix...), start...)
	return &iterator{iter: d.db.NewIterator(rng, nil)}
}

type iterator struct {
	iter iteratorLike
}

// iteratorLike is the subset of goleveldb's iterator.Iterator this package
// uses, named locally so the field above stays readable without importing
// the iterator subpackage just for its type name.
type iteratorLike interface {
	Next() bool
	Error() error
	Key() []byte
	Value() []byte
	Release()
}

func (it *iterator) Next() bool    { return it.iter.Next() }
func (it *iterator) Error() error  { return it.iter.Error() }
func (it *iterator) Key() []byte   { return it.iter.Key() }
func (it *iterator) Value() []byte { return it.iter.Value() }
func (it *iterator) Release()      { it.iter.Release() }

type batch struct {
	db   *leveldb.DB
	b    *leveldb.Batch
	size int
}

func (b *batch) Put(key, value []byte) error {
	b.b.Put(key, value)
	b.size += len(key) + len(value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.b.Delete(key)
	b.size += len(key)
	return nil
}

func (b *batch) ValueSize() int { return b.size }

func (b *batch) Write() error {
	return b.db.Write(b.b, nil)
}

func (b *batch) Reset() {
	b.b.Reset()
	b.size = 0
}

func (b *batch) Replay(w store.KeyValueWriter) error {
	r := &replayer{writer: w}
	if err := b.b.Replay(r); err != nil {
		return err
	}
	return r.err
}

type replayer struct {
	writer store.KeyValueWriter
	err    error
}

func (r *replayer) Put(key, value []byte) {
	if r.err != nil {
		return
	}
	r.err = r.writer.Put(key, value)
}

func (r *replayer) Delete(key []byte) {
	if r.err != nil {
		return
	}
	r.err = r.writer.Delete(key)
}
