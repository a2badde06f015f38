// Package memorydb implements store.Database as a volatile in-process map,
// used by tests and by short-lived tooling that doesn't need durability.
package memorydb

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/dunitrust/dunitrust/store"
)

// ErrMemorydbClosed is returned by any operation performed on a closed
// Database.
var ErrMemorydbClosed = errors.New("memorydb: database closed")

// ErrKeyNotFound is returned when a key is looked up but does not exist.
var ErrKeyNotFound = errors.New("memorydb: key not found")

// Database is an ephemeral key-value store backed by a Go map.
type Database struct {
	mu sync.RWMutex
	db map[string][]byte
}

// New returns a new empty in-memory database.
func New() *Database {
	return &Database{db: make(map[string][]byte)}
}

func (d *Database) Has(key []byte) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.db == nil {
		return false, ErrMemorydbClosed
	}
	_, ok := d.db[string(key)]
	return ok, nil
}

func (d *Database) Get(key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.db == nil {
		return nil, ErrMemorydbClosed
	}
	if v, ok := d.db[string(key)]; ok {
		cp := make([]byte, len(v))
		copy(cp, v)
		return cp, nil
	}
	return nil, ErrKeyNotFound
}

func (d *Database) Put(key, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db == nil {
		return ErrMemorydbClosed
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	d.db[string(key)] = cp
	return nil
}

func (d *Database) Delete(key []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db == nil {
		return ErrMemorydbClosed
	}
	delete(d.db, string(key))
	return nil
}

func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.db = nil
	return nil
}

func (d *Database) NewBatch() store.Batch {
	return &batch{db: d}
}

func (d *Database) NewIterator(prefix []byte, start []byte) store.Iterator {
	d.mu.RLock()
	defer d.mu.RUnlock()

	lowerBound := string(prefix) + string(start)
	var keys []string
	for k := range d.db {
		if !strings.HasPrefix(k, string(prefix)) {
			continue
		}
		if k < lowerBound {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = d.db[k]
	}
	return &iterator{keys: keys, values: values, pos: -1}
}

type iterator struct {
	keys   []string
	values [][]byte
	pos    int
}

func (it *iterator) Next() bool {
	it.pos++
	return it.pos < len(it.keys)
}

func (it *iterator) Error() error { return nil }

func (it *iterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return nil
	}
	return []byte(it.keys[it.pos])
}

func (it *iterator) Value() []byte {
	if it.pos < 0 || it.pos >= len(it.values) {
		return nil
	}
	return it.values[it.pos]
}

func (it *iterator) Release() {}

type keyvalue struct {
	key    []byte
	value  []byte
	delete bool
}

type batch struct {
	db     *Database
	writes []keyvalue
	size   int
}

func (b *batch) Put(key, value []byte) error {
	b.writes = append(b.writes, keyvalue{append([]byte{}, key...), append([]byte{}, value...), false})
	b.size += len(key) + len(value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.writes = append(b.writes, keyvalue{append([]byte{}, key...), nil, true})
	b.size += len(key)
	return nil
}

func (b *batch) ValueSize() int { return b.size }

func (b *batch) Write() error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	if b.db.db == nil {
		return ErrMemorydbClosed
	}
	for _, kv := range b.writes {
		if kv.delete {
			delete(b.db.db, string(kv.key))
			continue
		}
		b.db.db[string(kv.key)] = kv.value
	}
	return nil
}

func (b *batch) Reset() {
	b.writes = b.writes[:0]
	b.size = 0
}

func (b *batch) Replay(w store.KeyValueWriter) error {
	for _, kv := range b.writes {
		var err error
		if kv.delete {
			err = w.Delete(kv.key)
		} else {
			err = w.Put(kv.key, kv.value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
