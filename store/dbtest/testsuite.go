// Package dbtest holds a backend-agnostic conformance suite for
// store.Database, run against every concrete backend (memorydb, leveldb)
// so they stay behaviorally identical.
package dbtest

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dunitrust/dunitrust/store"
)

// TestDatabaseSuite exercises the full store.Database contract against a
// freshly constructed backend instance.
func TestDatabaseSuite(t *testing.T, New func() store.Database) {
	t.Run("PutGetHasDelete", func(t *testing.T) { testPutGetHasDelete(t, New) })
	t.Run("GetMissingKey", func(t *testing.T) { testGetMissingKey(t, New) })
	t.Run("Batch", func(t *testing.T) { testBatch(t, New) })
	t.Run("BatchReplay", func(t *testing.T) { testBatchReplay(t, New) })
	t.Run("IteratorOrderAndPrefix", func(t *testing.T) { testIteratorOrderAndPrefix(t, New) })
	t.Run("IteratorStart", func(t *testing.T) { testIteratorStart(t, New) })
}

func testPutGetHasDelete(t *testing.T, New func() store.Database) {
	db := New()
	defer db.Close()

	has, err := db.Has([]byte("k"))
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, db.Put([]byte("k"), []byte("v1")))
	has, err = db.Has([]byte("k"))
	require.NoError(t, err)
	assert.True(t, has)

	v, err := db.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	require.NoError(t, db.Put([]byte("k"), []byte("v2")))
	v, err = db.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)

	require.NoError(t, db.Delete([]byte("k")))
	has, err = db.Has([]byte("k"))
	require.NoError(t, err)
	assert.False(t, has)
}

func testGetMissingKey(t *testing.T, New func() store.Database) {
	db := New()
	defer db.Close()

	_, err := db.Get([]byte("absent"))
	assert.Error(t, err)
}

func testBatch(t *testing.T, New func() store.Database) {
	db := New()
	defer db.Close()

	b := db.NewBatch()
	require.NoError(t, b.Put([]byte("a"), []byte("1")))
	require.NoError(t, b.Put([]byte("b"), []byte("2")))
	require.NoError(t, b.Delete([]byte("c")))
	assert.Greater(t, b.ValueSize(), 0)

	has, _ := db.Has([]byte("a"))
	assert.False(t, has, "writes must not apply before Write()")

	require.NoError(t, b.Write())

	v, err := db.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	b.Reset()
	assert.Equal(t, 0, b.ValueSize())
}

func testBatchReplay(t *testing.T, New func() store.Database) {
	src := New()
	defer src.Close()
	dst := New()
	defer dst.Close()

	b := src.NewBatch()
	require.NoError(t, b.Put([]byte("x"), []byte("1")))
	require.NoError(t, b.Put([]byte("y"), []byte("2")))
	require.NoError(t, b.Write())

	replay := src.NewBatch()
	require.NoError(t, replay.Put([]byte("x"), []byte("1")))
	require.NoError(t, replay.Put([]byte("y"), []byte("2")))
	require.NoError(t, replay.Replay(dst))

	v, err := dst.Get([]byte("x"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
}

func testIteratorOrderAndPrefix(t *testing.T, New func() store.Database) {
	db := New()
	defer db.Close()

	entries := map[string]string{
		"aa/1": "1",
		"aa/2": "2",
		"ab/1": "3",
		"bb/1": "4",
	}
	for k, v := range entries {
		require.NoError(t, db.Put([]byte(k), []byte(v)))
	}

	it := db.NewIterator([]byte("aa/"), nil)
	defer it.Release()

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Error())

	want := []string{"aa/1", "aa/2"}
	sort.Strings(want)
	assert.Equal(t, want, keys)
}

func testIteratorStart(t *testing.T, New func() store.Database) {
	db := New()
	defer db.Close()

	for _, k := range []string{"k/1", "k/2", "k/3"} {
		require.NoError(t, db.Put([]byte(k), []byte(k)))
	}

	it := db.NewIterator([]byte("k/"), []byte("2"))
	defer it.Release()

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Error())
	assert.Equal(t, []string{"k/2", "k/3"}, keys)
	assert.True(t, bytes.HasPrefix([]byte(keys[0]), []byte("k/")))
}
