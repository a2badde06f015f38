package leveldb

import (
	"testing"

	"github.com/dunitrust/dunitrust/store"
	"github.com/dunitrust/dunitrust/store/dbtest"
)

func TestLevelDB(t *testing.T) {
	t.Run("DatabaseSuite", func(t *testing.T) {
		dbtest.TestDatabaseSuite(t, func() store.Database {
			db, err := NewMemStorage()
			if err != nil {
				t.Fatal(err)
			}
			return db
		})
	})
}
