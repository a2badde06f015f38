package memorydb

import (
	"testing"

	"github.com/dunitrust/dunitrust/store"
	"github.com/dunitrust/dunitrust/store/dbtest"
)

func TestMemoryDB(t *testing.T) {
	t.Run("DatabaseSuite", func(t *testing.T) {
		dbtest.TestDatabaseSuite(t, func() store.Database {
			return New()
		})
	})
}
