// Package databasetest provides migrated in-memory databases for tests.
package databasetest

import (
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/todokit/database"
	"github.com/stretchr/testify/require"
	"github.com/twinj/uuid"
	libgorm "gorm.io/gorm"
)

// Open returns a private in-memory sqlite database that is closed when the
// test ends.
func Open(t testing.TB) *libgorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewV4().String() + "?mode=memory&cache=shared"
	db, err := database.Open("", dsn, log.NewNopLogger())
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}
