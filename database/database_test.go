package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/todokit/tasksvc"
	"github.com/ichigozero/todokit/usersvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	libgorm "gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestOpen_SQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todokit.db")

	db, err := Open("", path, log.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	assert.True(t, db.Migrator().HasTable(&usersvc.User{}))
	assert.True(t, db.Migrator().HasTable(&tasksvc.Task{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)

	// Migrating an existing schema is a no-op.
	assert.NoError(t, Migrate(db))
}

type recorder struct {
	lines [][]interface{}
}

func (r *recorder) Log(keyvals ...interface{}) error {
	r.lines = append(r.lines, keyvals)
	return nil
}

func (r *recorder) value(i int, key string) interface{} {
	kv := r.lines[i]
	for j := 0; j+1 < len(kv); j += 2 {
		if kv[j] == key {
			return kv[j+1]
		}
	}
	return nil
}

func TestLogger_Trace(t *testing.T) {
	sql := func() (string, int64) { return "SELECT 1", 1 }

	t.Run("errors", func(t *testing.T) {
		rec := &recorder{}
		l := NewLogger(rec)

		l.Trace(context.Background(), time.Now(), sql, errors.New("boom"))
		l.Trace(context.Background(), time.Now(), sql, libgorm.ErrRecordNotFound)

		require.Len(t, rec.lines, 1)
		assert.Equal(t, "error", rec.value(0, "level"))
		assert.Equal(t, "SELECT 1", rec.value(0, "sql"))
	})

	t.Run("slow", func(t *testing.T) {
		rec := &recorder{}
		l := NewLogger(rec)

		l.Trace(context.Background(), time.Now().Add(-2*SlowThreshold), sql, nil)
		l.Trace(context.Background(), time.Now(), sql, nil)

		require.Len(t, rec.lines, 1)
		assert.Equal(t, "slow query", rec.value(0, "msg"))
	})

	t.Run("info", func(t *testing.T) {
		rec := &recorder{}
		l := NewLogger(rec).LogMode(gormlogger.Info)

		l.Trace(context.Background(), time.Now(), sql, nil)
		require.Len(t, rec.lines, 1)
		assert.Equal(t, "info", rec.value(0, "level"))
	})

	t.Run("silent", func(t *testing.T) {
		rec := &recorder{}
		l := NewLogger(rec).LogMode(gormlogger.Silent)

		l.Trace(context.Background(), time.Now(), sql, errors.New("boom"))
		l.Error(context.Background(), "boom %d", 1)
		assert.Empty(t, rec.lines)
	})
}
