// Package database opens the persistence context shared by the repositories.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/todokit/tasksvc"
	"github.com/ichigozero/todokit/usersvc"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	libgorm "gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to postgres when databaseURL is set and to the sqlite file
// at databasePath otherwise, then migrates the schema.
func Open(databaseURL, databasePath string, logger log.Logger) (*libgorm.DB, error) {
	var dialector libgorm.Dialector
	if databaseURL != "" {
		dialector = postgres.Open(databaseURL)
	} else {
		dialector = sqlite.Open(databasePath)
	}

	db, err := libgorm.Open(dialector, &libgorm.Config{
		Logger: NewLogger(log.With(logger, "component", "gorm")),
	})
	if err != nil {
		return nil, err
	}

	if databaseURL == "" {
		// sqlite allows a single writer.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, Migrate(db)
}

func Migrate(db *libgorm.DB) error {
	return db.AutoMigrate(&usersvc.User{}, &tasksvc.Task{})
}

// SlowThreshold is the query duration above which statements are logged
// as slow.
const SlowThreshold = 200 * time.Millisecond

type logger struct {
	logger log.Logger
	level  gormlogger.LogLevel
}

// NewLogger adapts a go-kit logger to gorm. Only warnings and errors are
// logged until LogMode raises the level.
func NewLogger(l log.Logger) gormlogger.Interface {
	return &logger{logger: l, level: gormlogger.Warn}
}

func (l *logger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.level = level
	return &next
}

func (l *logger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.logger.Log("level", "info", "msg", fmt.Sprintf(msg, args...))
	}
}

func (l *logger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.logger.Log("level", "warn", "msg", fmt.Sprintf(msg, args...))
	}
}

func (l *logger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.logger.Log("level", "error", "msg", fmt.Sprintf(msg, args...))
	}
}

func (l *logger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= gormlogger.Error && !errors.Is(err, libgorm.ErrRecordNotFound):
		sql, rows := fc()
		l.logger.Log("level", "error", "sql", sql, "rows", rows, "took", elapsed, "err", err)
	case elapsed > SlowThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.logger.Log("level", "warn", "msg", "slow query", "sql", sql, "rows", rows, "took", elapsed)
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.logger.Log("level", "info", "sql", sql, "rows", rows, "took", elapsed)
	}
}
