package userservice

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics"
	"github.com/ichigozero/todokit/usersvc"
)

type Middleware func(Service) Service

func LoggingMiddleware(logger log.Logger) Middleware {
	return func(next Service) Service {
		return loggingMiddleware{logger, next}
	}
}

type loggingMiddleware struct {
	logger log.Logger
	next   Service
}

func (mw loggingMiddleware) UserID(ctx context.Context, username, password string) (id uint64, err error) {
	defer func() {
		mw.logger.Log("method", "UserID", "username", username, "id", id, "err", err)
	}()
	return mw.next.UserID(ctx, username, password)
}

func (mw loggingMiddleware) User(ctx context.Context, id uint64) (u usersvc.User, err error) {
	defer func() {
		mw.logger.Log("method", "User", "id", id, "err", err)
	}()
	return mw.next.User(ctx, id)
}

func (mw loggingMiddleware) CreateUser(ctx context.Context, username, password string) (u usersvc.User, err error) {
	defer func() {
		mw.logger.Log("method", "CreateUser", "username", username, "id", u.ID, "err", err)
	}()
	return mw.next.CreateUser(ctx, username, password)
}

func InstrumentingMiddleware(counter metrics.Counter, latency metrics.Histogram) Middleware {
	return func(next Service) Service {
		return instrumentingMiddleware{counter, latency, next}
	}
}

type instrumentingMiddleware struct {
	requestCount   metrics.Counter
	requestLatency metrics.Histogram
	next           Service
}

func (mw instrumentingMiddleware) UserID(ctx context.Context, username, password string) (id uint64, err error) {
	defer func(begin time.Time) {
		mw.requestCount.With("method", "user_id").Add(1)
		mw.requestLatency.With("method", "user_id").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.UserID(ctx, username, password)
}

func (mw instrumentingMiddleware) User(ctx context.Context, id uint64) (u usersvc.User, err error) {
	defer func(begin time.Time) {
		mw.requestCount.With("method", "user").Add(1)
		mw.requestLatency.With("method", "user").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.User(ctx, id)
}

func (mw instrumentingMiddleware) CreateUser(ctx context.Context, username, password string) (u usersvc.User, err error) {
	defer func(begin time.Time) {
		mw.requestCount.With("method", "create_user").Add(1)
		mw.requestLatency.With("method", "create_user").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.CreateUser(ctx, username, password)
}
