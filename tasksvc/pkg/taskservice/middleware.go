package taskservice

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics"
	"github.com/ichigozero/todokit/tasksvc"
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

func (mw loggingMiddleware) CreateTask(ctx context.Context, a tasksvc.Auth, in tasksvc.TaskInput) (t tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "CreateTask",
			"access_uuid", a.TokenID,
			"user_id", a.UserID,
			"task_id", t.ID,
			"title", in.Title,
			"priority", in.Priority,
			"err", err,
		)
	}()
	return mw.next.CreateTask(ctx, a, in)
}

func (mw loggingMiddleware) Tasks(ctx context.Context, a tasksvc.Auth, q tasksvc.ListQuery) (t []tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "Tasks",
			"access_uuid", a.TokenID,
			"user_id", a.UserID,
			"sort_by", q.SortBy,
			"desc", q.Desc,
			"skip", q.Skip,
			"limit", q.Limit,
			"count", len(t),
			"err", err,
		)
	}()
	return mw.next.Tasks(ctx, a, q)
}

func (mw loggingMiddleware) Task(ctx context.Context, a tasksvc.Auth, taskID uint64) (t tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "Task",
			"access_uuid", a.TokenID,
			"user_id", a.UserID,
			"task_id", taskID,
			"err", err,
		)
	}()
	return mw.next.Task(ctx, a, taskID)
}

func (mw loggingMiddleware) UpdateTask(ctx context.Context, a tasksvc.Auth, taskID uint64, in tasksvc.TaskInput) (t tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "UpdateTask",
			"access_uuid", a.TokenID,
			"user_id", a.UserID,
			"task_id", taskID,
			"title", in.Title,
			"is_complete", in.IsComplete,
			"priority", in.Priority,
			"err", err,
		)
	}()
	return mw.next.UpdateTask(ctx, a, taskID, in)
}

func (mw loggingMiddleware) DeleteTask(ctx context.Context, a tasksvc.Auth, taskID uint64) (err error) {
	defer func() {
		mw.logger.Log(
			"method", "DeleteTask",
			"access_uuid", a.TokenID,
			"user_id", a.UserID,
			"task_id", taskID,
			"err", err,
		)
	}()
	return mw.next.DeleteTask(ctx, a, taskID)
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

func (mw instrumentingMiddleware) observe(method string, begin time.Time) {
	mw.requestCount.With("method", method).Add(1)
	mw.requestLatency.With("method", method).Observe(time.Since(begin).Seconds())
}

func (mw instrumentingMiddleware) CreateTask(ctx context.Context, a tasksvc.Auth, in tasksvc.TaskInput) (tasksvc.Task, error) {
	defer mw.observe("create_task", time.Now())
	return mw.next.CreateTask(ctx, a, in)
}

func (mw instrumentingMiddleware) Tasks(ctx context.Context, a tasksvc.Auth, q tasksvc.ListQuery) ([]tasksvc.Task, error) {
	defer mw.observe("tasks", time.Now())
	return mw.next.Tasks(ctx, a, q)
}

func (mw instrumentingMiddleware) Task(ctx context.Context, a tasksvc.Auth, taskID uint64) (tasksvc.Task, error) {
	defer mw.observe("task", time.Now())
	return mw.next.Task(ctx, a, taskID)
}

func (mw instrumentingMiddleware) UpdateTask(ctx context.Context, a tasksvc.Auth, taskID uint64, in tasksvc.TaskInput) (tasksvc.Task, error) {
	defer mw.observe("update_task", time.Now())
	return mw.next.UpdateTask(ctx, a, taskID, in)
}

func (mw instrumentingMiddleware) DeleteTask(ctx context.Context, a tasksvc.Auth, taskID uint64) error {
	defer mw.observe("delete_task", time.Now())
	return mw.next.DeleteTask(ctx, a, taskID)
}
