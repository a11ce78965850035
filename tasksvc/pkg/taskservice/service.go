package taskservice

import (
	"context"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/todokit/tasksvc"
)

type Service interface {
	CreateTask(ctx context.Context, a tasksvc.Auth, in tasksvc.TaskInput) (tasksvc.Task, error)
	Tasks(ctx context.Context, a tasksvc.Auth, q tasksvc.ListQuery) ([]tasksvc.Task, error)
	Task(ctx context.Context, a tasksvc.Auth, taskID uint64) (tasksvc.Task, error)
	UpdateTask(ctx context.Context, a tasksvc.Auth, taskID uint64, in tasksvc.TaskInput) (tasksvc.Task, error)
	DeleteTask(ctx context.Context, a tasksvc.Auth, taskID uint64) error
}

func New(t tasksvc.TaskRepository, logger log.Logger) Service {
	var svc Service
	{
		svc = NewBasicService(t)
		svc = LoggingMiddleware(logger)(svc)
	}
	return svc
}

type basicService struct {
	tasks tasksvc.TaskRepository
}

func NewBasicService(t tasksvc.TaskRepository) Service {
	return basicService{tasks: t}
}

// CreateTask stores a new task owned by the caller. New tasks always start
// incomplete.
func (s basicService) CreateTask(ctx context.Context, a tasksvc.Auth, in tasksvc.TaskInput) (tasksvc.Task, error) {
	if a.UserID == 0 {
		return tasksvc.Task{}, tasksvc.ErrInvalidArgument
	}
	if err := check(in); err != nil {
		return tasksvc.Task{}, err
	}

	task := fromInput(in)
	task.IsComplete = false
	task.UserID = a.UserID

	return s.tasks.Create(ctx, task)
}

func (s basicService) Tasks(ctx context.Context, a tasksvc.Auth, q tasksvc.ListQuery) ([]tasksvc.Task, error) {
	if a.UserID == 0 || q.Skip < 0 || q.Limit < 0 {
		return nil, tasksvc.ErrInvalidArgument
	}
	if q.SortBy == "" {
		q.SortBy = tasksvc.SortByID
	}
	if _, err := tasksvc.ParseSortField(string(q.SortBy)); err != nil {
		return nil, err
	}

	return s.tasks.FindAll(ctx, a.UserID, q)
}

func (s basicService) Task(ctx context.Context, a tasksvc.Auth, taskID uint64) (tasksvc.Task, error) {
	if a.UserID == 0 {
		return tasksvc.Task{}, tasksvc.ErrInvalidArgument
	}
	if taskID == 0 {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}
	return s.tasks.Find(ctx, a.UserID, taskID)
}

// UpdateTask replaces every attribute of the task. Ownership stays with the
// caller.
func (s basicService) UpdateTask(ctx context.Context, a tasksvc.Auth, taskID uint64, in tasksvc.TaskInput) (tasksvc.Task, error) {
	if a.UserID == 0 {
		return tasksvc.Task{}, tasksvc.ErrInvalidArgument
	}
	if taskID == 0 {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}
	if err := check(in); err != nil {
		return tasksvc.Task{}, err
	}

	task := fromInput(in)
	task.ID = taskID
	task.UserID = a.UserID

	return s.tasks.Update(ctx, task)
}

func (s basicService) DeleteTask(ctx context.Context, a tasksvc.Auth, taskID uint64) error {
	if a.UserID == 0 {
		return tasksvc.ErrInvalidArgument
	}
	if taskID == 0 {
		return tasksvc.ErrTaskNotFound
	}
	return s.tasks.Delete(ctx, a.UserID, taskID)
}

// check enforces the storage limits on input that did not come through the
// schema validator.
func check(in tasksvc.TaskInput) error {
	verr := new(tasksvc.ValidationError)

	if n := len([]rune(in.Title)); n < 1 || n > 30 {
		verr.Add("task_title", "length must be between 1 and 30")
	}
	if in.Description != nil && len([]rune(*in.Description)) > 50 {
		verr.Add("task_description", "length must be <= 50")
	}
	if !in.Priority.Valid() {
		verr.Add("task_priority", "must be one of 1, 2, 3")
	}

	return verr.Err()
}

func fromInput(in tasksvc.TaskInput) tasksvc.Task {
	return tasksvc.Task{
		Title:       in.Title,
		Description: in.Description,
		IsComplete:  in.IsComplete,
		Date:        in.Date,
		Priority:    in.Priority,
	}
}
