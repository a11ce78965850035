package tasksvc

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type TaskRepository interface {
	Create(ctx context.Context, task Task) (Task, error)
	FindAll(ctx context.Context, userID uint64, q ListQuery) ([]Task, error)
	Find(ctx context.Context, userID, taskID uint64) (Task, error)
	// Update replaces every mutable field of the task identified by
	// task.ID and task.UserID.
	Update(ctx context.Context, task Task) (Task, error)
	Delete(ctx context.Context, userID, taskID uint64) error
}

// Auth identifies the caller a task operation runs on behalf of.
type Auth struct {
	TokenID string
	UserID  uint64
}

// DefaultLimit is the page size used when a listing does not ask for one.
const DefaultLimit = 10

type ListQuery struct {
	Title      *string
	IsComplete *bool
	SortBy     SortField
	Desc       bool
	Skip       int
	Limit      int
}

func DefaultListQuery() ListQuery {
	return ListQuery{SortBy: SortByID, Limit: DefaultLimit}
}

type SortField string

const (
	SortByID          SortField = "task_id"
	SortByTitle       SortField = "task_title"
	SortByDescription SortField = "task_description"
	SortByIsComplete  SortField = "task_is_complete"
	SortByDate        SortField = "task_date"
	SortByPriority    SortField = "task_priority"
)

var sortColumns = map[SortField]string{
	SortByID:          "id",
	SortByTitle:       "title",
	SortByDescription: "description",
	SortByIsComplete:  "is_complete",
	SortByDate:        "date",
	SortByPriority:    "priority",
}

// ParseSortField resolves a sort_by value against the sortable attributes.
// An empty value sorts by task_id.
func ParseSortField(s string) (SortField, error) {
	if s == "" {
		return SortByID, nil
	}
	f := SortField(s)
	if _, ok := sortColumns[f]; !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidSortField, s)
	}
	return f, nil
}

// Column returns the storage column backing f.
func (f SortField) Column() string {
	if c, ok := sortColumns[f]; ok {
		return c
	}
	return sortColumns[SortByID]
}

// FieldError reports one rejected attribute of a task payload.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Add records a field failure. It returns e so calls can be chained.
func (e *ValidationError) Add(field, message string) *ValidationError {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
	return e
}

// Err returns nil when no field failed.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrTaskNotFound     = errors.New("task not found")
	ErrInvalidSortField = errors.New("invalid sort field")
	ErrValidation       = errors.New("validation failed")
)
