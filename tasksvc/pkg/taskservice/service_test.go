package taskservice_test

import (
	"context"
	"strings"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/todokit/database/databasetest"
	"github.com/ichigozero/todokit/tasksvc"
	taskgorm "github.com/ichigozero/todokit/tasksvc/db/gorm"
	"github.com/ichigozero/todokit/tasksvc/pkg/taskservice"
	usergorm "github.com/ichigozero/todokit/usersvc/db/gorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (taskservice.Service, tasksvc.Auth, tasksvc.Auth) {
	t.Helper()
	db := databasetest.Open(t)
	users := usergorm.NewUserRepository(db)

	alice, err := users.Create(context.Background(), "alice", "x")
	require.NoError(t, err)
	bob, err := users.Create(context.Background(), "bob", "x")
	require.NoError(t, err)

	svc := taskservice.New(taskgorm.NewTaskRepository(db), log.NewNopLogger())
	return svc, tasksvc.Auth{UserID: alice.ID}, tasksvc.Auth{UserID: bob.ID}
}

func TestService_CreateTask(t *testing.T) {
	svc, alice, _ := newService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, alice, tasksvc.TaskInput{
		Title:      "Buy milk",
		IsComplete: true,
		Priority:   tasksvc.PriorityMedium,
	})
	require.NoError(t, err)
	assert.NotZero(t, task.ID)
	assert.False(t, task.IsComplete)
	assert.Equal(t, alice.UserID, task.UserID)

	found, err := svc.Task(ctx, alice, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", found.Title)
	assert.False(t, found.IsComplete)
}

func TestService_CreateTaskInvalid(t *testing.T) {
	svc, alice, _ := newService(t)
	ctx := context.Background()

	long := strings.Repeat("d", 51)
	tests := []struct {
		name  string
		in    tasksvc.TaskInput
		field string
	}{
		{"empty title", tasksvc.TaskInput{Priority: tasksvc.PriorityLow}, "task_title"},
		{"long title", tasksvc.TaskInput{Title: strings.Repeat("t", 31), Priority: tasksvc.PriorityLow}, "task_title"},
		{"long description", tasksvc.TaskInput{Title: "x", Description: &long, Priority: tasksvc.PriorityLow}, "task_description"},
		{"no priority", tasksvc.TaskInput{Title: "x"}, "task_priority"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateTask(ctx, alice, tt.in)
			require.ErrorIs(t, err, tasksvc.ErrValidation)
			assert.Contains(t, err.Error(), tt.field)
		})
	}

	_, err := svc.CreateTask(ctx, tasksvc.Auth{}, tasksvc.TaskInput{Title: "x", Priority: tasksvc.PriorityLow})
	assert.ErrorIs(t, err, tasksvc.ErrInvalidArgument)
}

func TestService_Tasks(t *testing.T) {
	svc, alice, bob := newService(t)
	ctx := context.Background()

	for _, title := range []string{"one", "two"} {
		_, err := svc.CreateTask(ctx, alice, tasksvc.TaskInput{Title: title, Priority: tasksvc.PriorityLow})
		require.NoError(t, err)
	}

	tasks, err := svc.Tasks(ctx, alice, tasksvc.ListQuery{Limit: tasksvc.DefaultLimit})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	tasks, err = svc.Tasks(ctx, bob, tasksvc.DefaultListQuery())
	require.NoError(t, err)
	assert.Empty(t, tasks)

	_, err = svc.Tasks(ctx, alice, tasksvc.ListQuery{SortBy: "owner", Limit: 1})
	assert.ErrorIs(t, err, tasksvc.ErrInvalidSortField)

	_, err = svc.Tasks(ctx, alice, tasksvc.ListQuery{Skip: -1, Limit: 1})
	assert.ErrorIs(t, err, tasksvc.ErrInvalidArgument)

	_, err = svc.Tasks(ctx, alice, tasksvc.ListQuery{Limit: -1})
	assert.ErrorIs(t, err, tasksvc.ErrInvalidArgument)
}

func TestService_UpdateTask(t *testing.T) {
	svc, alice, bob := newService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, alice, tasksvc.TaskInput{Title: "draft", Priority: tasksvc.PriorityLow})
	require.NoError(t, err)

	updated, err := svc.UpdateTask(ctx, alice, task.ID, tasksvc.TaskInput{Title: "final", IsComplete: true, Priority: tasksvc.PriorityHigh})
	require.NoError(t, err)
	assert.Equal(t, task.ID, updated.ID)
	assert.True(t, updated.IsComplete)

	_, err = svc.UpdateTask(ctx, bob, task.ID, tasksvc.TaskInput{Title: "mine now", Priority: tasksvc.PriorityHigh})
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)

	_, err = svc.UpdateTask(ctx, alice, 0, tasksvc.TaskInput{Title: "x", Priority: tasksvc.PriorityHigh})
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)

	found, err := svc.Task(ctx, alice, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "final", found.Title)
}

func TestService_DeleteTask(t *testing.T) {
	svc, alice, bob := newService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, alice, tasksvc.TaskInput{Title: "temp", Priority: tasksvc.PriorityLow})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteTask(ctx, bob, task.ID), tasksvc.ErrTaskNotFound)
	require.NoError(t, svc.DeleteTask(ctx, alice, task.ID))

	_, err = svc.Task(ctx, alice, task.ID)
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)
	assert.ErrorIs(t, svc.DeleteTask(ctx, alice, task.ID), tasksvc.ErrTaskNotFound)
}
