package gorm

import (
	"context"
	"testing"
	"time"

	"github.com/ichigozero/todokit/database/databasetest"
	"github.com/ichigozero/todokit/tasksvc"
	"github.com/ichigozero/todokit/usersvc"
	usergorm "github.com/ichigozero/todokit/usersvc/db/gorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	tasks      tasksvc.TaskRepository
	alice, bob usersvc.User
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := databasetest.Open(t)
	users := usergorm.NewUserRepository(db)

	alice, err := users.Create(context.Background(), "alice", "x")
	require.NoError(t, err)
	bob, err := users.Create(context.Background(), "bob", "x")
	require.NoError(t, err)

	return fixture{tasks: NewTaskRepository(db), alice: alice, bob: bob}
}

func str(s string) *string { return &s }

func (f fixture) create(t *testing.T, owner uint64, title string, p tasksvc.Priority, complete bool) tasksvc.Task {
	t.Helper()
	task, err := f.tasks.Create(context.Background(), tasksvc.Task{
		Title:      title,
		Priority:   p,
		IsComplete: complete,
		UserID:     owner,
	})
	require.NoError(t, err)
	return task
}

func titles(tasks []tasksvc.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}

func TestTaskRepository_CreateFind(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	due := time.Date(2031, 5, 6, 7, 8, 9, 123456789, time.FixedZone("JST", 9*60*60))
	created, err := f.tasks.Create(ctx, tasksvc.Task{
		Title:       "Write report",
		Description: str("quarterly"),
		Date:        &due,
		Priority:    tasksvc.PriorityHigh,
		UserID:      f.alice.ID,
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	found, err := f.tasks.Find(ctx, f.alice.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write report", found.Title)
	assert.Equal(t, "quarterly", *found.Description)
	assert.Equal(t, tasksvc.PriorityHigh, found.Priority)
	require.NotNil(t, found.Date)
	assert.True(t, time.Date(2031, 5, 5, 22, 8, 9, 123456000, time.UTC).Equal(*found.Date))

	_, err = f.tasks.Find(ctx, f.bob.ID, created.ID)
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)

	_, err = f.tasks.Find(ctx, f.alice.ID, created.ID+100)
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)
}

func TestTaskRepository_FindAllScopedToOwner(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.create(t, f.alice.ID, "a1", tasksvc.PriorityLow, false)
	f.create(t, f.bob.ID, "b1", tasksvc.PriorityLow, false)
	f.create(t, f.alice.ID, "a2", tasksvc.PriorityLow, true)

	tasks, err := f.tasks.FindAll(ctx, f.alice.ID, tasksvc.DefaultListQuery())
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, titles(tasks))
	for _, task := range tasks {
		assert.Equal(t, f.alice.ID, task.UserID)
	}
}

func TestTaskRepository_FindAllFilters(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.create(t, f.alice.ID, "Buy milk", tasksvc.PriorityLow, false)
	f.create(t, f.alice.ID, "buy BREAD", tasksvc.PriorityMedium, true)
	f.create(t, f.alice.ID, "Call mom", tasksvc.PriorityHigh, false)
	f.create(t, f.alice.ID, "100% done", tasksvc.PriorityHigh, false)
	f.create(t, f.bob.ID, "buy car", tasksvc.PriorityHigh, false)

	complete, incomplete := true, false

	tests := []struct {
		name  string
		query func(q *tasksvc.ListQuery)
		want  []string
	}{
		{
			name:  "title is case-insensitive substring",
			query: func(q *tasksvc.ListQuery) { q.Title = str("BUY") },
			want:  []string{"Buy milk", "buy BREAD"},
		},
		{
			name:  "wildcards are literal",
			query: func(q *tasksvc.ListQuery) { q.Title = str("%") },
			want:  []string{"100% done"},
		},
		{
			name:  "complete",
			query: func(q *tasksvc.ListQuery) { q.IsComplete = &complete },
			want:  []string{"buy BREAD"},
		},
		{
			name: "title and incomplete",
			query: func(q *tasksvc.ListQuery) {
				q.Title = str("buy")
				q.IsComplete = &incomplete
			},
			want: []string{"Buy milk"},
		},
		{
			name:  "sort by priority",
			query: func(q *tasksvc.ListQuery) { q.SortBy = tasksvc.SortByPriority },
			want:  []string{"Call mom", "100% done", "buy BREAD", "Buy milk"},
		},
		{
			name: "sort by priority descending",
			query: func(q *tasksvc.ListQuery) {
				q.SortBy = tasksvc.SortByPriority
				q.Desc = true
			},
			want: []string{"Buy milk", "buy BREAD", "Call mom", "100% done"},
		},
		{
			name:  "id descending",
			query: func(q *tasksvc.ListQuery) { q.Desc = true },
			want:  []string{"100% done", "Call mom", "buy BREAD", "Buy milk"},
		},
		{
			name: "skip and limit",
			query: func(q *tasksvc.ListQuery) {
				q.Skip = 1
				q.Limit = 2
			},
			want: []string{"buy BREAD", "Call mom"},
		},
		{
			name:  "skip past the end",
			query: func(q *tasksvc.ListQuery) { q.Skip = 10 },
			want:  []string{},
		},
		{
			name:  "zero limit",
			query: func(q *tasksvc.ListQuery) { q.Limit = 0 },
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tasksvc.DefaultListQuery()
			tt.query(&q)

			tasks, err := f.tasks.FindAll(ctx, f.alice.ID, q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(tasks))
		})
	}
}

func TestTaskRepository_FindAllFoldsUnicodeTitles(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	task := f.create(t, f.alice.ID, "Ärger mit Öl", tasksvc.PriorityLow, false)
	f.create(t, f.alice.ID, "Arger", tasksvc.PriorityLow, false)

	search := func(title string) []string {
		q := tasksvc.DefaultListQuery()
		q.Title = &title
		tasks, err := f.tasks.FindAll(ctx, f.alice.ID, q)
		require.NoError(t, err)
		return titles(tasks)
	}

	assert.Equal(t, []string{"Ärger mit Öl"}, search("ärger"))
	assert.Equal(t, []string{"Ärger mit Öl"}, search("ÖL"))

	task.Title = "Straße fegen"
	_, err := f.tasks.Update(ctx, task)
	require.NoError(t, err)

	assert.Equal(t, []string{"Straße fegen"}, search("STRAßE"))
	assert.Empty(t, search("öl"))
}

func TestTaskRepository_DefaultLimit(t *testing.T) {
	f := setup(t)

	for i := 0; i < tasksvc.DefaultLimit+2; i++ {
		f.create(t, f.alice.ID, "task", tasksvc.PriorityLow, false)
	}

	tasks, err := f.tasks.FindAll(context.Background(), f.alice.ID, tasksvc.DefaultListQuery())
	require.NoError(t, err)
	assert.Len(t, tasks, tasksvc.DefaultLimit)
}

func TestTaskRepository_Update(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	due := time.Now().Add(time.Hour)
	task, err := f.tasks.Create(ctx, tasksvc.Task{
		Title:       "before",
		Description: str("old"),
		Date:        &due,
		Priority:    tasksvc.PriorityLow,
		UserID:      f.alice.ID,
	})
	require.NoError(t, err)

	updated, err := f.tasks.Update(ctx, tasksvc.Task{
		ID:         task.ID,
		Title:      "after",
		IsComplete: true,
		Priority:   tasksvc.PriorityHigh,
		UserID:     f.alice.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, task.ID, updated.ID)

	found, err := f.tasks.Find(ctx, f.alice.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", found.Title)
	assert.Nil(t, found.Description)
	assert.Nil(t, found.Date)
	assert.True(t, found.IsComplete)
	assert.Equal(t, tasksvc.PriorityHigh, found.Priority)
	assert.Equal(t, f.alice.ID, found.UserID)
}

func TestTaskRepository_UpdateOtherOwner(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	task := f.create(t, f.alice.ID, "mine", tasksvc.PriorityLow, false)

	_, err := f.tasks.Update(ctx, tasksvc.Task{ID: task.ID, Title: "stolen", Priority: tasksvc.PriorityLow, UserID: f.bob.ID})
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)

	found, err := f.tasks.Find(ctx, f.alice.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "mine", found.Title)
}

func TestTaskRepository_Delete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	task := f.create(t, f.alice.ID, "gone soon", tasksvc.PriorityLow, false)

	assert.ErrorIs(t, f.tasks.Delete(ctx, f.bob.ID, task.ID), tasksvc.ErrTaskNotFound)
	require.NoError(t, f.tasks.Delete(ctx, f.alice.ID, task.ID))
	assert.ErrorIs(t, f.tasks.Delete(ctx, f.alice.ID, task.ID), tasksvc.ErrTaskNotFound)

	_, err := f.tasks.Find(ctx, f.alice.ID, task.ID)
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)
}
