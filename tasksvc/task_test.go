package tasksvc

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTask_MarshalJSON(t *testing.T) {
	desc := "two liters"
	due := time.Date(2030, 4, 1, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		task Task
		want string
	}{
		{
			name: "all fields",
			task: Task{ID: 3, Title: "Buy milk", Description: &desc, Date: &due, Priority: PriorityHigh, UserID: 9},
			want: `{"task_id":3,"task_title":"Buy milk","task_description":"two liters","task_is_complete":false,"task_date":"2030-04-01T09:30:00","task_priority":1}`,
		},
		{
			name: "nulls",
			task: Task{ID: 4, Title: "Nap", IsComplete: true, Priority: PriorityLow},
			want: `{"task_id":4,"task_title":"Nap","task_description":null,"task_is_complete":true,"task_date":null,"task_priority":3}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.task)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))
			assert.NotContains(t, string(b), "user")
		})
	}
}

func TestTask_UnmarshalJSON(t *testing.T) {
	var task Task
	err := json.Unmarshal([]byte(`{"task_id":5,"task_title":"Run","task_description":null,"task_is_complete":true,"task_date":"2030-04-01T09:30:00.250000","task_priority":2}`), &task)
	require.NoError(t, err)

	assert.Equal(t, uint64(5), task.ID)
	assert.Equal(t, "Run", task.Title)
	assert.Nil(t, task.Description)
	assert.True(t, task.IsComplete)
	assert.Equal(t, PriorityMedium, task.Priority)
	require.NotNil(t, task.Date)
	assert.True(t, time.Date(2030, 4, 1, 9, 30, 0, 250000000, time.UTC).Equal(*task.Date))

	err = json.Unmarshal([]byte(`{"task_date":"tomorrow"}`), &task)
	assert.ErrorIs(t, err, ErrDateFormat)
}

func TestTaskInput_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(TaskInput{Title: "Nap", Priority: PriorityMedium})
	require.NoError(t, err)
	assert.JSONEq(t, `{"task_title":"Nap","task_description":null,"task_is_complete":false,"task_date":null,"task_priority":2}`, string(b))
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2030-04-01T09:30", time.Date(2030, 4, 1, 9, 30, 0, 0, time.UTC)},
		{"2030-04-01T09:30:15", time.Date(2030, 4, 1, 9, 30, 15, 0, time.UTC)},
		{"2030-04-01 09:30:15", time.Date(2030, 4, 1, 9, 30, 15, 0, time.UTC)},
		{"2030-04-01", time.Date(2030, 4, 1, 0, 0, 0, 0, time.UTC)},
		{"2030-04-01T09:30:15Z", time.Date(2030, 4, 1, 9, 30, 15, 0, time.UTC)},
		{"2030-04-01T09:30:15+09:00", time.Date(2030, 4, 1, 0, 30, 15, 0, time.UTC)},
		{"2030-04-01T09:30+02:00", time.Date(2030, 4, 1, 7, 30, 0, 0, time.UTC)},
		{"2030-04-01T09:30:15.123456789Z", time.Date(2030, 4, 1, 9, 30, 15, 123456000, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	for _, in := range []string{"", "tomorrow", "01/04/2030", "2030-13-01", "2030-04-01T25:00"} {
		_, err := ParseDate(in)
		assert.ErrorIs(t, err, ErrDateFormat, in)
	}
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "2030-04-01T09:30:00", FormatDate(time.Date(2030, 4, 1, 9, 30, 0, 0, time.UTC)))
	assert.Equal(t, "2030-04-01T09:30:00.000500", FormatDate(time.Date(2030, 4, 1, 9, 30, 0, 500000, time.UTC)))
	assert.Equal(t, "2030-04-01T00:30:00", FormatDate(time.Date(2030, 4, 1, 9, 30, 0, 0, time.FixedZone("JST", 9*60*60))))
}

func TestParseSortField(t *testing.T) {
	f, err := ParseSortField("")
	require.NoError(t, err)
	assert.Equal(t, SortByID, f)

	for field, column := range sortColumns {
		got, err := ParseSortField(string(field))
		require.NoError(t, err)
		assert.Equal(t, column, got.Column())
	}

	_, err = ParseSortField("user_id")
	assert.ErrorIs(t, err, ErrInvalidSortField)
	assert.Contains(t, err.Error(), "user_id")
}

func TestPriority(t *testing.T) {
	for name, want := range map[string]Priority{"High": 1, "Medium": 2, "Low": 3} {
		p, ok := PriorityFromName(name)
		assert.True(t, ok)
		assert.Equal(t, want, p)
		assert.Equal(t, name, p.String())
		assert.True(t, p.Valid())
	}

	_, ok := PriorityFromName("low")
	assert.False(t, ok)
	assert.False(t, Priority(0).Valid())
	assert.False(t, Priority(4).Valid())
}

func TestValidationError(t *testing.T) {
	var verr ValidationError
	assert.NoError(t, verr.Err())

	err := verr.Add("task_title", "field required").Add("task_priority", "invalid").Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "task_title: field required; task_priority: invalid", err.Error())
}
