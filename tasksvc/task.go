package tasksvc

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/ichigozero/todokit/usersvc"
)

// Task is a to-do item owned by exactly one user.
type Task struct {
	ID          uint64        `gorm:"primaryKey"`
	Title       string        `gorm:"size:30;not null"`
	TitleFold   string        `gorm:"size:60;not null;default:''"`
	Description *string       `gorm:"size:50"`
	IsComplete  bool          `gorm:"not null"`
	Date        *time.Time    `gorm:"type:timestamp"`
	Priority    Priority      `gorm:"not null;default:3"`
	UserID      uint64        `gorm:"not null;index"`
	User        *usersvc.User `gorm:"constraint:OnDelete:CASCADE"`
}

type taskJSON struct {
	ID          uint64   `json:"task_id"`
	Title       string   `json:"task_title"`
	Description *string  `json:"task_description"`
	IsComplete  bool     `json:"task_is_complete"`
	Date        *string  `json:"task_date"`
	Priority    Priority `json:"task_priority"`
}

func (t Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(taskJSON{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		IsComplete:  t.IsComplete,
		Date:        formatDatePtr(t.Date),
		Priority:    t.Priority,
	})
}

func (t *Task) UnmarshalJSON(data []byte) error {
	var v taskJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	date, err := parseDatePtr(v.Date)
	if err != nil {
		return err
	}

	*t = Task{
		ID:          v.ID,
		Title:       v.Title,
		Description: v.Description,
		IsComplete:  v.IsComplete,
		Date:        date,
		Priority:    v.Priority,
	}
	return nil
}

// TaskInput holds the caller-controlled attributes of a task once the
// payload has been validated and normalized.
type TaskInput struct {
	Title       string
	Description *string
	IsComplete  bool
	Date        *time.Time
	Priority    Priority
}

// MarshalJSON writes the input in the request payload format. A nil Date is
// sent as an explicit null.
func (in TaskInput) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Title       string   `json:"task_title"`
		Description *string  `json:"task_description"`
		IsComplete  bool     `json:"task_is_complete"`
		Date        *string  `json:"task_date"`
		Priority    Priority `json:"task_priority"`
	}{in.Title, in.Description, in.IsComplete, formatDatePtr(in.Date), in.Priority})
}

// Priority is stored and serialized as its ordinal.
type Priority uint8

const (
	PriorityHigh   Priority = 1
	PriorityMedium Priority = 2
	PriorityLow    Priority = 3
)

var priorityNames = map[string]Priority{
	"High":   PriorityHigh,
	"Medium": PriorityMedium,
	"Low":    PriorityLow,
}

// PriorityFromName maps a level name to its ordinal.
func PriorityFromName(name string) (Priority, bool) {
	p, ok := priorityNames[name]
	return p, ok
}

func (p Priority) Valid() bool {
	return p >= PriorityHigh && p <= PriorityLow
}

func (p Priority) String() string {
	for name, v := range priorityNames {
		if v == p {
			return name
		}
	}
	return "Unknown"
}

// Due dates are kept as zone-less UTC.
const (
	dateLayout     = "2006-01-02T15:04:05"
	dateLayoutFrac = "2006-01-02T15:04:05.000000"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04Z0700",
	dateLayout,
	"2006-01-02T15:04",
	"2006-01-02",
}

var ErrDateFormat = errors.New("unrecognized ISO 8601 date")

// ParseDate accepts ISO 8601 dates and date-times. Input without a zone is
// read as UTC. The result is in UTC, truncated to microseconds.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NormalizeDate(t), nil
		}
	}
	return time.Time{}, ErrDateFormat
}

// NormalizeDate converts t to UTC and drops sub-microsecond precision.
func NormalizeDate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// FormatDate renders t as a zone-less UTC ISO 8601 date-time.
func FormatDate(t time.Time) string {
	t = NormalizeDate(t)
	if t.Nanosecond() == 0 {
		return t.Format(dateLayout)
	}
	return t.Format(dateLayoutFrac)
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatDate(*t)
	return &s
}

func parseDatePtr(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
