// Package taskschema validates and normalizes task payloads.
package taskschema

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ichigozero/todokit/tasksvc"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const taskSchema = `{
	"type": "object",
	"required": ["task_title"],
	"properties": {
		"task_title": {"type": "string", "minLength": 1, "maxLength": 30},
		"task_description": {"type": ["string", "null"], "maxLength": 50},
		"task_is_complete": {"type": "boolean"},
		"task_date": {"type": ["string", "null"]},
		"task_priority": {"enum": [1, 2, 3, "High", "Medium", "Low"]}
	}
}`

const (
	msgDateFormat = "must be in ISO format (e.g. YYYY-MM-DDTHH:MM)"
	msgDateFuture = "must be in the future"
)

// DefaultDueIn is added to the current time when a payload leaves out
// task_date.
const DefaultDueIn = 24 * time.Hour

type Validator struct {
	schema *jsonschema.Schema
	now    func() time.Time
}

type Option func(*Validator)

// WithClock replaces the time source used for due date checks.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

func New(options ...Option) (*Validator, error) {
	schema, err := jsonschema.CompileString("task.json", taskSchema)
	if err != nil {
		return nil, err
	}

	v := &Validator{schema: schema, now: time.Now}
	for _, option := range options {
		option(v)
	}
	return v, nil
}

// Decode validates a task payload and returns its normalized form. Failures
// are reported as *tasksvc.ValidationError.
func (v *Validator) Decode(data []byte) (tasksvc.TaskInput, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return tasksvc.TaskInput{}, new(tasksvc.ValidationError).Add("body", "must be valid JSON")
	}
	if err := dec.Decode(new(interface{})); err != io.EOF {
		return tasksvc.TaskInput{}, new(tasksvc.ValidationError).Add("body", "must be a single JSON value")
	}

	if err := v.schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return tasksvc.TaskInput{}, err
		}
		return tasksvc.TaskInput{}, fieldErrors(ve)
	}

	return v.normalize(doc.(map[string]interface{}))
}

func (v *Validator) normalize(m map[string]interface{}) (tasksvc.TaskInput, error) {
	in := tasksvc.TaskInput{
		Title:    m["task_title"].(string),
		Priority: tasksvc.PriorityLow,
	}

	if d, ok := m["task_description"].(string); ok {
		in.Description = &d
	}
	if c, ok := m["task_is_complete"].(bool); ok {
		in.IsComplete = c
	}

	switch p := m["task_priority"].(type) {
	case json.Number:
		// The enum matched numerically, so 1.0 and 1e0 mean 1.
		if r, ok := new(big.Rat).SetString(p.String()); ok && r.IsInt() {
			in.Priority = tasksvc.Priority(r.Num().Int64())
		}
	case string:
		in.Priority, _ = tasksvc.PriorityFromName(p)
	}

	now := v.now()
	raw, present := m["task_date"]
	switch {
	case !present:
		d := tasksvc.NormalizeDate(now.Add(DefaultDueIn))
		in.Date = &d
	case raw == nil:
	default:
		d, err := tasksvc.ParseDate(raw.(string))
		if err != nil {
			return tasksvc.TaskInput{}, new(tasksvc.ValidationError).Add("task_date", msgDateFormat)
		}
		if !d.After(now) {
			return tasksvc.TaskInput{}, new(tasksvc.ValidationError).Add("task_date", msgDateFuture)
		}
		in.Date = &d
	}

	return in, nil
}

// fieldErrors flattens the leaves of a schema failure, one per field.
func fieldErrors(ve *jsonschema.ValidationError) *tasksvc.ValidationError {
	msgs := map[string]string{}

	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			field, msg := strings.TrimPrefix(e.InstanceLocation, "/"), e.Message
			switch {
			case field == "" && strings.HasSuffix(e.KeywordLocation, "/required"):
				// task_title is the only required property.
				field, msg = "task_title", "field required"
			case field == "":
				field = "body"
			}
			if _, seen := msgs[field]; !seen {
				msgs[field] = msg
			}
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)

	fields := make([]string, 0, len(msgs))
	for f := range msgs {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	verr := new(tasksvc.ValidationError)
	for _, f := range fields {
		verr.Add(f, msgs[f])
	}
	return verr
}
