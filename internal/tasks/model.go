package tasks

import (
	"bytes"
	"encoding/json"
	"strings"
)

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// DateLayout is the calendar-day format of CreatedDate.
const DateLayout = "2006-01-02"

type Task struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      bool     `json:"status"`
	Priority    Priority `json:"priority"`
	CreatedDate string   `json:"created_date"`
	DueDate     string   `json:"due_date"`
}

// NewTask carries the caller-controlled fields of a create.
type NewTask struct {
	Title       string
	Description string
	Priority    Priority
	DueDate     string
}

// normalize trims and validates a create in the order the API reports it.
func (n NewTask) normalize() (NewTask, error) {
	n.Title = strings.TrimSpace(n.Title)
	if n.Title == "" {
		return NewTask{}, ErrTitleRequired
	}
	if !n.Priority.Valid() {
		return NewTask{}, ErrInvalidPriority
	}
	n.Description = strings.TrimSpace(n.Description)
	return n, nil
}

// Optional tracks whether a JSON field was present at all. A present null
// leaves Value at its zero value; a value that fails to decode leaves the
// field unset.
type Optional[T any] struct {
	Set   bool
	Value T
}

func Some[T any](v T) Optional[T] { return Optional[T]{Set: true, Value: v} }

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	var v T
	if !bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
	}
	o.Set, o.Value = true, v
	return nil
}

// Flag is a status value coerced from any JSON value by truthiness.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Flag(truthy(v))
	return nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	return true
}

// Patch is a partial update. Fields left unset keep their stored value.
type Patch struct {
	Title       Optional[string]   `json:"title"`
	Description Optional[string]   `json:"description"`
	Priority    Optional[Priority] `json:"priority"`
	DueDate     Optional[string]   `json:"due_date"`
	Status      Optional[Flag]     `json:"status"`
}

// Apply merges p onto t and validates the result. ID and CreatedDate are
// never touched.
func (p Patch) Apply(t Task) (Task, error) {
	if p.Title.Set {
		t.Title = p.Title.Value
	}
	t.Title = strings.TrimSpace(t.Title)
	if p.Description.Set {
		t.Description = p.Description.Value
	}
	if p.Priority.Set {
		t.Priority = p.Priority.Value
	}
	if p.DueDate.Set {
		t.DueDate = p.DueDate.Value
	}
	if p.Status.Set {
		t.Status = bool(p.Status.Value)
	}

	if t.Title == "" {
		return Task{}, ErrTitleEmpty
	}
	if !t.Priority.Valid() {
		return Task{}, ErrInvalidPriority
	}
	return t, nil
}
