package models

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// ShortIDLen is the number of hex characters shown for a task id.
const ShortIDLen = 8

// Task is a unit of work on the board. Parent, dependency and selection
// links are ids into the flat task list, never pointers.
type Task struct {
	ID           uuid.UUID   `json:"id" yaml:"id"`
	Bucket       string      `json:"bucket" yaml:"bucket"`
	Title        string      `json:"title" yaml:"title"`
	Description  string      `json:"description" yaml:"description,omitempty"`
	Dependencies []uuid.UUID `json:"dependencies" yaml:"dependencies,omitempty"`
	ParentID     *uuid.UUID  `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	Progress     Progress    `json:"progress" yaml:"progress"`
	Priority     Priority    `json:"priority" yaml:"priority"`
	DueDate      *civil.Date `json:"due_date,omitempty" yaml:"due_date,omitempty"`
	CreatedAt    time.Time   `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" yaml:"updated_at"`
	StartDate    *time.Time  `json:"start_date,omitempty" yaml:"start_date,omitempty"`
}

// NewTask returns a Backlog, Medium-priority task with a fresh random id.
func NewTask(bucket, title string, now time.Time) Task {
	now = now.UTC()
	return Task{
		ID:           uuid.New(),
		Bucket:       strings.TrimSpace(bucket),
		Title:        strings.TrimSpace(title),
		Dependencies: []uuid.UUID{},
		Progress:     Backlog,
		Priority:     Medium,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ShortID renders the first eight lowercase hex characters of the id.
func (t Task) ShortID() string {
	return t.ID.String()[:ShortIDLen]
}

// IsChild reports whether the task has a parent.
func (t Task) IsChild() bool { return t.ParentID != nil }

// InBucket compares bucket names case-insensitively.
func (t Task) InBucket(name string) bool {
	return strings.EqualFold(strings.TrimSpace(t.Bucket), strings.TrimSpace(name))
}

// Touch advances UpdatedAt to now. If now is not after the current value the
// timestamp is nudged forward by a nanosecond so it still strictly advances.
func (t *Task) Touch(now time.Time) {
	now = now.UTC()
	if !now.After(t.UpdatedAt) {
		now = t.UpdatedAt.Add(time.Nanosecond)
	}
	t.UpdatedAt = now
}

// SetProgress moves the task to next. Setting the current lane is a no-op.
// StartDate is initialised on the Todo to InProgress edge and never cleared.
func (t *Task) SetProgress(next Progress, now time.Time) bool {
	if next == t.Progress {
		return false
	}
	if t.Progress == Todo && next == InProgress && t.StartDate == nil {
		start := now.UTC()
		t.StartDate = &start
	}
	t.Progress = next
	t.Touch(now)
	return true
}

// HasDependency reports whether id is already among the task's dependencies.
func (t Task) HasDependency(id uuid.UUID) bool {
	for _, d := range t.Dependencies {
		if d == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	c := t
	c.Dependencies = append([]uuid.UUID{}, t.Dependencies...)
	if t.ParentID != nil {
		p := *t.ParentID
		c.ParentID = &p
	}
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.StartDate != nil {
		s := *t.StartDate
		c.StartDate = &s
	}
	return c
}

// CloneTasks deep-copies a task list.
func CloneTasks(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
