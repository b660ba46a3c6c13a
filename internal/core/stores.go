package core

import (
	"time"

	"github.com/valter-silva-au/aipm/pkg/models"
)

// TaskSaver persists the full task list.
// This interface is defined locally in core to avoid importing storage.
type TaskSaver interface {
	SaveTasks(tasks []models.Task) error
}

// UndoRecorder keeps the single-step undo snapshot.
// This interface is defined locally in core to avoid importing storage.
type UndoRecorder interface {
	Snapshot(tasks []models.Task) error
}

// EventLogger is the subset of the observability activity log that core
// needs. Defining it here avoids importing the observability package.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// JobSink accepts follow-up jobs, such as the edits a bulk update fans out.
type JobSink interface {
	Enqueue(job Job)
}

// TaskStore loads and saves the full task list.
type TaskStore interface {
	TaskSaver
	LoadTasks() ([]models.Task, error)
}

// UndoStore records and restores the single-step undo snapshot.
type UndoStore interface {
	UndoRecorder
	Restore() ([]models.Task, time.Time, error)
}
