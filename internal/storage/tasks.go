package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/valter-silva-au/aipm/pkg/models"
)

// FormatVersion is the on-disk schema version of tasks.json and undo.json.
const FormatVersion = 1

// ErrInvalidData marks a task file that exists but cannot be used.
var ErrInvalidData = errors.New("invalid data")

// TaskFile is the top-level structure of tasks.json.
type TaskFile struct {
	Version int           `json:"version"`
	Tasks   []models.Task `json:"tasks"`
}

// TaskStore persists the task list.
type TaskStore interface {
	Load() ([]models.Task, error)
	Save(tasks []models.Task) error
	Path() string
}

type fileTaskStore struct {
	dir string
}

// NewTaskStore creates a TaskStore backed by tasks.json in dir.
func NewTaskStore(dir string) TaskStore {
	return &fileTaskStore{dir: dir}
}

func (s *fileTaskStore) Path() string {
	return filepath.Join(s.dir, "tasks.json")
}

// Load reads tasks.json. A missing file yields an empty list; a malformed
// one yields an error wrapping ErrInvalidData.
func (s *fileTaskStore) Load() ([]models.Task, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return []models.Task{}, nil
		}
		return nil, fmt.Errorf("reading tasks: %w", err)
	}
	return decodeTasks(data)
}

// Save writes tasks.json atomically.
func (s *fileTaskStore) Save(tasks []models.Task) error {
	data, err := encodeTasks(tasks)
	if err != nil {
		return fmt.Errorf("saving tasks: %w", err)
	}
	if err := WriteFileAtomic(s.Path(), data, 0o644); err != nil {
		return fmt.Errorf("saving tasks: %w", err)
	}
	return nil
}

func encodeTasks(tasks []models.Task) ([]byte, error) {
	if tasks == nil {
		tasks = []models.Task{}
	}
	data, err := json.MarshalIndent(TaskFile{Version: FormatVersion, Tasks: tasks}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding tasks: %w", err)
	}
	return append(data, '\n'), nil
}

func decodeTasks(data []byte) ([]models.Task, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []models.Task{}, nil
	}
	var file TaskFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: decoding tasks: %v", ErrInvalidData, err)
	}
	if file.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported tasks version %d", ErrInvalidData, file.Version)
	}
	for i := range file.Tasks {
		t := &file.Tasks[i]
		if t.ID == uuid.Nil {
			return nil, fmt.Errorf("%w: task %d has no id", ErrInvalidData, i)
		}
		if !t.Progress.IsValid() {
			return nil, fmt.Errorf("%w: task %s has unknown progress %q", ErrInvalidData, t.ShortID(), t.Progress)
		}
		if !t.Priority.IsValid() {
			return nil, fmt.Errorf("%w: task %s has unknown priority %q", ErrInvalidData, t.ShortID(), t.Priority)
		}
		if t.Dependencies == nil {
			t.Dependencies = []uuid.UUID{}
		}
	}
	if file.Tasks == nil {
		file.Tasks = []models.Task{}
	}
	return file.Tasks, nil
}
