package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/valter-silva-au/aipm/pkg/models"
)

// ErrNothingToUndo is returned by Restore when no snapshot exists.
var ErrNothingToUndo = errors.New("nothing to undo")

// undoFile is the structure of undo.json.
type undoFile struct {
	Version int           `json:"version"`
	SavedAt time.Time     `json:"saved_at"`
	Tasks   []models.Task `json:"tasks"`
}

// UndoStore keeps a single snapshot of the task list taken before the most
// recent change.
type UndoStore interface {
	Snapshot(tasks []models.Task) error
	Restore() ([]models.Task, time.Time, error)
}

type fileUndoStore struct {
	dir string
	now func() time.Time
}

// NewUndoStore creates an UndoStore backed by undo.json in dir.
func NewUndoStore(dir string) UndoStore {
	return &fileUndoStore{dir: dir, now: time.Now}
}

func (s *fileUndoStore) path() string {
	return filepath.Join(s.dir, "undo.json")
}

// Snapshot replaces the stored snapshot with tasks.
func (s *fileUndoStore) Snapshot(tasks []models.Task) error {
	if tasks == nil {
		tasks = []models.Task{}
	}
	data, err := json.MarshalIndent(undoFile{Version: FormatVersion, SavedAt: s.now().UTC(), Tasks: tasks}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding undo snapshot: %w", err)
	}
	if err := WriteFileAtomic(s.path(), data, 0o644); err != nil {
		return fmt.Errorf("saving undo snapshot: %w", err)
	}
	return nil
}

// Restore returns the snapshot and removes it, so undo is single-step.
func (s *fileUndoStore) Restore() ([]models.Task, time.Time, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, time.Time{}, ErrNothingToUndo
		}
		return nil, time.Time{}, fmt.Errorf("reading undo snapshot: %w", err)
	}
	var file undoFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: decoding undo snapshot: %v", ErrInvalidData, err)
	}
	if file.Version != FormatVersion {
		return nil, time.Time{}, fmt.Errorf("%w: unsupported undo version %d", ErrInvalidData, file.Version)
	}
	if err := os.Remove(s.path()); err != nil && !os.IsNotExist(err) {
		return nil, time.Time{}, fmt.Errorf("clearing undo snapshot: %w", err)
	}
	if file.Tasks == nil {
		file.Tasks = []models.Task{}
	}
	return file.Tasks, file.SavedAt, nil
}
