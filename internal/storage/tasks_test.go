package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/valter-silva-au/aipm/pkg/models"
)

func sampleTasks() []models.Task {
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	parent := models.NewTask("Team", "Launch", now)
	child := models.NewTask("Team", "Write copy", now.Add(time.Minute))
	child.ParentID = &parent.ID
	child.Dependencies = []uuid.UUID{parent.ID}
	child.Priority = models.High
	due := civil.Date{Year: 2026, Month: 6, Day: 1}
	child.DueDate = &due
	child.SetProgress(models.Todo, now.Add(2*time.Minute))
	child.SetProgress(models.InProgress, now.Add(3*time.Minute))
	return []models.Task{parent, child}
}

func TestTaskStore_MissingFileIsEmpty(t *testing.T) {
	tasks, err := NewTaskStore(t.TempDir()).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tasks == nil || len(tasks) != 0 {
		t.Errorf("Load = %v, want empty non-nil list", tasks)
	}
}

func TestTaskStore_SaveLoadRoundTrip(t *testing.T) {
	store := NewTaskStore(t.TempDir())
	want := sampleTasks()
	if err := store.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d tasks, want 2", len(got))
	}
	c := got[1]
	if c.ParentID == nil || *c.ParentID != want[0].ID {
		t.Errorf("ParentID = %v", c.ParentID)
	}
	if c.DueDate == nil || *c.DueDate != *want[1].DueDate {
		t.Errorf("DueDate = %v", c.DueDate)
	}
	if c.StartDate == nil || !c.StartDate.Equal(*want[1].StartDate) {
		t.Errorf("StartDate = %v", c.StartDate)
	}
	if !c.UpdatedAt.Equal(want[1].UpdatedAt) || c.Progress != models.InProgress || c.Priority != models.High {
		t.Errorf("task = %+v", c)
	}
	if got[0].Dependencies == nil {
		t.Error("empty dependencies decoded as nil")
	}
}

func TestTaskStore_FileFormat(t *testing.T) {
	dir := t.TempDir()
	store := NewTaskStore(dir)
	if err := store.Save(sampleTasks()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "tasks.json"))
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"version": 1`, `"parent_id": "`, `"due_date": "2026-06-01"`, `"progress": "InProgress"`, `"start_date": "`} {
		if !strings.Contains(s, want) {
			t.Errorf("tasks.json missing %s:\n%s", want, s)
		}
	}
	if !strings.HasSuffix(s, "}\n") {
		t.Error("tasks.json has no trailing newline")
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestTaskStore_InvalidData(t *testing.T) {
	tests := map[string]string{
		"malformed":        `{"version":1,"tasks":[`,
		"wrong version":    `{"version":9,"tasks":[]}`,
		"missing id":       `{"version":1,"tasks":[{"title":"x","progress":"Todo","priority":"Low"}]}`,
		"unknown progress": `{"version":1,"tasks":[{"id":"aaaa1111-0000-4000-8000-000000000001","progress":"Blocked","priority":"Low"}]}`,
		"unknown priority": `{"version":1,"tasks":[{"id":"aaaa1111-0000-4000-8000-000000000001","progress":"Todo","priority":"P0"}]}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "tasks.json"), []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := NewTaskStore(dir).Load()
			if !errors.Is(err, ErrInvalidData) {
				t.Errorf("err = %v, want ErrInvalidData", err)
			}
		})
	}
}

func TestTaskStore_EmptyFileIsEmptyList(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tasks.json"), []byte("  \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tasks, err := NewTaskStore(dir).Load()
	if err != nil || len(tasks) != 0 {
		t.Errorf("Load = %v, %v", tasks, err)
	}
}
