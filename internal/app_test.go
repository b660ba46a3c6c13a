package internal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/valter-silva-au/aipm/internal/cli"
	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/internal/storage"
	"github.com/valter-silva-au/aipm/pkg/models"
)

func clearAIEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{core.EnvModel, core.EnvAPIURL, core.EnvTimeoutSecs, core.EnvOpenAIKey, core.EnvAnthropicKey} {
		t.Setenv(env, "")
	}
}

func TestNewApp_Success(t *testing.T) {
	clearAIEnv(t)
	tmpDir := t.TempDir()
	app, err := NewApp(tmpDir)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer func() { _ = app.Close() }()

	if app.TaskMgr == nil || app.Settings == nil || app.AIClient == nil {
		t.Fatal("core services not wired")
	}
	if app.Activity == nil || app.StatsCalc == nil {
		t.Fatal("observability not wired")
	}
	if cli.TaskMgr != app.TaskMgr || cli.Settings != app.Settings || cli.DataDir != tmpDir {
		t.Error("CLI package vars not set")
	}
	if got := app.Settings.Get().Buckets; len(got) != 3 {
		t.Errorf("default buckets = %v", got)
	}
}

func TestNewApp_TasksPersist(t *testing.T) {
	clearAIEnv(t)
	tmpDir := t.TempDir()
	app, err := NewApp(tmpDir)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}

	created, err := app.TaskMgr.Create(core.NewTaskSpec{Title: "Water plants"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := app.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "tasks.json")); err != nil {
		t.Fatalf("tasks.json not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "activity.jsonl")); err != nil {
		t.Errorf("activity.jsonl not written: %v", err)
	}

	reopened, err := NewApp(tmpDir)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	tasks, err := reopened.TaskMgr.List(core.TaskFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != created.ID {
		t.Errorf("tasks = %+v", tasks)
	}
}

func TestNewApp_UndoRoundTrip(t *testing.T) {
	clearAIEnv(t)
	app, err := NewApp(t.TempDir())
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer func() { _ = app.Close() }()

	if _, _, err := app.TaskMgr.Undo(); !errors.Is(err, storage.ErrNothingToUndo) {
		t.Fatalf("Undo on a fresh dir = %v, want ErrNothingToUndo", err)
	}
	if _, err := app.TaskMgr.Create(core.NewTaskSpec{Title: "Water plants"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	n, _, err := app.TaskMgr.Undo()
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if n != 0 {
		t.Errorf("restored %d tasks, want 0", n)
	}
}

func TestNewApp_CorruptSettings(t *testing.T) {
	clearAIEnv(t)
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "settings.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewApp(tmpDir); err == nil {
		t.Fatal("expected an error for unreadable settings")
	}
}

func TestTaskStoreAdapter(t *testing.T) {
	a := &taskStoreAdapter{store: storage.NewTaskStore(t.TempDir())}

	tasks, err := a.LoadTasks()
	if err != nil {
		t.Fatalf("LoadTasks on empty dir: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("expected no tasks, got %d", len(tasks))
	}

	task := models.NewTask("Personal", "Water plants", time.Now())
	if err := a.SaveTasks([]models.Task{task}); err != nil {
		t.Fatalf("SaveTasks: %v", err)
	}
	tasks, err = a.LoadTasks()
	if err != nil {
		t.Fatalf("LoadTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != task.ID || tasks[0].Title != "Water plants" {
		t.Errorf("tasks = %+v", tasks)
	}
}
