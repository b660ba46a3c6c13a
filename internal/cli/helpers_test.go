package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/internal/observability"
	"github.com/valter-silva-au/aipm/internal/storage"
	"github.com/valter-silva-au/aipm/pkg/models"
)

// memStore keeps the task list and the undo snapshot in memory.
type memStore struct {
	mu      sync.Mutex
	tasks   []models.Task
	undo    []models.Task
	undoAt  time.Time
	hasUndo bool
	saves   int
	saveErr error
}

func (s *memStore) LoadTasks() ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneTasks(s.tasks), nil
}

func (s *memStore) SaveTasks(tasks []models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.tasks = models.CloneTasks(tasks)
	return nil
}

func (s *memStore) Snapshot(tasks []models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.undo = models.CloneTasks(tasks)
	s.undoAt = time.Now()
	s.hasUndo = true
	return nil
}

func (s *memStore) Restore() ([]models.Task, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasUndo {
		return nil, time.Time{}, storage.ErrNothingToUndo
	}
	s.hasUndo = false
	return models.CloneTasks(s.undo), s.undoAt, nil
}

func (s *memStore) snapshot() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneTasks(s.tasks)
}

// offlineClient behaves like an LLM client without an API key.
type offlineClient struct{}

func (offlineClient) Complete(context.Context, []core.Message) (string, error) {
	return "", core.ErrNotConfigured
}

// setupCLI points the package-level services at a fresh in-memory store and
// a settings file under a temp dir, with AI turned off.
func setupCLI(t *testing.T) *memStore {
	t.Helper()
	for _, env := range []string{core.EnvModel, core.EnvAPIURL, core.EnvTimeoutSecs, core.EnvOpenAIKey, core.EnvAnthropicKey} {
		t.Setenv(env, "")
	}

	dir := t.TempDir()
	live, err := core.NewLiveSettings(core.NewSettingsManager(dir))
	if err != nil {
		t.Fatalf("NewLiveSettings: %v", err)
	}
	if err := live.Update(func(s *models.Settings) error {
		s.AIEnabled = false
		return nil
	}); err != nil {
		t.Fatalf("disabling AI: %v", err)
	}

	activity, err := observability.NewActivityLog(filepath.Join(dir, "activity.jsonl"))
	if err != nil {
		t.Fatalf("NewActivityLog: %v", err)
	}

	store := &memStore{}
	origTaskMgr, origTaskStore, origUndo := TaskMgr, TaskStore, UndoStore
	origSettings, origAI, origActivity, origStats := Settings, AIClient, Activity, StatsCalc
	origOutput := outputFormat
	t.Cleanup(func() {
		TaskMgr, TaskStore, UndoStore = origTaskMgr, origTaskStore, origUndo
		Settings, AIClient, Activity, StatsCalc = origSettings, origAI, origActivity, origStats
		outputFormat = origOutput
		_ = activity.Close()
	})

	Settings = live
	TaskStore = store
	UndoStore = store
	Activity = activity
	StatsCalc = observability.NewStatsCalculator(activity)
	AIClient = offlineClient{}
	TaskMgr = core.NewTaskManager(core.TaskManagerConfig{
		Store:    store,
		Undo:     store,
		Events:   activity,
		Settings: live.Get,
	})
	outputFormat = "text"
	return store
}

// resetFlags puts every flag in the tree back to its default so one test's
// flags do not leak into the next Execute.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// runCLI executes the root command with args and returns what it printed.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// mustRun is runCLI that fails the test on error.
func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("aipm %v: %v\n%s", args, err, out)
	}
	return out
}

// addTask creates a task through the CLI and returns its short id.
func addTask(t *testing.T, store *memStore, args ...string) string {
	t.Helper()
	before := len(store.snapshot())
	mustRun(t, append([]string{"task", "add"}, args...)...)
	tasks := store.snapshot()
	if len(tasks) != before+1 {
		t.Fatalf("task add %v: have %d tasks, want %d", args, len(tasks), before+1)
	}
	return tasks[len(tasks)-1].ShortID()
}
