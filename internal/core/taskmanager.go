package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/valter-silva-au/aipm/pkg/models"
	"go.uber.org/zap"
)

// ErrDerivedProgress is returned when a caller sets the progress of a task
// whose progress is computed from its sub-tasks.
var ErrDerivedProgress = errors.New("progress is derived from sub-tasks")

// TaskFilter narrows List results. Zero values match everything.
type TaskFilter struct {
	Bucket   string
	Progress []models.Progress
	Parent   string
}

// NewTaskSpec describes a task created directly rather than through triage.
type NewTaskSpec struct {
	Title       string
	Bucket      string
	Description string
	Parent      string
	Priority    *models.Priority
	Progress    *models.Progress
	DueDate     *civil.Date
	DependsOn   []string
}

// TaskManager is the persisted-board API used by the CLI and the MCP
// server. Each call loads tasks.json, applies one change and saves, so it
// can run next to an open TUI.
type TaskManager interface {
	List(filter TaskFilter) ([]models.Task, error)
	Get(prefix string) (models.Task, error)
	Create(spec NewTaskSpec) (models.Task, error)
	Edit(prefix string, u Update) (models.Task, error)
	SetProgress(prefix string, p models.Progress) (models.Task, error)
	Delete(prefix string) ([]models.Task, error)
	Undo() (int, time.Time, error)
	Mutate(fn func(b *Board, now time.Time) bool) error
	Ask(ctx context.Context, w *Worker, raw string) ([]string, error)
}

// TaskManagerConfig wires a TaskManager.
type TaskManagerConfig struct {
	Store      TaskStore
	Undo       UndoStore
	Events     EventLogger
	Settings   func() models.Settings
	Configured func() bool
	Logger     *zap.Logger
	Now        func() time.Time
}

type taskManager struct {
	mu         sync.Mutex
	store      TaskStore
	undo       UndoStore
	events     EventLogger
	settings   func() models.Settings
	configured func() bool
	logger     *zap.Logger
	now        func() time.Time
}

// NewTaskManager creates a TaskManager from cfg. Store is required.
func NewTaskManager(cfg TaskManagerConfig) TaskManager {
	tm := &taskManager{
		store:      cfg.Store,
		undo:       cfg.Undo,
		events:     cfg.Events,
		settings:   cfg.Settings,
		configured: cfg.Configured,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
	if tm.settings == nil {
		tm.settings = models.DefaultSettings
	}
	if tm.configured == nil {
		tm.configured = func() bool { return AIConfigured(tm.settings()) }
	}
	if tm.logger == nil {
		tm.logger = zap.NewNop()
	}
	if tm.now == nil {
		tm.now = time.Now
	}
	return tm
}

// savingStore remembers the last save error so callers get an error value
// rather than a toast.
type savingStore struct {
	TaskSaver
	err error
}

func (s *savingStore) SaveTasks(tasks []models.Task) error {
	s.err = s.TaskSaver.SaveTasks(tasks)
	return s.err
}

// open loads and repairs the persisted board. The returned applier saves
// through saver.
func (tm *taskManager) open(jobs JobSink) (*Board, *Applier, *savingStore, error) {
	tasks, err := tm.store.LoadTasks()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading tasks: %w", err)
	}
	b := NewBoard(tasks)
	if b.Repair(tm.now()) {
		tm.logger.Info("repaired task list on load")
	}
	saver := &savingStore{TaskSaver: tm.store}
	var undo UndoRecorder
	if tm.undo != nil {
		undo = tm.undo
	}
	ap := NewApplier(ApplierConfig{
		Board:    b,
		Settings: tm.settings,
		Jobs:     jobs,
		Saver:    saver,
		Undo:     undo,
		Events:   tm.events,
		Logger:   tm.logger,
		Now:      tm.now,
	})
	return b, ap, saver, nil
}

func notFoundError(prefix string) error {
	return fmt.Errorf("%w: %s", ErrTargetNotFound, prefix)
}

func (tm *taskManager) List(filter TaskFilter) ([]models.Task, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	b, _, _, err := tm.open(nil)
	if err != nil {
		return nil, err
	}
	var parent uuid.UUID
	if filter.Parent != "" {
		t := b.Resolve(filter.Parent)
		if t == nil {
			return nil, notFoundError(filter.Parent)
		}
		parent = t.ID
	}

	out := []models.Task{}
	for _, t := range b.Tasks {
		if filter.Bucket != "" && !t.InBucket(filter.Bucket) {
			continue
		}
		if len(filter.Progress) > 0 && !containsProgress(filter.Progress, t.Progress) {
			continue
		}
		if parent != uuid.Nil && (t.ParentID == nil || *t.ParentID != parent) {
			continue
		}
		out = append(out, t.Clone())
	}
	return out, nil
}

func containsProgress(list []models.Progress, p models.Progress) bool {
	for _, q := range list {
		if q == p {
			return true
		}
	}
	return false
}

func (tm *taskManager) Get(prefix string) (models.Task, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	b, _, _, err := tm.open(nil)
	if err != nil {
		return models.Task{}, err
	}
	t := b.Resolve(prefix)
	if t == nil {
		return models.Task{}, notFoundError(prefix)
	}
	return t.Clone(), nil
}

func (tm *taskManager) Create(spec NewTaskSpec) (models.Task, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	title := clip(spec.Title, MaxTitleBytes)
	if title == "" {
		return models.Task{}, errors.New("creating task: title must not be empty")
	}
	b, ap, saver, err := tm.open(nil)
	if err != nil {
		return models.Task{}, err
	}
	s := tm.settings()

	bucket := s.DefaultBucket()
	if spec.Bucket != "" {
		i := s.FindBucket(spec.Bucket)
		if i < 0 {
			return models.Task{}, fmt.Errorf("creating task: unknown bucket %q", spec.Bucket)
		}
		bucket = s.Buckets[i].Name
	}

	var parent uuid.UUID
	if spec.Parent != "" {
		p := b.Resolve(spec.Parent)
		if p == nil {
			return models.Task{}, notFoundError(spec.Parent)
		}
		parent = ap.parentFor(p.ID)
		if spec.Bucket == "" {
			bucket = b.Get(parent).Bucket
		}
	}

	var deps []uuid.UUID
	for _, prefix := range spec.DependsOn {
		d := b.Resolve(prefix)
		if d == nil {
			return models.Task{}, notFoundError(prefix)
		}
		deps = append(deps, d.ID)
	}

	var created models.Task
	ap.Mutate(func(b *Board, now time.Time) bool {
		t := models.NewTask(bucket, title, now)
		t.Description = clip(spec.Description, MaxDescriptionBytes)
		if spec.Priority != nil {
			t.Priority = *spec.Priority
		}
		if spec.Progress != nil {
			t.SetProgress(*spec.Progress, now)
		}
		if spec.DueDate != nil {
			d := *spec.DueDate
			t.DueDate = &d
		}
		if parent != uuid.Nil {
			p := parent
			t.ParentID = &p
		}
		AppendDependencies(&t, deps...)
		created = *b.Add(t)
		return true
	})
	if saver.err != nil {
		return models.Task{}, fmt.Errorf("saving tasks: %w", saver.err)
	}
	ap.Record("task.add", created, nil)
	return b.Get(created.ID).Clone(), nil
}

func (tm *taskManager) Edit(prefix string, u Update) (models.Task, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	b, ap, saver, err := tm.open(nil)
	if err != nil {
		return models.Task{}, err
	}
	t := b.Resolve(prefix)
	if t == nil {
		return models.Task{}, notFoundError(prefix)
	}
	id := t.ID
	if u.Progress != nil && len(b.Children(id)) > 0 {
		return models.Task{}, fmt.Errorf("editing %s: %w", t.ShortID(), ErrDerivedProgress)
	}

	changed := false
	ap.Mutate(func(b *Board, _ time.Time) bool {
		changed = ap.applyUpdate(b.Get(id), u, true, Result{})
		return changed
	})
	if saver.err != nil {
		return models.Task{}, fmt.Errorf("saving tasks: %w", saver.err)
	}
	if changed {
		ap.Record("task.edit", *b.Get(id), nil)
	}
	return b.Get(id).Clone(), nil
}

func (tm *taskManager) SetProgress(prefix string, p models.Progress) (models.Task, error) {
	return tm.Edit(prefix, Update{Progress: &p})
}

func (tm *taskManager) Delete(prefix string) ([]models.Task, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	b, ap, saver, err := tm.open(nil)
	if err != nil {
		return nil, err
	}
	t := b.Resolve(prefix)
	if t == nil {
		return nil, notFoundError(prefix)
	}
	victim := *t

	var removed []models.Task
	ap.Mutate(func(b *Board, now time.Time) bool {
		removed = b.Delete(victim.ID, now)
		return len(removed) > 0
	})
	if saver.err != nil {
		return nil, fmt.Errorf("saving tasks: %w", saver.err)
	}
	ap.Record("task.delete", victim, map[string]any{"removed": len(removed)})
	return removed, nil
}

// Undo restores the snapshot taken before the most recent change and
// returns the number of tasks restored.
func (tm *taskManager) Undo() (int, time.Time, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.undo == nil {
		return 0, time.Time{}, errors.New("undo is not available")
	}
	tasks, savedAt, err := tm.undo.Restore()
	if err != nil {
		return 0, time.Time{}, err
	}
	b := NewBoard(tasks)
	b.Repair(tm.now())
	if err := tm.store.SaveTasks(b.Tasks); err != nil {
		return 0, time.Time{}, fmt.Errorf("saving tasks: %w", err)
	}
	if tm.events != nil {
		if err := tm.events.LogEvent("undo", map[string]any{"tasks": len(b.Tasks)}); err != nil {
			tm.logger.Warn("logging activity", zap.Error(err))
		}
	}
	return len(b.Tasks), savedAt, nil
}

// Mutate applies fn to the persisted board, snapshotting undo and saving
// when fn reports a change.
func (tm *taskManager) Mutate(fn func(b *Board, now time.Time) bool) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	_, ap, saver, err := tm.open(nil)
	if err != nil {
		return err
	}
	ap.Mutate(fn)
	if saver.err != nil {
		return fmt.Errorf("saving tasks: %w", saver.err)
	}
	return nil
}

// Ask runs one line of input through the router, waits for the worker to
// answer it and every edit it fans out, and returns the toasts in order.
// w must already be started.
func (tm *taskManager) Ask(ctx context.Context, w *Worker, raw string) ([]string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	b, ap, saver, err := tm.open(w)
	if err != nil {
		return nil, err
	}
	history := &History{}
	ap.history = history
	router := NewRouter(b, tm.settings, tm.configured, history)
	router.now = tm.now

	var toasts []string
	route := router.Route(raw)
	switch route.Kind {
	case RouteNone, RouteQuit:
		return nil, nil
	case RouteToast:
		return []string{route.Toast}, nil
	case RouteApply:
		toasts = ap.ApplyAll([]Result{route.Result})
	case RouteJob:
		w.Enqueue(route.Job)
		first := true
		for w.Pending() > 0 {
			r, err := w.Next(ctx)
			if err != nil {
				return toasts, fmt.Errorf("waiting for AI: %w", err)
			}
			if first {
				toasts = append(toasts, ap.ApplyAll([]Result{r})...)
				first = false
				continue
			}
			toasts = append(toasts, ap.Apply(r)...)
		}
	}
	if saver.err != nil {
		return toasts, fmt.Errorf("saving tasks: %w", saver.err)
	}
	return trimToasts(toasts), nil
}

func trimToasts(toasts []string) []string {
	out := toasts[:0]
	for _, t := range toasts {
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}
