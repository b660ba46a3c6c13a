package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/valter-silva-au/aipm/pkg/models"
	"go.uber.org/zap"
)

// ApplierConfig wires an Applier to its collaborators. Board and Settings
// are required; the rest are optional.
type ApplierConfig struct {
	Board    *Board
	Settings func() models.Settings
	Jobs     JobSink
	Saver    TaskSaver
	Undo     UndoRecorder
	Events   EventLogger
	History  *History
	Logger   *zap.Logger
	Now      func() time.Time
}

// Applier merges worker results into the board. It must only be called
// from the goroutine that owns the board.
type Applier struct {
	board    *Board
	settings func() models.Settings
	jobs     JobSink
	saver    TaskSaver
	undo     UndoRecorder
	events   EventLogger
	history  *History
	logger   *zap.Logger
	now      func() time.Time
}

// NewApplier creates an Applier from cfg.
func NewApplier(cfg ApplierConfig) *Applier {
	a := &Applier{
		board:    cfg.Board,
		settings: cfg.Settings,
		jobs:     cfg.Jobs,
		saver:    cfg.Saver,
		undo:     cfg.Undo,
		events:   cfg.Events,
		history:  cfg.History,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
	if a.settings == nil {
		a.settings = models.DefaultSettings
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Board returns the board the applier mutates.
func (a *Applier) Board() *Board { return a.board }

// Today is the local calendar date used in prompts.
func (a *Applier) Today() civil.Date { return civil.DateOf(a.now()) }

// ApplyAll applies a drained batch of results in order and returns the
// toasts to show. An undo snapshot is taken before the first result that can
// change the board; a batch of failures leaves the undo slot alone.
func (a *Applier) ApplyAll(results []Result) []string {
	var toasts []string
	snapped := false
	for _, r := range results {
		if !snapped && mutates(r) {
			a.snapshotUndo()
			snapped = true
		}
		toasts = append(toasts, a.Apply(r)...)
	}
	return toasts
}

// Apply merges one result. Every outcome, including errors, produces at
// least one toast.
func (a *Applier) Apply(r Result) []string {
	if r.Err != nil {
		return a.applyError(r)
	}
	if r.IsEdit() {
		return a.applyEdit(r)
	}
	if r.Triage == nil {
		return []string{"AI returned no action"}
	}

	var toasts []string
	switch r.Triage.Kind {
	case ActionCreate:
		toasts = a.create(r.Update, r.SubTasks)
	case ActionUpdate:
		toasts = a.update(r.Triage.Target, r.Update, r.SubTasks)
	case ActionDelete:
		toasts = a.delete(r.Triage.Target)
	case ActionDecompose:
		toasts = a.decompose(r.Triage.Target, r.SubTasks)
	case ActionBulkUpdate:
		toasts = a.bulkUpdate(r.Triage.Targets, r.Triage.Instruction)
	default:
		toasts = []string{"AI returned no action"}
	}
	if r.Raw != "" && len(toasts) > 0 {
		a.history.Add(fmt.Sprintf("%q -> %s", r.Raw, toasts[0]))
	}
	return toasts
}

// Mutate runs fn against the board as an explicit user edit. If fn reports
// a change, parents are re-synced and the list is saved.
func (a *Applier) Mutate(fn func(b *Board, now time.Time) bool) []string {
	before := a.board.Snapshot()
	if !fn(a.board, a.now()) {
		return nil
	}
	if a.undo != nil {
		if err := a.undo.Snapshot(before); err != nil {
			a.logger.Warn("recording undo snapshot", zap.Error(err))
		}
	}
	return a.commit()
}

// Record writes an activity event for a user action on t.
func (a *Applier) Record(kind string, t models.Task, data map[string]any) {
	a.logEvent(kind, t, data)
}

// mutates reports whether applying r can change the board.
func mutates(r Result) bool {
	return r.Err == nil || localFallback(r)
}

// localFallback reports whether a failed triage is routed locally instead.
func localFallback(r Result) bool {
	return errors.Is(r.Err, ErrNotConfigured) && r.Kind == JobTriage && strings.TrimSpace(r.Raw) != ""
}

func (a *Applier) applyError(r Result) []string {
	toasts := []string{ErrorText(r.Err)}
	if localFallback(r) {
		local := LocalRoute(r.Raw, a.settings().Buckets)
		toasts = append(toasts, a.create(local.Update, nil)...)
	}
	return toasts
}

func (a *Applier) notFound(prefix string) []string {
	return []string{fmt.Sprintf("AI: task %s not found", prefix)}
}

func (a *Applier) create(u Update, subs []SubSpec) []string {
	if u.Title == nil {
		return []string{"AI returned no title"}
	}
	s := a.settings()
	now := a.now()

	bucket := s.DefaultBucket()
	if u.Bucket != nil {
		bucket = *u.Bucket
	}
	t := models.NewTask(bucket, *u.Title, now)
	if u.Description != nil {
		t.Description = strings.TrimSpace(*u.Description)
	}
	if u.Progress != nil {
		t.Progress = *u.Progress
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.DueDate != nil {
		d := *u.DueDate
		t.DueDate = &d
	}
	AppendDependencies(&t, a.existing(u.Dependencies)...)
	a.board.Add(t)

	n := len(a.insertSubTasks(t.ID, subs))
	a.logEvent("ai.create", t, map[string]any{"sub_tasks": n})

	toast := "AI created: " + t.Title
	if n > 0 {
		toast = fmt.Sprintf("AI created: %s (+%d sub-tasks)", t.Title, n)
	}
	return append([]string{toast}, a.commit()...)
}

func (a *Applier) update(prefix string, u Update, subs []SubSpec) []string {
	t := a.board.ResolveTarget(prefix)
	if t == nil {
		return a.notFound(prefix)
	}
	id := t.ID
	a.applyUpdate(t, u, false, Result{})
	title := a.board.Get(id).Title

	n := len(a.insertSubTasks(a.parentFor(id), subs))
	a.logEvent("ai.update", *a.board.Get(id), map[string]any{"sub_tasks": n})

	toast := "AI updated: " + title
	if n > 0 {
		toast = fmt.Sprintf("AI updated: %s (+%d sub-tasks)", title, n)
	}
	return append([]string{toast}, a.commit()...)
}

func (a *Applier) delete(prefix string) []string {
	t := a.board.ResolveTarget(prefix)
	if t == nil {
		return a.notFound(prefix)
	}
	victim := *t
	removed := a.board.Delete(victim.ID, a.now())
	a.logEvent("ai.delete", victim, map[string]any{"removed": len(removed)})

	toast := "AI deleted: " + victim.Title
	if len(removed) > 1 {
		toast = fmt.Sprintf("AI deleted: %s (+%d sub-tasks)", victim.Title, len(removed)-1)
	}
	return append([]string{toast}, a.commit()...)
}

func (a *Applier) decompose(prefix string, subs []SubSpec) []string {
	parent := uuid.Nil
	switch {
	case prefix != "":
		t := a.board.ResolveTarget(prefix)
		if t == nil {
			return a.notFound(prefix)
		}
		parent = a.parentFor(t.ID)
	case a.board.SelectedTask() != nil:
		parent = a.parentFor(a.board.Selected)
	}

	ids := a.insertSubTasks(parent, subs)
	if len(ids) == 0 {
		return []string{"AI: no sub-tasks created"}
	}
	data := map[string]any{"sub_tasks": len(ids)}
	toast := fmt.Sprintf("AI created %d sub-tasks", len(ids))
	if p := a.board.Get(parent); p != nil {
		a.logEvent("ai.decompose", *p, data)
		toast = fmt.Sprintf("AI created %d sub-tasks under %s", len(ids), p.Title)
	} else {
		a.logEvent("ai.decompose", models.Task{}, data)
	}
	return append([]string{toast}, a.commit()...)
}

func (a *Applier) bulkUpdate(targets []string, instruction string) []string {
	var (
		ids    []uuid.UUID
		toasts []string
	)
	if len(targets) == 1 && targets[0] == AllTargets {
		ids = a.board.TopLevel()
	} else {
		seen := make(map[uuid.UUID]bool)
		for _, p := range targets {
			t := a.board.ResolveTarget(p)
			if t == nil {
				toasts = append(toasts, a.notFound(p)...)
				continue
			}
			if !seen[t.ID] {
				seen[t.ID] = true
				ids = append(ids, t.ID)
			}
		}
	}
	if len(ids) == 0 {
		return append(toasts, "AI: no matching tasks found")
	}
	if a.jobs == nil {
		return append(toasts, "AI: bulk update unavailable")
	}

	s := a.settings()
	today := a.Today()
	for _, id := range ids {
		t := a.board.Get(id)
		a.jobs.Enqueue(NewEditJob(a.board, s, *t, instruction, today))
	}
	return append([]string{fmt.Sprintf("AI updating %d tasks…", len(ids))}, toasts...)
}

func (a *Applier) applyEdit(r Result) []string {
	t := a.board.Get(r.TaskID)
	if t == nil {
		a.logger.Debug("dropping edit for missing task", zap.String("task", ShortID(r.TaskID)))
		return a.notFound(ShortID(r.TaskID))
	}
	changed := a.applyUpdate(t, r.Update, true, r)
	t = a.board.Get(r.TaskID)
	title := t.Title

	n := len(a.insertSubTasks(a.parentFor(r.TaskID), r.SubTasks))
	if !changed && n == 0 {
		return []string{"AI: no changes for " + title}
	}
	a.logEvent("ai.edit", *t, map[string]any{"instruction": r.Instruction, "sub_tasks": n})

	toast := "AI updated: " + title
	if n > 0 {
		toast = fmt.Sprintf("AI updated: %s (+%d sub-tasks)", title, n)
	}
	return append([]string{toast}, a.commit()...)
}

// applyUpdate writes the fields present in u that differ from t. The
// description is only overwritten for edits or when t has none. Locked
// fields from locks are ignored.
func (a *Applier) applyUpdate(t *models.Task, u Update, isEdit bool, locks Result) bool {
	now := a.now()
	changed := false

	if u.Title != nil && *u.Title != "" && *u.Title != t.Title {
		t.Title = *u.Title
		changed = true
	}
	if u.Bucket != nil && !locks.LockBucket && !t.InBucket(*u.Bucket) {
		t.Bucket = *u.Bucket
		changed = true
	}
	if u.Description != nil && (isEdit || t.Description == "") && *u.Description != t.Description {
		t.Description = strings.TrimSpace(*u.Description)
		changed = true
	}
	if u.Progress != nil && t.SetProgress(*u.Progress, now) {
		changed = true
	}
	if u.Priority != nil && !locks.LockPriority && *u.Priority != t.Priority {
		t.Priority = *u.Priority
		changed = true
	}
	if u.DueDate != nil && !locks.LockDueDate && (t.DueDate == nil || *t.DueDate != *u.DueDate) {
		d := *u.DueDate
		t.DueDate = &d
		changed = true
	}
	if len(u.Dependencies) > 0 {
		deps := cleanDependencies(t.ID, a.existing(u.Dependencies))
		if len(deps) > 0 && !sameIDs(deps, t.Dependencies) {
			t.Dependencies = deps
			changed = true
		}
	}
	if changed {
		t.Touch(now)
	}
	return changed
}

// insertSubTasks creates specs under parent in two passes: pass one
// allocates ids, pass two maps depends_on indices onto them.
func (a *Applier) insertSubTasks(parent uuid.UUID, specs []SubSpec) []uuid.UUID {
	if len(specs) == 0 {
		return nil
	}
	s := a.settings()
	now := a.now()

	var parentBucket string
	if p := a.board.Get(parent); p != nil {
		parentBucket = p.Bucket
	} else {
		parent = uuid.Nil
	}

	ids := make([]uuid.UUID, len(specs))
	for i, spec := range specs {
		bucket := s.DefaultBucket()
		switch {
		case spec.Bucket != nil:
			bucket = *spec.Bucket
		case parentBucket != "":
			bucket = parentBucket
		}
		t := models.NewTask(bucket, spec.Title, now)
		t.Description = strings.TrimSpace(spec.Description)
		if spec.Priority != nil {
			t.Priority = *spec.Priority
		}
		if spec.Progress != nil {
			t.Progress = *spec.Progress
		}
		if spec.DueDate != nil {
			d := *spec.DueDate
			t.DueDate = &d
		}
		if parent != uuid.Nil {
			p := parent
			t.ParentID = &p
		}
		a.board.Add(t)
		ids[i] = t.ID
	}

	for i, spec := range specs {
		var deps []uuid.UUID
		for _, idx := range spec.DependsOn {
			if idx < 0 || idx >= len(ids) || idx == i {
				continue
			}
			deps = append(deps, ids[idx])
		}
		if len(deps) > 0 {
			AppendDependencies(a.board.Get(ids[i]), deps...)
		}
	}
	return ids
}

// parentFor returns the task that new sub-tasks of id should hang under.
// Sub-tasks of a child go to the child's parent to keep one level.
func (a *Applier) parentFor(id uuid.UUID) uuid.UUID {
	t := a.board.Get(id)
	if t == nil {
		return uuid.Nil
	}
	if t.ParentID != nil && a.board.Get(*t.ParentID) != nil {
		return *t.ParentID
	}
	return t.ID
}

// existing filters ids down to tasks still on the board.
func (a *Applier) existing(ids []uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	for _, id := range ids {
		if a.board.Index(id) >= 0 {
			out = append(out, id)
		}
	}
	return out
}

// commit restores the parent invariant, clamps the selection and saves.
func (a *Applier) commit() []string {
	a.board.SyncAllParents(a.now())
	a.board.ClampSelection()
	if a.saver == nil {
		return nil
	}
	if err := a.saver.SaveTasks(a.board.Tasks); err != nil {
		a.logger.Error("saving tasks", zap.Error(err))
		return []string{fmt.Sprintf("Save failed: %v", err)}
	}
	return nil
}

func (a *Applier) snapshotUndo() {
	if a.undo == nil {
		return
	}
	if err := a.undo.Snapshot(a.board.Snapshot()); err != nil {
		a.logger.Warn("recording undo snapshot", zap.Error(err))
	}
}

func (a *Applier) logEvent(kind string, t models.Task, data map[string]any) {
	if a.events == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	if t.ID != uuid.Nil {
		data["task_id"] = t.ShortID()
		data["title"] = t.Title
	}
	if err := a.events.LogEvent(kind, data); err != nil {
		a.logger.Warn("logging activity", zap.String("event", kind), zap.Error(err))
	}
}

func sameIDs(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
