package core

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valter-silva-au/aipm/pkg/models"
)

// Board is the flat, ordered task list plus the current selection. It is
// owned by a single goroutine; the AI worker only ever sees copies.
type Board struct {
	Tasks    []models.Task
	Selected uuid.UUID
}

// NewBoard wraps a loaded task list.
func NewBoard(tasks []models.Task) *Board {
	if tasks == nil {
		tasks = []models.Task{}
	}
	return &Board{Tasks: tasks}
}

// Index returns the position of the task with id, or -1.
func (b *Board) Index(id uuid.UUID) int {
	for i := range b.Tasks {
		if b.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// Get returns a pointer to the task with id, or nil.
func (b *Board) Get(id uuid.UUID) *models.Task {
	if i := b.Index(id); i >= 0 {
		return &b.Tasks[i]
	}
	return nil
}

// Resolve maps a short-id prefix to a task on the board.
func (b *Board) Resolve(prefix string) *models.Task {
	id, ok := ResolvePrefix(b.Tasks, prefix)
	if !ok {
		return nil
	}
	return b.Get(id)
}

// ResolveTarget maps a task handle returned by the model to a task. Only the
// full eight-character short id matches; shorter prefixes do not.
func (b *Board) ResolveTarget(shortID string) *models.Task {
	p := strings.ToLower(strings.Trim(strings.TrimSpace(shortID), "[]()#@"))
	if len(p) < models.ShortIDLen {
		return nil
	}
	p = p[:models.ShortIDLen]
	for i := range b.Tasks {
		if b.Tasks[i].ShortID() == p {
			return &b.Tasks[i]
		}
	}
	return nil
}

// SelectedTask returns the selected task, or nil.
func (b *Board) SelectedTask() *models.Task {
	if b.Selected == uuid.Nil {
		return nil
	}
	return b.Get(b.Selected)
}

// Children returns the ids of the direct children of parent, in list order.
func (b *Board) Children(parent uuid.UUID) []uuid.UUID {
	var ids []uuid.UUID
	for _, t := range b.Tasks {
		if t.ParentID != nil && *t.ParentID == parent {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// TopLevel returns the ids of tasks without a parent.
func (b *Board) TopLevel() []uuid.UUID {
	var ids []uuid.UUID
	for _, t := range b.Tasks {
		if t.ParentID == nil {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// Column returns the top-level tasks of bucket whose lane s shows, furthest
// along first, then by priority, then newest first.
func (b *Board) Column(bucket string, s models.Settings) []uuid.UUID {
	var tasks []models.Task
	for _, t := range b.Tasks {
		if t.ParentID == nil && t.InBucket(bucket) && s.ShowsProgress(t.Progress) {
			tasks = append(tasks, t)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		a, c := tasks[i], tasks[j]
		if a.Progress.Rank() != c.Progress.Rank() {
			return a.Progress.Rank() > c.Progress.Rank()
		}
		if a.Priority.Rank() != c.Priority.Rank() {
			return a.Priority.Rank() > c.Priority.Rank()
		}
		return a.CreatedAt.After(c.CreatedAt)
	})
	ids := make([]uuid.UUID, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

// Add appends a task and returns a pointer to the stored copy.
func (b *Board) Add(t models.Task) *models.Task {
	b.Tasks = append(b.Tasks, t)
	return &b.Tasks[len(b.Tasks)-1]
}

// SyncParentProgress recomputes the parent's lane from its children and
// writes it only if it differs. It reports whether the parent changed.
func (b *Board) SyncParentProgress(parent uuid.UUID, now time.Time) bool {
	p := b.Get(parent)
	if p == nil {
		return false
	}
	var lanes []models.Progress
	for _, t := range b.Tasks {
		if t.ParentID != nil && *t.ParentID == parent {
			lanes = append(lanes, t.Progress)
		}
	}
	next, ok := models.AggregateProgress(lanes)
	if !ok {
		return false
	}
	return p.SetProgress(next, now)
}

// SyncAllParents recomputes every parent on the board.
func (b *Board) SyncAllParents(now time.Time) bool {
	parents := make(map[uuid.UUID]bool)
	var order []uuid.UUID
	for _, t := range b.Tasks {
		if t.ParentID != nil && !parents[*t.ParentID] {
			parents[*t.ParentID] = true
			order = append(order, *t.ParentID)
		}
	}
	changed := false
	for _, id := range order {
		if b.SyncParentProgress(id, now) {
			changed = true
		}
	}
	return changed
}

// Delete removes the task with id together with every descendant and
// scrubs the removed ids from all surviving dependency lists. It returns the
// removed tasks in list order. Cycles in degenerate parent data terminate.
func (b *Board) Delete(id uuid.UUID, now time.Time) []models.Task {
	if b.Index(id) < 0 {
		return nil
	}
	doomed := map[uuid.UUID]bool{id: true}
	queue := []uuid.UUID{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range b.Children(cur) {
			if !doomed[child] {
				doomed[child] = true
				queue = append(queue, child)
			}
		}
	}

	var removed []models.Task
	kept := b.Tasks[:0]
	for _, t := range b.Tasks {
		if doomed[t.ID] {
			removed = append(removed, t)
			continue
		}
		kept = append(kept, t)
	}
	b.Tasks = kept

	for i := range b.Tasks {
		t := &b.Tasks[i]
		deps := t.Dependencies[:0]
		for _, d := range t.Dependencies {
			if !doomed[d] {
				deps = append(deps, d)
			}
		}
		if len(deps) != len(t.Dependencies) {
			t.Dependencies = deps
			t.Touch(now)
		} else {
			t.Dependencies = deps
		}
	}

	if doomed[b.Selected] {
		b.Selected = uuid.Nil
	}
	return removed
}

// Repair restores the structural invariants on data loaded from disk:
// dependencies are deduplicated and never dangle or point at self, parents
// that are missing are dropped, and grandchildren are lifted to their root
// so only one level of nesting remains. Parent lanes are then re-derived.
func (b *Board) Repair(now time.Time) bool {
	changed := false
	for i := range b.Tasks {
		t := &b.Tasks[i]
		var live []uuid.UUID
		for _, d := range t.Dependencies {
			if b.Index(d) >= 0 {
				live = append(live, d)
			}
		}
		deps := cleanDependencies(t.ID, live)
		if len(deps) != len(t.Dependencies) {
			t.Dependencies = deps
			changed = true
		}

		if t.ParentID == nil {
			continue
		}
		root := b.rootOf(t.ID)
		switch {
		case root == t.ID:
			t.ParentID = nil
			changed = true
		case root != *t.ParentID:
			r := root
			t.ParentID = &r
			changed = true
		}
	}
	if b.SyncAllParents(now) {
		changed = true
	}
	return changed
}

// rootOf follows parent links from id to the top-level ancestor. A missing
// parent or a cycle ends the walk at id itself.
func (b *Board) rootOf(id uuid.UUID) uuid.UUID {
	seen := map[uuid.UUID]bool{id: true}
	cur := id
	for {
		t := b.Get(cur)
		if t == nil || t.ParentID == nil {
			return cur
		}
		next := *t.ParentID
		if seen[next] || b.Index(next) < 0 {
			return id
		}
		seen[next] = true
		cur = next
	}
}

// ClampSelection clears the selection if it points at a task that is gone.
func (b *Board) ClampSelection() {
	if b.Selected != uuid.Nil && b.Index(b.Selected) < 0 {
		b.Selected = uuid.Nil
	}
}

// Snapshot returns a deep copy of the task list.
func (b *Board) Snapshot() []models.Task {
	return models.CloneTasks(b.Tasks)
}
