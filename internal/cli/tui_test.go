package cli

import (
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/pkg/models"
)

// fakeWorker queues jobs and hands back canned results on Drain.
type fakeWorker struct {
	mu      sync.Mutex
	jobs    []core.Job
	results []core.Result
}

func (w *fakeWorker) Enqueue(job core.Job) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.jobs = append(w.jobs, job)
}

func (w *fakeWorker) Drain() []core.Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.results
	w.results = nil
	return out
}

func (w *fakeWorker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.jobs)
}

type tuiHarness struct {
	store      *memStore
	worker     *fakeWorker
	settings   models.Settings
	configured bool
	now        time.Time
}

func (h *tuiHarness) model(tasks ...models.Task) tuiModel {
	h.store = &memStore{tasks: models.CloneTasks(tasks)}
	h.worker = &fakeWorker{}
	h.settings = models.DefaultSettings()
	h.now = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

	clock := func() time.Time { return h.now }
	history := &core.History{}
	ap := core.NewApplier(core.ApplierConfig{
		Board:    core.NewBoard(tasks),
		Settings: func() models.Settings { return h.settings },
		Jobs:     h.worker,
		Saver:    h.store,
		Undo:     h.store,
		History:  history,
		Now:      clock,
	})
	return newTUIModel(tuiConfig{
		Applier:    ap,
		Worker:     h.worker,
		Settings:   func() models.Settings { return h.settings },
		Configured: func() bool { return h.configured },
		UpdateSettings: func(fn func(*models.Settings) error) error {
			next := h.settings
			next.Buckets = append([]models.BucketDef(nil), h.settings.Buckets...)
			if err := fn(&next); err != nil {
				return err
			}
			h.settings = next
			return nil
		},
		Undo:    h.store.Restore,
		History: history,
		Now:     clock,
	})
}

func press(t *testing.T, m tuiModel, keys ...tea.KeyMsg) tuiModel {
	t.Helper()
	for _, k := range keys {
		updated, _ := m.Update(k)
		m = updated.(tuiModel)
	}
	return m
}

func key(r rune) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}} }

var (
	escKey   = tea.KeyMsg{Type: tea.KeyEsc}
	enterKey = tea.KeyMsg{Type: tea.KeyEnter}
	upKey    = tea.KeyMsg{Type: tea.KeyUp}
	downKey  = tea.KeyMsg{Type: tea.KeyDown}
)

func lastToast(m tuiModel) string {
	if len(m.toasts) == 0 {
		return ""
	}
	return m.toasts[len(m.toasts)-1].text
}

func hasToast(m tuiModel, substr string) bool {
	for _, t := range m.toasts {
		if strings.Contains(t.text, substr) {
			return true
		}
	}
	return false
}

// submitLine types line into the input and presses enter.
func submitLine(t *testing.T, m tuiModel, line string) tuiModel {
	t.Helper()
	if m.focus != focusInput {
		m = press(t, m, key('i'))
	}
	m.input.SetValue(line)
	return press(t, m, enterKey)
}

func newTestTask(bucket, title string, created time.Time) models.Task {
	return models.NewTask(bucket, title, created)
}

func TestTUI_StartsWithInputFocused(t *testing.T) {
	now := time.Now()
	task := newTestTask("Personal", "Water plants", now)
	var h tuiHarness
	m := h.model(task)

	if m.focus != focusInput {
		t.Error("expected input focus on start")
	}
	if m.board.Selected != task.ID {
		t.Errorf("selected = %v, want first task", m.board.Selected)
	}
	if m.Init() == nil {
		t.Error("Init should start the blink and tick commands")
	}
}

func TestTUI_CtrlCQuits(t *testing.T) {
	var h tuiHarness
	m := h.model()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c should quit")
	}
}

func TestTUI_ProgressKeys(t *testing.T) {
	task := newTestTask("Personal", "Water plants", time.Now())
	var h tuiHarness
	m := press(t, h.model(task), escKey)
	if m.focus != focusBoard {
		t.Fatal("esc should move focus to the board")
	}

	m = press(t, m, key('p'))
	if got := m.board.Get(task.ID).Progress; got != models.Todo {
		t.Fatalf("progress = %s, want Todo", got)
	}
	if want := "Water plants: Backlog → Todo"; lastToast(m) != want {
		t.Errorf("toast = %q, want %q", lastToast(m), want)
	}
	if h.store.saves != 1 || !h.store.hasUndo {
		t.Errorf("saves = %d, undo = %v", h.store.saves, h.store.hasUndo)
	}

	m = press(t, m, key('P'), key('P'))
	if got := m.board.Get(task.ID).Progress; got != models.Backlog {
		t.Errorf("progress = %s, want Backlog after retreating", got)
	}
	// Retreating past Backlog is a no-op and does not save.
	if h.store.saves != 2 {
		t.Errorf("saves = %d, want 2", h.store.saves)
	}
}

func TestTUI_ParentProgressFollowsChildren(t *testing.T) {
	now := time.Now()
	parent := newTestTask("Personal", "Move house", now)
	child := newTestTask("Personal", "Pack books", now)
	child.ParentID = &parent.ID

	var h tuiHarness
	m := press(t, h.model(parent, child), escKey, key('p'))
	if !hasToast(m, "progress follows its sub-tasks") {
		t.Errorf("toasts = %v", m.toasts)
	}
	if m.board.Get(parent.ID).Progress != models.Backlog {
		t.Error("parent progress changed directly")
	}
}

func TestTUI_CyclePriority(t *testing.T) {
	task := newTestTask("Personal", "Water plants", time.Now())
	var h tuiHarness
	m := press(t, h.model(task), escKey, key('!'))

	if got := m.board.Get(task.ID).Priority; got != models.High {
		t.Errorf("priority = %s, want High", got)
	}
	if !hasToast(m, "priority Medium → High") {
		t.Errorf("toasts = %v", m.toasts)
	}
}

func TestTUI_DeleteConfirm(t *testing.T) {
	now := time.Now()
	parent := newTestTask("Personal", "Move house", now)
	child := newTestTask("Personal", "Pack books", now)
	child.ParentID = &parent.ID

	var h tuiHarness
	m := press(t, h.model(parent, child), escKey, key('d'))
	if m.confirm != parent.ID {
		t.Fatal("d should ask for confirmation")
	}
	if !strings.Contains(func() string { m.width = 100; return m.View() }(), "(y/n)") {
		t.Error("view should show the confirm prompt")
	}

	m = press(t, m, key('n'))
	if lastToast(m) != "Delete cancelled" || len(m.board.Tasks) != 2 {
		t.Fatalf("cancel: toast %q, %d tasks", lastToast(m), len(m.board.Tasks))
	}

	m = press(t, m, key('d'), key('y'))
	if len(m.board.Tasks) != 0 {
		t.Fatalf("expected cascade delete, %d tasks left", len(m.board.Tasks))
	}
	if !hasToast(m, "Deleted Move house and 1 sub-task(s)") {
		t.Errorf("toasts = %v", m.toasts)
	}
	if len(h.store.snapshot()) != 0 {
		t.Error("delete was not saved")
	}
}

func TestTUI_BucketNavigation(t *testing.T) {
	now := time.Now()
	personal := newTestTask("Personal", "Water plants", now)
	team := newTestTask("Team", "Sprint review", now)

	var h tuiHarness
	m := press(t, h.model(personal, team), escKey, key('l'))
	if m.bucket != 1 || m.board.Selected != team.ID {
		t.Fatalf("bucket %d selected %v, want Team task", m.bucket, m.board.Selected)
	}

	m = press(t, m, key('l'))
	if m.bucket != 2 || m.board.SelectedTask() != nil {
		t.Errorf("empty Admin column should clear the selection")
	}

	m = press(t, m, key('h'), key('h'), key('h'))
	if m.bucket != 2 {
		t.Errorf("h should wrap, bucket = %d", m.bucket)
	}
}

func TestTUI_SelectionAndFocus(t *testing.T) {
	base := time.Now()
	older := newTestTask("Personal", "Older", base)
	newer := newTestTask("Personal", "Newer", base.Add(time.Minute))

	var h tuiHarness
	m := press(t, h.model(older, newer), escKey)
	if m.board.Selected != newer.ID {
		t.Fatal("newest task should sort first")
	}
	m = press(t, m, key('j'))
	if m.board.Selected != older.ID {
		t.Fatal("j should move down")
	}
	m = press(t, m, downKey)
	if m.focus != focusInput {
		t.Error("moving past the last card should focus the input")
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab}, key('e'))
	if m.focus != focusInput || m.input.Value() != "@"+older.ShortID()+" " {
		t.Errorf("e should prefill a mention, got %q", m.input.Value())
	}
}

func TestTUI_LocalFallbackWhenNotConfigured(t *testing.T) {
	var h tuiHarness
	m := submitLine(t, h.model(), "Admin: renew passport p:high")

	if len(m.board.Tasks) != 1 {
		t.Fatalf("expected a locally routed task, got %d", len(m.board.Tasks))
	}
	got := m.board.Tasks[0]
	if got.Bucket != "Admin" || got.Priority != models.High {
		t.Errorf("task = %s/%s", got.Bucket, got.Priority)
	}
	if !hasToast(m, core.ErrNotConfigured.Error()) {
		t.Errorf("toasts = %v", m.toasts)
	}
	if len(h.worker.jobs) != 0 {
		t.Error("nothing should reach the worker without AI")
	}
}

func TestTUI_ConfiguredEnqueuesJob(t *testing.T) {
	var h tuiHarness
	m := h.model()
	h.configured = true

	m = submitLine(t, m, "call the dentist tomorrow")
	if len(h.worker.jobs) != 1 || h.worker.jobs[0].Kind != core.JobTriage {
		t.Fatalf("jobs = %+v", h.worker.jobs)
	}
	if len(m.board.Tasks) != 0 {
		t.Error("board changed before the result arrived")
	}

	m.width = 120
	if !strings.Contains(m.View(), "thinking (1)") {
		t.Error("header should show pending jobs")
	}
}

func TestTUI_TickAppliesResults(t *testing.T) {
	var h tuiHarness
	m := h.model()
	title := "Call the dentist"
	h.worker.results = []core.Result{{
		Kind:   core.JobTriage,
		Raw:    "call the dentist",
		Triage: &core.Action{Kind: core.ActionCreate},
		Update: core.Update{Title: &title},
	}}

	updated, cmd := m.Update(tickMsg(h.now))
	m = updated.(tuiModel)
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
	if len(m.board.Tasks) != 1 || m.board.Tasks[0].Title != title {
		t.Fatalf("tasks = %+v", m.board.Tasks)
	}
	if m.board.SelectedTask() == nil {
		t.Error("the new task should be selected")
	}
	if !hasToast(m, "AI created: Call the dentist") {
		t.Errorf("toasts = %v", m.toasts)
	}
	if h.store.saves != 1 {
		t.Errorf("saves = %d", h.store.saves)
	}
}

func TestTUI_ToastsExpire(t *testing.T) {
	var h tuiHarness
	m := submitLine(t, h.model(), "/buckets")
	if !hasToast(m, "Buckets: Personal") {
		t.Fatalf("toasts = %v", m.toasts)
	}

	h.now = h.now.Add(toastTTL)
	updated, _ := m.Update(tickMsg(h.now))
	if len(updated.(tuiModel).toasts) != 0 {
		t.Error("toasts should expire after their TTL")
	}
}

func TestTUI_SlashBucketCommands(t *testing.T) {
	team := newTestTask("Team", "Sprint review", time.Now())
	var h tuiHarness
	m := submitLine(t, h.model(team), "/bucket add Errands things outside")
	if lastToast(m) != "Added bucket Errands" {
		t.Fatalf("toast = %q", lastToast(m))
	}
	if len(h.settings.Buckets) != 4 || h.settings.Buckets[3].Description != "things outside" {
		t.Errorf("buckets = %+v", h.settings.Buckets)
	}

	m = submitLine(t, m, "/bucket rename Team Crew")
	if m.board.Get(team.ID).Bucket != "Crew" {
		t.Errorf("task bucket = %s", m.board.Get(team.ID).Bucket)
	}
	if !hasToast(m, "Renamed Team to Crew (1 tasks moved)") {
		t.Errorf("toasts = %v", m.toasts)
	}

	saves := h.store.saves
	m = submitLine(t, m, "/bucket rename Crew Admin")
	if h.store.saves != saves {
		t.Error("a failed rename should not save the board")
	}
	if m.board.Get(team.ID).Bucket != "Crew" {
		t.Error("a failed rename moved the task")
	}

	m = submitLine(t, m, "/bucket")
	if !strings.HasPrefix(lastToast(m), "Usage: /bucket") {
		t.Errorf("toast = %q", lastToast(m))
	}
	m = submitLine(t, m, "/frobnicate")
	if lastToast(m) != "Unknown command /frobnicate" {
		t.Errorf("toast = %q", lastToast(m))
	}
}

func TestTUI_SlashUndo(t *testing.T) {
	task := newTestTask("Personal", "Water plants", time.Now())
	var h tuiHarness
	m := submitLine(t, h.model(task), "/undo")
	if lastToast(m) != "Nothing to undo" {
		t.Fatalf("toast = %q", lastToast(m))
	}

	m = press(t, m, escKey, key('p'))
	if m.board.Get(task.ID).Progress != models.Todo {
		t.Fatal("progress did not move")
	}
	m = submitLine(t, m, "/undo")
	if got := m.board.Get(task.ID).Progress; got != models.Backlog {
		t.Errorf("progress after undo = %s", got)
	}
	if !strings.HasPrefix(lastToast(m), "Restored 1 tasks") {
		t.Errorf("toast = %q", lastToast(m))
	}
}

func TestTUI_ExitCommands(t *testing.T) {
	for _, line := range []string{"/exit", "/quit", "exit"} {
		var h tuiHarness
		m := h.model()
		m.input.SetValue(line)
		_, cmd := m.Update(enterKey)
		if cmd == nil {
			t.Errorf("%q: expected quit", line)
			continue
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%q: expected tea.QuitMsg", line)
		}
	}
}

func TestTUI_MentionAutocomplete(t *testing.T) {
	now := time.Now()
	flights := newTestTask("Personal", "Book flights", now)
	passport := newTestTask("Admin", "Renew passport", now)

	var h tuiHarness
	m := h.model(flights, passport)
	m.input.SetValue("@")
	if got := len(m.mentions()); got != 2 {
		t.Fatalf("bare @ lists %d tasks, want 2", got)
	}

	m.input.SetValue("@PASS")
	matches := m.mentions()
	if len(matches) != 1 || matches[0].ID != passport.ID {
		t.Fatalf("matches = %v", matches)
	}
	m = press(t, m, enterKey)
	if want := "@" + passport.ShortID() + " "; m.input.Value() != want {
		t.Errorf("input = %q, want %q", m.input.Value(), want)
	}
	if len(m.mentions()) != 0 {
		t.Error("a completed mention should close the list")
	}

	m.input.SetValue("@" + flights.ShortID()[:4])
	if got := m.mentions(); len(got) != 1 || got[0].ID != flights.ID {
		t.Errorf("short id prefix matches = %v", got)
	}
}

func TestTUI_MentionWithoutAI(t *testing.T) {
	task := newTestTask("Personal", "Book flights", time.Now())
	var h tuiHarness
	m := submitLine(t, h.model(task), "@"+task.ShortID()+" make it urgent")
	if lastToast(m) != core.ErrNotConfigured.Error() {
		t.Errorf("toast = %q", lastToast(m))
	}
	if len(m.board.Tasks) != 1 {
		t.Error("a mention must not fall back to creating a task")
	}
}

func TestTUI_InputHistory(t *testing.T) {
	var h tuiHarness
	m := h.model()
	m = submitLine(t, m, "/buckets")
	m = submitLine(t, m, "/clear")

	m.input.SetValue("draft")
	m = press(t, m, upKey)
	if m.input.Value() != "/clear" {
		t.Fatalf("up = %q", m.input.Value())
	}
	m = press(t, m, upKey, upKey)
	if m.input.Value() != "/buckets" {
		t.Fatalf("up at oldest = %q", m.input.Value())
	}
	m = press(t, m, downKey, downKey)
	if m.input.Value() != "draft" {
		t.Errorf("down past newest should restore the draft, got %q", m.input.Value())
	}
}

func TestTUI_ViewRendersColumns(t *testing.T) {
	now := time.Now()
	parent := newTestTask("Personal", "Move house", now)
	child := newTestTask("Personal", "Pack books", now)
	child.ParentID = &parent.ID
	child.Progress = models.Done

	var h tuiHarness
	m := h.model(parent, child)
	if got := m.View(); got != "Loading..." {
		t.Errorf("view before resize = %q", got)
	}

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 150, Height: 40})
	view := updated.View()
	for _, want := range []string{"aipm", "AI off", "Personal (1)", "Team (0)", "Move house", "1/1 sub", parent.ShortID()} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if strings.Contains(view, "Pack books") {
		t.Error("sub-tasks should not get their own card")
	}
}
