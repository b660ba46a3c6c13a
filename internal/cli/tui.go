package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/internal/storage"
	"github.com/valter-silva-au/aipm/pkg/models"
)

const (
	tickInterval = 200 * time.Millisecond
	toastTTL     = 6 * time.Second
	maxToasts    = 4
	maxMentions  = 20
)

type tuiFocus int

const (
	focusBoard tuiFocus = iota
	focusInput
)

// resultSource is the part of the AI worker the board talks to.
type resultSource interface {
	core.JobSink
	Drain() []core.Result
	Pending() int
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type toast struct {
	text string
	at   time.Time
}

// tuiConfig carries the board's collaborators. Applier owns the board the
// UI renders.
type tuiConfig struct {
	Applier        *core.Applier
	Worker         resultSource
	Settings       func() models.Settings
	Configured     func() bool
	UpdateSettings func(fn func(*models.Settings) error) error
	Undo           func() ([]models.Task, time.Time, error)
	History        *core.History
	Now            func() time.Time
}

type tuiModel struct {
	cfg    tuiConfig
	board  *core.Board
	router *core.Router
	input  textinput.Model
	focus  tuiFocus
	bucket int

	// confirm holds the task awaiting a y/n delete answer.
	confirm uuid.UUID
	toasts  []toast

	// Input line history, oldest first. linePos is -1 while editing a
	// fresh line.
	lines   []string
	linePos int
	saved   string

	mention int
	width   int
	height  int
}

func newTUIModel(cfg tuiConfig) tuiModel {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.History == nil {
		cfg.History = &core.History{}
	}

	in := textinput.New()
	in.Prompt = "> "
	in.Placeholder = "Type a task, @ to edit the selected one, /buckets, /undo, /exit"
	in.CharLimit = 2000

	b := cfg.Applier.Board()
	m := tuiModel{
		cfg:     cfg,
		board:   b,
		router:  core.NewRouter(b, cfg.Settings, cfg.Configured, cfg.History),
		input:   in,
		linePos: -1,
	}
	m.selectFirst()
	m.setFocus(focusInput)
	return m
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tick())
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-6, 10)
		return m, nil

	case tickMsg:
		m.drain()
		m.expireToasts()
		return m, tick()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.focus == focusInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// drain applies every finished AI result on the UI goroutine.
func (m *tuiModel) drain() {
	results := m.cfg.Worker.Drain()
	if len(results) == 0 {
		return
	}
	m.notify(m.cfg.Applier.ApplyAll(results)...)
	m.clampBucket()
	if m.board.SelectedTask() == nil {
		m.selectFirst()
	}
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.confirm != uuid.Nil {
		m.resolveDelete(msg.String())
		return m, nil
	}
	if m.focus == focusInput {
		return m.handleInputKey(msg)
	}
	return m.handleBoardKey(msg)
}

func (m tuiModel) handleBoardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.toasts = nil
	case "tab", "i":
		m.setFocus(focusInput)
	case "enter", "e":
		if t := m.board.SelectedTask(); t != nil {
			m.setFocus(focusInput)
			m.input.SetValue("@" + t.ShortID() + " ")
			m.input.CursorEnd()
		}
	case "d", "x", "backspace", "delete":
		if t := m.board.SelectedTask(); t != nil {
			m.confirm = t.ID
		}
	case "left", "h":
		m.shiftBucket(-1)
	case "right", "l":
		m.shiftBucket(1)
	case "up", "k":
		m.moveSelection(-1)
	case "down", "j":
		if !m.moveSelection(1) {
			m.setFocus(focusInput)
		}
	case "p":
		m.shiftProgress(true)
	case "P":
		m.shiftProgress(false)
	case "!":
		m.cyclePriority()
	}
	return m, nil
}

func (m tuiModel) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if matches := m.mentions(); len(matches) > 0 {
		switch msg.Type {
		case tea.KeyUp:
			m.mention = (m.mention - 1 + len(matches)) % len(matches)
			return m, nil
		case tea.KeyDown:
			m.mention = (m.mention + 1) % len(matches)
			return m, nil
		case tea.KeyEnter, tea.KeyTab:
			pick := matches[min(m.mention, len(matches)-1)]
			m.input.SetValue("@" + pick.ShortID() + " ")
			m.input.CursorEnd()
			m.mention = 0
			return m, nil
		}
		m.mention = 0
	}

	switch msg.Type {
	case tea.KeyEsc, tea.KeyTab:
		m.setFocus(focusBoard)
		return m, nil
	case tea.KeyUp:
		m.recall(-1)
		return m, nil
	case tea.KeyDown:
		m.recall(1)
		return m, nil
	case tea.KeyEnter:
		line := m.input.Value()
		m.input.Reset()
		m.remember(line)
		if m.submit(line) {
			return m, tea.Quit
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit handles one entered line and reports whether the UI should exit.
func (m *tuiModel) submit(line string) bool {
	text := strings.TrimSpace(line)
	if strings.HasPrefix(text, "/") {
		return m.slash(text)
	}

	route := m.router.Route(text)
	switch route.Kind {
	case core.RouteQuit:
		return true
	case core.RouteToast:
		m.notify(route.Toast)
	case core.RouteApply:
		m.notify(m.cfg.Applier.ApplyAll([]core.Result{route.Result})...)
		m.clampBucket()
	case core.RouteJob:
		m.cfg.Worker.Enqueue(route.Job)
	}
	return false
}

func (m *tuiModel) slash(text string) bool {
	fields := strings.Fields(text)
	switch strings.ToLower(fields[0]) {
	case "/exit", "/quit":
		return true
	case "/clear":
		m.cfg.History.Clear()
		m.notify("Conversation cleared")
	case "/undo":
		m.undo()
	case "/buckets":
		s := m.cfg.Settings()
		parts := make([]string, len(s.Buckets))
		for i, b := range s.Buckets {
			parts[i] = b.Name
			if b.Description != "" {
				parts[i] += " (" + b.Description + ")"
			}
		}
		m.notify("Buckets: " + strings.Join(parts, ", "))
	case "/bucket":
		m.bucketCommand(fields[1:])
	default:
		m.notify("Unknown command " + fields[0])
	}
	return false
}

func (m *tuiModel) bucketCommand(args []string) {
	usage := "Usage: /bucket add|rename|desc|delete <name> ..."
	if len(args) < 2 {
		m.notify(usage)
		return
	}
	name := args[1]
	switch strings.ToLower(args[0]) {
	case "add":
		err := m.cfg.UpdateSettings(func(s *models.Settings) error {
			return core.AddBucket(s, name, strings.Join(args[2:], " "))
		})
		m.report(err, "Added bucket "+name)
	case "desc":
		err := m.cfg.UpdateSettings(func(s *models.Settings) error {
			return core.DescribeBucket(s, name, strings.Join(args[2:], " "))
		})
		m.report(err, "Updated bucket "+name)
	case "rename":
		if len(args) < 3 {
			m.notify("Usage: /bucket rename <old> <new>")
			return
		}
		moved, err := m.moveBuckets(func(s *models.Settings, b *core.Board, now time.Time) (int, error) {
			return core.RenameBucket(s, b, name, args[2], now)
		})
		m.report(err, fmt.Sprintf("Renamed %s to %s (%d tasks moved)", name, args[2], moved))
	case "delete":
		var to string
		moved, err := m.moveBuckets(func(s *models.Settings, b *core.Board, now time.Time) (int, error) {
			dest, n, err := core.DeleteBucket(s, b, name, now)
			to = dest
			return n, err
		})
		m.report(err, fmt.Sprintf("Deleted bucket %s (%d tasks moved to %s)", name, moved, to))
	default:
		m.notify(usage)
	}
	m.clampBucket()
}

// moveBuckets changes the settings and the board together; the board is
// only saved when the settings were.
func (m *tuiModel) moveBuckets(fn func(s *models.Settings, b *core.Board, now time.Time) (int, error)) (int, error) {
	var (
		moved  int
		setErr error
	)
	toasts := m.cfg.Applier.Mutate(func(b *core.Board, now time.Time) bool {
		setErr = m.cfg.UpdateSettings(func(s *models.Settings) error {
			n, err := fn(s, b, now)
			moved = n
			return err
		})
		return setErr == nil && moved > 0
	})
	m.notify(toasts...)
	return moved, setErr
}

func (m *tuiModel) undo() {
	if m.cfg.Undo == nil {
		m.notify("Undo is not available")
		return
	}
	tasks, at, err := m.cfg.Undo()
	switch {
	case errors.Is(err, storage.ErrNothingToUndo):
		m.notify("Nothing to undo")
		return
	case err != nil:
		m.notify(fmt.Sprintf("Undo failed: %v", err))
		return
	}
	m.board.Tasks = tasks
	m.board.ClampSelection()
	m.clampBucket()
	if m.board.SelectedTask() == nil {
		m.selectFirst()
	}
	m.notify(fmt.Sprintf("Restored %d tasks from %s", len(tasks), at.Local().Format("15:04:05")))
}

func (m *tuiModel) resolveDelete(key string) {
	id := m.confirm
	m.confirm = uuid.Nil
	if key != "y" && key != "Y" && key != "enter" {
		m.notify("Delete cancelled")
		return
	}
	t := m.board.Get(id)
	if t == nil {
		return
	}
	victim := t.Clone()

	var removed []models.Task
	toasts := m.cfg.Applier.Mutate(func(b *core.Board, now time.Time) bool {
		removed = b.Delete(id, now)
		return len(removed) > 0
	})
	if len(removed) == 0 {
		return
	}
	m.cfg.Applier.Record("task.delete", victim, map[string]any{"removed": len(removed)})

	msg := "Deleted " + victim.Title
	if n := len(removed) - 1; n > 0 {
		msg += fmt.Sprintf(" and %d sub-task(s)", n)
	}
	m.notify(msg)
	m.notify(toasts...)
	m.selectFirst()
}

func (m *tuiModel) shiftProgress(forward bool) {
	t := m.board.SelectedTask()
	if t == nil {
		return
	}
	if len(m.board.Children(t.ID)) > 0 {
		m.notify(t.Title + ": progress follows its sub-tasks")
		return
	}
	id, title, from := t.ID, t.Title, t.Progress
	to := from.Retreat()
	if forward {
		to = from.Advance()
	}
	if to == from {
		return
	}

	toasts := m.cfg.Applier.Mutate(func(b *core.Board, now time.Time) bool {
		return b.Get(id).SetProgress(to, now)
	})
	if t := m.board.Get(id); t != nil {
		m.cfg.Applier.Record("task.progress", *t, map[string]any{"from": string(from), "to": string(to)})
	}
	m.notify(fmt.Sprintf("%s: %s → %s", title, from.Label(), to.Label()))
	m.notify(toasts...)
}

func (m *tuiModel) cyclePriority() {
	t := m.board.SelectedTask()
	if t == nil {
		return
	}
	id, from := t.ID, t.Priority
	to := from.Next()
	toasts := m.cfg.Applier.Mutate(func(b *core.Board, now time.Time) bool {
		task := b.Get(id)
		task.Priority = to
		task.Touch(now)
		return true
	})
	if t := m.board.Get(id); t != nil {
		m.cfg.Applier.Record("task.priority", *t, map[string]any{"from": string(from), "to": string(to)})
		m.notify(fmt.Sprintf("%s: priority %s → %s", t.Title, from, to))
	}
	m.notify(toasts...)
}

func (m *tuiModel) column() []uuid.UUID {
	s := m.cfg.Settings()
	if len(s.Buckets) == 0 {
		return nil
	}
	return m.board.Column(s.Buckets[m.bucket].Name, s)
}

func (m *tuiModel) selectFirst() {
	m.clampBucket()
	col := m.column()
	if len(col) == 0 {
		m.board.Selected = uuid.Nil
		return
	}
	m.board.Selected = col[0]
}

func (m *tuiModel) shiftBucket(delta int) {
	n := len(m.cfg.Settings().Buckets)
	if n == 0 {
		return
	}
	m.bucket = (m.bucket + delta + n) % n
	m.selectFirst()
}

// moveSelection steps within the current column and reports whether the
// selection moved.
func (m *tuiModel) moveSelection(delta int) bool {
	col := m.column()
	if len(col) == 0 {
		return false
	}
	pos := -1
	for i, id := range col {
		if id == m.board.Selected {
			pos = i
			break
		}
	}
	if pos < 0 {
		m.board.Selected = col[0]
		return true
	}
	next := pos + delta
	if next < 0 || next >= len(col) {
		return false
	}
	m.board.Selected = col[next]
	return true
}

func (m *tuiModel) clampBucket() {
	n := len(m.cfg.Settings().Buckets)
	if m.bucket >= n {
		m.bucket = max(n-1, 0)
	}
}

func (m *tuiModel) setFocus(f tuiFocus) {
	m.focus = f
	if f == focusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

// remember appends a non-empty line to the input history.
func (m *tuiModel) remember(line string) {
	m.linePos = -1
	m.saved = ""
	if line = strings.TrimSpace(line); line != "" {
		m.lines = append(m.lines, line)
	}
}

// recall walks the input history; delta -1 is older.
func (m *tuiModel) recall(delta int) {
	if len(m.lines) == 0 {
		return
	}
	switch {
	case delta < 0 && m.linePos == -1:
		m.saved = m.input.Value()
		m.linePos = len(m.lines) - 1
	case delta < 0 && m.linePos > 0:
		m.linePos--
	case delta > 0 && m.linePos >= 0 && m.linePos < len(m.lines)-1:
		m.linePos++
	case delta > 0 && m.linePos >= 0:
		m.linePos = -1
		m.input.SetValue(m.saved)
		m.input.CursorEnd()
		return
	default:
		return
	}
	m.input.SetValue(m.lines[m.linePos])
	m.input.CursorEnd()
}

// mentions lists tasks matching a bare "@query" in the input: short-id
// prefix or case-insensitive title substring, in list order.
func (m *tuiModel) mentions() []models.Task {
	v := strings.TrimLeft(m.input.Value(), " ")
	if !strings.HasPrefix(v, "@") || strings.Contains(v[1:], " ") {
		return nil
	}
	query := strings.ToLower(v[1:])
	var out []models.Task
	for _, t := range m.board.Tasks {
		if query == "" || strings.HasPrefix(t.ShortID(), query) || strings.Contains(strings.ToLower(t.Title), query) {
			out = append(out, t)
			if len(out) == maxMentions {
				break
			}
		}
	}
	return out
}

func (m *tuiModel) notify(texts ...string) {
	now := m.cfg.Now()
	for _, t := range texts {
		if t != "" {
			m.toasts = append(m.toasts, toast{text: t, at: now})
		}
	}
	if len(m.toasts) > maxToasts {
		m.toasts = m.toasts[len(m.toasts)-maxToasts:]
	}
}

func (m *tuiModel) report(err error, ok string) {
	if err != nil {
		m.notify(err.Error())
		return
	}
	m.notify(ok)
}

func (m *tuiModel) expireToasts() {
	now := m.cfg.Now()
	kept := m.toasts[:0]
	for _, t := range m.toasts {
		if now.Sub(t.at) < toastTTL {
			kept = append(kept, t)
		}
	}
	m.toasts = kept
}

// runTUI opens the board on the persisted task list and runs until the
// user exits.
func runTUI() error {
	if TaskMgr == nil || Settings == nil || AIClient == nil {
		return fmt.Errorf("task manager not initialized")
	}
	tasks, err := TaskMgr.List(core.TaskFilter{})
	if err != nil {
		return fmt.Errorf("loading tasks: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker := core.NewWorker(AIClient, Logger)
	worker.Start(ctx)

	history := &core.History{}
	cfg := core.ApplierConfig{
		Board:    core.NewBoard(tasks),
		Settings: Settings.Get,
		Jobs:     worker,
		History:  history,
		Logger:   Logger,
	}
	if TaskStore != nil {
		cfg.Saver = TaskStore
	}
	if UndoStore != nil {
		cfg.Undo = UndoStore
	}
	if Activity != nil {
		cfg.Events = Activity
	}

	m := newTUIModel(tuiConfig{
		Applier:        core.NewApplier(cfg),
		Worker:         worker,
		Settings:       Settings.Get,
		Configured:     func() bool { return core.AIConfigured(Settings.Get()) },
		UpdateSettings: Settings.Update,
		Undo: func() ([]models.Task, time.Time, error) {
			_, at, err := TaskMgr.Undo()
			if err != nil {
				return nil, time.Time{}, err
			}
			restored, err := TaskMgr.List(core.TaskFilter{})
			return restored, at, err
		},
		History: history,
	})

	Logger.Info("board opened")
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()

	cancel()
	worker.Wait()
	return err
}
