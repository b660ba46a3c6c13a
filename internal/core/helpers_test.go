package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/valter-silva-au/aipm/pkg/models"
)

// fakeClock hands out strictly increasing instants.
type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{cur: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

// stubCompleter answers triage and edit prompts from fixed replies.
type stubCompleter struct {
	mu     sync.Mutex
	triage []string
	edit   string
	err    error
	calls  []string
}

func (s *stubCompleter) Complete(_ context.Context, msgs []Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := msgs[len(msgs)-1].Content
	s.calls = append(s.calls, user)
	if s.err != nil {
		return "", s.err
	}
	if strings.HasPrefix(user, "Task to edit:") {
		return s.edit, nil
	}
	if len(s.triage) == 0 {
		return "", errors.New("no triage reply queued")
	}
	reply := s.triage[0]
	s.triage = s.triage[1:]
	return reply, nil
}

func (s *stubCompleter) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// memSaver records saves and can be told to fail.
type memSaver struct {
	saves int
	last  []models.Task
	err   error
}

func (m *memSaver) SaveTasks(tasks []models.Task) error {
	if m.err != nil {
		return m.err
	}
	m.saves++
	m.last = models.CloneTasks(tasks)
	return nil
}

// memUndo keeps the latest snapshot.
type memUndo struct {
	snapshots int
	last      []models.Task
}

func (m *memUndo) Snapshot(tasks []models.Task) error {
	m.snapshots++
	m.last = models.CloneTasks(tasks)
	return nil
}

// memEvents records logged events.
type memEvents struct {
	types []string
}

func (m *memEvents) LogEvent(eventType string, _ map[string]any) error {
	m.types = append(m.types, eventType)
	return nil
}

// jobCollector captures jobs the applier fans out.
type jobCollector struct {
	jobs []Job
}

func (c *jobCollector) Enqueue(j Job) { c.jobs = append(c.jobs, j) }

func addTask(b *Board, clock *fakeClock, bucket, title string) *models.Task {
	return b.Add(models.NewTask(bucket, title, clock.Now()))
}

func addChild(b *Board, clock *fakeClock, parent uuid.UUID, title string, p models.Progress) *models.Task {
	t := models.NewTask("Team", title, clock.Now())
	t.ParentID = &parent
	t.Progress = p
	return b.Add(t)
}

func mustID(s string) uuid.UUID { return uuid.MustParse(s) }

func ptr[T any](v T) *T { return &v }
