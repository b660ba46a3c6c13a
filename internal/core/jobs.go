package core

import (
	"sync"

	"cloud.google.com/go/civil"
	"github.com/valter-silva-au/aipm/pkg/models"
)

// historyLimit bounds the conversation lines replayed into triage prompts.
const historyLimit = 10

// History keeps the most recent triage exchanges.
type History struct {
	mu    sync.Mutex
	lines []string
}

// Add records one exchange, dropping the oldest past the limit.
func (h *History) Add(line string) {
	if h == nil || line == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines = append(h.lines, truncateBytes(line, MaxDescriptionBytes))
	if len(h.lines) > historyLimit {
		h.lines = h.lines[len(h.lines)-historyLimit:]
	}
}

// Lines returns a copy of the recorded exchanges, oldest first.
func (h *History) Lines() []string {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.lines...)
}

// Clear forgets every exchange.
func (h *History) Clear() {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.lines = nil
	h.mu.Unlock()
}

// NewTriageJob snapshots the board into a triage job for raw.
func NewTriageJob(b *Board, s models.Settings, raw string, history *History, today civil.Date) Job {
	return Job{
		Kind:          JobTriage,
		Raw:           raw,
		TriageContext: TriageContext(b.Tasks),
		Owner:         s.OwnerName,
		History:       history.Lines(),
		Context:       ContextWindow(b.Tasks),
		Buckets:       append([]models.BucketDef(nil), s.Buckets...),
		Today:         today,
	}
}

// NewEditJob snapshots one task into an edit job. The task itself is
// excluded from the dependency context.
func NewEditJob(b *Board, s models.Settings, t models.Task, instruction string, today civil.Date) Job {
	var ctx []ContextTask
	for _, c := range ContextWindow(b.Tasks) {
		if c.ID != t.ID {
			ctx = append(ctx, c)
		}
	}
	return Job{
		Kind:        JobEdit,
		TaskID:      t.ID,
		Snapshot:    TaskSnapshot(t),
		Instruction: instruction,
		Context:     ctx,
		Buckets:     append([]models.BucketDef(nil), s.Buckets...),
		Today:       today,
	}
}
