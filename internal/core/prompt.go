package core

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/valter-silva-au/aipm/pkg/models"
)

const (
	// ContextLimit caps the number of tasks serialized into a prompt.
	ContextLimit = 40
	// MaxTitleBytes and MaxDescriptionBytes bound strings sent to and
	// accepted from the model.
	MaxTitleBytes       = 200
	MaxDescriptionBytes = 400
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Prompt is the system + user envelope shared by both prompt shapes.
type Prompt struct {
	System string
	User   string
}

// Messages renders the prompt as chat messages.
func (p Prompt) Messages() []Message {
	return []Message{
		{Role: "system", Content: p.System},
		{Role: "user", Content: p.User},
	}
}

// ContextTask is the slice of a task the model may reference by prefix.
type ContextTask struct {
	ID     uuid.UUID
	Bucket string
	Title  string
}

// recentFirst returns up to ContextLimit tasks ordered by UpdatedAt, newest
// first.
func recentFirst(tasks []models.Task) []models.Task {
	sorted := make([]models.Task, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UpdatedAt.After(sorted[j].UpdatedAt)
	})
	if len(sorted) > ContextLimit {
		sorted = sorted[:ContextLimit]
	}
	return sorted
}

// ContextWindow returns the tasks the model is allowed to reference.
func ContextWindow(tasks []models.Task) []ContextTask {
	recent := recentFirst(tasks)
	out := make([]ContextTask, len(recent))
	for i, t := range recent {
		out[i] = ContextTask{ID: t.ID, Bucket: t.Bucket, Title: truncateBytes(t.Title, MaxTitleBytes)}
	}
	return out
}

// TriageContext renders the existing-task listing for a triage prompt.
// Children are indented under their parent when both are in the window.
func TriageContext(tasks []models.Task) string {
	recent := recentFirst(tasks)
	inWindow := make(map[uuid.UUID]bool, len(recent))
	for _, t := range recent {
		inWindow[t.ID] = true
	}

	var b strings.Builder
	b.WriteString("Existing tasks (id_prefix [bucket] title | progress | priority | description):\n")
	if len(recent) == 0 {
		b.WriteString("(none)\n")
		return b.String()
	}
	for _, t := range recent {
		if t.ParentID != nil && inWindow[*t.ParentID] {
			continue
		}
		b.WriteString("- ")
		b.WriteString(triageLine(t))
		if t.ParentID != nil {
			fmt.Fprintf(&b, " (sub-task of %s)", ShortID(*t.ParentID))
		}
		b.WriteByte('\n')
		for _, c := range recent {
			if c.ParentID != nil && *c.ParentID == t.ID {
				b.WriteString("  ↳ ")
				b.WriteString(triageLine(c))
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}

func triageLine(t models.Task) string {
	desc := strings.TrimSpace(t.Description)
	if desc == "" {
		desc = "no description"
	}
	desc = strings.ReplaceAll(truncateBytes(desc, MaxDescriptionBytes), "\n", " ")
	return fmt.Sprintf("%s [%s] %s | %s | %s | %s",
		t.ShortID(), t.Bucket, truncateBytes(t.Title, MaxTitleBytes), t.Progress, t.Priority, desc)
}

// TaskSnapshot renders the full state of one task for an edit prompt.
func TaskSnapshot(t models.Task) string {
	desc := strings.TrimSpace(t.Description)
	if desc == "" {
		desc = "(none)"
	}
	due := "(none)"
	if t.DueDate != nil {
		due = t.DueDate.String()
	}
	deps := "(none)"
	if len(t.Dependencies) > 0 {
		short := make([]string, len(t.Dependencies))
		for i, d := range t.Dependencies {
			short[i] = ShortID(d)
		}
		deps = strings.Join(short, ", ")
	}
	return fmt.Sprintf("Title: %s\nBucket: %s\nDescription: %s\nProgress: %s\nPriority: %s\nDue: %s\nDependencies: %s",
		truncateBytes(t.Title, MaxTitleBytes), t.Bucket, truncateBytes(desc, MaxDescriptionBytes),
		t.Progress, t.Priority, due, deps)
}

func systemPrompt(today civil.Date) string {
	return fmt.Sprintf("Today is %s. You are an expert AI project manager for a small team. "+
		"You turn short instructions into precise task changes. "+
		"Output ONLY valid JSON. No prose, no markdown.", today)
}

func bucketList(buckets []models.BucketDef) string {
	var b strings.Builder
	for _, def := range buckets {
		b.WriteString("- ")
		b.WriteString(def.Name)
		if def.Description != "" {
			b.WriteString(": ")
			b.WriteString(def.Description)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func bucketEnum(buckets []models.BucketDef) string {
	quoted := make([]string, len(buckets))
	for i, def := range buckets {
		quoted[i] = fmt.Sprintf("%q", def.Name)
	}
	return strings.Join(quoted, " | ")
}

// TriagePrompt builds the prompt that classifies a raw utterance into one
// of the five actions.
func TriagePrompt(today civil.Date, owner, raw, triageContext string, buckets []models.BucketDef, history []string) Prompt {
	var b strings.Builder
	b.WriteString(triageContext)
	b.WriteString("\nBuckets:\n")
	b.WriteString(bucketList(buckets))
	if owner != "" {
		fmt.Fprintf(&b, "\nThe board belongs to %s.\n", owner)
	}
	if len(history) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, h := range history {
			b.WriteString("- ")
			b.WriteString(h)
			b.WriteByte('\n')
		}
	}
	fmt.Fprintf(&b, "\nUser instruction: %s\n\n", strings.TrimSpace(raw))
	fmt.Fprintf(&b, `Return JSON:
{
  "action": "create" | "update" | "delete" | "decompose" | "bulk_update",
  "title"?: string, "bucket"?: %s, "description"?: string,
  "progress"?: "Backlog" | "Todo" | "InProgress" | "Done",
  "priority"?: "Low" | "Medium" | "High" | "Critical",
  "due_date"?: "YYYY-MM-DD",
  "dependencies"?: [id_prefix],
  "target"?: id_prefix,
  "targets"?: [id_prefix] or ["all"],
  "bulk_instruction"?: string,
  "sub_tasks"?: [ { "title": string, "bucket"?: string, "description"?: string,
                   "priority"?: string, "progress"?: string, "due_date"?: "YYYY-MM-DD",
                   "depends_on"?: [index into sub_tasks] } ]
}
Rules:
- "update", "delete" and "decompose" name an existing task in "target".
- "bulk_update" lists "targets" and the change to make in "bulk_instruction".
- Use "decompose" when asked to break a task down; give 2-12 concrete sub_tasks.
- Omit fields you do not want to set.
`, bucketEnum(buckets))

	return Prompt{System: systemPrompt(today), User: b.String()}
}

// EditPrompt builds the prompt for a per-field edit of one known task.
func EditPrompt(today civil.Date, snapshot, instruction string, ctx []ContextTask, buckets []models.BucketDef) Prompt {
	var b strings.Builder
	b.WriteString("Task to edit:\n")
	b.WriteString(snapshot)
	fmt.Fprintf(&b, "\n\nInstruction: %s\n", strings.TrimSpace(instruction))
	if len(ctx) > 0 {
		b.WriteString("\nOther tasks (for dependencies):\n")
		for _, c := range ctx {
			fmt.Fprintf(&b, "- %s [%s] %s\n", ShortID(c.ID), c.Bucket, c.Title)
		}
	}
	b.WriteString("\nBuckets:\n")
	b.WriteString(bucketList(buckets))
	fmt.Fprintf(&b, `
Return JSON with only the changes; null means unchanged:
{
  "title": string | null,
  "bucket": %s | null,
  "description": string | null,
  "progress": "Backlog" | "Todo" | "InProgress" | "Done" | null,
  "priority": "Low" | "Medium" | "High" | "Critical" | null,
  "due_date": "YYYY-MM-DD" | null,
  "dependencies": [id_prefix] | null,
  "sub_tasks": [ { "title": string, "description"?: string, "priority"?: string,
                   "depends_on"?: [index] } ] | null
}
`, bucketEnum(buckets))

	return Prompt{System: systemPrompt(today), User: b.String()}
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
