package core

import (
	"encoding/json"
	"math"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/valter-silva-au/aipm/pkg/models"
)

const (
	// MaxSubTasks caps the number of sub-tasks accepted from one response.
	MaxSubTasks = 12
	// MaxDependencies caps the dependency prefixes accepted per task.
	MaxDependencies = 8
	// AllTargets is the bulk_update token naming every top-level task.
	AllTargets = "all"
)

// ActionKind is the triage decision returned by the model.
type ActionKind int

const (
	ActionCreate ActionKind = iota + 1
	ActionUpdate
	ActionDelete
	ActionDecompose
	ActionBulkUpdate
)

func (k ActionKind) String() string {
	switch k {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	case ActionDecompose:
		return "decompose"
	case ActionBulkUpdate:
		return "bulk_update"
	}
	return "unknown"
}

func parseActionKind(s string) (ActionKind, bool) {
	tag := strings.ToLower(strings.TrimSpace(s))
	tag = strings.NewReplacer("-", "_", " ", "_").Replace(tag)
	switch tag {
	case "create", "add", "new":
		return ActionCreate, true
	case "update", "edit":
		return ActionUpdate, true
	case "delete", "remove":
		return ActionDelete, true
	case "decompose", "breakdown", "break_down":
		return ActionDecompose, true
	case "bulk_update", "bulkupdate", "bulk":
		return ActionBulkUpdate, true
	}
	return 0, false
}

// Action is a triage decision and the prefixes it addresses.
type Action struct {
	Kind        ActionKind
	Target      string
	Targets     []string
	Instruction string
}

// Update holds per-field deltas. A nil field means unchanged.
type Update struct {
	Title        *string
	Bucket       *string
	Description  *string
	Progress     *models.Progress
	Priority     *models.Priority
	DueDate      *civil.Date
	Dependencies []uuid.UUID
}

// IsEmpty reports whether the update changes nothing.
func (u Update) IsEmpty() bool {
	return u.Title == nil && u.Bucket == nil && u.Description == nil &&
		u.Progress == nil && u.Priority == nil && u.DueDate == nil && len(u.Dependencies) == 0
}

// SubSpec describes one sub-task to create. DependsOn holds indices into
// the same batch.
type SubSpec struct {
	Title       string
	Bucket      *string
	Description string
	Priority    *models.Priority
	Progress    *models.Progress
	DueDate     *civil.Date
	DependsOn   []int
}

// TriageResponse is a validated triage reply.
type TriageResponse struct {
	Action   Action
	Update   Update
	SubTasks []SubSpec
}

// EditResponse is a validated edit reply.
type EditResponse struct {
	Update   Update
	SubTasks []SubSpec
}

// ParseTriage validates a triage reply. Optional fields are permissive; a
// missing or unknown action tag is a ParseError. Dependency prefixes must
// resolve inside ctx, the window that was sent to the model.
func ParseTriage(content string, ctx []ContextTask, buckets []string) (*TriageResponse, error) {
	obj, err := extractObject(content)
	if err != nil {
		return nil, err
	}
	raw, ok := stringField(obj, "action")
	if !ok {
		return nil, newParseError("missing action", content)
	}
	kind, ok := parseActionKind(raw)
	if !ok {
		return nil, newParseError("unknown action "+truncateBytes(raw, 40), content)
	}

	resp := &TriageResponse{
		Action:   Action{Kind: kind},
		Update:   parseUpdate(obj, ctx, buckets),
		SubTasks: parseSubTasks(obj, buckets),
	}
	if target, ok := stringField(obj, "target", "target_id", "task"); ok {
		resp.Action.Target = strings.ToLower(target)
	}
	resp.Action.Targets = parseTargets(obj)
	if instr, ok := stringField(obj, "bulk_instruction", "instruction"); ok {
		resp.Action.Instruction = instr
	}

	switch kind {
	case ActionCreate:
		if resp.Update.Title == nil {
			return nil, newParseError("create without title", content)
		}
	case ActionUpdate, ActionDelete:
		if resp.Action.Target == "" {
			return nil, newParseError(kind.String()+" without target", content)
		}
	case ActionDecompose:
		if len(resp.SubTasks) == 0 {
			return nil, newParseError("decompose without sub_tasks", content)
		}
	case ActionBulkUpdate:
		if len(resp.Action.Targets) == 0 {
			return nil, newParseError("bulk_update without targets", content)
		}
		if resp.Action.Instruction == "" {
			return nil, newParseError("bulk_update without bulk_instruction", content)
		}
	}
	return resp, nil
}

// ParseEdit validates an edit reply. Edit replies carry no action tag.
func ParseEdit(content string, ctx []ContextTask, buckets []string) (*EditResponse, error) {
	obj, err := extractObject(content)
	if err != nil {
		return nil, err
	}
	return &EditResponse{
		Update:   parseUpdate(obj, ctx, buckets),
		SubTasks: parseSubTasks(obj, buckets),
	}, nil
}

// extractObject decodes the text between the first '{' and the last '}'.
func extractObject(content string) (map[string]any, error) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end < start {
		return nil, newParseError("no JSON object", content)
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(content[start:end+1]), &obj); err != nil {
		return nil, newParseError(err.Error(), content)
	}
	return obj, nil
}

// stringField returns the first non-empty trimmed string among keys.
func stringField(obj map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func listField(obj map[string]any, keys ...string) []any {
	for _, k := range keys {
		if l, ok := obj[k].([]any); ok {
			return l
		}
	}
	return nil
}

func parseUpdate(obj map[string]any, ctx []ContextTask, buckets []string) Update {
	var u Update
	if s, ok := stringField(obj, "title"); ok {
		s = clip(s, MaxTitleBytes)
		u.Title = &s
	}
	if s, ok := stringField(obj, "description"); ok {
		s = clip(s, MaxDescriptionBytes)
		u.Description = &s
	}
	if s, ok := stringField(obj, "bucket"); ok {
		u.Bucket = matchBucket(s, buckets)
	}
	if s, ok := stringField(obj, "progress", "status"); ok {
		if p, ok := models.ParseProgress(s); ok {
			u.Progress = &p
		}
	}
	if s, ok := stringField(obj, "priority"); ok {
		if p, ok := models.ParsePriority(s); ok {
			u.Priority = &p
		}
	}
	if s, ok := stringField(obj, "due_date", "due"); ok {
		u.DueDate = parseDate(s)
	}
	u.Dependencies = parseDependencyPrefixes(listField(obj, "dependencies", "depends_on"), ctx)
	return u
}

// parseDependencyPrefixes resolves prefixes against the context window,
// dropping short, unknown and duplicate entries, capped at MaxDependencies.
func parseDependencyPrefixes(raw []any, ctx []ContextTask) []uuid.UUID {
	var out []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		id, ok := resolveInContext(ctx, s)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
		if len(out) == MaxDependencies {
			break
		}
	}
	return out
}

func parseTargets(obj map[string]any) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range listField(obj, "targets", "target_ids") {
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		if s == AllTargets {
			return []string{AllTargets}
		}
		seen[s] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		if s, ok := stringField(obj, "targets"); ok && strings.EqualFold(s, AllTargets) {
			return []string{AllTargets}
		}
	}
	return out
}

// parseSubTasks validates the sub_tasks list. Entries without a title are
// dropped and depends_on indices are remapped to the surviving entries;
// out-of-range, self and dangling indices are discarded.
func parseSubTasks(obj map[string]any, buckets []string) []SubSpec {
	raw := listField(obj, "sub_tasks", "subtasks")
	if len(raw) > MaxSubTasks {
		raw = raw[:MaxSubTasks]
	}

	type pending struct {
		spec SubSpec
		deps []any
	}
	remap := make(map[int]int)
	var kept []pending
	for i, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		title, ok := stringField(m, "title")
		if !ok {
			continue
		}
		spec := SubSpec{Title: clip(title, MaxTitleBytes)}
		if s, ok := stringField(m, "description"); ok {
			spec.Description = clip(s, MaxDescriptionBytes)
		}
		if s, ok := stringField(m, "bucket"); ok {
			spec.Bucket = matchBucket(s, buckets)
		}
		if s, ok := stringField(m, "priority"); ok {
			if p, ok := models.ParsePriority(s); ok {
				spec.Priority = &p
			}
		}
		if s, ok := stringField(m, "progress", "status"); ok {
			if p, ok := models.ParseProgress(s); ok {
				spec.Progress = &p
			}
		}
		if s, ok := stringField(m, "due_date", "due"); ok {
			spec.DueDate = parseDate(s)
		}
		remap[i] = len(kept)
		kept = append(kept, pending{spec: spec, deps: listField(m, "depends_on")})
	}

	out := make([]SubSpec, 0, len(kept))
	for self, p := range kept {
		seen := make(map[int]bool)
		for _, v := range p.deps {
			f, ok := v.(float64)
			if !ok || f != math.Trunc(f) || f < 0 || f >= float64(len(raw)) {
				continue
			}
			idx, ok := remap[int(f)]
			if !ok || idx == self || seen[idx] {
				continue
			}
			seen[idx] = true
			p.spec.DependsOn = append(p.spec.DependsOn, idx)
		}
		out = append(out, p.spec)
	}
	return out
}

// clip truncates s to n bytes and trims the result.
func clip(s string, n int) string {
	return strings.TrimSpace(truncateBytes(s, n))
}

// parseDate accepts strict YYYY-MM-DD calendar dates only.
func parseDate(s string) *civil.Date {
	if len(s) != len("2006-01-02") {
		return nil
	}
	d, err := civil.ParseDate(s)
	if err != nil || !d.IsValid() {
		return nil
	}
	return &d
}

// matchBucket maps a bucket name onto the configured spelling. Separators
// are ignored, so "owner-only" matches "Owner only". Unknown names yield nil.
// With no configured buckets the trimmed name is accepted as is.
func matchBucket(name string, buckets []string) *string {
	name = strings.TrimSpace(name)
	if len(buckets) == 0 {
		return &name
	}
	key := bucketKey(name)
	for _, b := range buckets {
		if bucketKey(b) == key {
			match := b
			return &match
		}
	}
	return nil
}

func bucketKey(s string) string {
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
}

// wireSubTask and wireResponse are the canonical JSON shapes used when a
// parsed response is written back out.
type wireSubTask struct {
	Title       string `json:"title"`
	Bucket      string `json:"bucket,omitempty"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Progress    string `json:"progress,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	DependsOn   []int  `json:"depends_on,omitempty"`
}

type wireResponse struct {
	Action          string        `json:"action"`
	Title           *string       `json:"title,omitempty"`
	Bucket          *string       `json:"bucket,omitempty"`
	Description     *string       `json:"description,omitempty"`
	Progress        string        `json:"progress,omitempty"`
	Priority        string        `json:"priority,omitempty"`
	DueDate         string        `json:"due_date,omitempty"`
	Dependencies    []string      `json:"dependencies,omitempty"`
	Target          string        `json:"target,omitempty"`
	Targets         []string      `json:"targets,omitempty"`
	BulkInstruction string        `json:"bulk_instruction,omitempty"`
	SubTasks        []wireSubTask `json:"sub_tasks,omitempty"`
}

// MarshalJSON writes the response in the canonical triage schema.
func (r TriageResponse) MarshalJSON() ([]byte, error) {
	w := wireResponse{
		Action:          r.Action.Kind.String(),
		Title:           r.Update.Title,
		Bucket:          r.Update.Bucket,
		Description:     r.Update.Description,
		Target:          r.Action.Target,
		Targets:         r.Action.Targets,
		BulkInstruction: r.Action.Instruction,
	}
	if r.Update.Progress != nil {
		w.Progress = string(*r.Update.Progress)
	}
	if r.Update.Priority != nil {
		w.Priority = string(*r.Update.Priority)
	}
	if r.Update.DueDate != nil {
		w.DueDate = r.Update.DueDate.String()
	}
	for _, d := range r.Update.Dependencies {
		w.Dependencies = append(w.Dependencies, ShortID(d))
	}
	for _, s := range r.SubTasks {
		ws := wireSubTask{Title: s.Title, Description: s.Description, DependsOn: s.DependsOn}
		if s.Bucket != nil {
			ws.Bucket = *s.Bucket
		}
		if s.Priority != nil {
			ws.Priority = string(*s.Priority)
		}
		if s.Progress != nil {
			ws.Progress = string(*s.Progress)
		}
		if s.DueDate != nil {
			ws.DueDate = s.DueDate.String()
		}
		w.SubTasks = append(w.SubTasks, ws)
	}
	return json.Marshal(w)
}
