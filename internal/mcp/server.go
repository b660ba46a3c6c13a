// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the aipm task list as tools for other AI assistants.
package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/internal/observability"
	"github.com/valter-silva-au/aipm/pkg/models"
)

// Server wraps the task service and exposes it as MCP tools.
type Server struct {
	server     *gomcp.Server
	taskMgr    core.TaskManager
	stats      observability.StatsCalculator
	thresholds observability.AlertThresholds
	now        func() time.Time
}

// NewServer creates a new MCP server. stats may be nil if the activity log
// could not be opened.
func NewServer(taskMgr core.TaskManager, stats observability.StatsCalculator, thresholds observability.AlertThresholds, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		taskMgr:    taskMgr,
		stats:      stats,
		thresholds: thresholds,
		now:        time.Now,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "aipm", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run serves on stdio, blocking until the client disconnects or the context
// is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type getTaskInput struct {
	TaskID string `json:"task_id" jsonschema:"required,short id prefix of the task (at least 4 hex characters)"`
}

type taskOutput struct {
	ID           string   `json:"id"`
	ShortID      string   `json:"short_id"`
	Title        string   `json:"title"`
	Bucket       string   `json:"bucket"`
	Description  string   `json:"description,omitempty"`
	Progress     string   `json:"progress"`
	Priority     string   `json:"priority"`
	DueDate      string   `json:"due_date,omitempty"`
	ParentID     string   `json:"parent_id,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	Created      string   `json:"created"`
	Updated      string   `json:"updated"`
	Started      string   `json:"started,omitempty"`
}

type listTasksInput struct {
	Bucket   string `json:"bucket,omitempty" jsonschema:"only tasks in this bucket"`
	Progress string `json:"progress,omitempty" jsonschema:"only tasks at this progress (backlog, todo, in_progress, done)"`
	Parent   string `json:"parent,omitempty" jsonschema:"only sub-tasks of this task id prefix"`
}

type listTasksOutput struct {
	Tasks []taskOutput `json:"tasks"`
	Count int          `json:"count"`
}

type createTaskInput struct {
	Title       string   `json:"title" jsonschema:"required,task title"`
	Bucket      string   `json:"bucket,omitempty" jsonschema:"bucket name; defaults to the first bucket or the parent's bucket"`
	Description string   `json:"description,omitempty" jsonschema:"optional description"`
	Parent      string   `json:"parent,omitempty" jsonschema:"id prefix of the parent task"`
	Priority    string   `json:"priority,omitempty" jsonschema:"low, medium, high or critical"`
	Progress    string   `json:"progress,omitempty" jsonschema:"backlog, todo, in_progress or done"`
	DueDate     string   `json:"due_date,omitempty" jsonschema:"due date as YYYY-MM-DD"`
	DependsOn   []string `json:"depends_on,omitempty" jsonschema:"id prefixes of tasks this one depends on"`
}

type setProgressInput struct {
	TaskID   string `json:"task_id" jsonschema:"required,short id prefix of the task"`
	Progress string `json:"progress" jsonschema:"required,backlog, todo, in_progress or done"`
}

type deleteTaskInput struct {
	TaskID string `json:"task_id" jsonschema:"required,short id prefix of the task; sub-tasks are deleted with it"`
}

type deleteTaskOutput struct {
	Message string   `json:"message"`
	Removed []string `json:"removed"`
}

type getStatsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type statsOutput struct {
	AICreated    int            `json:"ai_created"`
	AIUpdated    int            `json:"ai_updated"`
	AIDeleted    int            `json:"ai_deleted"`
	AIDecomposed int            `json:"ai_decomposed"`
	AIEdits      int            `json:"ai_edits"`
	SubTasks     int            `json:"sub_tasks"`
	UserChanges  int            `json:"user_changes"`
	Undos        int            `json:"undos"`
	ByType       map[string]int `json:"by_type"`
	EventCount   int            `json:"event_count"`
	OldestEvent  string         `json:"oldest_event,omitempty"`
	NewestEvent  string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID        string `json:"id"`
	Condition string `json:"condition"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_tasks",
		Description: "List tasks, optionally filtered by bucket, progress or parent.",
	}, s.handleListTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_task",
		Description: "Get one task by short id prefix, including description, dependencies and dates.",
	}, s.handleGetTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "create_task",
		Description: "Create a task directly, without AI triage. Sub-tasks of sub-tasks attach to the top-level parent.",
	}, s.handleCreateTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "set_progress",
		Description: "Move a task to backlog, todo, in_progress or done. Parents with sub-tasks follow their children and cannot be set.",
	}, s.handleSetProgress)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "delete_task",
		Description: "Delete a task and its sub-tasks. Dependencies on deleted tasks are removed.",
	}, s.handleDeleteTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_stats",
		Description: "Summarise the activity log: AI creates, updates, deletes, edits and user changes.",
	}, s.handleGetStats)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate board alerts: overdue tasks, tasks due soon, stale in-progress work and backlog size.",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleListTasks(_ context.Context, _ *gomcp.CallToolRequest, input listTasksInput) (*gomcp.CallToolResult, listTasksOutput, error) {
	filter := core.TaskFilter{Bucket: input.Bucket, Parent: input.Parent}
	if input.Progress != "" {
		p, ok := models.ParseProgress(input.Progress)
		if !ok {
			return errorResult(fmt.Sprintf("invalid progress %q: must be one of backlog, todo, in_progress, done", input.Progress)), listTasksOutput{}, nil
		}
		filter.Progress = []models.Progress{p}
	}

	tasks, err := s.taskMgr.List(filter)
	if err != nil {
		return errorResult(fmt.Sprintf("listing tasks: %s", err)), listTasksOutput{}, nil
	}

	out := listTasksOutput{
		Tasks: make([]taskOutput, len(tasks)),
		Count: len(tasks),
	}
	for i, t := range tasks {
		out.Tasks[i] = taskToOutput(t)
	}
	return nil, out, nil
}

func (s *Server) handleGetTask(_ context.Context, _ *gomcp.CallToolRequest, input getTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskOutput{}, nil
	}

	task, err := s.taskMgr.Get(input.TaskID)
	if err != nil {
		return errorResult(fmt.Sprintf("getting task %s: %s", input.TaskID, err)), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleCreateTask(_ context.Context, _ *gomcp.CallToolRequest, input createTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	if strings.TrimSpace(input.Title) == "" {
		return errorResult("title is required"), taskOutput{}, nil
	}

	spec := core.NewTaskSpec{
		Title:       input.Title,
		Bucket:      input.Bucket,
		Description: input.Description,
		Parent:      input.Parent,
		DependsOn:   input.DependsOn,
	}
	if input.Priority != "" {
		p, ok := models.ParsePriority(input.Priority)
		if !ok {
			return errorResult(fmt.Sprintf("invalid priority %q: must be one of low, medium, high, critical", input.Priority)), taskOutput{}, nil
		}
		spec.Priority = &p
	}
	if input.Progress != "" {
		p, ok := models.ParseProgress(input.Progress)
		if !ok {
			return errorResult(fmt.Sprintf("invalid progress %q: must be one of backlog, todo, in_progress, done", input.Progress)), taskOutput{}, nil
		}
		spec.Progress = &p
	}
	if input.DueDate != "" {
		d, err := civil.ParseDate(input.DueDate)
		if err != nil {
			return errorResult(fmt.Sprintf("invalid due_date %q: use YYYY-MM-DD", input.DueDate)), taskOutput{}, nil
		}
		spec.DueDate = &d
	}

	task, err := s.taskMgr.Create(spec)
	if err != nil {
		return errorResult(fmt.Sprintf("creating task: %s", err)), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleSetProgress(_ context.Context, _ *gomcp.CallToolRequest, input setProgressInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskOutput{}, nil
	}
	p, ok := models.ParseProgress(input.Progress)
	if !ok {
		return errorResult(fmt.Sprintf("invalid progress %q: must be one of backlog, todo, in_progress, done", input.Progress)), taskOutput{}, nil
	}

	task, err := s.taskMgr.SetProgress(input.TaskID, p)
	if err != nil {
		return errorResult(fmt.Sprintf("updating task %s progress: %s", input.TaskID, err)), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleDeleteTask(_ context.Context, _ *gomcp.CallToolRequest, input deleteTaskInput) (*gomcp.CallToolResult, deleteTaskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), deleteTaskOutput{}, nil
	}

	removed, err := s.taskMgr.Delete(input.TaskID)
	if err != nil {
		return errorResult(fmt.Sprintf("deleting task %s: %s", input.TaskID, err)), deleteTaskOutput{}, nil
	}

	out := deleteTaskOutput{Removed: make([]string, len(removed))}
	for i, t := range removed {
		out.Removed[i] = t.ShortID()
	}
	out.Message = fmt.Sprintf("deleted %s", removed[0].Title)
	if len(removed) > 1 {
		out.Message = fmt.Sprintf("deleted %s (+%d sub-tasks)", removed[0].Title, len(removed)-1)
	}
	return nil, out, nil
}

func (s *Server) handleGetStats(_ context.Context, _ *gomcp.CallToolRequest, input getStatsInput) (*gomcp.CallToolResult, statsOutput, error) {
	if s.stats == nil {
		return errorResult("activity stats not available (activity log may be disabled)"), statsOutput{ByType: map[string]int{}}, nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}
	since, err := parseSince(sinceStr, s.now())
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), statsOutput{ByType: map[string]int{}}, nil
	}

	st, err := s.stats.Calculate(since)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating stats: %s", err)), statsOutput{ByType: map[string]int{}}, nil
	}

	out := statsOutput{
		AICreated:    st.AICreated,
		AIUpdated:    st.AIUpdated,
		AIDeleted:    st.AIDeleted,
		AIDecomposed: st.AIDecomposed,
		AIEdits:      st.AIEdits,
		SubTasks:     st.SubTasks,
		UserChanges:  st.UserChanges,
		Undos:        st.Undos,
		ByType:       st.ByType,
		EventCount:   st.EventCount,
	}
	if st.OldestEvent != nil {
		out.OldestEvent = st.OldestEvent.Format(time.RFC3339)
	}
	if st.NewestEvent != nil {
		out.NewestEvent = st.NewestEvent.Format(time.RFC3339)
	}
	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	tasks, err := s.taskMgr.List(core.TaskFilter{})
	if err != nil {
		return errorResult(fmt.Sprintf("listing tasks: %s", err)), getAlertsOutput{}, nil
	}

	alerts := observability.EvaluateAlerts(tasks, s.thresholds, s.now())
	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:        a.ID,
			Condition: a.Condition,
			Severity:  string(a.Severity),
			Message:   a.Message,
		}
	}
	return nil, out, nil
}

// --- Helpers ---

func taskToOutput(t models.Task) taskOutput {
	out := taskOutput{
		ID:          t.ID.String(),
		ShortID:     t.ShortID(),
		Title:       t.Title,
		Bucket:      t.Bucket,
		Description: t.Description,
		Progress:    string(t.Progress),
		Priority:    string(t.Priority),
		Created:     t.CreatedAt.Format(time.RFC3339),
		Updated:     t.UpdatedAt.Format(time.RFC3339),
	}
	if t.DueDate != nil {
		out.DueDate = t.DueDate.String()
	}
	if t.ParentID != nil {
		out.ParentID = core.ShortID(*t.ParentID)
	}
	for _, d := range t.Dependencies {
		out.Dependencies = append(out.Dependencies, core.ShortID(d))
	}
	if t.StartDate != nil {
		out.Started = t.StartDate.Format(time.RFC3339)
	}
	return out
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a human-friendly duration string like "7d", "30d", or "24h"
// into the corresponding time before now.
func parseSince(s string, now time.Time) (time.Time, error) {
	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
