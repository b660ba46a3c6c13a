package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/pkg/models"
)

// taskView is the printable form of a task used for -o json|yaml.
type taskView struct {
	ID           string   `json:"id" yaml:"id"`
	Title        string   `json:"title" yaml:"title"`
	Bucket       string   `json:"bucket" yaml:"bucket"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	Progress     string   `json:"progress" yaml:"progress"`
	Priority     string   `json:"priority" yaml:"priority"`
	DueDate      string   `json:"due_date,omitempty" yaml:"due_date,omitempty"`
	Parent       string   `json:"parent,omitempty" yaml:"parent,omitempty"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Created      string   `json:"created" yaml:"created"`
	Updated      string   `json:"updated" yaml:"updated"`
	Started      string   `json:"started,omitempty" yaml:"started,omitempty"`
}

func viewOf(t models.Task) taskView {
	v := taskView{
		ID:          t.ShortID(),
		Title:       t.Title,
		Bucket:      t.Bucket,
		Description: t.Description,
		Progress:    t.Progress.Label(),
		Priority:    string(t.Priority),
		Created:     t.CreatedAt.Format(time.RFC3339),
		Updated:     t.UpdatedAt.Format(time.RFC3339),
	}
	if t.DueDate != nil {
		v.DueDate = t.DueDate.String()
	}
	if t.ParentID != nil {
		v.Parent = core.ShortID(*t.ParentID)
	}
	for _, d := range t.Dependencies {
		v.Dependencies = append(v.Dependencies, core.ShortID(d))
	}
	if t.StartDate != nil {
		v.Started = t.StartDate.Format(time.RFC3339)
	}
	return v
}

func viewsOf(tasks []models.Task) []taskView {
	out := make([]taskView, len(tasks))
	for i, t := range tasks {
		out[i] = viewOf(t)
	}
	return out
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "List and change tasks without the AI",
	Long: `Read and change the task list directly. Tasks are addressed by a short id
prefix of at least 4 hex characters, as shown by "aipm task list".`,
}

var (
	listBucket   string
	listProgress []string
	listParent   string
)

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskMgr == nil {
			return fmt.Errorf("task manager not initialized")
		}
		filter := core.TaskFilter{Bucket: listBucket, Parent: listParent}
		for _, s := range listProgress {
			p, ok := models.ParseProgress(s)
			if !ok {
				return fmt.Errorf("invalid progress %q (use backlog, todo, in_progress, done)", s)
			}
			filter.Progress = append(filter.Progress, p)
		}

		tasks, err := TaskMgr.List(filter)
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}

		out := cmd.OutOrStdout()
		if ok, err := printStructured(out, viewsOf(tasks)); ok {
			return err
		}
		if len(tasks) == 0 {
			fmt.Fprintln(out, "No tasks found.")
			return nil
		}
		printTaskTable(out, tasks)
		return nil
	},
}

// printTaskTable prints parents followed by their sub-tasks.
func printTaskTable(w io.Writer, tasks []models.Task) {
	b := core.NewBoard(tasks)
	fmt.Fprintf(w, "%-8s  %-10s  %-11s  %-8s  %-10s  %s\n", "ID", "BUCKET", "PROGRESS", "PRIORITY", "DUE", "TITLE")
	printed := make(map[int]bool)
	row := func(i int, indent string) {
		t := tasks[i]
		due := "-"
		if t.DueDate != nil {
			due = t.DueDate.String()
		}
		fmt.Fprintf(w, "%-8s  %-10s  %-11s  %-8s  %-10s  %s%s\n",
			t.ShortID(), t.Bucket, t.Progress.Label(), t.Priority, due, indent, t.Title)
		printed[i] = true
	}
	for i, t := range tasks {
		if t.ParentID != nil && b.Index(*t.ParentID) >= 0 {
			continue
		}
		row(i, "")
		for _, id := range b.Children(t.ID) {
			row(b.Index(id), "└ ")
		}
	}
	for i := range tasks {
		if !printed[i] {
			row(i, "└ ")
		}
	}
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one task in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskMgr == nil {
			return fmt.Errorf("task manager not initialized")
		}
		t, err := TaskMgr.Get(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		v := viewOf(t)
		if ok, err := printStructured(out, v); ok {
			return err
		}
		fmt.Fprintf(out, "%s  %s\n\n", v.ID, v.Title)
		fmt.Fprintf(out, "  %-14s %s\n", "Bucket:", v.Bucket)
		fmt.Fprintf(out, "  %-14s %s\n", "Progress:", v.Progress)
		fmt.Fprintf(out, "  %-14s %s\n", "Priority:", v.Priority)
		if v.DueDate != "" {
			fmt.Fprintf(out, "  %-14s %s\n", "Due:", v.DueDate)
		}
		if v.Parent != "" {
			fmt.Fprintf(out, "  %-14s %s\n", "Parent:", v.Parent)
		}
		if len(v.Dependencies) > 0 {
			fmt.Fprintf(out, "  %-14s %s\n", "Depends on:", strings.Join(v.Dependencies, ", "))
		}
		fmt.Fprintf(out, "  %-14s %s\n", "Created:", v.Created)
		fmt.Fprintf(out, "  %-14s %s\n", "Updated:", v.Updated)
		if v.Started != "" {
			fmt.Fprintf(out, "  %-14s %s\n", "Started:", v.Started)
		}
		if v.Description != "" {
			fmt.Fprintf(out, "\n%s\n", v.Description)
		}
		return nil
	},
}

// taskFlags are the field flags shared by add and edit.
type taskFlags struct {
	title       string
	bucket      string
	description string
	parent      string
	priority    string
	progress    string
	due         string
	deps        []string
}

var (
	addFlags  taskFlags
	editFlags taskFlags
)

func parseDue(s string) (*civil.Date, error) {
	d, err := civil.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid due date %q (use YYYY-MM-DD)", s)
	}
	return &d, nil
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a task",
	Long: `Create a task directly, without AI triage.

Sub-tasks are created with --parent; a sub-task of a sub-task attaches to the
top-level task.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskMgr == nil {
			return fmt.Errorf("task manager not initialized")
		}
		spec := core.NewTaskSpec{
			Title:       strings.Join(args, " "),
			Bucket:      addFlags.bucket,
			Description: addFlags.description,
			Parent:      addFlags.parent,
			DependsOn:   addFlags.deps,
		}
		if addFlags.priority != "" {
			p, ok := models.ParsePriority(addFlags.priority)
			if !ok {
				return fmt.Errorf("invalid priority %q (use low, medium, high, critical)", addFlags.priority)
			}
			spec.Priority = &p
		}
		if addFlags.progress != "" {
			p, ok := models.ParseProgress(addFlags.progress)
			if !ok {
				return fmt.Errorf("invalid progress %q (use backlog, todo, in_progress, done)", addFlags.progress)
			}
			spec.Progress = &p
		}
		if addFlags.due != "" {
			d, err := parseDue(addFlags.due)
			if err != nil {
				return err
			}
			spec.DueDate = d
		}

		t, err := TaskMgr.Create(spec)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if ok, err := printStructured(out, viewOf(t)); ok {
			return err
		}
		fmt.Fprintf(out, "Created %s  %s (%s)\n", t.ShortID(), t.Title, t.Bucket)
		return nil
	},
}

var taskEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change a task's fields",
	Long: `Change the fields given as flags. Dependencies given with --dep replace the
existing list. A parent's progress follows its sub-tasks and cannot be set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskMgr == nil {
			return fmt.Errorf("task manager not initialized")
		}
		u, err := editUpdate(cmd)
		if err != nil {
			return err
		}
		if u.IsEmpty() {
			return fmt.Errorf("nothing to change: pass at least one field flag")
		}

		t, err := TaskMgr.Edit(args[0], u)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if ok, err := printStructured(out, viewOf(t)); ok {
			return err
		}
		fmt.Fprintf(out, "Updated %s  %s\n", t.ShortID(), t.Title)
		return nil
	},
}

// editUpdate builds an Update from the flags the user actually set.
func editUpdate(cmd *cobra.Command) (core.Update, error) {
	var u core.Update
	changed := cmd.Flags().Changed

	if changed("title") {
		title := strings.TrimSpace(editFlags.title)
		if title == "" {
			return u, fmt.Errorf("title must not be empty")
		}
		u.Title = &title
	}
	if changed("bucket") {
		s := Settings.Get()
		i := s.FindBucket(editFlags.bucket)
		if i < 0 {
			return u, fmt.Errorf("unknown bucket %q", editFlags.bucket)
		}
		name := s.Buckets[i].Name
		u.Bucket = &name
	}
	if changed("desc") {
		d := editFlags.description
		u.Description = &d
	}
	if changed("priority") {
		p, ok := models.ParsePriority(editFlags.priority)
		if !ok {
			return u, fmt.Errorf("invalid priority %q (use low, medium, high, critical)", editFlags.priority)
		}
		u.Priority = &p
	}
	if changed("progress") {
		p, ok := models.ParseProgress(editFlags.progress)
		if !ok {
			return u, fmt.Errorf("invalid progress %q (use backlog, todo, in_progress, done)", editFlags.progress)
		}
		u.Progress = &p
	}
	if changed("due") {
		d, err := parseDue(editFlags.due)
		if err != nil {
			return u, err
		}
		u.DueDate = d
	}
	if changed("dep") {
		for _, prefix := range editFlags.deps {
			dep, err := TaskMgr.Get(prefix)
			if err != nil {
				return u, err
			}
			u.Dependencies = append(u.Dependencies, dep.ID)
		}
	}
	return u, nil
}

var taskProgressCmd = &cobra.Command{
	Use:   "progress <id> <progress>",
	Short: "Move a task to backlog, todo, in_progress or done",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskMgr == nil {
			return fmt.Errorf("task manager not initialized")
		}
		p, ok := models.ParseProgress(args[1])
		if !ok {
			return fmt.Errorf("invalid progress %q (use backlog, todo, in_progress, done)", args[1])
		}
		t, err := TaskMgr.SetProgress(args[0], p)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", t.Title, t.Progress.Label())
		return nil
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task and its sub-tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskMgr == nil {
			return fmt.Errorf("task manager not initialized")
		}
		removed, err := TaskMgr.Delete(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if ok, err := printStructured(out, viewsOf(removed)); ok {
			return err
		}
		msg := "Deleted " + removed[0].Title
		if len(removed) > 1 {
			msg = fmt.Sprintf("Deleted %s (+%d sub-tasks)", removed[0].Title, len(removed)-1)
		}
		fmt.Fprintln(out, msg)
		return nil
	},
}

func addFieldFlags(cmd *cobra.Command, f *taskFlags) {
	cmd.Flags().StringVarP(&f.bucket, "bucket", "b", "", "Bucket name")
	cmd.Flags().StringVarP(&f.description, "desc", "d", "", "Description")
	cmd.Flags().StringVarP(&f.priority, "priority", "p", "", "Priority: low, medium, high, critical")
	cmd.Flags().StringVar(&f.progress, "progress", "", "Progress: backlog, todo, in_progress, done")
	cmd.Flags().StringVar(&f.due, "due", "", "Due date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&f.deps, "dep", nil, "Id prefix of a task this one depends on (repeatable)")
}

func init() {
	taskListCmd.Flags().StringVarP(&listBucket, "bucket", "b", "", "Only tasks in this bucket")
	taskListCmd.Flags().StringSliceVar(&listProgress, "progress", nil, "Only tasks at this progress (repeatable)")
	taskListCmd.Flags().StringVar(&listParent, "parent", "", "Only sub-tasks of this task")

	addFieldFlags(taskAddCmd, &addFlags)
	taskAddCmd.Flags().StringVar(&addFlags.parent, "parent", "", "Id prefix of the parent task")

	addFieldFlags(taskEditCmd, &editFlags)
	taskEditCmd.Flags().StringVar(&editFlags.title, "title", "", "New title")

	registerTaskFieldCompletions(taskAddCmd)
	registerTaskFieldCompletions(taskEditCmd)
	_ = taskAddCmd.RegisterFlagCompletionFunc("parent", completeTaskIDFlag)
	_ = taskListCmd.RegisterFlagCompletionFunc("bucket", completeBuckets)
	_ = taskListCmd.RegisterFlagCompletionFunc("progress", completeProgress)
	_ = taskListCmd.RegisterFlagCompletionFunc("parent", completeTaskIDFlag)
	for _, c := range []*cobra.Command{taskShowCmd, taskEditCmd, taskProgressCmd, taskDeleteCmd} {
		c.ValidArgsFunction = completeTaskIDs
	}

	taskCmd.AddCommand(taskListCmd, taskShowCmd, taskAddCmd, taskEditCmd, taskProgressCmd, taskDeleteCmd)
	rootCmd.AddCommand(taskCmd)
}
