package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/aipm/internal/core"
)

// completeTaskIDs lists short ids with the title as the description. Only
// the first positional argument is completed.
func completeTaskIDs(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if TaskMgr == nil || len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return taskIDCandidates(toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeTaskIDFlag completes a flag value that names a task.
func completeTaskIDFlag(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if TaskMgr == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return taskIDCandidates(toComplete), cobra.ShellCompDirectiveNoFileComp
}

func taskIDCandidates(toComplete string) []string {
	tasks, err := TaskMgr.List(core.TaskFilter{})
	if err != nil {
		return nil
	}
	prefix := strings.ToLower(toComplete)
	var ids []string
	for _, t := range tasks {
		if strings.HasPrefix(t.ShortID(), prefix) {
			ids = append(ids, t.ShortID()+"\t"+t.Title)
		}
	}
	return ids
}

// completeBuckets lists the configured bucket names.
func completeBuckets(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	if Settings == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var names []string
	for _, b := range Settings.Get().Buckets {
		names = append(names, b.Name+"\t"+b.Description)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

// completePriorities returns the priority values.
func completePriorities(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{
		"low\tWhenever",
		"medium\tDefault",
		"high\tSoon",
		"critical\tDrop everything",
	}, cobra.ShellCompDirectiveNoFileComp
}

// completeProgress returns the lane values.
func completeProgress(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{
		"backlog\tNot planned yet",
		"todo\tPlanned",
		"in_progress\tBeing worked on",
		"done\tFinished",
	}, cobra.ShellCompDirectiveNoFileComp
}

// registerTaskFieldCompletions wires flag completions on add and edit.
func registerTaskFieldCompletions(cmd *cobra.Command) {
	_ = cmd.RegisterFlagCompletionFunc("bucket", completeBuckets)
	_ = cmd.RegisterFlagCompletionFunc("priority", completePriorities)
	_ = cmd.RegisterFlagCompletionFunc("progress", completeProgress)
	_ = cmd.RegisterFlagCompletionFunc("dep", completeTaskIDFlag)
}
