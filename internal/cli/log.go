package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/aipm/internal/observability"
)

var (
	logSince string
	logType  string
	logLimit int
	logStats bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent activity",
	Long: `Show what the AI and the user changed, newest last.

--type filters by event type; a trailing dot matches a family, e.g. "ai."
for every AI action or "task." for direct edits. --stats prints totals for
the window instead of the events.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Activity == nil {
			return fmt.Errorf("activity log not initialized")
		}

		sinceTime, err := parseSinceDuration(logSince, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}
		out := cmd.OutOrStdout()

		if logStats {
			if StatsCalc == nil {
				return fmt.Errorf("stats calculator not initialized")
			}
			stats, err := StatsCalc.Calculate(sinceTime)
			if err != nil {
				return fmt.Errorf("calculating stats: %w", err)
			}
			if ok, err := printStructured(out, stats); ok {
				return err
			}
			printStats(cmd, sinceTime, stats)
			return nil
		}

		events, err := Activity.Read(observability.EventFilter{Since: &sinceTime, Type: logType, Limit: logLimit})
		if err != nil {
			return fmt.Errorf("reading activity: %w", err)
		}
		if ok, err := printStructured(out, events); ok {
			return err
		}
		if len(events) == 0 {
			fmt.Fprintln(out, "No activity.")
			return nil
		}
		for _, e := range events {
			fmt.Fprintf(out, "%s  %-13s %s\n", e.Time.Local().Format("2006-01-02 15:04"), e.Type, e.Message)
		}
		return nil
	},
}

func printStats(cmd *cobra.Command, since time.Time, s *observability.Stats) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Activity (since %s)\n\n", since.Format("2006-01-02"))
	fmt.Fprintf(out, "  %-22s %d\n", "Events recorded:", s.EventCount)
	fmt.Fprintf(out, "  %-22s %d\n", "AI created:", s.AICreated)
	fmt.Fprintf(out, "  %-22s %d\n", "AI updated:", s.AIUpdated)
	fmt.Fprintf(out, "  %-22s %d\n", "AI deleted:", s.AIDeleted)
	fmt.Fprintf(out, "  %-22s %d\n", "AI decomposed:", s.AIDecomposed)
	fmt.Fprintf(out, "  %-22s %d\n", "AI edits:", s.AIEdits)
	fmt.Fprintf(out, "  %-22s %d\n", "Sub-tasks created:", s.SubTasks)
	fmt.Fprintf(out, "  %-22s %d\n", "Direct changes:", s.UserChanges)
	fmt.Fprintf(out, "  %-22s %d\n", "Undos:", s.Undos)

	if len(s.ByType) > 0 {
		types := make([]string, 0, len(s.ByType))
		for t := range s.ByType {
			types = append(types, t)
		}
		sort.Strings(types)
		fmt.Fprintln(out, "\n  By type:")
		for _, t := range types {
			fmt.Fprintf(out, "    %-20s %d\n", t+":", s.ByType[t])
		}
	}

	if s.OldestEvent != nil {
		fmt.Fprintf(out, "\n  %-22s %s\n", "Oldest event:", s.OldestEvent.Format(time.RFC3339))
	}
	if s.NewestEvent != nil {
		fmt.Fprintf(out, "  %-22s %s\n", "Newest event:", s.NewestEvent.Format(time.RFC3339))
	}
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// or "24h" and returns the corresponding time before now.
func parseSinceDuration(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now.AddDate(0, 0, -7), nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid hour duration %q", s)
		}
		return now.Add(-time.Duration(hours) * time.Hour), nil
	}

	return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
}

func init() {
	logCmd.Flags().StringVar(&logSince, "since", "7d", "Time window (e.g. 7d, 30d, 24h)")
	logCmd.Flags().StringVar(&logType, "type", "", `Only events of this type, or family when it ends in "."`)
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 50, "Show at most this many events (0 for all)")
	logCmd.Flags().BoolVar(&logStats, "stats", false, "Print totals instead of events")
	rootCmd.AddCommand(logCmd)
}
