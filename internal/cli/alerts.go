package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/internal/observability"
)

var alertThresholds = observability.DefaultAlertThresholds()

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show tasks that need attention",
	Long: `Evaluate the task list and display any triggered alerts.

Alerts check for overdue tasks, tasks due soon, in-progress tasks nobody has
touched in a while, and a backlog that has grown too large.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskMgr == nil {
			return fmt.Errorf("task manager not initialized")
		}

		tasks, err := TaskMgr.List(core.TaskFilter{})
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}
		alerts := observability.EvaluateAlerts(tasks, alertThresholds, time.Now())

		out := cmd.OutOrStdout()
		if ok, err := printStructured(out, alerts); ok {
			return err
		}
		if len(alerts) == 0 {
			fmt.Fprintln(out, "No active alerts.")
			return nil
		}

		fmt.Fprintf(out, "%d active alert(s):\n\n", len(alerts))
		for _, alert := range alerts {
			severity := strings.ToUpper(string(alert.Severity))
			fmt.Fprintf(out, "  [%s] %s\n", severity, alert.Message)
		}
		return nil
	},
}

func init() {
	alertsCmd.Flags().IntVar(&alertThresholds.StaleDays, "stale-days", alertThresholds.StaleDays, "Days without change before in-progress work is stale")
	alertsCmd.Flags().IntVar(&alertThresholds.DueSoonDays, "due-soon-days", alertThresholds.DueSoonDays, "Days ahead that count as due soon")
	alertsCmd.Flags().IntVar(&alertThresholds.MaxBacklogSize, "max-backlog", alertThresholds.MaxBacklogSize, "Backlog size that triggers an alert")
	rootCmd.AddCommand(alertsCmd)
}
