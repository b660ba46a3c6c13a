package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	aipmmcp "github.com/valter-silva-au/aipm/internal/mcp"
	"github.com/valter-silva-au/aipm/internal/observability"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the aipm MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the aipm MCP server on stdio",
	Long: `Start the aipm MCP server on stdio transport.

The server exposes the task list as MCP tools that other AI assistants can
call: list_tasks, get_task, create_task, set_progress, delete_task,
get_stats, get_alerts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskMgr == nil {
			return fmt.Errorf("task manager not initialized")
		}

		srv := aipmmcp.NewServer(TaskMgr, StatsCalc, observability.DefaultAlertThresholds(), appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		Logger.Info("mcp server starting")
		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
