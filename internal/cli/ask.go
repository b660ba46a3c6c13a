package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/aipm/internal/core"
)

var askCmd = &cobra.Command{
	Use:   "ask <text>",
	Short: "Triage one line of input and apply the result",
	Long: `Send one line through the same pipeline as the board's input bar and wait
for the model's answer, including any per-task edits a bulk update fans out.

  aipm ask "renew the car insurance before friday"
  aipm ask "@3f2a make it critical"

Without an API key the line is filed locally using keyword rules.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskMgr == nil || AIClient == nil {
			return fmt.Errorf("task manager not initialized")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		worker := core.NewWorker(AIClient, Logger)
		worker.Start(ctx)
		defer func() {
			stop()
			worker.Wait()
		}()

		toasts, err := TaskMgr.Ask(ctx, worker, strings.Join(args, " "))
		out := cmd.OutOrStdout()
		if ok, perr := printStructured(out, map[string][]string{"messages": toasts}); ok {
			if err != nil {
				return err
			}
			return perr
		}
		for _, t := range toasts {
			fmt.Fprintln(out, t)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
