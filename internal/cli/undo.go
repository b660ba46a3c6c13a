package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/aipm/internal/storage"
)

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Restore the task list from before the last change",
	Long: `Restore the snapshot taken before the most recent change, whether it came
from the AI, the board or the CLI. Only one step is kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskMgr == nil {
			return fmt.Errorf("task manager not initialized")
		}
		n, savedAt, err := TaskMgr.Undo()
		if errors.Is(err, storage.ErrNothingToUndo) {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to undo.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Restored %d tasks from %s\n", n, savedAt.Local().Format("2006-01-02 15:04"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(undoCmd)
}
