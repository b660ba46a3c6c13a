package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/pkg/models"
)

var bucketCmd = &cobra.Command{
	Use:   "bucket",
	Short: "Manage buckets",
	Long: `Buckets are the board's columns. Their descriptions are shown to the model
when it picks a bucket for a new task.`,
}

type bucketView struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Tasks       int    `json:"tasks" yaml:"tasks"`
}

var bucketListCmd = &cobra.Command{
	Use:   "list",
	Short: "List buckets with their task counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Settings == nil || TaskMgr == nil {
			return fmt.Errorf("settings not initialized")
		}
		tasks, err := TaskMgr.List(core.TaskFilter{})
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}

		s := Settings.Get()
		views := make([]bucketView, len(s.Buckets))
		for i, b := range s.Buckets {
			views[i] = bucketView{Name: b.Name, Description: b.Description}
			for _, t := range tasks {
				if t.InBucket(b.Name) {
					views[i].Tasks++
				}
			}
		}

		out := cmd.OutOrStdout()
		if ok, err := printStructured(out, views); ok {
			return err
		}
		for _, v := range views {
			fmt.Fprintf(out, "  %-16s %3d  %s\n", v.Name, v.Tasks, v.Description)
		}
		return nil
	},
}

var bucketAddDesc string

var bucketAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Settings == nil {
			return fmt.Errorf("settings not initialized")
		}
		err := Settings.Update(func(s *models.Settings) error {
			return core.AddBucket(s, args[0], bucketAddDesc)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added bucket %s\n", strings.TrimSpace(args[0]))
		return nil
	},
}

var bucketDescCmd = &cobra.Command{
	Use:   "desc <name> [description]",
	Short: "Set or clear a bucket's description",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Settings == nil {
			return fmt.Errorf("settings not initialized")
		}
		desc := strings.Join(args[1:], " ")
		err := Settings.Update(func(s *models.Settings) error {
			return core.DescribeBucket(s, args[0], desc)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated bucket %s\n", args[0])
		return nil
	},
}

// mutateBuckets runs fn against the settings and the persisted board
// together. The board is saved only if the settings were saved.
func mutateBuckets(fn func(s *models.Settings, b *core.Board, now time.Time) (int, error)) (int, error) {
	var (
		moved  int
		setErr error
	)
	err := TaskMgr.Mutate(func(b *core.Board, now time.Time) bool {
		setErr = Settings.Update(func(s *models.Settings) error {
			n, err := fn(s, b, now)
			moved = n
			return err
		})
		return setErr == nil && moved > 0
	})
	if setErr != nil {
		return 0, setErr
	}
	return moved, err
}

var bucketRenameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a bucket and move its tasks",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Settings == nil || TaskMgr == nil {
			return fmt.Errorf("settings not initialized")
		}
		moved, err := mutateBuckets(func(s *models.Settings, b *core.Board, now time.Time) (int, error) {
			return core.RenameBucket(s, b, args[0], args[1], now)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s (%d tasks moved)\n", args[0], args[1], moved)
		return nil
	},
}

var bucketDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a bucket, moving its tasks to the first remaining bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Settings == nil || TaskMgr == nil {
			return fmt.Errorf("settings not initialized")
		}
		var to string
		moved, err := mutateBuckets(func(s *models.Settings, b *core.Board, now time.Time) (int, error) {
			dest, n, err := core.DeleteBucket(s, b, args[0], now)
			to = dest
			return n, err
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted bucket %s (%d tasks moved to %s)\n", args[0], moved, to)
		return nil
	},
}

func init() {
	bucketAddCmd.Flags().StringVarP(&bucketAddDesc, "desc", "d", "", "Bucket description")
	for _, c := range []*cobra.Command{bucketDescCmd, bucketRenameCmd, bucketDeleteCmd} {
		c.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return completeBuckets(cmd, args, toComplete)
		}
	}
	bucketCmd.AddCommand(bucketListCmd, bucketAddCmd, bucketDescCmd, bucketRenameCmd, bucketDeleteCmd)
	rootCmd.AddCommand(bucketCmd)
}
