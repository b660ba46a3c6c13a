package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/pkg/models"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective settings, with API keys masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Settings == nil {
			return fmt.Errorf("settings not initialized")
		}
		s := Settings.Get()
		s.OpenAIAPIKey = core.MaskKey(s.OpenAIAPIKey)
		s.AnthropicAPIKey = core.MaskKey(s.AnthropicAPIKey)

		out := cmd.OutOrStdout()
		if ok, err := printStructured(out, s); ok {
			return err
		}
		rows := []struct{ key, value string }{
			{"owner_name", s.OwnerName},
			{"ai_enabled", fmt.Sprint(s.AIEnabled)},
			{"model", s.Model},
			{"api_url", orDash(s.APIURL)},
			{"timeout_secs", fmt.Sprint(s.TimeoutSecs)},
			{"openai_api_key", orDash(s.OpenAIAPIKey)},
			{"anthropic_api_key", orDash(s.AnthropicAPIKey)},
			{"show_backlog", fmt.Sprint(s.ShowBacklog)},
			{"show_todo", fmt.Sprint(s.ShowTodo)},
			{"show_in_progress", fmt.Sprint(s.ShowInProgress)},
			{"show_done", fmt.Sprint(s.ShowDone)},
		}
		for _, r := range rows {
			fmt.Fprintf(out, "  %-18s %s\n", r.key+":", r.value)
		}
		fmt.Fprintf(out, "  %-18s %v\n", "ai_configured:", core.AIConfigured(s))
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Change one setting and save settings.json.

Keys: owner_name, ai_enabled, model, api_url, timeout_secs, openai_api_key,
anthropic_api_key, show_backlog, show_todo, show_in_progress, show_done.
Toggles accept true/false, yes/no, on/off or 1/0.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Settings == nil {
			return fmt.Errorf("settings not initialized")
		}
		err := Settings.Update(func(s *models.Settings) error {
			return core.SetSetting(s, args[0], args[1])
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s\n", args[0])
		return nil
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
