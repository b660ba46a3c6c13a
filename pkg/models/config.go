package models

import (
	"fmt"
	"strings"
)

// BucketDef is a named grouping column with an optional description that
// the model sees when it picks a bucket.
type BucketDef struct {
	Name        string `json:"name" yaml:"name" mapstructure:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
}

// Settings holds user preferences persisted in settings.json.
type Settings struct {
	OwnerName       string      `json:"owner_name" yaml:"owner_name" mapstructure:"owner_name"`
	AIEnabled       bool        `json:"ai_enabled" yaml:"ai_enabled" mapstructure:"ai_enabled"`
	OpenAIAPIKey    string      `json:"openai_api_key" yaml:"openai_api_key" mapstructure:"openai_api_key"`
	AnthropicAPIKey string      `json:"anthropic_api_key" yaml:"anthropic_api_key" mapstructure:"anthropic_api_key"`
	Model           string      `json:"model" yaml:"model" mapstructure:"model"`
	APIURL          string      `json:"api_url" yaml:"api_url" mapstructure:"api_url"`
	TimeoutSecs     int         `json:"timeout_secs" yaml:"timeout_secs" mapstructure:"timeout_secs"`
	ShowBacklog     bool        `json:"show_backlog" yaml:"show_backlog" mapstructure:"show_backlog"`
	ShowTodo        bool        `json:"show_todo" yaml:"show_todo" mapstructure:"show_todo"`
	ShowInProgress  bool        `json:"show_in_progress" yaml:"show_in_progress" mapstructure:"show_in_progress"`
	ShowDone        bool        `json:"show_done" yaml:"show_done" mapstructure:"show_done"`
	Buckets         []BucketDef `json:"buckets" yaml:"buckets" mapstructure:"buckets"`
}

// DefaultModel is used when settings name no model.
const DefaultModel = "claude-sonnet-4-5"

// DefaultBuckets returns the three buckets a fresh install starts with.
func DefaultBuckets() []BucketDef {
	return []BucketDef{
		{Name: "Personal", Description: "Your own tasks, reviews, and personal direction"},
		{Name: "Team", Description: "Onboarding, coordination, guiding your crew"},
		{Name: "Admin", Description: "Taxes, accounting, admin chores"},
	}
}

// DefaultSettings returns settings populated with sensible defaults.
func DefaultSettings() Settings {
	return Settings{
		OwnerName:      "John",
		AIEnabled:      true,
		Model:          DefaultModel,
		TimeoutSecs:    60,
		ShowBacklog:    true,
		ShowTodo:       true,
		ShowInProgress: true,
		ShowDone:       false,
		Buckets:        DefaultBuckets(),
	}
}

// BucketNames returns the configured bucket names in order.
func (s Settings) BucketNames() []string {
	names := make([]string, 0, len(s.Buckets))
	for _, b := range s.Buckets {
		names = append(names, b.Name)
	}
	return names
}

// DefaultBucket is the first configured bucket, or "Unassigned" when the
// list is empty.
func (s Settings) DefaultBucket() string {
	if len(s.Buckets) == 0 {
		return "Unassigned"
	}
	return s.Buckets[0].Name
}

// FindBucket returns the index of the bucket named name (case-insensitive).
func (s Settings) FindBucket(name string) int {
	for i, b := range s.Buckets {
		if strings.EqualFold(b.Name, strings.TrimSpace(name)) {
			return i
		}
	}
	return -1
}

// ShowsProgress reports whether the lane is visible in the board view.
func (s Settings) ShowsProgress(p Progress) bool {
	switch p {
	case Backlog:
		return s.ShowBacklog
	case Todo:
		return s.ShowTodo
	case InProgress:
		return s.ShowInProgress
	case Done:
		return s.ShowDone
	}
	return false
}

// Validate checks the settings and reports every problem found.
func (s Settings) Validate() error {
	var errs []string
	if len(s.Buckets) == 0 {
		errs = append(errs, "at least one bucket is required")
	}
	seen := make(map[string]bool)
	for i, b := range s.Buckets {
		name := strings.TrimSpace(b.Name)
		if name == "" {
			errs = append(errs, fmt.Sprintf("bucket %d has an empty name", i+1))
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			errs = append(errs, fmt.Sprintf("bucket %q is defined more than once", name))
		}
		seen[key] = true
	}
	if s.TimeoutSecs <= 0 {
		errs = append(errs, fmt.Sprintf("timeout_secs must be positive, got %d", s.TimeoutSecs))
	}
	if len(errs) > 0 {
		return fmt.Errorf("settings validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ParseToggle parses an on/off value: true/1/yes/on or false/0/no/off.
func ParseToggle(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid toggle %q: use true/false, yes/no, on/off or 1/0", s)
}
