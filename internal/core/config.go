// Package core contains the business logic for aipm: the task board and its
// invariants, prompt building and response parsing, the AI worker, the
// applier that merges results, input routing and settings.
package core

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"github.com/valter-silva-au/aipm/internal/storage"
	"github.com/valter-silva-au/aipm/pkg/models"
)

// SettingsManager loads and saves settings.json.
type SettingsManager interface {
	Load() (models.Settings, error)
	Save(s models.Settings) error
	Path() string
}

// viperSettingsManager implements SettingsManager using Viper for reading
// the JSON settings file.
type viperSettingsManager struct {
	dataDir string
}

// NewSettingsManager creates a SettingsManager for settings.json in dataDir.
func NewSettingsManager(dataDir string) SettingsManager {
	return &viperSettingsManager{dataDir: dataDir}
}

// settingsFile is the top-level structure of settings.json.
type settingsFile struct {
	Version  int             `json:"version" mapstructure:"version"`
	Settings models.Settings `json:"settings" mapstructure:"settings"`
}

func (m *viperSettingsManager) Path() string {
	return filepath.Join(m.dataDir, "settings.json")
}

// Load reads settings.json. If the file does not exist, defaults are
// returned. Missing keys fall back to their defaults.
func (m *viperSettingsManager) Load() (models.Settings, error) {
	cfg := models.DefaultSettings()

	v := viper.New()
	v.SetConfigName("settings")
	v.SetConfigType("json")
	v.AddConfigPath(m.dataDir)

	v.SetDefault("version", storage.FormatVersion)
	v.SetDefault("settings.owner_name", cfg.OwnerName)
	v.SetDefault("settings.ai_enabled", cfg.AIEnabled)
	v.SetDefault("settings.openai_api_key", "")
	v.SetDefault("settings.anthropic_api_key", "")
	v.SetDefault("settings.model", cfg.Model)
	v.SetDefault("settings.api_url", "")
	v.SetDefault("settings.timeout_secs", cfg.TimeoutSecs)
	v.SetDefault("settings.show_backlog", cfg.ShowBacklog)
	v.SetDefault("settings.show_todo", cfg.ShowTodo)
	v.SetDefault("settings.show_in_progress", cfg.ShowInProgress)
	v.SetDefault("settings.show_done", cfg.ShowDone)
	v.SetDefault("settings.buckets", bucketMaps(cfg.Buckets))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return cfg, nil
		}
		return models.Settings{}, fmt.Errorf("reading settings.json: %w", err)
	}

	var file settingsFile
	if err := v.Unmarshal(&file); err != nil {
		return models.Settings{}, fmt.Errorf("decoding settings.json: %w", err)
	}
	if file.Version != storage.FormatVersion {
		return models.Settings{}, fmt.Errorf("%w: unsupported settings version %d", storage.ErrInvalidData, file.Version)
	}
	cfg = file.Settings

	// Older files carried a single api_key for whichever provider was in use.
	if legacy := strings.TrimSpace(v.GetString("settings.api_key")); legacy != "" {
		if IsAnthropicModel(cfg.Model) {
			if cfg.AnthropicAPIKey == "" {
				cfg.AnthropicAPIKey = legacy
			}
		} else if cfg.OpenAIAPIKey == "" {
			cfg.OpenAIAPIKey = legacy
		}
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = models.DefaultModel
	}

	if err := cfg.Validate(); err != nil {
		return models.Settings{}, err
	}
	return cfg, nil
}

// Save validates s and writes settings.json atomically. The file holds API
// keys, so it is readable by the owner only.
func (m *viperSettingsManager) Save(s models.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(settingsFile{Version: storage.FormatVersion, Settings: s}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := storage.WriteFileAtomic(m.Path(), append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

func bucketMaps(buckets []models.BucketDef) []map[string]any {
	out := make([]map[string]any, len(buckets))
	for i, b := range buckets {
		out[i] = map[string]any{"name": b.Name, "description": b.Description}
	}
	return out
}

// Environment variables that override settings at runtime. They are never
// written back to settings.json.
const (
	EnvModel        = "AIPM_MODEL"
	EnvAPIURL       = "AIPM_API_URL"
	EnvTimeoutSecs  = "AIPM_TIMEOUT_SECS"
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
)

// ApplyEnv overlays environment overrides on s.
func ApplyEnv(s models.Settings) models.Settings {
	v := viper.New()
	_ = v.BindEnv("model", EnvModel)
	_ = v.BindEnv("api_url", EnvAPIURL)
	_ = v.BindEnv("timeout_secs", EnvTimeoutSecs)
	_ = v.BindEnv("openai_api_key", EnvOpenAIKey)
	_ = v.BindEnv("anthropic_api_key", EnvAnthropicKey)

	if v.IsSet("model") {
		s.Model = v.GetString("model")
	}
	if v.IsSet("api_url") {
		s.APIURL = v.GetString("api_url")
	}
	if n := v.GetInt("timeout_secs"); n > 0 {
		s.TimeoutSecs = n
	}
	if v.IsSet("openai_api_key") {
		s.OpenAIAPIKey = v.GetString("openai_api_key")
	}
	if v.IsSet("anthropic_api_key") {
		s.AnthropicAPIKey = v.GetString("anthropic_api_key")
	}
	return s
}

// IsAnthropicModel reports whether model is served by the Anthropic
// Messages API rather than an OpenAI-compatible endpoint.
func IsAnthropicModel(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "claude-")
}

// APIKeyFor returns the credential matching the configured model.
func APIKeyFor(s models.Settings) string {
	if IsAnthropicModel(s.Model) {
		return s.AnthropicAPIKey
	}
	return s.OpenAIAPIKey
}

// AIConfigured reports whether AI calls can be made with s.
func AIConfigured(s models.Settings) bool {
	return s.AIEnabled && strings.TrimSpace(APIKeyFor(s)) != ""
}

// LiveSettings caches the loaded settings for concurrent readers and
// persists every change. Environment overrides are applied on read and
// never saved.
type LiveSettings struct {
	mu  sync.RWMutex
	mgr SettingsManager
	cur models.Settings
}

// NewLiveSettings loads settings through mgr.
func NewLiveSettings(mgr SettingsManager) (*LiveSettings, error) {
	s, err := mgr.Load()
	if err != nil {
		return nil, err
	}
	return &LiveSettings{mgr: mgr, cur: s}, nil
}

// Get returns a copy of the current settings with environment overrides.
func (l *LiveSettings) Get() models.Settings {
	l.mu.RLock()
	s := l.cur
	s.Buckets = append([]models.BucketDef(nil), l.cur.Buckets...)
	l.mu.RUnlock()
	return ApplyEnv(s)
}

// Update applies fn to a copy of the stored settings and saves the result.
// Nothing changes if fn or the save fails.
func (l *LiveSettings) Update(fn func(s *models.Settings) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.cur
	next.Buckets = append([]models.BucketDef(nil), l.cur.Buckets...)
	if err := fn(&next); err != nil {
		return err
	}
	if err := l.mgr.Save(next); err != nil {
		return err
	}
	l.cur = next
	return nil
}

// SettingKeys lists the keys accepted by SetSetting.
var SettingKeys = []string{
	"owner_name", "ai_enabled", "model", "api_url", "timeout_secs",
	"openai_api_key", "anthropic_api_key",
	"show_backlog", "show_todo", "show_in_progress", "show_done",
}

// SetSetting assigns one scalar setting from its string form.
func SetSetting(s *models.Settings, key, value string) error {
	toggle := func(dst *bool) error {
		v, err := models.ParseToggle(value)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(key)) {
	case "owner_name":
		s.OwnerName = strings.TrimSpace(value)
	case "ai_enabled":
		return toggle(&s.AIEnabled)
	case "model":
		s.Model = strings.TrimSpace(value)
	case "api_url":
		s.APIURL = strings.TrimSpace(value)
	case "timeout_secs":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n <= 0 {
			return fmt.Errorf("timeout_secs must be a positive integer, got %q", value)
		}
		s.TimeoutSecs = n
	case "openai_api_key":
		s.OpenAIAPIKey = strings.TrimSpace(value)
	case "anthropic_api_key":
		s.AnthropicAPIKey = strings.TrimSpace(value)
	case "show_backlog":
		return toggle(&s.ShowBacklog)
	case "show_todo":
		return toggle(&s.ShowTodo)
	case "show_in_progress":
		return toggle(&s.ShowInProgress)
	case "show_done":
		return toggle(&s.ShowDone)
	default:
		return fmt.Errorf("unknown setting %q (valid: %s)", key, strings.Join(SettingKeys, ", "))
	}
	return nil
}

// MaskKey hides all but the last four characters of a credential.
func MaskKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return "****"
	}
	return strings.Repeat("*", 8) + key[len(key)-4:]
}
