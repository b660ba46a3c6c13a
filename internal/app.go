// Package internal provides the App struct that wires all components of
// aipm together and initializes the CLI layer.
package internal

import (
	"fmt"
	"path/filepath"

	"github.com/valter-silva-au/aipm/internal/cli"
	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/internal/integration"
	"github.com/valter-silva-au/aipm/internal/observability"
	"github.com/valter-silva-au/aipm/internal/storage"
	"github.com/valter-silva-au/aipm/pkg/models"
	"go.uber.org/zap"
)

// App holds all service dependencies for aipm.
type App struct {
	DataDir string

	// Configuration
	SettingsMgr core.SettingsManager
	Settings    *core.LiveSettings

	// Storage layer
	TaskStore storage.TaskStore
	UndoStore storage.UndoStore

	// Core services
	TaskMgr  core.TaskManager
	AIClient *integration.LLMClient

	// Observability
	Activity  observability.ActivityLog
	StatsCalc observability.StatsCalculator
	Logger    *zap.Logger
}

// NewApp creates and wires all components. dataDir must already exist; see
// storage.EnsureDataDir.
func NewApp(dataDir string) (*App, error) {
	app := &App{DataDir: dataDir}

	// --- Logging ---
	// The TUI owns the terminal, so entries go to a file. The level is
	// shared with the CLI so --debug can lower it after flags are parsed.
	logCfg := zap.NewProductionConfig()
	logCfg.Level = cli.LogLevel
	logCfg.OutputPaths = []string{filepath.Join(dataDir, "aipm.log")}
	logCfg.ErrorOutputPaths = []string{filepath.Join(dataDir, "aipm.log")}
	logger, err := logCfg.Build()
	if err != nil {
		// Non-fatal: run without a log file.
		logger = zap.NewNop()
	}
	app.Logger = logger

	// --- Configuration ---
	app.SettingsMgr = core.NewSettingsManager(dataDir)
	app.Settings, err = core.NewLiveSettings(app.SettingsMgr)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	// --- Storage layer ---
	app.TaskStore = storage.NewTaskStore(dataDir)
	app.UndoStore = storage.NewUndoStore(dataDir)

	// --- Observability ---
	app.Activity, err = observability.NewActivityLog(filepath.Join(dataDir, "activity.jsonl"))
	if err != nil {
		// Non-fatal: disable the activity log if it can't be opened.
		logger.Warn("opening activity log", zap.Error(err))
		app.Activity = nil
	}
	var events core.EventLogger
	if app.Activity != nil {
		app.StatsCalc = observability.NewStatsCalculator(app.Activity)
		events = app.Activity
	}

	// --- Core services ---
	app.AIClient = integration.NewLLMClient(app.Settings.Get, logger)
	tasks := &taskStoreAdapter{store: app.TaskStore}
	app.TaskMgr = core.NewTaskManager(core.TaskManagerConfig{
		Store:      tasks,
		Undo:       app.UndoStore,
		Events:     events,
		Settings:   app.Settings.Get,
		Configured: func() bool { return core.AIConfigured(app.Settings.Get()) },
		Logger:     logger,
	})

	// --- Wire CLI ---
	cli.DataDir = dataDir
	cli.TaskMgr = app.TaskMgr
	cli.TaskStore = tasks
	cli.UndoStore = app.UndoStore
	cli.Settings = app.Settings
	cli.AIClient = app.AIClient
	cli.Logger = logger
	if app.Activity != nil {
		cli.Activity = app.Activity
		cli.StatsCalc = app.StatsCalc
	}

	logger.Debug("app initialized", zap.String("data_dir", dataDir))
	return app, nil
}

// Close flushes the log and releases the activity log file handle. It is
// safe to call on an App whose Activity is nil.
func (a *App) Close() error {
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	if a.Activity != nil {
		return a.Activity.Close()
	}
	return nil
}

// --- Adapters ---

// taskStoreAdapter adapts storage.TaskStore to core.TaskStore.
type taskStoreAdapter struct {
	store storage.TaskStore
}

func (a *taskStoreAdapter) LoadTasks() ([]models.Task, error) {
	return a.store.Load()
}

func (a *taskStoreAdapter) SaveTasks(tasks []models.Task) error {
	return a.store.Save(tasks)
}
