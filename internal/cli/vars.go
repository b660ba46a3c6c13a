package cli

import (
	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/internal/observability"
	"go.uber.org/zap"
)

// Service instances, set during app initialization in app.go.
var (
	TaskMgr   core.TaskManager
	TaskStore core.TaskStore
	UndoStore core.UndoStore
	Settings  *core.LiveSettings
	AIClient  core.Completer
	DataDir   string
)

// Observability service instances, set during app initialization in app.go.
var (
	Activity  observability.ActivityLog
	StatsCalc observability.StatsCalculator
	Logger    = zap.NewNop()
	LogLevel  = zap.NewAtomicLevelAt(zap.InfoLevel)
)
