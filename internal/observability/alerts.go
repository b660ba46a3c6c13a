package observability

import (
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/valter-silva-au/aipm/pkg/models"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert is a board condition worth surfacing.
type Alert struct {
	ID        string        `json:"id" yaml:"id"`
	Condition string        `json:"condition" yaml:"condition"`
	Severity  AlertSeverity `json:"severity" yaml:"severity"`
	Message   string        `json:"message" yaml:"message"`
}

// AlertThresholds configures when alerts fire.
type AlertThresholds struct {
	StaleDays      int
	DueSoonDays    int
	MaxBacklogSize int
}

// DefaultAlertThresholds returns the thresholds used by `aipm alerts`.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		StaleDays:      3,
		DueSoonDays:    2,
		MaxBacklogSize: 25,
	}
}

// EvaluateAlerts checks tasks against thresholds as of now. Done tasks never
// alert. Results are ordered by severity, then id.
func EvaluateAlerts(tasks []models.Task, thresholds AlertThresholds, now time.Time) []Alert {
	today := civil.DateOf(now)
	var alerts []Alert
	backlog := 0

	for _, t := range tasks {
		if t.Progress == models.Done {
			continue
		}
		if t.Progress == models.Backlog && t.ParentID == nil {
			backlog++
		}

		if t.DueDate != nil {
			switch {
			case t.DueDate.Before(today):
				alerts = append(alerts, Alert{
					ID:        "overdue-" + t.ShortID(),
					Condition: "task_overdue",
					Severity:  SeverityHigh,
					Message:   fmt.Sprintf("%s %q was due %s", t.ShortID(), t.Title, t.DueDate),
				})
			case today.DaysSince(*t.DueDate) >= -thresholds.DueSoonDays:
				alerts = append(alerts, Alert{
					ID:        "due-soon-" + t.ShortID(),
					Condition: "task_due_soon",
					Severity:  SeverityMedium,
					Message:   fmt.Sprintf("%s %q is due %s", t.ShortID(), t.Title, t.DueDate),
				})
			}
		}

		stale := time.Duration(thresholds.StaleDays) * 24 * time.Hour
		if t.Progress == models.InProgress && now.Sub(t.UpdatedAt) > stale {
			alerts = append(alerts, Alert{
				ID:        "stale-" + t.ShortID(),
				Condition: "task_stale",
				Severity:  SeverityMedium,
				Message:   fmt.Sprintf("%s %q has been in progress with no change for more than %d days", t.ShortID(), t.Title, thresholds.StaleDays),
			})
		}
	}

	if thresholds.MaxBacklogSize > 0 && backlog > thresholds.MaxBacklogSize {
		alerts = append(alerts, Alert{
			ID:        "backlog-size",
			Condition: "backlog_too_large",
			Severity:  SeverityLow,
			Message:   fmt.Sprintf("backlog has %d top-level tasks (threshold: %d)", backlog, thresholds.MaxBacklogSize),
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := severityRank(alerts[i].Severity), severityRank(alerts[j].Severity)
		if ri != rj {
			return ri < rj
		}
		return alerts[i].ID < alerts[j].ID
	})
	return alerts
}

func severityRank(s AlertSeverity) int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	}
	return 2
}
